package postgres

import (
	"context"
	"database/sql"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
)

// AccountStore persists accounts via database/sql. Balances are stored as
// bigint minor units.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = `id, number, owner_id, type, name, balance, active, version, created_at, updated_at`

func (s *AccountStore) Insert(ctx context.Context, a models.Account) error {
	const query = `INSERT INTO accounts (` + accountColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Number, a.OwnerID, a.Type, a.Name,
		a.Balance.MinorUnits(), a.Active, a.Version, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *AccountStore) Get(ctx context.Context, id string) (models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	return s.scanAccount(s.db.QueryRowContext(ctx, query, id), id)
}

// ApplyDelta runs the version check, the non-negative floor and the write
// inside one transaction with the row locked, so the check-and-write is a
// single atomic unit even for callers outside the engine's lock path.
func (s *AccountStore) ApplyDelta(ctx context.Context, id string, delta money.Money, expectedVersion int64) (models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Account{}, err
	}
	defer tx.Rollback()

	const selectQuery = `SELECT balance, version FROM accounts WHERE id = $1 FOR UPDATE`

	var balanceUnits, version int64
	err = tx.QueryRowContext(ctx, selectQuery, id).Scan(&balanceUnits, &version)
	if err == sql.ErrNoRows {
		return models.Account{}, errs.New(errs.KindNotFound, "account %s not found", id)
	}
	if err != nil {
		return models.Account{}, err
	}

	if version != expectedVersion {
		return models.Account{}, errs.New(errs.KindConcurrentModification,
			"account %s at version %d, expected %d", id, version, expectedVersion)
	}
	newBalance, err := money.FromMinorUnits(balanceUnits).Add(delta)
	if err != nil {
		return models.Account{}, err
	}
	if newBalance.IsNegative() {
		return models.Account{}, errs.New(errs.KindInsufficientFunds,
			"account %s balance %s cannot cover %s", id, money.FromMinorUnits(balanceUnits), delta.Neg())
	}

	const updateQuery = `UPDATE accounts
	SET balance = $2, version = version + 1, updated_at = now()
	WHERE id = $1 AND version = $3
	RETURNING ` + accountColumns

	updated, err := s.scanAccount(tx.QueryRowContext(ctx, updateQuery, id, newBalance.MinorUnits(), expectedVersion), id)
	if err != nil {
		return models.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Account{}, err
	}
	return updated, nil
}

func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE accounts SET active = $2, updated_at = now() WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.New(errs.KindNotFound, "account %s not found", id)
	}
	return nil
}

func (s *AccountStore) ListForOwner(ctx context.Context, ownerID string) ([]models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *AccountStore) scanAccount(row rowScanner, id string) (models.Account, error) {
	a, err := scanAccountRow(row)
	if err == sql.ErrNoRows {
		return models.Account{}, errs.New(errs.KindNotFound, "account %s not found", id)
	}
	if err != nil {
		return models.Account{}, err
	}
	return a, nil
}

func scanAccountRow(row rowScanner) (models.Account, error) {
	var a models.Account
	var balanceUnits int64
	err := row.Scan(&a.ID, &a.Number, &a.OwnerID, &a.Type, &a.Name,
		&balanceUnits, &a.Active, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Account{}, err
	}
	a.Balance = money.FromMinorUnits(balanceUnits)
	return a, nil
}

var _ interfaces.AccountStore = (*AccountStore)(nil)
