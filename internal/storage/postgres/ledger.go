package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/lib/pq"
)

// LedgerStore persists ledger entries via database/sql. The table is
// append-only; no UPDATE or DELETE is ever issued against it.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

const entryColumns = `id, type, direction, account_id, amount, resulting_balance,
	counterparty_id, correlation_id, status, description, reverses_entry_id, created_at`

const insertEntryQuery = `INSERT INTO ledger_entries (` + entryColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

func (s *LedgerStore) Append(ctx context.Context, entry models.Entry) error {
	_, err := s.db.ExecContext(ctx, insertEntryQuery, entryArgs(entry)...)
	return err
}

// AppendLinked writes all entries inside one database transaction so the
// pair (or triple-plus, for fee-bearing transfers) commits or fails as a
// unit.
func (s *LedgerStore) AppendLinked(ctx context.Context, entries []models.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, insertEntryQuery, entryArgs(entry)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *LedgerStore) Get(ctx context.Context, id string) (models.Entry, error) {
	const query = `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return models.Entry{}, errs.New(errs.KindNotFound, "ledger entry %s not found", id)
	}
	if err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

func (s *LedgerStore) ListForAccount(ctx context.Context, accountID string, filter models.EntryFilter) ([]models.Entry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + entryColumns + ` FROM ledger_entries WHERE account_id = $1`)

	args := []any{accountID}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		fmt.Fprintf(&sb, ` AND type = ANY($%d)`, len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&sb, ` AND created_at >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&sb, ` AND created_at <= $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at ASC, id ASC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, ` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func entryArgs(e models.Entry) []any {
	return []any{
		e.ID, e.Type, e.Direction, e.AccountID,
		e.Amount.MinorUnits(), e.ResultingBalance.MinorUnits(),
		nullable(e.CounterpartyID), e.CorrelationID, e.Status,
		nullable(e.Description), nullable(e.ReversesEntryID), e.CreatedAt,
	}
}

func scanEntry(row rowScanner) (models.Entry, error) {
	var e models.Entry
	var amountUnits, balanceUnits int64
	var counterparty, description, reverses sql.NullString
	err := row.Scan(&e.ID, &e.Type, &e.Direction, &e.AccountID,
		&amountUnits, &balanceUnits,
		&counterparty, &e.CorrelationID, &e.Status,
		&description, &reverses, &e.CreatedAt)
	if err != nil {
		return models.Entry{}, err
	}
	e.Amount = money.FromMinorUnits(amountUnits)
	e.ResultingBalance = money.FromMinorUnits(balanceUnits)
	e.CounterpartyID = counterparty.String
	e.Description = description.String
	e.ReversesEntryID = reverses.String
	return e, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
