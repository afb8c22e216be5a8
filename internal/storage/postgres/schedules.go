package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/shopspring/decimal"
)

// ScheduleStore persists pending scheduled transfers.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

func (s *ScheduleStore) Insert(ctx context.Context, st models.ScheduledTransfer) error {
	const query = `INSERT INTO scheduled_transfers
	(id, actor_id, actor_admin, source_id, dest_id, amount, fee_kind, fee_flat, fee_rate,
	 description, execute_at, status, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	feeKind, feeFlat, feeRate := flattenFee(st.Fee)
	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.ActorID, st.ActorAdmin, st.SourceID, st.DestID,
		st.Amount.MinorUnits(), feeKind, feeFlat, feeRate,
		st.Description, st.ExecuteAt, st.Status, st.CreatedAt)
	return err
}

func (s *ScheduleStore) Due(ctx context.Context, now time.Time) ([]models.ScheduledTransfer, error) {
	const query = `SELECT id, actor_id, actor_admin, source_id, dest_id, amount,
	fee_kind, fee_flat, fee_rate, description, execute_at, status, created_at
	FROM scheduled_transfers
	WHERE status = 'pending' AND execute_at <= $1
	ORDER BY execute_at ASC`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []models.ScheduledTransfer
	for rows.Next() {
		var st models.ScheduledTransfer
		var amountUnits int64
		var feeKind, feeRate sql.NullString
		var feeFlat sql.NullInt64
		err := rows.Scan(&st.ID, &st.ActorID, &st.ActorAdmin, &st.SourceID, &st.DestID,
			&amountUnits, &feeKind, &feeFlat, &feeRate,
			&st.Description, &st.ExecuteAt, &st.Status, &st.CreatedAt)
		if err != nil {
			return nil, err
		}
		st.Amount = money.FromMinorUnits(amountUnits)
		st.Fee, err = expandFee(feeKind, feeFlat, feeRate)
		if err != nil {
			return nil, err
		}
		due = append(due, st)
	}
	return due, rows.Err()
}

func (s *ScheduleStore) MarkExecuted(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.ScheduleExecuted, "")
}

func (s *ScheduleStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.setStatus(ctx, id, models.ScheduleFailed, reason)
}

func (s *ScheduleStore) HasPendingForAccount(ctx context.Context, accountID string) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM scheduled_transfers
		WHERE status = 'pending' AND (source_id = $1 OR dest_id = $1))`

	var exists bool
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(&exists)
	return exists, err
}

func (s *ScheduleStore) setStatus(ctx context.Context, id string, status models.ScheduleStatus, reason string) error {
	const query = `UPDATE scheduled_transfers SET status = $2, last_error = $3 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, status, nullable(reason))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.New(errs.KindNotFound, "scheduled transfer %s not found", id)
	}
	return nil
}

func flattenFee(fee *models.FeePolicy) (sql.NullString, sql.NullInt64, sql.NullString) {
	if fee == nil {
		return sql.NullString{}, sql.NullInt64{}, sql.NullString{}
	}
	return sql.NullString{String: string(fee.Kind), Valid: true},
		sql.NullInt64{Int64: fee.Flat.MinorUnits(), Valid: true},
		sql.NullString{String: fee.Rate.String(), Valid: true}
}

func expandFee(kind sql.NullString, flat sql.NullInt64, rate sql.NullString) (*models.FeePolicy, error) {
	if !kind.Valid {
		return nil, nil
	}
	fee := &models.FeePolicy{Kind: models.FeeKind(kind.String), Flat: money.FromMinorUnits(flat.Int64)}
	if rate.Valid && rate.String != "" {
		parsed, err := decimal.NewFromString(rate.String)
		if err != nil {
			return nil, err
		}
		fee.Rate = parsed
	}
	return fee, nil
}

var _ interfaces.ScheduleStore = (*ScheduleStore)(nil)
