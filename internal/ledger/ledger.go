// Package ledger maintains the append-only record of balance-affecting
// events. Entries are immutable once committed; corrections happen through
// compensating reversal entries, never in place.
package ledger

import (
	"context"
	"time"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store interfaces.LedgerStore
	log   *zap.Logger
}

func NewService(store interfaces.LedgerStore, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Append persists a single entry as committed. Once it returns, the entry
// is durable.
func (s *Service) Append(ctx context.Context, draft models.EntryDraft) (models.Entry, error) {
	entry, err := s.build(draft, uuid.New().String(), time.Now().UTC())
	if err != nil {
		return models.Entry{}, err
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return models.Entry{}, errs.Wrap(errs.KindLedgerWrite, err, "appending entry for account %s", draft.AccountID)
	}
	s.log.Debug("ledger entry committed",
		zap.String("entry_id", entry.ID),
		zap.String("account_id", entry.AccountID),
		zap.String("type", string(entry.Type)))
	return entry, nil
}

// AppendLinked persists the drafts under one correlation identifier as an
// all-or-nothing unit. Validation failures on any draft leave nothing
// persisted.
func (s *Service) AppendLinked(ctx context.Context, drafts ...models.EntryDraft) ([]models.Entry, error) {
	correlationID := uuid.New().String()
	now := time.Now().UTC()

	entries := make([]models.Entry, 0, len(drafts))
	for _, draft := range drafts {
		entry, err := s.build(draft, correlationID, now)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := s.store.AppendLinked(ctx, entries); err != nil {
		return nil, errs.Wrap(errs.KindLedgerWrite, err, "appending %d linked entries", len(entries))
	}
	s.log.Debug("linked ledger entries committed",
		zap.String("correlation_id", correlationID),
		zap.Int("count", len(entries)))
	return entries, nil
}

// ListForAccount returns entries ordered by timestamp ascending. The filter
// supports type and date-range narrowing plus limit/offset so scans are
// restartable.
func (s *Service) ListForAccount(ctx context.Context, accountID string, filter models.EntryFilter) ([]models.Entry, error) {
	return s.store.ListForAccount(ctx, accountID, filter)
}

func (s *Service) Get(ctx context.Context, id string) (models.Entry, error) {
	return s.store.Get(ctx, id)
}

// HasReversal reports whether a committed reversal already references the
// given entry.
func (s *Service) HasReversal(ctx context.Context, entry models.Entry) (bool, error) {
	reversals, err := s.store.ListForAccount(ctx, entry.AccountID, models.EntryFilter{
		Types: []models.EntryType{models.EntryReversal},
	})
	if err != nil {
		return false, err
	}
	for _, r := range reversals {
		if r.ReversesEntryID == entry.ID {
			return true, nil
		}
	}
	return false, nil
}

// Reverse appends a compensating entry with inverted direction referencing
// the original. The original entry is never touched and may be reversed at
// most once. The caller is responsible for applying the matching balance
// delta first so the resulting balance snapshot is accurate.
func (s *Service) Reverse(ctx context.Context, entryID, reason string, resultingBalance money.Money) (models.Entry, error) {
	original, err := s.store.Get(ctx, entryID)
	if err != nil {
		return models.Entry{}, err
	}
	reversed, err := s.HasReversal(ctx, original)
	if err != nil {
		return models.Entry{}, err
	}
	if reversed {
		return models.Entry{}, errs.New(errs.KindValidation, "entry %s is already reversed", entryID)
	}

	direction := models.DirectionDebit
	if original.Direction == models.DirectionDebit {
		direction = models.DirectionCredit
	}
	draft := models.EntryDraft{
		Type:             models.EntryReversal,
		Direction:        direction,
		AccountID:        original.AccountID,
		Amount:           original.Amount,
		ResultingBalance: resultingBalance,
		CounterpartyID:   original.CounterpartyID,
		Description:      reason,
		ReversesEntryID:  original.ID,
	}
	// reversal joins the original's correlation so audits see both sides
	entry, err := s.build(draft, original.CorrelationID, time.Now().UTC())
	if err != nil {
		return models.Entry{}, err
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return models.Entry{}, errs.Wrap(errs.KindLedgerWrite, err, "appending reversal of %s", entryID)
	}
	s.log.Info("entry reversed",
		zap.String("original_entry_id", original.ID),
		zap.String("reversal_entry_id", entry.ID),
		zap.String("reason", reason))
	return entry, nil
}

func (s *Service) build(draft models.EntryDraft, correlationID string, at time.Time) (models.Entry, error) {
	if draft.Amount.IsNegative() {
		return models.Entry{}, errs.New(errs.KindValidation,
			"entry amount must be a non-negative magnitude, got %s", draft.Amount)
	}
	if draft.AccountID == "" {
		return models.Entry{}, errs.New(errs.KindValidation, "entry requires an account id")
	}
	direction := draft.Direction
	if direction == "" {
		direction = models.DirectionFor(draft.Type)
	}
	return models.Entry{
		ID:               uuid.New().String(),
		Type:             draft.Type,
		Direction:        direction,
		AccountID:        draft.AccountID,
		Amount:           draft.Amount,
		ResultingBalance: draft.ResultingBalance,
		CounterpartyID:   draft.CounterpartyID,
		CorrelationID:    correlationID,
		Status:           models.EntryCommitted,
		Description:      draft.Description,
		ReversesEntryID:  draft.ReversesEntryID,
		CreatedAt:        at,
	}, nil
}
