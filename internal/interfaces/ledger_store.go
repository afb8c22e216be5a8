package interfaces

import (
	"context"

	"github.com/fincore/ledger-engine/internal/models"
)

// LedgerStore is the append-only persistence contract for ledger entries.
// Append and AppendLinked are durability points: once they return nil the
// entries are permanent. AppendLinked persists all entries or none.
type LedgerStore interface {
	Append(ctx context.Context, entry models.Entry) error
	AppendLinked(ctx context.Context, entries []models.Entry) error
	Get(ctx context.Context, id string) (models.Entry, error)
	ListForAccount(ctx context.Context, accountID string, filter models.EntryFilter) ([]models.Entry, error)
}
