package interfaces

import (
	"context"

	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
)

// AccountStore is the persistence contract for accounts. ApplyDelta is the
// only balance writer and must be atomic: version check, non-negative
// floor and the write happen as one unit.
type AccountStore interface {
	Insert(ctx context.Context, account models.Account) error
	Get(ctx context.Context, id string) (models.Account, error)
	ApplyDelta(ctx context.Context, id string, delta money.Money, expectedVersion int64) (models.Account, error)
	SetActive(ctx context.Context, id string, active bool) error
	ListForOwner(ctx context.Context, ownerID string) ([]models.Account, error)
}
