package interfaces

import (
	"context"
	"time"

	"github.com/fincore/ledger-engine/internal/models"
)

// ScheduleStore persists advanced transfers submitted with a future
// execution time.
type ScheduleStore interface {
	Insert(ctx context.Context, st models.ScheduledTransfer) error
	Due(ctx context.Context, now time.Time) ([]models.ScheduledTransfer, error)
	MarkExecuted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	HasPendingForAccount(ctx context.Context, accountID string) (bool, error)
}
