package engine

import (
	"context"
	"time"

	"github.com/fincore/ledger-engine/internal/models"
	"go.uber.org/zap"
)

// StartScheduler runs the pending-transfer worker until ctx is canceled.
// Each tick executes every due scheduled transfer through the normal state
// machine, so balances are re-validated at execution time.
func (e *Engine) StartScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		e.log.Info("transfer scheduler started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				e.log.Info("transfer scheduler stopped")
				return
			case <-ticker.C:
				e.RunDue(ctx, time.Now().UTC())
			}
		}
	}()
}

// RunDue executes every scheduled transfer due at now. Exported separately
// so tests and operational tooling can drive the clock.
func (e *Engine) RunDue(ctx context.Context, now time.Time) {
	due, err := e.schedules.Due(ctx, now)
	if err != nil {
		e.log.Error("loading due transfers failed", zap.Error(err))
		return
	}

	for _, st := range due {
		req := models.OperationRequest{
			Operation:   models.OpAdvancedTransfer,
			ActorID:     st.ActorID,
			ActorAdmin:  st.ActorAdmin,
			SourceID:    st.SourceID,
			DestID:      st.DestID,
			Amount:      st.Amount,
			Fee:         st.Fee,
			Description: st.Description,
		}
		if _, err := e.runTransfer(ctx, req, st.Fee); err != nil {
			e.log.Warn("scheduled transfer failed",
				zap.String("schedule_id", st.ID),
				zap.Error(err))
			if merr := e.schedules.MarkFailed(ctx, st.ID, err.Error()); merr != nil {
				e.log.Error("marking schedule failed", zap.String("schedule_id", st.ID), zap.Error(merr))
			}
			continue
		}
		e.log.Info("scheduled transfer executed", zap.String("schedule_id", st.ID))
		if merr := e.schedules.MarkExecuted(ctx, st.ID); merr != nil {
			e.log.Error("marking schedule executed", zap.String("schedule_id", st.ID), zap.Error(merr))
		}
	}
}
