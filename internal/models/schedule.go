package models

import (
	"time"

	"github.com/fincore/ledger-engine/internal/money"
)

type ScheduleStatus string

const (
	SchedulePending  ScheduleStatus = "pending"
	ScheduleExecuted ScheduleStatus = "executed"
	ScheduleFailed   ScheduleStatus = "failed"
)

// ScheduledTransfer is an advanced transfer persisted for future execution.
// The full state machine runs at execution time, so balances are
// re-validated then, not at submission.
type ScheduledTransfer struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actor_id"`
	ActorAdmin  bool           `json:"actor_admin"`
	SourceID    string         `json:"source_id"`
	DestID      string         `json:"dest_id"`
	Amount      money.Money    `json:"amount"`
	Fee         *FeePolicy     `json:"fee,omitempty"`
	Description string         `json:"description,omitempty"`
	ExecuteAt   time.Time      `json:"execute_at"`
	Status      ScheduleStatus `json:"status"`
	LastError   string         `json:"last_error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
