package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics the engine publishes to.
const (
	TopicTransferCompleted = "transfer_completed"
	TopicEntryReversed     = "entry_reversed"
)

// TransferCompleted is emitted after an operation reaches COMPLETED.
// Deposits and withdrawals leave the unused account field empty.
type TransferCompleted struct {
	CorrelationID string          `json:"correlation_id"`
	Operation     string          `json:"operation"`
	SourceAccount string          `json:"source_account,omitempty"`
	DestAccount   string          `json:"dest_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// EntryReversed is emitted after a compensating reversal commits.
type EntryReversed struct {
	OriginalEntryID string          `json:"original_entry_id"`
	ReversalEntryID string          `json:"reversal_entry_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}
