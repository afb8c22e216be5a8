package models

import (
	"time"

	"github.com/fincore/ledger-engine/internal/money"
	"github.com/shopspring/decimal"
)

type Operation string

const (
	OpDeposit          Operation = "deposit"
	OpWithdraw         Operation = "withdraw"
	OpTransfer         Operation = "transfer"
	OpAdvancedTransfer Operation = "advanced_transfer"
)

type FeeKind string

const (
	FeeNone    FeeKind = "none"
	FeeFlat    FeeKind = "flat"
	FeePercent FeeKind = "percent"
)

// FeePolicy describes the fee attached to an advanced transfer. Flat is
// used for FeeFlat, Rate for FeePercent (e.g. 0.025 for 2.5%).
type FeePolicy struct {
	Kind FeeKind
	Flat money.Money
	Rate decimal.Decimal
}

// OperationRequest is the single contract the authorization layer hands the
// engine. Identity and ownership verdicts are already established by then;
// the engine only consumes ActorID and ActorAdmin.
type OperationRequest struct {
	Operation   Operation
	ActorID     string
	ActorAdmin  bool
	AccountID   string // deposit / withdraw
	SourceID    string // transfer / advanced_transfer
	DestID      string
	Amount      money.Money
	Fee         *FeePolicy
	ScheduledAt *time.Time
	Description string
}

type AccountView struct {
	ID      string      `json:"id"`
	Balance money.Money `json:"balance"`
	Version int64       `json:"version"`
}

type EntryView struct {
	ID        string      `json:"id"`
	Type      EntryType   `json:"type"`
	Amount    money.Money `json:"amount"`
	CreatedAt time.Time   `json:"timestamp"`
}

// OperationResult is returned only on success; failures surface as errors
// with no partial state attached.
type OperationResult struct {
	Status        string        `json:"status"` // completed | scheduled
	Accounts      []AccountView `json:"accounts,omitempty"`
	Entries       []EntryView   `json:"ledger_entries,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	ScheduleID    string        `json:"schedule_id,omitempty"`
}
