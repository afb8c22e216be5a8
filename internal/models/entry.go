package models

import (
	"time"

	"github.com/fincore/ledger-engine/internal/money"
)

type EntryType string

const (
	EntryDeposit     EntryType = "deposit"
	EntryWithdrawal  EntryType = "withdrawal"
	EntryTransferOut EntryType = "transfer_out"
	EntryTransferIn  EntryType = "transfer_in"
	EntryFee         EntryType = "fee"
	EntryReversal    EntryType = "reversal"
)

type EntryDirection string

const (
	DirectionDebit  EntryDirection = "debit"
	DirectionCredit EntryDirection = "credit"
)

// DirectionFor returns the direction implied by an entry type. Reversals
// invert the original entry's direction, so they carry it explicitly.
func DirectionFor(t EntryType) EntryDirection {
	switch t {
	case EntryDeposit, EntryTransferIn:
		return DirectionCredit
	default:
		return DirectionDebit
	}
}

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCommitted EntryStatus = "committed"
	EntryFailed    EntryStatus = "failed"
)

// Entry is one immutable ledger record. Amount is always a non-negative
// magnitude; the sign comes from Direction. Entries forming both sides of
// a transfer share a CorrelationID.
type Entry struct {
	ID               string         `json:"id"`
	Type             EntryType      `json:"type"`
	Direction        EntryDirection `json:"direction"`
	AccountID        string         `json:"account_id"`
	Amount           money.Money    `json:"amount"`
	ResultingBalance money.Money    `json:"resulting_balance"`
	CounterpartyID   string         `json:"counterparty_id,omitempty"`
	CorrelationID    string         `json:"correlation_id"`
	Status           EntryStatus    `json:"status"`
	Description      string         `json:"description,omitempty"`
	ReversesEntryID  string         `json:"reverses_entry_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// SignedAmount is the balance effect of the entry: positive for credits,
// negative for debits.
func (e Entry) SignedAmount() money.Money {
	if e.Direction == DirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// EntryDraft is what callers hand to the ledger; the ledger assigns ID,
// correlation, status and timestamp on append.
type EntryDraft struct {
	Type             EntryType
	Direction        EntryDirection
	AccountID        string
	Amount           money.Money
	ResultingBalance money.Money
	CounterpartyID   string
	Description      string
	ReversesEntryID  string
}

// EntryFilter narrows ListForAccount scans. Zero values mean "no bound";
// Limit<=0 means no limit.
type EntryFilter struct {
	Types  []EntryType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
