package models

import (
	"time"

	"github.com/fincore/ledger-engine/internal/money"
)

type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
)

// Account is a single-currency balance record. Balance and Version are
// written only through AccountStore.ApplyDelta; Version increments on every
// successful delta and backs the optimistic concurrency check.
type Account struct {
	ID        string      `json:"id"`
	Number    string      `json:"number"`
	OwnerID   string      `json:"owner_id"`
	Type      AccountType `json:"type"`
	Name      string      `json:"name,omitempty"`
	Balance   money.Money `json:"balance"`
	Active    bool        `json:"active"`
	Version   int64       `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
