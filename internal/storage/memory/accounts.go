package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
)

// AccountStore is an in-memory implementation of interfaces.AccountStore.
// All mutations happen under one mutex, so ApplyDelta's check-and-write is
// naturally atomic.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]models.Account)}
}

func (s *AccountStore) Insert(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return errs.New(errs.KindInternal, "account %s already exists", account.ID)
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, errs.New(errs.KindNotFound, "account %s not found", id)
	}
	return account, nil
}

// ApplyDelta adds delta to the balance after checking the expected version
// and the non-negative floor, then bumps the version.
func (s *AccountStore) ApplyDelta(ctx context.Context, id string, delta money.Money, expectedVersion int64) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, errs.New(errs.KindNotFound, "account %s not found", id)
	}
	if account.Version != expectedVersion {
		return models.Account{}, errs.New(errs.KindConcurrentModification,
			"account %s at version %d, expected %d", id, account.Version, expectedVersion)
	}
	newBalance, err := account.Balance.Add(delta)
	if err != nil {
		return models.Account{}, err
	}
	if newBalance.IsNegative() {
		return models.Account{}, errs.New(errs.KindInsufficientFunds,
			"account %s balance %s cannot cover %s", id, account.Balance, delta.Neg())
	}

	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = time.Now().UTC()
	s.accounts[id] = account
	return account, nil
}

func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return errs.New(errs.KindNotFound, "account %s not found", id)
	}
	account.Active = active
	account.UpdatedAt = time.Now().UTC()
	s.accounts[id] = account
	return nil
}

func (s *AccountStore) ListForOwner(ctx context.Context, ownerID string) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Account
	for _, account := range s.accounts {
		if account.OwnerID == ownerID {
			out = append(out, account)
		}
	}
	return out, nil
}

var _ interfaces.AccountStore = (*AccountStore)(nil)
