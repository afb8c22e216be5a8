// Package accounts owns account records: creation, lookup, ownership
// checks, balance deltas and soft deactivation. Every balance write goes
// through ApplyDelta on the underlying store, which enforces the optimistic
// version check and the non-negative floor atomically.
package accounts

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store interfaces.AccountStore
	log   *zap.Logger
}

func NewService(store interfaces.AccountStore, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Create opens an active account with zero balance at version 1.
func (s *Service) Create(ctx context.Context, ownerID string, typ models.AccountType, name string) (models.Account, error) {
	switch typ {
	case models.AccountChecking, models.AccountSavings:
	default:
		return models.Account{}, errs.New(errs.KindValidation, "unknown account type %q", typ)
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:        uuid.New().String(),
		Number:    generateNumber(),
		OwnerID:   ownerID,
		Type:      typ,
		Name:      name,
		Balance:   money.Zero,
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, account); err != nil {
		return models.Account{}, err
	}
	s.log.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("owner_id", ownerID),
		zap.String("type", string(typ)))
	return account, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Account, error) {
	return s.store.Get(ctx, id)
}

// RequireOwnership verifies actorID owns the account. Admin actors pass
// regardless of ownership.
func (s *Service) RequireOwnership(ctx context.Context, accountID, actorID string, admin bool) error {
	if admin {
		return nil
	}
	account, err := s.store.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if account.OwnerID != actorID {
		return errs.New(errs.KindForbidden, "account %s does not belong to actor %s", accountID, actorID)
	}
	return nil
}

// ApplyDelta adds delta (possibly negative) to the balance, guarded by the
// expected version.
func (s *Service) ApplyDelta(ctx context.Context, id string, delta money.Money, expectedVersion int64) (models.Account, error) {
	updated, err := s.store.ApplyDelta(ctx, id, delta, expectedVersion)
	if err != nil {
		return models.Account{}, err
	}
	s.log.Debug("balance delta applied",
		zap.String("account_id", id),
		zap.String("delta", delta.String()),
		zap.String("balance", updated.Balance.String()),
		zap.Int64("version", updated.Version))
	return updated, nil
}

// Deactivate soft-deletes an account. Only zero-balance accounts can be
// deactivated; the record itself is kept for ledger integrity.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	account, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !account.Balance.IsZero() {
		return errs.New(errs.KindNonZeroBalance,
			"account %s holds %s, withdraw before closing", id, account.Balance)
	}
	if err := s.store.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.log.Info("account deactivated", zap.String("account_id", id))
	return nil
}

func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]models.Account, error) {
	return s.store.ListForOwner(ctx, ownerID)
}

func generateNumber() string {
	return fmt.Sprintf("ACCT-%010d", rand.Int63n(1e10))
}
