package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/fincore/ledger-engine/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService() *Service {
	return NewService(memory.NewAccountStore(), zap.NewNop())
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	account, err := svc.Create(ctx, "actor-1", models.AccountChecking, "daily")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.True(t, strings.HasPrefix(account.Number, "ACCT-"))
	assert.True(t, account.Balance.IsZero())
	assert.True(t, account.Active)
	assert.Equal(t, int64(1), account.Version)

	got, err := svc.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, "actor-1", got.OwnerID)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	_, err := newService().Create(context.Background(), "actor-1", "premium", "")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestGetUnknownAccount(t *testing.T) {
	_, err := newService().Get(context.Background(), "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRequireOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	account, err := svc.Create(ctx, "actor-1", models.AccountSavings, "")
	require.NoError(t, err)

	assert.NoError(t, svc.RequireOwnership(ctx, account.ID, "actor-1", false))

	err = svc.RequireOwnership(ctx, account.ID, "actor-2", false)
	require.ErrorIs(t, err, errs.ErrForbidden)

	// admin capability bypasses ownership
	assert.NoError(t, svc.RequireOwnership(ctx, account.ID, "actor-2", true))
}

func TestApplyDelta(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	account, err := svc.Create(ctx, "actor-1", models.AccountChecking, "")
	require.NoError(t, err)

	updated, err := svc.ApplyDelta(ctx, account.ID, money.FromMinorUnits(10000), account.Version)
	require.NoError(t, err)
	assert.Equal(t, "100.00", updated.Balance.String())
	assert.Equal(t, account.Version+1, updated.Version)

	// debit past zero is refused, balance untouched
	_, err = svc.ApplyDelta(ctx, account.ID, money.FromMinorUnits(-15000), updated.Version)
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)

	current, err := svc.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", current.Balance.String())

	// stale version is refused
	_, err = svc.ApplyDelta(ctx, account.ID, money.FromMinorUnits(100), account.Version)
	require.ErrorIs(t, err, errs.ErrConcurrentModification)
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	account, err := svc.Create(ctx, "actor-1", models.AccountChecking, "")
	require.NoError(t, err)

	funded, err := svc.ApplyDelta(ctx, account.ID, money.FromMinorUnits(500), account.Version)
	require.NoError(t, err)

	err = svc.Deactivate(ctx, account.ID)
	require.ErrorIs(t, err, errs.ErrNonZeroBalance)

	_, err = svc.ApplyDelta(ctx, account.ID, money.FromMinorUnits(-500), funded.Version)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, account.ID))
	got, err := svc.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestListForOwner(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Create(ctx, "actor-1", models.AccountChecking, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "actor-1", models.AccountSavings, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "actor-2", models.AccountChecking, "")
	require.NoError(t, err)

	mine, err := svc.ListForOwner(ctx, "actor-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
