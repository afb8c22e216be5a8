package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/fincore/ledger-engine/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService() (*Service, *memory.LedgerStore) {
	store := memory.NewLedgerStore()
	return NewService(store, zap.NewNop()), store
}

func TestAppendAssignsIdentityAndCommits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	entry, err := svc.Append(ctx, models.EntryDraft{
		Type:             models.EntryDeposit,
		AccountID:        "acct-1",
		Amount:           money.FromMinorUnits(1000),
		ResultingBalance: money.FromMinorUnits(1000),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.CorrelationID)
	assert.Equal(t, models.EntryCommitted, entry.Status)
	assert.Equal(t, models.DirectionCredit, entry.Direction)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestAppendRejectsNegativeMagnitude(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Append(context.Background(), models.EntryDraft{
		Type:      models.EntryDeposit,
		AccountID: "acct-1",
		Amount:    money.FromMinorUnits(-100),
	})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestAppendLinkedSharesCorrelation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	entries, err := svc.AppendLinked(ctx,
		models.EntryDraft{
			Type:             models.EntryTransferOut,
			AccountID:        "acct-a",
			Amount:           money.FromMinorUnits(5000),
			ResultingBalance: money.FromMinorUnits(5000),
			CounterpartyID:   "acct-b",
		},
		models.EntryDraft{
			Type:             models.EntryTransferIn,
			AccountID:        "acct-b",
			Amount:           money.FromMinorUnits(5000),
			ResultingBalance: money.FromMinorUnits(5000),
			CounterpartyID:   "acct-a",
		})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].CorrelationID, entries[1].CorrelationID)
	assert.Equal(t, models.DirectionDebit, entries[0].Direction)
	assert.Equal(t, models.DirectionCredit, entries[1].Direction)
	assert.Equal(t, 0, entries[0].Amount.Cmp(entries[1].Amount))
}

func TestAppendLinkedAllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.AppendLinked(ctx,
		models.EntryDraft{
			Type:      models.EntryTransferOut,
			AccountID: "acct-a",
			Amount:    money.FromMinorUnits(5000),
		},
		models.EntryDraft{
			Type:      models.EntryTransferIn,
			AccountID: "acct-b",
			Amount:    money.FromMinorUnits(-5000), // invalid
		})
	require.ErrorIs(t, err, errs.ErrValidation)

	// the valid draft must not have been persisted either
	entries, err := svc.ListForAccount(ctx, "acct-a", models.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListForAccountOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	for i := 0; i < 3; i++ {
		_, err := svc.Append(ctx, models.EntryDraft{
			Type:      models.EntryDeposit,
			AccountID: "acct-1",
			Amount:    money.FromMinorUnits(int64(100 * (i + 1))),
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct timestamps
	}
	_, err := svc.Append(ctx, models.EntryDraft{
		Type:      models.EntryWithdrawal,
		AccountID: "acct-1",
		Amount:    money.FromMinorUnits(50),
	})
	require.NoError(t, err)

	all, err := svc.ListForAccount(ctx, "acct-1", models.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.Before(all[i-1].CreatedAt), "entries must be timestamp-ascending")
	}

	deposits, err := svc.ListForAccount(ctx, "acct-1", models.EntryFilter{
		Types: []models.EntryType{models.EntryDeposit},
	})
	require.NoError(t, err)
	assert.Len(t, deposits, 3)

	// restartable pagination
	page1, err := svc.ListForAccount(ctx, "acct-1", models.EntryFilter{Limit: 2})
	require.NoError(t, err)
	page2, err := svc.ListForAccount(ctx, "acct-1", models.EntryFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	assert.Equal(t, all[2].ID, page2[0].ID)

	cutoff := all[1].CreatedAt
	recent, err := svc.ListForAccount(ctx, "acct-1", models.EntryFilter{From: &cutoff})
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestReverseAppendsCompensatingEntry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	original, err := svc.Append(ctx, models.EntryDraft{
		Type:             models.EntryDeposit,
		AccountID:        "acct-1",
		Amount:           money.FromMinorUnits(2500),
		ResultingBalance: money.FromMinorUnits(2500),
	})
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, original.ID, "operator correction", money.Zero)
	require.NoError(t, err)
	assert.Equal(t, models.EntryReversal, reversal.Type)
	assert.Equal(t, models.DirectionDebit, reversal.Direction)
	assert.Equal(t, original.ID, reversal.ReversesEntryID)
	assert.Equal(t, original.CorrelationID, reversal.CorrelationID)
	assert.Equal(t, 0, original.Amount.Cmp(reversal.Amount))

	// original stays byte-for-byte as committed
	stored, err := svc.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original, stored)
}

func TestReverseTwiceRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	original, err := svc.Append(ctx, models.EntryDraft{
		Type:             models.EntryDeposit,
		AccountID:        "acct-1",
		Amount:           money.FromMinorUnits(2500),
		ResultingBalance: money.FromMinorUnits(2500),
	})
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, original.ID, "operator correction", money.Zero)
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, original.ID, "operator correction", money.Zero)
	require.ErrorIs(t, err, errs.ErrValidation)

	// exactly one compensating entry exists
	reversals, err := svc.ListForAccount(ctx, "acct-1", models.EntryFilter{
		Types: []models.EntryType{models.EntryReversal},
	})
	require.NoError(t, err)
	assert.Len(t, reversals, 1)
}

func TestReverseUnknownEntry(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Reverse(context.Background(), "missing", "why", money.Zero)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
