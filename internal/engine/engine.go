// Package engine orchestrates deposits, withdrawals and transfers as
// atomic units over the account store and the ledger.
//
// Every operation walks the same state machine:
//
//	RECEIVED -> VALIDATED -> LOCKED -> APPLIED -> LEDGERED -> COMPLETED
//
// Validation failures reject before any mutation. After locks are held,
// balance deltas are applied debit-first; a failed credit is compensated
// by an equal-and-opposite delta before the locks drop. A failed ledger
// append unwinds every applied delta, so callers never observe balances
// that moved without a ledger record.
package engine

import (
	"context"
	"time"

	"github.com/fincore/ledger-engine/internal/accounts"
	"github.com/fincore/ledger-engine/internal/errs"
	"github.com/fincore/ledger-engine/internal/interfaces"
	"github.com/fincore/ledger-engine/internal/ledger"
	"github.com/fincore/ledger-engine/internal/models"
	"github.com/fincore/ledger-engine/internal/models/events"
	"github.com/fincore/ledger-engine/internal/money"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultLockTimeout = 5 * time.Second

type Config struct {
	// FeeAccountID receives fees charged by advanced transfers. Fee-bearing
	// operations fail validation if it is unset.
	FeeAccountID string
	// LockTimeout bounds the whole lock acquisition of one operation.
	LockTimeout time.Duration
}

type Engine struct {
	accounts  *accounts.Service
	ledger    *ledger.Service
	schedules interfaces.ScheduleStore
	publisher interfaces.EventPublisher

	locks        *lockTable
	feeAccountID string
	lockTimeout  time.Duration
	log          *zap.Logger
}

func New(accts *accounts.Service, led *ledger.Service, schedules interfaces.ScheduleStore, publisher interfaces.EventPublisher, cfg Config, log *zap.Logger) *Engine {
	timeout := cfg.LockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &Engine{
		accounts:     accts,
		ledger:       led,
		schedules:    schedules,
		publisher:    publisher,
		locks:        newLockTable(),
		feeAccountID: cfg.FeeAccountID,
		lockTimeout:  timeout,
		log:          log,
	}
}

// Execute dispatches a typed operation request. The caller is already
// authenticated; the engine consumes its identity verdicts only.
func (e *Engine) Execute(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	switch req.Operation {
	case models.OpDeposit:
		return e.Deposit(ctx, req)
	case models.OpWithdraw:
		return e.Withdraw(ctx, req)
	case models.OpTransfer:
		return e.Transfer(ctx, req)
	case models.OpAdvancedTransfer:
		return e.AdvancedTransfer(ctx, req)
	}
	return models.OperationResult{}, errs.New(errs.KindValidation, "unknown operation %q", req.Operation)
}

// Deposit credits an account.
func (e *Engine) Deposit(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	return e.singleAccountOp(ctx, req, models.EntryDeposit)
}

// Withdraw debits an account, rejecting with insufficient_funds when the
// balance cannot cover the amount.
func (e *Engine) Withdraw(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	return e.singleAccountOp(ctx, req, models.EntryWithdrawal)
}

func (e *Engine) singleAccountOp(ctx context.Context, req models.OperationRequest, entryType models.EntryType) (models.OperationResult, error) {
	// RECEIVED -> VALIDATED: purely rejective, nothing has mutated yet
	if err := validateAmount(req.Amount); err != nil {
		return models.OperationResult{}, err
	}
	if _, err := e.activeAccount(ctx, req.AccountID); err != nil {
		return models.OperationResult{}, err
	}
	if err := e.accounts.RequireOwnership(ctx, req.AccountID, req.ActorID, req.ActorAdmin); err != nil {
		return models.OperationResult{}, err
	}

	// VALIDATED -> LOCKED
	release, err := e.locks.acquireAll(ctx, e.lockTimeout, req.AccountID)
	if err != nil {
		return models.OperationResult{}, err
	}
	defer release()

	// Once locked the operation runs to COMPLETED or is unwound; caller
	// cancellation no longer applies.
	opCtx := context.WithoutCancel(ctx)

	// re-check under the lock: a deactivation may have won since validation
	if _, err := e.activeAccount(opCtx, req.AccountID); err != nil {
		return models.OperationResult{}, err
	}

	// LOCKED -> APPLIED
	delta := req.Amount
	if entryType == models.EntryWithdrawal {
		delta = req.Amount.Neg()
	}
	updated, err := e.deltaLocked(opCtx, req.AccountID, delta)
	if err != nil {
		return models.OperationResult{}, err
	}

	// APPLIED -> LEDGERED
	entry, err := e.ledger.Append(opCtx, models.EntryDraft{
		Type:             entryType,
		AccountID:        req.AccountID,
		Amount:           req.Amount,
		ResultingBalance: updated.Balance,
		Description:      orDefault(req.Description, string(entryType)),
	})
	if err != nil {
		e.unwind(opCtx, req.AccountID, delta)
		return models.OperationResult{}, err
	}

	// LEDGERED -> COMPLETED
	event := events.TransferCompleted{
		CorrelationID: entry.CorrelationID,
		Operation:     string(req.Operation),
		Amount:        req.Amount.Decimal(),
		Fee:           money.Zero.Decimal(),
		OccurredAt:    entry.CreatedAt,
	}
	if entryType == models.EntryDeposit {
		event.DestAccount = req.AccountID
	} else {
		event.SourceAccount = req.AccountID
	}
	e.publish(events.TopicTransferCompleted, event)

	return models.OperationResult{
		Status:        "completed",
		Accounts:      []models.AccountView{viewOf(updated)},
		Entries:       []models.EntryView{entryViewOf(entry)},
		CorrelationID: entry.CorrelationID,
	}, nil
}

// Transfer moves the amount from source to destination as one atomic unit
// producing a linked debit/credit pair.
func (e *Engine) Transfer(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	return e.runTransfer(ctx, req, nil)
}

// AdvancedTransfer extends Transfer with an optional fee and an optional
// future execution time. Scheduled requests are persisted as pending and
// run through the same state machine when due, with validation re-checked
// against then-current balances.
func (e *Engine) AdvancedTransfer(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	if err := validateFee(req.Fee); err != nil {
		return models.OperationResult{}, err
	}
	if req.ScheduledAt != nil && req.ScheduledAt.After(time.Now()) {
		return e.schedule(ctx, req)
	}
	return e.runTransfer(ctx, req, req.Fee)
}

func (e *Engine) schedule(ctx context.Context, req models.OperationRequest) (models.OperationResult, error) {
	// submission-time validation; balances are re-checked at execution
	if err := validateAmount(req.Amount); err != nil {
		return models.OperationResult{}, err
	}
	if req.SourceID == req.DestID {
		return models.OperationResult{}, errs.New(errs.KindValidation, "source and destination accounts are the same")
	}
	if _, err := e.activeAccount(ctx, req.SourceID); err != nil {
		return models.OperationResult{}, err
	}
	if _, err := e.activeAccount(ctx, req.DestID); err != nil {
		return models.OperationResult{}, err
	}
	if err := e.accounts.RequireOwnership(ctx, req.SourceID, req.ActorID, req.ActorAdmin); err != nil {
		return models.OperationResult{}, err
	}

	st := models.ScheduledTransfer{
		ID:          uuid.New().String(),
		ActorID:     req.ActorID,
		ActorAdmin:  req.ActorAdmin,
		SourceID:    req.SourceID,
		DestID:      req.DestID,
		Amount:      req.Amount,
		Fee:         req.Fee,
		Description: req.Description,
		ExecuteAt:   req.ScheduledAt.UTC(),
		Status:      models.SchedulePending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.schedules.Insert(ctx, st); err != nil {
		return models.OperationResult{}, err
	}
	e.log.Info("transfer scheduled",
		zap.String("schedule_id", st.ID),
		zap.String("source_id", st.SourceID),
		zap.String("dest_id", st.DestID),
		zap.Time("execute_at", st.ExecuteAt))
	return models.OperationResult{Status: "scheduled", ScheduleID: st.ID}, nil
}

func (e *Engine) runTransfer(ctx context.Context, req models.OperationRequest, fee *models.FeePolicy) (models.OperationResult, error) {
	// RECEIVED -> VALIDATED
	if err := validateAmount(req.Amount); err != nil {
		return models.OperationResult{}, err
	}
	if req.SourceID == req.DestID {
		return models.OperationResult{}, errs.New(errs.KindValidation, "source and destination accounts are the same")
	}
	if _, err := e.activeAccount(ctx, req.SourceID); err != nil {
		return models.OperationResult{}, err
	}
	if _, err := e.activeAccount(ctx, req.DestID); err != nil {
		return models.OperationResult{}, err
	}
	if err := e.accounts.RequireOwnership(ctx, req.SourceID, req.ActorID, req.ActorAdmin); err != nil {
		return models.OperationResult{}, err
	}

	feeAmount, err := computeFee(req.Amount, fee)
	if err != nil {
		return models.OperationResult{}, err
	}
	if feeAmount.IsPositive() && e.feeAccountID == "" {
		return models.OperationResult{}, errs.New(errs.KindValidation, "no fee collection account configured")
	}
	total, err := req.Amount.Add(feeAmount)
	if err != nil {
		return models.OperationResult{}, err
	}

	// VALIDATED -> LOCKED, canonical order over every touched account
	lockIDs := []string{req.SourceID, req.DestID}
	if feeAmount.IsPositive() {
		lockIDs = append(lockIDs, e.feeAccountID)
	}
	release, err := e.locks.acquireAll(ctx, e.lockTimeout, lockIDs...)
	if err != nil {
		return models.OperationResult{}, err
	}
	defer release()

	opCtx := context.WithoutCancel(ctx)

	// re-check under the locks: a deactivation may have won since validation
	if _, err := e.activeAccount(opCtx, req.SourceID); err != nil {
		return models.OperationResult{}, err
	}
	if _, err := e.activeAccount(opCtx, req.DestID); err != nil {
		return models.OperationResult{}, err
	}

	// LOCKED -> APPLIED: debit before credit, so an insufficient balance
	// fails before anything else has moved
	debited, err := e.deltaLocked(opCtx, req.SourceID, total.Neg())
	if err != nil {
		return models.OperationResult{}, err
	}
	credited, err := e.deltaLocked(opCtx, req.DestID, req.Amount)
	if err != nil {
		e.unwind(opCtx, req.SourceID, total.Neg())
		return models.OperationResult{}, err
	}
	var feeAccount models.Account
	if feeAmount.IsPositive() {
		feeAccount, err = e.deltaLocked(opCtx, e.feeAccountID, feeAmount)
		if err != nil {
			e.unwind(opCtx, req.DestID, req.Amount)
			e.unwind(opCtx, req.SourceID, total.Neg())
			return models.OperationResult{}, err
		}
	}

	// APPLIED -> LEDGERED: one linked unit for the pair plus fee legs.
	// Snapshots replay the debit sequence: amount first, then the fee.
	sourceAfterAmount, err := debited.Balance.Add(feeAmount)
	if err != nil {
		// cannot happen: re-adds what was just subtracted
		sourceAfterAmount = debited.Balance
	}
	description := orDefault(req.Description, "transfer")
	drafts := []models.EntryDraft{
		{
			Type:             models.EntryTransferOut,
			AccountID:        req.SourceID,
			Amount:           req.Amount,
			ResultingBalance: sourceAfterAmount,
			CounterpartyID:   req.DestID,
			Description:      description,
		},
		{
			Type:             models.EntryTransferIn,
			AccountID:        req.DestID,
			Amount:           req.Amount,
			ResultingBalance: credited.Balance,
			CounterpartyID:   req.SourceID,
			Description:      description,
		},
	}
	if feeAmount.IsPositive() {
		// the fee shows on both sides so each account's entry sum still
		// reproduces its balance
		drafts = append(drafts,
			models.EntryDraft{
				Type:             models.EntryFee,
				Direction:        models.DirectionDebit,
				AccountID:        req.SourceID,
				Amount:           feeAmount,
				ResultingBalance: debited.Balance,
				CounterpartyID:   e.feeAccountID,
				Description:      "transfer fee",
			},
			models.EntryDraft{
				Type:             models.EntryFee,
				Direction:        models.DirectionCredit,
				AccountID:        e.feeAccountID,
				Amount:           feeAmount,
				ResultingBalance: feeAccount.Balance,
				CounterpartyID:   req.SourceID,
				Description:      "transfer fee",
			})
	}

	entries, err := e.ledger.AppendLinked(opCtx, drafts...)
	if err != nil {
		// unwind in reverse apply order before surfacing the failure
		if feeAmount.IsPositive() {
			e.unwind(opCtx, e.feeAccountID, feeAmount)
		}
		e.unwind(opCtx, req.DestID, req.Amount)
		e.unwind(opCtx, req.SourceID, total.Neg())
		return models.OperationResult{}, err
	}

	// LEDGERED -> COMPLETED
	e.publish(events.TopicTransferCompleted, events.TransferCompleted{
		CorrelationID: entries[0].CorrelationID,
		Operation:     string(req.Operation),
		SourceAccount: req.SourceID,
		DestAccount:   req.DestID,
		Amount:        req.Amount.Decimal(),
		Fee:           feeAmount.Decimal(),
		OccurredAt:    entries[0].CreatedAt,
	})

	views := []models.AccountView{viewOf(debited), viewOf(credited)}
	if feeAmount.IsPositive() {
		views = append(views, viewOf(feeAccount))
	}
	entryViews := make([]models.EntryView, len(entries))
	for i, entry := range entries {
		entryViews[i] = entryViewOf(entry)
	}
	return models.OperationResult{
		Status:        "completed",
		Accounts:      views,
		Entries:       entryViews,
		CorrelationID: entries[0].CorrelationID,
	}, nil
}

// Reverse compensates a committed entry: the balance effect is undone and
// a reversal entry referencing the original is appended under the same
// correlation. The original entry is never mutated.
func (e *Engine) Reverse(ctx context.Context, entryID, reason, actorID string, actorAdmin bool) (models.Entry, error) {
	original, err := e.ledger.Get(ctx, entryID)
	if err != nil {
		return models.Entry{}, err
	}
	if original.Type == models.EntryReversal {
		return models.Entry{}, errs.New(errs.KindValidation, "entry %s is itself a reversal", entryID)
	}
	if err := e.accounts.RequireOwnership(ctx, original.AccountID, actorID, actorAdmin); err != nil {
		return models.Entry{}, err
	}

	release, err := e.locks.acquireAll(ctx, e.lockTimeout, original.AccountID)
	if err != nil {
		return models.Entry{}, err
	}
	defer release()

	opCtx := context.WithoutCancel(ctx)

	// under the lock, so two concurrent reverses of one entry cannot both
	// pass; checked before the delta so a duplicate fails without touching
	// the balance
	reversed, err := e.ledger.HasReversal(opCtx, original)
	if err != nil {
		return models.Entry{}, err
	}
	if reversed {
		return models.Entry{}, errs.New(errs.KindValidation, "entry %s is already reversed", entryID)
	}

	delta := original.SignedAmount().Neg()
	updated, err := e.deltaLocked(opCtx, original.AccountID, delta)
	if err != nil {
		return models.Entry{}, err
	}
	reversal, err := e.ledger.Reverse(opCtx, entryID, reason, updated.Balance)
	if err != nil {
		e.unwind(opCtx, original.AccountID, delta)
		return models.Entry{}, err
	}

	e.publish(events.TopicEntryReversed, events.EntryReversed{
		OriginalEntryID: original.ID,
		ReversalEntryID: reversal.ID,
		AccountID:       original.AccountID,
		Amount:          original.Amount.Decimal(),
		Reason:          reason,
		OccurredAt:      reversal.CreatedAt,
	})
	return reversal, nil
}

// DeactivateAccount soft-deletes an account. It refuses while the balance
// is non-zero or while pending scheduled transfers still reference the
// account on either side. The account lock is held across the checks and
// the write, so no in-flight operation can land funds between the
// zero-balance check and the deactivation.
func (e *Engine) DeactivateAccount(ctx context.Context, accountID, actorID string, actorAdmin bool) error {
	if err := e.accounts.RequireOwnership(ctx, accountID, actorID, actorAdmin); err != nil {
		return err
	}

	release, err := e.locks.acquireAll(ctx, e.lockTimeout, accountID)
	if err != nil {
		return err
	}
	defer release()

	opCtx := context.WithoutCancel(ctx)

	pending, err := e.schedules.HasPendingForAccount(opCtx, accountID)
	if err != nil {
		return err
	}
	if pending {
		return errs.New(errs.KindValidation, "account %s has pending scheduled transfers", accountID)
	}
	return e.accounts.Deactivate(opCtx, accountID)
}

// deltaLocked applies a delta using the version read under the account
// lock. The version check still runs in the store as defense in depth
// against writers that bypass the lock path.
func (e *Engine) deltaLocked(ctx context.Context, id string, delta money.Money) (models.Account, error) {
	account, err := e.accounts.Get(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	return e.accounts.ApplyDelta(ctx, id, delta, account.Version)
}

// unwind compensates an already-applied delta. Failure here means balances
// and ledger have diverged, which is operator territory, so it is logged
// at Error and not returned.
func (e *Engine) unwind(ctx context.Context, id string, applied money.Money) {
	if _, err := e.deltaLocked(ctx, id, applied.Neg()); err != nil {
		e.log.Error("compensating delta failed, manual reconciliation required",
			zap.String("account_id", id),
			zap.String("applied", applied.String()),
			zap.Error(err))
	}
}

func (e *Engine) activeAccount(ctx context.Context, id string) (models.Account, error) {
	if id == "" {
		return models.Account{}, errs.New(errs.KindValidation, "account id is required")
	}
	account, err := e.accounts.Get(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	if !account.Active {
		return models.Account{}, errs.New(errs.KindValidation, "account %s is inactive", id)
	}
	return account, nil
}

func (e *Engine) publish(topic string, event any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(topic, event); err != nil {
		e.log.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func validateAmount(amount money.Money) error {
	if !amount.IsPositive() {
		return errs.New(errs.KindValidation, "amount must be strictly positive, got %s", amount)
	}
	return nil
}

func validateFee(fee *models.FeePolicy) error {
	if fee == nil {
		return nil
	}
	switch fee.Kind {
	case models.FeeNone:
	case models.FeeFlat:
		if fee.Flat.IsNegative() {
			return errs.New(errs.KindValidation, "flat fee must not be negative")
		}
	case models.FeePercent:
		if fee.Rate.IsNegative() {
			return errs.New(errs.KindValidation, "fee rate must not be negative")
		}
	default:
		return errs.New(errs.KindValidation, "unknown fee kind %q", fee.Kind)
	}
	return nil
}

func computeFee(amount money.Money, fee *models.FeePolicy) (money.Money, error) {
	if fee == nil {
		return money.Zero, nil
	}
	switch fee.Kind {
	case models.FeeFlat:
		return fee.Flat, nil
	case models.FeePercent:
		return amount.MulRate(fee.Rate)
	}
	return money.Zero, nil
}

func viewOf(a models.Account) models.AccountView {
	return models.AccountView{ID: a.ID, Balance: a.Balance, Version: a.Version}
}

func entryViewOf(e models.Entry) models.EntryView {
	return models.EntryView{ID: e.ID, Type: e.Type, Amount: e.Amount, CreatedAt: e.CreatedAt}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
