// Package errs defines the error taxonomy shared by the account store,
// the ledger and the transfer engine. Every error the engine surfaces to a
// caller carries a Kind so the transport layer can map it to a status code
// and the caller can decide whether a retry makes sense.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation             Kind = "validation"
	KindNotFound               Kind = "not_found"
	KindForbidden              Kind = "forbidden"
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindConcurrentModification Kind = "concurrent_modification"
	KindLockTimeout            Kind = "lock_timeout"
	KindOverflow               Kind = "overflow"
	KindLedgerWrite            Kind = "ledger_write_failure"
	KindNonZeroBalance         Kind = "non_zero_balance"
	KindInternal               Kind = "internal"
)

// Error is the single error type of the engine. Matching is by Kind, so
// errors.Is(err, errs.ErrNotFound) holds for any not_found error regardless
// of message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the caller may retry the operation as-is.
// Lock contention and optimistic-version conflicts are transient; everything
// else needs a changed request or operator attention.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindLockTimeout, KindConcurrentModification:
		return true
	}
	return false
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation             = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrNotFound               = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrForbidden              = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrInsufficientFunds      = &Error{Kind: KindInsufficientFunds, Msg: "insufficient funds"}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification, Msg: "version conflict"}
	ErrLockTimeout            = &Error{Kind: KindLockTimeout, Msg: "lock timeout"}
	ErrOverflow               = &Error{Kind: KindOverflow, Msg: "amount overflow"}
	ErrLedgerWrite            = &Error{Kind: KindLedgerWrite, Msg: "ledger write failed"}
	ErrNonZeroBalance         = &Error{Kind: KindNonZeroBalance, Msg: "balance not zero"}
)
