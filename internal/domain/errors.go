package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation is the class of malformed or unacceptable requests
	ErrValidation = errors.New("validation failed")

	// ErrAccountNotFound is returned when an account doesn't exist
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountSuspended is returned when a party's account is not active
	ErrAccountSuspended = errors.New("account is not active")

	// ErrInsufficientFunds is returned when the debited ledger can't cover the amount
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLimitExceeded is the class of limit rejections; see LimitExceededError
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrRecipientNotFound is returned when no active account matches the identifier
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrAmbiguousRecipient is returned when more than one account matches the identifier
	ErrAmbiguousRecipient = errors.New("recipient identifier matches more than one account")

	// ErrSelfTransferNotAllowed is returned when the recipient resolves to the actor
	ErrSelfTransferNotAllowed = errors.New("cannot transfer to yourself")

	// ErrTransferInProgress is returned when the actor already holds an idempotency lease
	ErrTransferInProgress = errors.New("another transfer is in progress")

	// ErrTimeout is returned when a stage exceeded its time budget
	ErrTimeout = errors.New("transfer timed out")

	// ErrCanceled is returned when the caller went away before execution started
	ErrCanceled = errors.New("transfer canceled")

	// ErrInternal wraps unexpected storage or infrastructure failures
	ErrInternal = errors.New("internal error")

	// ErrDuplicateTransfer is returned by TransferRepository.Create when the
	// (actor, request id) pair was already recorded
	ErrDuplicateTransfer = errors.New("transfer already recorded for request")

	// ErrBankNotLinked is the cause of the validation error returned when a
	// bank ledger is used on an account without a linked bank
	ErrBankNotLinked = errors.New("no bank account is linked")
)

// ValidationError describes which input was rejected and why.
// Err optionally names a more specific cause.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// WrapValidationError creates a ValidationError on field caused by err.
func WrapValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: err.Error(), Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// LimitExceededError carries the first limit a transfer would violate.
type LimitExceededError struct {
	Kind      LimitKind
	Category  Category
	Limit     decimal.Decimal
	Used      decimal.Decimal
	Attempted decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s %s limit exceeded: limit %s, used %s, attempted %s",
		e.Category, e.Kind, e.Limit, e.Used, e.Attempted)
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

// ErrorKind is the stable, wire-level name of an error class.
type ErrorKind string

const (
	KindValidation             ErrorKind = "validation"
	KindAccountNotFound        ErrorKind = "account_not_found"
	KindAccountSuspended       ErrorKind = "account_suspended"
	KindInsufficientFunds      ErrorKind = "insufficient_funds"
	KindLimitExceeded          ErrorKind = "limit_exceeded"
	KindRecipientNotFound      ErrorKind = "recipient_not_found"
	KindAmbiguousRecipient     ErrorKind = "ambiguous_recipient"
	KindSelfTransferNotAllowed ErrorKind = "self_transfer_not_allowed"
	KindTransferInProgress     ErrorKind = "transfer_in_progress"
	KindTimeout                ErrorKind = "timeout"
	KindCanceled               ErrorKind = "canceled"
	KindInternal               ErrorKind = "internal"
)

var errorKinds = []struct {
	target error
	kind   ErrorKind
}{
	{ErrValidation, KindValidation},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrAccountSuspended, KindAccountSuspended},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrLimitExceeded, KindLimitExceeded},
	{ErrRecipientNotFound, KindRecipientNotFound},
	{ErrAmbiguousRecipient, KindAmbiguousRecipient},
	{ErrSelfTransferNotAllowed, KindSelfTransferNotAllowed},
	{ErrTransferInProgress, KindTransferInProgress},
	{ErrTimeout, KindTimeout},
	{ErrCanceled, KindCanceled},
}

// KindOf classifies err. Anything not in the taxonomy is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return KindInternal
}

// Internal wraps an unexpected error so that errors.Is(err, ErrInternal) holds.
// Errors already in the taxonomy are returned unchanged.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal || errors.Is(err, ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
