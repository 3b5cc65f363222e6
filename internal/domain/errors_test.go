package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("amount", "bad"), KindValidation},
		{"bank not linked", fmt.Errorf("move: %w", WrapValidationError("kind", ErrBankNotLinked)), KindValidation},
		{"limit", &LimitExceededError{Kind: LimitDaily, Limit: decimal.NewFromInt(1)}, KindLimitExceeded},
		{"wrapped insufficient funds", fmt.Errorf("debit: %w", ErrInsufficientFunds), KindInsufficientFunds},
		{"recipient not found", ErrRecipientNotFound, KindRecipientNotFound},
		{"ambiguous", ErrAmbiguousRecipient, KindAmbiguousRecipient},
		{"self", ErrSelfTransferNotAllowed, KindSelfTransferNotAllowed},
		{"in progress", ErrTransferInProgress, KindTransferInProgress},
		{"suspended", ErrAccountSuspended, KindAccountSuspended},
		{"timeout", ErrTimeout, KindTimeout},
		{"unknown", errors.New("connection reset"), KindInternal},
		{"context deadline is not a timeout by itself", context.DeadlineExceeded, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapValidationError(t *testing.T) {
	first := WrapValidationError("kind", ErrBankNotLinked)
	second := WrapValidationError("kind", ErrBankNotLinked)
	first.Field = "changed"

	assert.NotSame(t, first, second)
	assert.Equal(t, "kind", second.Field)
	assert.Equal(t, "kind: no bank account is linked", second.Error())
	assert.ErrorIs(t, second, ErrValidation)
	assert.ErrorIs(t, second, ErrBankNotLinked)

	var ve *ValidationError
	assert.True(t, errors.As(fmt.Errorf("move: %w", second), &ve))
	assert.Equal(t, "kind", ve.Field)
	assert.NotErrorIs(t, NewValidationError("amount", "bad"), ErrBankNotLinked)
}

func TestLimitExceededError(t *testing.T) {
	err := error(&LimitExceededError{Kind: LimitWeekly, Category: CategoryUserTransfer})

	var limitErr *LimitExceededError
	assert.True(t, errors.As(fmt.Errorf("reserve: %w", err), &limitErr))
	assert.Equal(t, LimitWeekly, limitErr.Kind)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestInternal(t *testing.T) {
	cause := errors.New("pool exhausted")

	err := Internal("lock accounts", cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", PublicMessage(err))

	assert.Same(t, ErrInsufficientFunds, Internal("debit", ErrInsufficientFunds))
	assert.Nil(t, Internal("noop", nil))
}
