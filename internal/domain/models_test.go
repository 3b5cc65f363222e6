package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_DebitCredit(t *testing.T) {
	acc := NewAccount(uuid.New(), decimal.NewFromInt(100))

	require.NoError(t, acc.Debit(LedgerWallet, decimal.RequireFromString("40.50")))
	assert.True(t, acc.WalletBalance.Equal(decimal.RequireFromString("59.50")))

	require.NoError(t, acc.Credit(LedgerWallet, decimal.RequireFromString("0.50")))
	assert.True(t, acc.WalletBalance.Equal(decimal.NewFromInt(60)))

	err := acc.Debit(LedgerWallet, decimal.NewFromInt(61))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, acc.WalletBalance.Equal(decimal.NewFromInt(60)), "failed debit must not change the balance")
}

func TestAccount_BankLedgerRequiresLink(t *testing.T) {
	acc := NewAccount(uuid.New(), decimal.NewFromInt(100))

	err := acc.Credit(LedgerBank, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrBankNotLinked)
	assert.ErrorIs(t, err, ErrValidation)

	acc.BankLinked = true
	require.NoError(t, acc.Credit(LedgerBank, decimal.NewFromInt(1)))
	assert.True(t, acc.BankBalance.Equal(decimal.NewFromInt(1)))
}

func TestAccount_InactiveRejected(t *testing.T) {
	for _, status := range []AccountStatus{AccountStatusSuspended, AccountStatusPendingDeletion} {
		t.Run(string(status), func(t *testing.T) {
			acc := NewAccount(uuid.New(), decimal.NewFromInt(100))
			acc.Status = status

			assert.ErrorIs(t, acc.Debit(LedgerWallet, decimal.NewFromInt(1)), ErrAccountSuspended)
			assert.ErrorIs(t, acc.Credit(LedgerWallet, decimal.NewFromInt(1)), ErrAccountSuspended)
		})
	}
}

func TestTransferKind_CategoryAndMovement(t *testing.T) {
	actor, other := uuid.New(), uuid.New()
	amount := decimal.NewFromInt(5)

	tests := []struct {
		kind     TransferKind
		category Category
		want     Movement
	}{
		{KindWalletToWallet, CategoryUserTransfer, Movement{From: actor, FromLedger: LedgerWallet, To: other, ToLedger: LedgerWallet, Amount: amount}},
		{KindWalletToBank, CategoryBankTransfer, Movement{From: actor, FromLedger: LedgerWallet, To: actor, ToLedger: LedgerBank, Amount: amount}},
		{KindBankToWallet, CategoryBankTransfer, Movement{From: actor, FromLedger: LedgerBank, To: actor, ToLedger: LedgerWallet, Amount: amount}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			category, err := tt.kind.Category()
			require.NoError(t, err)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.want, tt.kind.Movement(actor, other, amount))
		})
	}

	_, err := TransferKind("crypto").Category()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewReference(t *testing.T) {
	id := uuid.MustParse("0a1b2c3d-4e5f-6789-abcd-ef0123456789")
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "TND17000000001230a1b2c3d", NewReference("tnd", id, at))
}

func TestHistoryRecordsFor(t *testing.T) {
	actor, other := uuid.New(), uuid.New()
	tr := &Transfer{
		ID:             uuid.New(),
		ActorID:        actor,
		CounterpartyID: other,
		Kind:           KindWalletToWallet,
		Amount:         decimal.NewFromInt(10),
		Currency:       "TND",
		CompletedAt:    time.Now(),
	}

	records := HistoryRecordsFor(tr)
	require.Len(t, records, 2)
	assert.Equal(t, DirectionSend, records[0].Direction)
	assert.Equal(t, actor, records[0].AccountID)
	assert.Equal(t, DirectionReceive, records[1].Direction)
	assert.Equal(t, other, records[1].AccountID)
	assert.Equal(t, actor, records[1].CounterpartyID)

	tr.Kind = KindWalletToBank
	tr.CounterpartyID = actor
	assert.Len(t, HistoryRecordsFor(tr), 1)
}

func TestDefaultLimitPolicies_Valid(t *testing.T) {
	for category, policy := range DefaultLimitPolicies() {
		assert.NoError(t, policy.Validate(), category)
	}

	bad := DefaultLimitPolicies()[CategoryUserTransfer]
	bad.Weekly = decimal.Zero
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "weekly"))
}
