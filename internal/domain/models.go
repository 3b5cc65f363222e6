package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountStatusActive          AccountStatus = "active"
	AccountStatusSuspended       AccountStatus = "suspended"
	AccountStatusPendingDeletion AccountStatus = "pending_deletion"
)

// LedgerKind selects one of the two balances held by an account.
type LedgerKind string

const (
	LedgerWallet LedgerKind = "wallet"
	LedgerBank   LedgerKind = "bank"
)

// Account represents a user account with its wallet and linked bank balances.
// Balances are never negative.
type Account struct {
	ID            uuid.UUID       // Unique identifier of the account
	WalletBalance decimal.Decimal // Spendable wallet balance
	BankBalance   decimal.Decimal // Balance of the linked bank account
	BankLinked    bool            // Whether a bank account is linked
	Status        AccountStatus   // Lifecycle status
	CreatedAt     time.Time       // Timestamp when the account was created
	UpdatedAt     time.Time       // Timestamp of the last balance change
}

// Balances is a snapshot of both balances of an account.
type Balances struct {
	Wallet decimal.Decimal `json:"wallet"`
	Bank   decimal.Decimal `json:"bank"`
}

// Profile is the identity data used to resolve a recipient to an account.
type Profile struct {
	AccountID   uuid.UUID
	Email       string // stored case-folded
	Phone       string // 8-digit national number
	DisplayName string
	Status      AccountStatus
}

// NewAccount creates an active Account with the given wallet balance and no bank link.
func NewAccount(id uuid.UUID, wallet decimal.Decimal) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:            id,
		WalletBalance: wallet,
		BankBalance:   decimal.Zero,
		Status:        AccountStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Balances returns the current balance snapshot.
func (a *Account) Balances() Balances {
	return Balances{Wallet: a.WalletBalance, Bank: a.BankBalance}
}

// Balance returns the balance of the given ledger.
func (a *Account) Balance(ledger LedgerKind) decimal.Decimal {
	if ledger == LedgerBank {
		return a.BankBalance
	}
	return a.WalletBalance
}

// Debit subtracts amount from the given ledger.
// The account must be active and, for the bank ledger, linked.
func (a *Account) Debit(ledger LedgerKind, amount decimal.Decimal) error {
	if err := a.checkUsable(ledger); err != nil {
		return err
	}
	if a.Balance(ledger).LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.set(ledger, a.Balance(ledger).Sub(amount))
	return nil
}

// Credit adds amount to the given ledger.
func (a *Account) Credit(ledger LedgerKind, amount decimal.Decimal) error {
	if err := a.checkUsable(ledger); err != nil {
		return err
	}
	a.set(ledger, a.Balance(ledger).Add(amount))
	return nil
}

func (a *Account) checkUsable(ledger LedgerKind) error {
	if a.Status != AccountStatusActive {
		return ErrAccountSuspended
	}
	if ledger == LedgerBank && !a.BankLinked {
		return WrapValidationError("kind", ErrBankNotLinked)
	}
	return nil
}

func (a *Account) set(ledger LedgerKind, value decimal.Decimal) {
	if ledger == LedgerBank {
		a.BankBalance = value
	} else {
		a.WalletBalance = value
	}
	a.UpdatedAt = time.Now().UTC()
}

// Movement is an atomic two-leg balance change.
// From and To may be the same account when moving between its own ledgers.
type Movement struct {
	From       uuid.UUID
	FromLedger LedgerKind
	To         uuid.UUID
	ToLedger   LedgerKind
	Amount     decimal.Decimal
}

// MoveResult holds both accounts as they are after a Movement.
type MoveResult struct {
	From *Account
	To   *Account
}

// TransferKind identifies which ledgers a transfer moves value between.
type TransferKind string

const (
	KindWalletToWallet TransferKind = "wallet_to_wallet"
	KindWalletToBank   TransferKind = "wallet_to_bank"
	KindBankToWallet   TransferKind = "bank_to_wallet"
)

// Category groups transfers that share a limit policy.
type Category string

const (
	CategoryUserTransfer Category = "user_transfer"
	CategoryBankTransfer Category = "bank_transfer"
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryUserTransfer, CategoryBankTransfer}

// Category returns the limit category of the kind.
func (k TransferKind) Category() (Category, error) {
	switch k {
	case KindWalletToWallet:
		return CategoryUserTransfer, nil
	case KindWalletToBank, KindBankToWallet:
		return CategoryBankTransfer, nil
	default:
		return "", NewValidationError("kind", fmt.Sprintf("unknown transfer kind %q", string(k)))
	}
}

// Movement builds the ledger movement for a transfer of this kind.
func (k TransferKind) Movement(actor, counterparty uuid.UUID, amount decimal.Decimal) Movement {
	switch k {
	case KindWalletToBank:
		return Movement{From: actor, FromLedger: LedgerWallet, To: actor, ToLedger: LedgerBank, Amount: amount}
	case KindBankToWallet:
		return Movement{From: actor, FromLedger: LedgerBank, To: actor, ToLedger: LedgerWallet, Amount: amount}
	default:
		return Movement{From: actor, FromLedger: LedgerWallet, To: counterparty, ToLedger: LedgerWallet, Amount: amount}
	}
}

// TransferRequest is a client's intent to move funds.
// Amount scale and kind are checked separately, against the engine currency
// and the kind table.
type TransferRequest struct {
	RequestID string          `json:"requestId" validate:"required,max=128"` // Client-generated idempotency key
	ActorID   uuid.UUID       `json:"accountId" validate:"required"`         // Account initiating the transfer
	Kind      TransferKind    `json:"kind"`                                  // Which ledgers are involved
	Recipient string          `json:"recipient,omitempty"`                   // Phone, email or display name; wallet_to_wallet only
	Amount    decimal.Decimal `json:"amount"`                                // Positive amount in the engine currency
	Note      string          `json:"note,omitempty" validate:"max=280"`     // Optional free text
	CreatedAt time.Time       `json:"-"`
}

// TransferStatus represents the outcome of a transfer.
type TransferStatus string

const (
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
)

// Transfer is the durable record of a completed transfer.
type Transfer struct {
	ID                   uuid.UUID
	RequestID            string
	ActorID              uuid.UUID
	CounterpartyID       uuid.UUID // equals ActorID for bank transfers
	Kind                 TransferKind
	Category             Category
	Amount               decimal.Decimal
	Currency             string
	Note                 string
	Status               TransferStatus
	Reference            string
	CreatedAt            time.Time
	CompletedAt          time.Time
	ActorBalances        Balances
	CounterpartyBalances Balances
}

// NewTransfer creates a Transfer for an accepted request.
func NewTransfer(req TransferRequest, counterparty uuid.UUID, category Category, currency string, now time.Time) *Transfer {
	id := uuid.New()
	return &Transfer{
		ID:             id,
		RequestID:      req.RequestID,
		ActorID:        req.ActorID,
		CounterpartyID: counterparty,
		Kind:           req.Kind,
		Category:       category,
		Amount:         req.Amount,
		Currency:       currency,
		Note:           req.Note,
		Reference:      NewReference(currency, id, now),
		CreatedAt:      now,
	}
}

// Complete marks the transfer as completed with the post-move balances.
func (t *Transfer) Complete(moved *MoveResult, at time.Time) {
	t.Status = TransferStatusCompleted
	t.CompletedAt = at
	if moved == nil {
		return
	}
	if moved.From != nil {
		t.ActorBalances = moved.From.Balances()
	}
	if moved.To != nil {
		t.CounterpartyBalances = moved.To.Balances()
	}
}

// NewReference builds a human-readable transfer reference: currency code,
// unix milliseconds, and the first 8 hex characters of the transfer id.
func NewReference(currency string, id uuid.UUID, at time.Time) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("%s%d%s", strings.ToUpper(currency), at.UnixMilli(), hex[:8])
}

// LimitKind names a limit ceiling.
type LimitKind string

const (
	LimitPerTransaction LimitKind = "per_transaction"
	LimitDaily          LimitKind = "daily"
	LimitWeekly         LimitKind = "weekly"
	LimitMonthly        LimitKind = "monthly"
)

// Trailing window lengths used for usage accounting.
const (
	DailyWindow   = 24 * time.Hour
	WeeklyWindow  = 7 * 24 * time.Hour
	MonthlyWindow = 30 * 24 * time.Hour
)

// LimitPolicy holds the ceilings configured for one category.
type LimitPolicy struct {
	Daily          decimal.Decimal `json:"daily"`
	Weekly         decimal.Decimal `json:"weekly"`
	Monthly        decimal.Decimal `json:"monthly"`
	PerTransaction decimal.Decimal `json:"perTransaction"`
}

// Validate checks that every ceiling is positive.
func (p LimitPolicy) Validate() error {
	checks := []struct {
		kind  LimitKind
		value decimal.Decimal
	}{
		{LimitPerTransaction, p.PerTransaction},
		{LimitDaily, p.Daily},
		{LimitWeekly, p.Weekly},
		{LimitMonthly, p.Monthly},
	}
	for _, c := range checks {
		if !c.value.IsPositive() {
			return fmt.Errorf("%s limit must be positive, got %s", c.kind, c.value)
		}
	}
	return nil
}

// DefaultLimitPolicies returns the built-in policies in TND.
func DefaultLimitPolicies() map[Category]LimitPolicy {
	return map[Category]LimitPolicy{
		CategoryUserTransfer: {
			Daily:          decimal.NewFromInt(10000),
			Weekly:         decimal.NewFromInt(50000),
			Monthly:        decimal.NewFromInt(100000),
			PerTransaction: decimal.NewFromInt(5000),
		},
		CategoryBankTransfer: {
			Daily:          decimal.NewFromInt(20000),
			Weekly:         decimal.NewFromInt(100000),
			Monthly:        decimal.NewFromInt(200000),
			PerTransaction: decimal.NewFromInt(10000),
		},
	}
}

// WindowUsage is the committed amount in each trailing window.
type WindowUsage struct {
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
}

// CategoryUsage reports usage against the limits of one category.
type CategoryUsage struct {
	Category  Category    `json:"category"`
	Used      WindowUsage `json:"used"`
	Limits    LimitPolicy `json:"limits"`
	Remaining WindowUsage `json:"remaining"`
}

// UsageReport is the usage of one account across every category.
type UsageReport struct {
	AccountID  uuid.UUID       `json:"accountId"`
	AsOf       time.Time       `json:"asOf"`
	Categories []CategoryUsage `json:"categories"`
}

// HistoryDirection tells whether a history row is the sending or receiving side.
type HistoryDirection string

const (
	DirectionSend    HistoryDirection = "send"
	DirectionReceive HistoryDirection = "receive"
)

// HistoryRecord is one account's view of a completed transfer.
type HistoryRecord struct {
	TransferID     uuid.UUID
	AccountID      uuid.UUID
	CounterpartyID uuid.UUID
	Kind           TransferKind
	Direction      HistoryDirection
	Amount         decimal.Decimal
	Currency       string
	Reference      string
	Note           string
	OccurredAt     time.Time
}

// HistoryRecordsFor returns the history rows for a completed transfer:
// a send row for the actor and a receive row for the counterparty.
// Bank transfers produce a single row since both sides belong to the actor.
func HistoryRecordsFor(t *Transfer) []HistoryRecord {
	send := HistoryRecord{
		TransferID:     t.ID,
		AccountID:      t.ActorID,
		CounterpartyID: t.CounterpartyID,
		Kind:           t.Kind,
		Direction:      DirectionSend,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Reference:      t.Reference,
		Note:           t.Note,
		OccurredAt:     t.CompletedAt,
	}
	if t.Kind != KindWalletToWallet {
		return []HistoryRecord{send}
	}
	receive := send
	receive.AccountID = t.CounterpartyID
	receive.CounterpartyID = t.ActorID
	receive.Direction = DirectionReceive
	return []HistoryRecord{send, receive}
}
