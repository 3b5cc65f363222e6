package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the authoritative store of account balances.
// Implementations lock accounts in ascending id order so concurrent moves
// over the same pair of accounts cannot deadlock.
type Ledger interface {
	// Account returns a snapshot of the account.
	Account(ctx context.Context, id uuid.UUID) (*Account, error)

	// Debit subtracts amount from one ledger of the account and returns the new balance.
	Debit(ctx context.Context, id uuid.UUID, ledger LedgerKind, amount decimal.Decimal) (decimal.Decimal, error)

	// Credit adds amount to one ledger of the account and returns the new balance.
	Credit(ctx context.Context, id uuid.UUID, ledger LedgerKind, amount decimal.Decimal) (decimal.Decimal, error)

	// Move applies a debit and a credit atomically: either both legs are
	// visible or neither is.
	Move(ctx context.Context, m Movement) (*MoveResult, error)
}

// UsageStore keeps committed transfer amounts in minute buckets.
type UsageStore interface {
	// Add records amount in the bucket starting at bucket.
	Add(ctx context.Context, accountID uuid.UUID, category Category, bucket time.Time, amount decimal.Decimal) error

	// Windows sums the buckets of the trailing day, week and month ending at now.
	Windows(ctx context.Context, accountID uuid.UUID, category Category, now time.Time) (WindowUsage, error)

	// Reset deletes every bucket of the account starting at or after since.
	Reset(ctx context.Context, accountID uuid.UUID, since time.Time) error
}

// Directory looks up recipient profiles.
// Lookups return every matching profile regardless of account status.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) ([]Profile, error)
	FindByEmail(ctx context.Context, email string) ([]Profile, error)
	FindByDisplayName(ctx context.Context, name string) ([]Profile, error)
}

// TransferRepository defines the interface for transfer data access operations.
type TransferRepository interface {
	// Create persists a completed transfer.
	// Returns ErrDuplicateTransfer if the actor already recorded the request id.
	Create(ctx context.Context, transfer *Transfer) error

	// GetByRequestID returns the transfer recorded for the actor's request id.
	// Returns nil if no transfer is found.
	GetByRequestID(ctx context.Context, actorID uuid.UUID, requestID string) (*Transfer, error)
}

// TransactionManager defines the interface for managing storage transactions.
type TransactionManager interface {
	// WithTransaction executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IdempotencyGuard grants at most one in-flight transfer per actor.
type IdempotencyGuard interface {
	// Acquire takes the actor's lease for requestID. It reports false when
	// another lease is held.
	Acquire(ctx context.Context, actorID uuid.UUID, requestID string) (bool, error)

	// Release drops the lease if it is still held for requestID.
	Release(ctx context.Context, actorID uuid.UUID, requestID string) error
}

// PolicySource provides the current limit policy of a category.
type PolicySource interface {
	Policy(ctx context.Context, category Category) (LimitPolicy, error)
}

// Notifier publishes transfer events to downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// HistoryWriter appends transfer history rows to the reporting store.
type HistoryWriter interface {
	Append(ctx context.Context, records []HistoryRecord) error
}
