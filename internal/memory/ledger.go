package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// Ledger implements domain.Ledger in memory.
// Accounts are stored copy-on-write: a stored *Account is never mutated,
// so readers need only the map lock.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
	locks    map[uuid.UUID]*sync.Mutex
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[uuid.UUID]*domain.Account),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// Put inserts or replaces an account.
func (l *Ledger) Put(account domain.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := account
	l.accounts[account.ID] = &stored
	if _, ok := l.locks[account.ID]; !ok {
		l.locks[account.ID] = &sync.Mutex{}
	}
}

// Account returns a copy of the account.
func (l *Ledger) Account(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

// Debit subtracts amount from one ledger of the account.
func (l *Ledger) Debit(ctx context.Context, id uuid.UUID, ledger domain.LedgerKind, amount decimal.Decimal) (decimal.Decimal, error) {
	return l.apply(ctx, id, ledger, amount, (*domain.Account).Debit)
}

// Credit adds amount to one ledger of the account.
func (l *Ledger) Credit(ctx context.Context, id uuid.UUID, ledger domain.LedgerKind, amount decimal.Decimal) (decimal.Decimal, error) {
	return l.apply(ctx, id, ledger, amount, (*domain.Account).Credit)
}

func (l *Ledger) apply(
	ctx context.Context,
	id uuid.UUID,
	ledger domain.LedgerKind,
	amount decimal.Decimal,
	op func(*domain.Account, domain.LedgerKind, decimal.Decimal) error,
) (decimal.Decimal, error) {
	unlock, err := l.lock(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	defer unlock()

	acc, err := l.Account(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	before := *acc
	if err := op(acc, ledger, amount); err != nil {
		return decimal.Zero, err
	}
	l.store(ctx, acc, &before)
	return acc.Balance(ledger), nil
}

// Move debits m.From and credits m.To atomically.
// Per-account mutexes are taken in ascending id order. Inside a transaction
// they are held until it commits or rolls back.
func (l *Ledger) Move(ctx context.Context, m domain.Movement) (*domain.MoveResult, error) {
	ids := []uuid.UUID{m.From}
	if m.To != m.From {
		ids = append(ids, m.To)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		unlock, err := l.lock(ctx, id)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	from, err := l.Account(ctx, m.From)
	if err != nil {
		return nil, err
	}
	to := from
	if m.To != m.From {
		if to, err = l.Account(ctx, m.To); err != nil {
			return nil, err
		}
	}
	fromBefore, toBefore := *from, *to

	if err := from.Debit(m.FromLedger, m.Amount); err != nil {
		return nil, err
	}
	if err := to.Credit(m.ToLedger, m.Amount); err != nil {
		return nil, err
	}

	l.store(ctx, from, &fromBefore)
	if m.To != m.From {
		l.store(ctx, to, &toBefore)
	}

	fromOut, toOut := *from, *to
	return &domain.MoveResult{From: &fromOut, To: &toOut}, nil
}

// lock acquires the mutex of an existing account. Inside a transaction the
// mutex is handed to the transaction, which releases it when it ends, and
// the returned func does nothing.
func (l *Ledger) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	l.mu.RLock()
	mu, ok := l.locks[id]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	tx := getTx(ctx)
	if tx == nil {
		mu.Lock()
		return mu.Unlock, nil
	}
	if !tx.holds(id) {
		mu.Lock()
		tx.hold(id, mu.Unlock)
	}
	return func() {}, nil
}

// store saves acc and, inside a transaction, registers the restoration of before.
// The caller holds the account mutex, so before is still the latest committed
// image when a rollback runs.
func (l *Ledger) store(ctx context.Context, acc, before *domain.Account) {
	l.mu.Lock()
	l.accounts[acc.ID] = acc
	l.mu.Unlock()

	restored := *before
	onRollback(ctx, func() {
		l.mu.Lock()
		l.accounts[restored.ID] = &restored
		l.mu.Unlock()
	})
}
