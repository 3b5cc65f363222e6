// Package memory provides in-process implementations of the storage
// interfaces, used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// txKey is the key type for storing the undo log in context.
type txKey struct{}

// undoLog collects compensations registered by stores during a transaction,
// together with the account locks the transaction holds until it ends.
type undoLog struct {
	mu    sync.Mutex
	steps []func()
	held  map[uuid.UUID]func()
}

func (u *undoLog) push(step func()) {
	u.mu.Lock()
	u.steps = append(u.steps, step)
	u.mu.Unlock()
}

// holds reports whether the transaction already owns the lock of id.
func (u *undoLog) holds(id uuid.UUID) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.held[id]
	return ok
}

func (u *undoLog) hold(id uuid.UUID, unlock func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.held == nil {
		u.held = make(map[uuid.UUID]func())
	}
	u.held[id] = unlock
}

// finish undoes the registered writes when rollback is set, then releases
// every held lock. Compensations run while the locks are still held.
func (u *undoLog) finish(rollback bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if rollback {
		for i := len(u.steps) - 1; i >= 0; i-- {
			u.steps[i]()
		}
	}
	u.steps = nil
	for id, unlock := range u.held {
		unlock()
		delete(u.held, id)
	}
}

// TransactionManager implements domain.TransactionManager for the memory stores.
// Writes made inside WithTransaction are compensated if fn fails. Accounts
// touched by the ledger stay locked until the transaction ends, like rows
// locked with SELECT ... FOR UPDATE.
type TransactionManager struct{}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// WithTransaction runs fn and undoes the writes of the memory stores it
// called when fn returns an error.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if getTx(ctx) != nil {
		return fn(ctx)
	}

	log := &undoLog{}
	err := fn(context.WithValue(ctx, txKey{}, log))
	log.finish(err != nil)
	return err
}

// onRollback registers step with the transaction in ctx, if any.
func onRollback(ctx context.Context, step func()) {
	if log := getTx(ctx); log != nil {
		log.push(step)
	}
}

func getTx(ctx context.Context) *undoLog {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok {
		return log
	}
	return nil
}
