// Package limits enforces rolling daily, weekly and monthly transfer ceilings
// with a two-phase reserve and commit protocol.
package limits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

var (
	// ErrReservationReleased is returned when committing a released reservation.
	ErrReservationReleased = errors.New("reservation already released")

	// ErrReservationCommitted is returned when committing a reservation twice.
	ErrReservationCommitted = errors.New("reservation already committed")
)

type reservationState int

const (
	statePending reservationState = iota
	stateCommitted
	stateReleased
)

// Reservation is headroom held for one in-flight transfer.
type Reservation struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Category  domain.Category
	Amount    decimal.Decimal
	At        time.Time

	state reservationState
}

type holdKey struct {
	account  uuid.UUID
	category domain.Category
}

// holds is the set of live reservations of one account and category.
// mu serializes the read of committed usage with the reservation decision.
type holds struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*Reservation
}

// Tracker implements reserve, commit and release of limit headroom.
// A reservation stays counted until it is released, including after its
// amount was committed to the store, so headroom is never handed out twice.
type Tracker struct {
	store    domain.UsageStore
	policies domain.PolicySource

	mu    sync.Mutex
	holds map[holdKey]*holds
}

// NewTracker creates a Tracker.
func NewTracker(store domain.UsageStore, policies domain.PolicySource) *Tracker {
	return &Tracker{
		store:    store,
		policies: policies,
		holds:    make(map[holdKey]*holds),
	}
}

func (t *Tracker) holdsFor(account uuid.UUID, category domain.Category) *holds {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := holdKey{account, category}
	h, ok := t.holds[key]
	if !ok {
		h = &holds{reservations: make(map[uuid.UUID]*Reservation)}
		t.holds[key] = h
	}
	return h
}

// CheckAndReserve verifies that amount fits every ceiling of the category
// and holds it. Ceilings are checked per-transaction, daily, weekly, then
// monthly; the first one violated is returned as *domain.LimitExceededError.
func (t *Tracker) CheckAndReserve(
	ctx context.Context,
	accountID uuid.UUID,
	category domain.Category,
	amount decimal.Decimal,
	now time.Time,
) (*Reservation, error) {
	policy, err := t.policies.Policy(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s policy: %w", category, err)
	}

	if amount.GreaterThan(policy.PerTransaction) {
		return nil, &domain.LimitExceededError{
			Kind:      domain.LimitPerTransaction,
			Category:  category,
			Limit:     policy.PerTransaction,
			Used:      decimal.Zero,
			Attempted: amount,
		}
	}

	h := t.holdsFor(accountID, category)
	h.mu.Lock()
	defer h.mu.Unlock()

	used, err := t.store.Windows(ctx, accountID, category, now)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}

	pending := decimal.Zero
	for _, r := range h.reservations {
		pending = pending.Add(r.Amount)
	}

	windows := []struct {
		kind  domain.LimitKind
		used  decimal.Decimal
		limit decimal.Decimal
	}{
		{domain.LimitDaily, used.Daily, policy.Daily},
		{domain.LimitWeekly, used.Weekly, policy.Weekly},
		{domain.LimitMonthly, used.Monthly, policy.Monthly},
	}
	for _, w := range windows {
		total := w.used.Add(pending)
		if total.Add(amount).GreaterThan(w.limit) {
			return nil, &domain.LimitExceededError{
				Kind:      w.kind,
				Category:  category,
				Limit:     w.limit,
				Used:      total,
				Attempted: amount,
			}
		}
	}

	r := &Reservation{
		ID:        uuid.New(),
		AccountID: accountID,
		Category:  category,
		Amount:    amount,
		At:        now,
	}
	h.reservations[r.ID] = r
	return r, nil
}

// Commit writes the reserved amount into the usage bucket of the
// reservation's minute. It runs inside the caller's storage transaction.
// The hold itself is dropped by Release once the transaction has finished.
func (t *Tracker) Commit(ctx context.Context, r *Reservation) error {
	h := t.holdsFor(r.AccountID, r.Category)
	h.mu.Lock()
	defer h.mu.Unlock()

	switch r.state {
	case stateReleased:
		return ErrReservationReleased
	case stateCommitted:
		return ErrReservationCommitted
	}

	bucket := r.At.UTC().Truncate(time.Minute)
	if err := t.store.Add(ctx, r.AccountID, r.Category, bucket, r.Amount); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	r.state = stateCommitted
	return nil
}

// Release drops the hold. It is safe to call more than once and on nil.
func (t *Tracker) Release(r *Reservation) {
	if r == nil {
		return
	}
	h := t.holdsFor(r.AccountID, r.Category)
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.reservations, r.ID)
	r.state = stateReleased
}

// Usage reports committed usage, limits and remaining headroom of the
// account in every category.
func (t *Tracker) Usage(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.UsageReport, error) {
	report := &domain.UsageReport{AccountID: accountID, AsOf: now}
	for _, category := range domain.Categories {
		policy, err := t.policies.Policy(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s policy: %w", category, err)
		}
		used, err := t.store.Windows(ctx, accountID, category, now)
		if err != nil {
			return nil, fmt.Errorf("failed to read usage: %w", err)
		}
		report.Categories = append(report.Categories, domain.CategoryUsage{
			Category: category,
			Used:     used,
			Limits:   policy,
			Remaining: domain.WindowUsage{
				Daily:   remaining(policy.Daily, used.Daily),
				Weekly:  remaining(policy.Weekly, used.Weekly),
				Monthly: remaining(policy.Monthly, used.Monthly),
			},
		})
	}
	return report, nil
}

// Reset clears the committed usage of the account in every window.
func (t *Tracker) Reset(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	if err := t.store.Reset(ctx, accountID, now.Add(-domain.MonthlyWindow)); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

func remaining(limit, used decimal.Decimal) decimal.Decimal {
	left := limit.Sub(used)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
