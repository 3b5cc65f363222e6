package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

type usageKey struct {
	account  uuid.UUID
	category domain.Category
}

// UsageStore implements domain.UsageStore in memory.
type UsageStore struct {
	mu      sync.Mutex
	buckets map[usageKey]map[time.Time]decimal.Decimal
}

// NewUsageStore creates an empty UsageStore.
func NewUsageStore() *UsageStore {
	return &UsageStore{buckets: make(map[usageKey]map[time.Time]decimal.Decimal)}
}

// Add records amount in the given minute bucket.
func (s *UsageStore) Add(ctx context.Context, accountID uuid.UUID, category domain.Category, bucket time.Time, amount decimal.Decimal) error {
	key := usageKey{accountID, category}
	bucket = bucket.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok {
		b = make(map[time.Time]decimal.Decimal)
		s.buckets[key] = b
	}
	b[bucket] = b[bucket].Add(amount)

	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.buckets[key][bucket] = s.buckets[key][bucket].Sub(amount)
	})
	return nil
}

// Windows sums the buckets of the trailing windows ending at now.
func (s *UsageStore) Windows(_ context.Context, accountID uuid.UUID, category domain.Category, now time.Time) (domain.WindowUsage, error) {
	day := now.Add(-domain.DailyWindow)
	week := now.Add(-domain.WeeklyWindow)
	month := now.Add(-domain.MonthlyWindow)

	usage := domain.WindowUsage{Daily: decimal.Zero, Weekly: decimal.Zero, Monthly: decimal.Zero}

	s.mu.Lock()
	defer s.mu.Unlock()
	for start, amount := range s.buckets[usageKey{accountID, category}] {
		if start.After(now) {
			continue
		}
		if !start.Before(month) {
			usage.Monthly = usage.Monthly.Add(amount)
		}
		if !start.Before(week) {
			usage.Weekly = usage.Weekly.Add(amount)
		}
		if !start.Before(day) {
			usage.Daily = usage.Daily.Add(amount)
		}
	}
	return usage, nil
}

// Reset deletes the account's buckets starting at or after since.
func (s *UsageStore) Reset(_ context.Context, accountID uuid.UUID, since time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range domain.Categories {
		for start := range s.buckets[usageKey{accountID, category}] {
			if !start.Before(since) {
				delete(s.buckets[usageKey{accountID, category}], start)
			}
		}
	}
	return nil
}
