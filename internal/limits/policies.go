package limits

import (
	"context"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// StaticPolicies is a fixed PolicySource.
type StaticPolicies map[domain.Category]domain.LimitPolicy

// Policy returns the configured policy of the category.
func (s StaticPolicies) Policy(_ context.Context, category domain.Category) (domain.LimitPolicy, error) {
	p, ok := s[category]
	if !ok {
		return domain.LimitPolicy{}, fmt.Errorf("no limit policy for category %q", category)
	}
	return p, nil
}

// PolicyLoader reads the current policies from durable storage.
type PolicyLoader interface {
	LoadPolicies(ctx context.Context) (map[domain.Category]domain.LimitPolicy, error)
}

// ReloadingPolicies is a PolicySource that periodically refreshes from a
// PolicyLoader. Categories missing from storage keep their fallback policy.
// Readers never block on a refresh.
type ReloadingPolicies struct {
	loader   PolicyLoader
	fallback map[domain.Category]domain.LimitPolicy
	current  atomic.Pointer[map[domain.Category]domain.LimitPolicy]
	logger   *zap.Logger
}

// NewReloadingPolicies creates a ReloadingPolicies serving fallback until
// the first successful refresh.
func NewReloadingPolicies(loader PolicyLoader, fallback map[domain.Category]domain.LimitPolicy, logger *zap.Logger) *ReloadingPolicies {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &ReloadingPolicies{
		loader:   loader,
		fallback: maps.Clone(fallback),
		logger:   logger,
	}
	initial := maps.Clone(fallback)
	p.current.Store(&initial)
	return p
}

// Policy returns the most recently loaded policy of the category.
func (p *ReloadingPolicies) Policy(_ context.Context, category domain.Category) (domain.LimitPolicy, error) {
	current := *p.current.Load()
	policy, ok := current[category]
	if !ok {
		return domain.LimitPolicy{}, fmt.Errorf("no limit policy for category %q", category)
	}
	return policy, nil
}

// Refresh loads policies and swaps them in. Invalid policies are skipped
// and the previous value of that category is kept.
func (p *ReloadingPolicies) Refresh(ctx context.Context) error {
	loaded, err := p.loader.LoadPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load limit policies: %w", err)
	}

	previous := *p.current.Load()
	next := maps.Clone(p.fallback)
	for category, policy := range loaded {
		if err := policy.Validate(); err != nil {
			p.logger.Warn("ignoring invalid limit policy",
				zap.String("category", string(category)),
				zap.Error(err),
			)
			if old, ok := previous[category]; ok {
				next[category] = old
			}
			continue
		}
		next[category] = policy
	}
	p.current.Store(&next)
	return nil
}

// Run refreshes every interval until ctx is done.
func (p *ReloadingPolicies) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Warn("limit policy refresh failed", zap.Error(err))
			}
		}
	}
}
