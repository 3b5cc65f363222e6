package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	requestID string
	expires   time.Time
}

// MemoryGuard implements domain.IdempotencyGuard in process.
type MemoryGuard struct {
	mu     sync.Mutex
	leases map[uuid.UUID]lease
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryGuard creates a MemoryGuard. A non-positive ttl selects DefaultTTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		leases: make(map[uuid.UUID]lease),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Acquire grants the lease unless an unexpired one is held.
func (g *MemoryGuard) Acquire(_ context.Context, actorID uuid.UUID, requestID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if l, ok := g.leases[actorID]; ok && now.Before(l.expires) {
		return false, nil
	}
	g.leases[actorID] = lease{requestID: requestID, expires: now.Add(g.ttl)}
	return true, nil
}

// Release drops the lease if it is held for requestID.
func (g *MemoryGuard) Release(_ context.Context, actorID uuid.UUID, requestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.leases[actorID]; ok && l.requestID == requestID {
		delete(g.leases, actorID)
	}
	return nil
}
