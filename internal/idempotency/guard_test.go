package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spbu-ds-practicum-2025/dinarflow-transfer-engine/internal/domain"
)

// setupTestRedis creates a miniredis server for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisGuard_AcquireRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	g := NewRedisGuard(client, time.Minute)
	ctx := context.Background()
	actor := uuid.New()

	ok, err := g.Acquire(ctx, actor, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Acquire(ctx, actor, "r1")
	require.NoError(t, err)
	assert.False(t, ok, "duplicate request must be denied while in flight")

	ok, err = g.Acquire(ctx, actor, "r2")
	require.NoError(t, err)
	assert.False(t, ok, "a different request of the same actor is serialized")

	ok, err = g.Acquire(ctx, uuid.New(), "r1")
	require.NoError(t, err)
	assert.True(t, ok, "other actors are independent")

	require.NoError(t, g.Release(ctx, actor, "r1"))
	ok, err = g.Acquire(ctx, actor, "r2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuard_ReleaseOnlyOwnLease(t *testing.T) {
	mr, client := setupTestRedis(t)
	g := NewRedisGuard(client, time.Second)
	ctx := context.Background()
	actor := uuid.New()

	ok, err := g.Acquire(ctx, actor, "old")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = g.Acquire(ctx, actor, "new")
	require.NoError(t, err)
	require.True(t, ok, "expired lease must not block")

	require.NoError(t, g.Release(ctx, actor, "old"))
	val, err := mr.Get(keyPrefix + actor.String())
	require.NoError(t, err)
	assert.Equal(t, "new", val)
}

func TestRedisGuard_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()
	g := NewRedisGuard(client, time.Second)

	_, err := g.Acquire(context.Background(), uuid.New(), "r1")
	assert.Error(t, err)
}

func TestGuards_ConcurrentAcquireGrantsOne(t *testing.T) {
	_, client := setupTestRedis(t)
	guards := map[string]domain.IdempotencyGuard{
		"redis":  NewRedisGuard(client, time.Minute),
		"memory": NewMemoryGuard(time.Minute),
	}

	for name, g := range guards {
		t.Run(name, func(t *testing.T) {
			actor := uuid.New()
			var granted atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := g.Acquire(context.Background(), actor, "r1")
					if err == nil && ok {
						granted.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), granted.Load())
		})
	}
}

func TestMemoryGuard_Expiry(t *testing.T) {
	g := NewMemoryGuard(10 * time.Second)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	ctx := context.Background()
	actor := uuid.New()

	ok, _ := g.Acquire(ctx, actor, "r1")
	require.True(t, ok)

	ok, _ = g.Acquire(ctx, actor, "r2")
	assert.False(t, ok)

	now = now.Add(11 * time.Second)
	ok, _ = g.Acquire(ctx, actor, "r2")
	assert.True(t, ok)

	require.NoError(t, g.Release(ctx, actor, "r1"))
	ok, _ = g.Acquire(ctx, actor, "r3")
	assert.False(t, ok, "stale release must not drop a newer lease")
}
