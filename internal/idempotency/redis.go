// Package idempotency serializes transfers per actor with short-lived leases.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can block its actor.
const DefaultTTL = 45 * time.Second

const keyPrefix = "wallet:transfer:lease:"

// releaseScript deletes the lease only if it still belongs to the caller,
// so a holder whose lease expired cannot drop a newer one.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements domain.IdempotencyGuard on Redis.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisGuard creates a RedisGuard. A non-positive ttl selects DefaultTTL.
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// Acquire sets the actor's lease with SET NX PX.
func (g *RedisGuard) Acquire(ctx context.Context, actorID uuid.UUID, requestID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, leaseKey(actorID), requestID, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return ok, nil
}

// Release deletes the actor's lease if it is still held for requestID.
func (g *RedisGuard) Release(ctx context.Context, actorID uuid.UUID, requestID string) error {
	if err := releaseScript.Run(ctx, g.client, []string{leaseKey(actorID)}, requestID).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func leaseKey(actorID uuid.UUID) string {
	return keyPrefix + actorID.String()
}
