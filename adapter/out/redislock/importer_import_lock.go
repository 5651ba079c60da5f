// Package redislock serializes import runs per tenant with a Redis
// lock.
package redislock

import (
	"context"
	"fmt"
	"time"

	"drive_import_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "import:lock:"

// Lock implements out.ImportLock on a Redis SETNX key. The value holds
// the start time of the run owning the lock; the TTL guards against a
// crashed run holding the lock forever.
type Lock struct {
	client *redis.Client
}

func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client}
}

func lockKey(account string) string {
	return lockKeyPrefix + account
}

// Acquire atomically takes the lock. Returns false when another run
// already holds it.
func (l *Lock) Acquire(ctx context.Context, account string, startedAt time.Time, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(account), startedAt.UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	return ok, nil
}

// Release clears the lock for the account.
func (l *Lock) Release(ctx context.Context, account string) error {
	if err := l.client.Del(ctx, lockKey(account)).Err(); err != nil {
		return fmt.Errorf("failed to release import lock: %w", err)
	}
	return nil
}

// Check reports the start time of the run holding the lock, if any.
func (l *Lock) Check(ctx context.Context, account string) (time.Time, bool, error) {
	val, err := l.client.Get(ctx, lockKey(account)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to check import lock: %w", err)
	}

	startedAt, err := time.Parse(time.RFC3339, val)
	if err != nil {
		// A corrupt value still means the lock is held.
		return time.Time{}, true, nil
	}
	return startedAt, true, nil
}

// Ensure Lock implements out.ImportLock
var _ out.ImportLock = (*Lock)(nil)
