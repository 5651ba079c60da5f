package out

import (
	"context"
	"time"
)

// ImportLock serializes import runs per tenant. Acquire is atomic;
// a held lock rejects overlapping runs until released or expired.
type ImportLock interface {
	// Acquire takes the lock for the account, storing the run start
	// time. Returns false when another run already holds it.
	Acquire(ctx context.Context, account string, startedAt time.Time, ttl time.Duration) (bool, error)

	// Release clears the lock for the account.
	Release(ctx context.Context, account string) error

	// Check returns the start time of the run holding the lock, if any.
	Check(ctx context.Context, account string) (time.Time, bool, error)
}
