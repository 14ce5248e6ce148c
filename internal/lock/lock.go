package lock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotAcquired = errors.New("lock_not_acquired")
	ErrEmptyKey    = errors.New("lock_key_empty")
	ErrInvalidTTL  = errors.New("lock_ttl_invalid")
)

// Release gives the lock back. Calling it more than once is a no-op.
type Release func(ctx context.Context) error

// Locker hands out named mutual-exclusion locks.
//
// Acquire blocks for at most wait (or until ctx is done) and returns
// ErrNotAcquired when the lock is still held elsewhere. The ttl bounds how
// long a crashed holder can keep the key; in-process lockers ignore it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Release, error)
}

const pollInterval = 50 * time.Millisecond

// RecalcKey is the lock name guarding one GDD model's recalculation.
func RecalcKey(modelID string) string {
	return "gdd:recalc:" + modelID
}
