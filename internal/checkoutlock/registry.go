// Package checkoutlock provides short-lived mutual exclusion per checkout
// attempt, so two concurrent requests for the same attempt cannot both create
// orders. A losing caller fails fast; there is no queueing or fairness.
package checkoutlock

import (
	"context"
	"sync"
	"time"
)

// Registry is the order-lock contract. At most one live lock may exist per
// key at any instant; Acquire is an atomic check-and-set.
type Registry interface {
	// Acquire creates the lock entry iff none exists (a stale entry past the
	// timeout is force-cleared first). Returns false if a live lock is held.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release unconditionally removes the entry. Releasing an absent lock is
	// a no-op.
	Release(ctx context.Context, key string) error
}

// MemoryRegistry is the in-process Registry. Locks are held across upstream
// I/O, so a crash between acquire and release leaks the lock until the stale
// timeout elapses. Single-instance deployment assumption.
type MemoryRegistry struct {
	mu      sync.Mutex
	locks   map[string]time.Time
	stale   time.Duration
	nowFunc func() time.Time
}

// NewMemoryRegistry creates a registry whose locks expire after stale if
// never released.
func NewMemoryRegistry(stale time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		locks:   make(map[string]time.Time),
		stale:   stale,
		nowFunc: time.Now,
	}
}

func (r *MemoryRegistry) Acquire(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if acquiredAt, held := r.locks[key]; held {
		if now.Sub(acquiredAt) <= r.stale {
			return false, nil
		}
		// stale lock from a crashed or hung request: force-clear and take over
		delete(r.locks, key)
	}

	r.locks[key] = now
	return true, nil
}

func (r *MemoryRegistry) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, key)
	return nil
}
