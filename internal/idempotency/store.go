package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"checkout-service/internal/models"
)

// Store suppresses duplicate order creation by mapping an idempotency key to
// the order result it previously produced. Absence of a key is a cache miss,
// not an error.
type Store interface {
	// Check reports whether a non-expired record exists for key and returns
	// the cached result if so.
	Check(ctx context.Context, key string) (bool, *models.OrderResult, error)
	// Put inserts or overwrites the record for key, resetting its TTL clock.
	Put(ctx context.Context, key string, result *models.OrderResult) error
}

// ComputeKey derives a deterministic fingerprint for a checkout attempt from
// its line items and declared cart total. The hash is taken in list order:
// two carts with the same lines in a different order produce different keys.
func ComputeKey(items []models.LineItem, total float64) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%d:%d|", it.ProductID, it.Quantity)
	}
	fmt.Fprintf(&b, "%.2f", total)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type record struct {
	result    *models.OrderResult
	createdAt time.Time
}

// MemoryStore is the in-process Store. State is process-lifetime only; across
// multiple server instances stores do not coordinate.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]record
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemoryStore creates a MemoryStore with the given retention window.
// Entries older than ttl are treated as absent and evicted lazily, so a retry
// delayed past the window may create a duplicate order. Accepted risk.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]record),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Check(_ context.Context, key string) (bool, *models.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[key]
	if !ok {
		return false, nil, nil
	}

	if s.nowFunc().Sub(rec.createdAt) > s.ttl {
		delete(s.entries, key)
		return false, nil, nil
	}

	return true, rec.result, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, result *models.OrderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = record{result: result, createdAt: s.nowFunc()}
	s.sweepLocked()
	return nil
}

// sweepLocked evicts expired entries. Called opportunistically on writes to
// bound memory without a background goroutine.
func (s *MemoryStore) sweepLocked() {
	now := s.nowFunc()
	for k, rec := range s.entries {
		if now.Sub(rec.createdAt) > s.ttl {
			delete(s.entries, k)
		}
	}
}
