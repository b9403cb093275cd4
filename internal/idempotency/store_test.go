package idempotency

import (
	"context"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeKeyDeterministic(t *testing.T) {
	items := []models.LineItem{
		{ProductID: 10, Quantity: 2},
		{ProductID: 42, Quantity: 1},
	}

	first := ComputeKey(items, 149.95)
	second := ComputeKey(items, 149.95)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestComputeKeyIsListOrderSensitive(t *testing.T) {
	// hashing happens in list order: a reordered but semantically equal cart
	// yields a different key
	a := ComputeKey([]models.LineItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}}, 30)
	b := ComputeKey([]models.LineItem{{ProductID: 2, Quantity: 1}, {ProductID: 1, Quantity: 1}}, 30)

	assert.NotEqual(t, a, b)
}

func TestComputeKeyVariesWithCart(t *testing.T) {
	base := ComputeKey([]models.LineItem{{ProductID: 1, Quantity: 1}}, 10)

	assert.NotEqual(t, base, ComputeKey([]models.LineItem{{ProductID: 1, Quantity: 2}}, 10))
	assert.NotEqual(t, base, ComputeKey([]models.LineItem{{ProductID: 1, Quantity: 1}}, 20))
}

func TestMemoryStoreMissThenHit(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	dup, cached, err := store.Check(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Nil(t, cached)

	result := &models.OrderResult{ID: 77, Status: models.OrderStatusProcessing}
	require.NoError(t, store.Put(ctx, "k1", result))

	dup, cached, err = store.Check(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, int64(77), cached.ID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	now := time.Now()
	store.nowFunc = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "k1", &models.OrderResult{ID: 1}))

	// just inside the window
	store.nowFunc = func() time.Time { return now.Add(59 * time.Second) }
	dup, _, err := store.Check(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, dup)

	// past the window the record is treated as absent
	store.nowFunc = func() time.Time { return now.Add(2 * time.Minute) }
	dup, cached, err := store.Check(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Nil(t, cached)
}

func TestMemoryStorePutResetsTTL(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	now := time.Now()
	store.nowFunc = func() time.Time { return now }
	require.NoError(t, store.Put(ctx, "k1", &models.OrderResult{ID: 1}))

	store.nowFunc = func() time.Time { return now.Add(50 * time.Second) }
	require.NoError(t, store.Put(ctx, "k1", &models.OrderResult{ID: 2}))

	// 80s after the first put but only 30s after the overwrite
	store.nowFunc = func() time.Time { return now.Add(80 * time.Second) }
	dup, cached, err := store.Check(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, int64(2), cached.ID)
}

func TestMemoryStoreSweepEvictsExpired(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	now := time.Now()
	store.nowFunc = func() time.Time { return now }
	require.NoError(t, store.Put(ctx, "old", &models.OrderResult{ID: 1}))

	store.nowFunc = func() time.Time { return now.Add(2 * time.Minute) }
	require.NoError(t, store.Put(ctx, "new", &models.OrderResult{ID: 2}))

	store.mu.Lock()
	_, oldPresent := store.entries["old"]
	store.mu.Unlock()
	assert.False(t, oldPresent)
}
