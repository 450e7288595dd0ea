package redisclient

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestProductCacheRoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewProductCache(c, time.Minute)
	ctx := context.Background()

	product := &models.Product{
		ID:    uuid.New(),
		Name:  "Vela Baunilha Doce",
		Price: decimal.RequireFromString("24.90"),
		Stock: 15,
	}

	_, hit, err := cache.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, product))
	got, hit, err := cache.Get(ctx, product.ID)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, product.Name, got.Name)
	assert.True(t, got.Price.Equal(product.Price))

	require.NoError(t, cache.Invalidate(ctx, product.ID))
	_, hit, err = cache.Get(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, product))
	mr.FastForward(2 * time.Minute)
	_, hit, _ = cache.Get(ctx, product.ID)
	assert.False(t, hit)
}

func TestIdempotencyStore(t *testing.T) {
	c, _ := newTestClient(t)
	store := NewIdempotencyStore(c, time.Hour)
	ctx := context.Background()

	ok, err := store.TryLock(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TryLock(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.False(t, ok, "second claim while in flight")

	ok, err = store.TryLock(ctx, "user-2", "key-1")
	require.NoError(t, err)
	assert.True(t, ok, "keys are scoped per user")

	_, found, err := store.Recall(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Remember(ctx, "user-1", "key-1", "order-42"))
	val, found, err := store.Recall(ctx, "user-1", "key-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-42", val)

	require.NoError(t, store.Release(ctx, "user-2", "key-1"))
	ok, err = store.TryLock(ctx, "user-2", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
