package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ProductCache is a read-through cache of catalog entries keyed by id.
type ProductCache struct {
	c   *Client
	ttl time.Duration
}

func NewProductCache(c *Client, ttl time.Duration) *ProductCache {
	return &ProductCache{c: c, ttl: ttl}
}

func productKey(id uuid.UUID) string {
	return fmt.Sprintf("product:%s", id)
}

// Get returns the cached product, or false on a miss.
func (p *ProductCache) Get(ctx context.Context, id uuid.UUID) (*models.Product, bool, error) {
	raw, err := p.c.rdb.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product models.Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, false, fmt.Errorf("decode cached product: %w", err)
	}
	return &product, true, nil
}

// Set stores a product for the cache TTL
func (p *ProductCache) Set(ctx context.Context, product *models.Product) error {
	raw, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return p.c.rdb.Set(ctx, productKey(product.ID), raw, p.ttl).Err()
}

// Invalidate drops cached entries for the given products
func (p *ProductCache) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return p.c.rdb.Del(ctx, keys...).Err()
}
