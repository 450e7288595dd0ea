package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// IdempotencyStore remembers the result of a keyed request per scope.
// A lock key marks a request in flight; a map key holds its result.
type IdempotencyStore struct {
	c   *Client
	ttl time.Duration
}

func NewIdempotencyStore(c *Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{c: c, ttl: ttl}
}

func lockKey(scope, key string) string { return "idempotency:lock:" + scope + ":" + key }
func mapKey(scope, key string) string  { return "idempotency:map:" + scope + ":" + key }

// TryLock claims the key. It returns false if another request holds it.
func (s *IdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.c.rdb.SetNX(ctx, lockKey(scope, key), "1", s.ttl).Result()
}

// Release frees a claimed key so the client may retry after a failure.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	return s.c.rdb.Del(ctx, lockKey(scope, key)).Err()
}

// Remember records the result for the key
func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.c.rdb.Set(ctx, mapKey(scope, key), value, s.ttl).Err()
}

// Recall returns the remembered result, if any
func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.c.rdb.Get(ctx, mapKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
