package servicetest

import (
	"context"
	"sync"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Cache is an in-memory product cache.
type Cache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]models.Product
	Err     error
}

func NewCache() *Cache {
	return &Cache{entries: map[uuid.UUID]models.Product{}}
}

func (c *Cache) Get(_ context.Context, id uuid.UUID) (*models.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, false, c.Err
	}
	p, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *Cache) Set(_ context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.entries[p.ID] = *p
	return nil
}

func (c *Cache) Invalidate(_ context.Context, ids ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}

// Has reports whether id is cached.
func (c *Cache) Has(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// Idempotency is an in-memory idempotency store.
type Idempotency struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string

	// BeforeTryLock runs before TryLock takes the mutex.
	BeforeTryLock func()
}

func NewIdempotency() *Idempotency {
	return &Idempotency{locks: map[string]bool{}, values: map[string]string{}}
}

func (i *Idempotency) TryLock(_ context.Context, scope, key string) (bool, error) {
	if i.BeforeTryLock != nil {
		i.BeforeTryLock()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	k := scope + ":" + key
	if i.locks[k] {
		return false, nil
	}
	i.locks[k] = true
	return true, nil
}

func (i *Idempotency) Release(_ context.Context, scope, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.locks, scope+":"+key)
	return nil
}

func (i *Idempotency) Remember(_ context.Context, scope, key, value string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.values[scope+":"+key] = value
	return nil
}

func (i *Idempotency) Recall(_ context.Context, scope, key string) (string, bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, ok := i.values[scope+":"+key]
	return v, ok, nil
}

// Publisher records published events.
type Publisher struct {
	mu            sync.Mutex
	Placed        []*models.OrderPlacedEvent
	StatusChanged []*models.OrderStatusChangedEvent
	Err           error
}

func (p *Publisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Placed = append(p.Placed, e)
	return nil
}

func (p *Publisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.StatusChanged = append(p.StatusChanged, e)
	return nil
}
