package service

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/google/uuid"
)

// ProductStore is the catalog persistence used by the services.
type ProductStore interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListProducts(ctx context.Context, q store.ProductQuery) ([]models.Product, int, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, id uuid.UUID, u store.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type AddressStore interface {
	CreateAddress(ctx context.Context, a *models.Address) error
	GetAddressByID(ctx context.Context, id uuid.UUID) (*models.Address, error)
	ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	UpdateAddress(ctx context.Context, a *models.Address) error
	DeleteAddress(ctx context.Context, id uuid.UUID) error
}

type OrderStore interface {
	PlaceOrder(ctx context.Context, p store.PlaceOrderParams) (*models.Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// ProductCache is an optional read-through cache in front of ProductStore.
type ProductCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, bool, error)
	Set(ctx context.Context, p *models.Product) error
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

// IdempotencyStore remembers the outcome of keyed requests.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error
}
