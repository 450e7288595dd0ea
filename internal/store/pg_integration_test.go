package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	s, err := NewStore(url, Options{MaxOpenConns: 10, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedUserAndProduct(t *testing.T, s *Store, stock int, price string) (*models.User, *models.Product) {
	t.Helper()
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Name: "Ana", Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, user))

	product := &models.Product{
		ID:          uuid.New(),
		Name:        "Vela Teste",
		Description: "Produto de integração",
		Price:       decimal.RequireFromString(price),
		Image:       "https://example.com/vela.jpg",
		Stock:       stock,
	}
	require.NoError(t, s.CreateProduct(ctx, product))
	return user, product
}

func TestIntegrationPlaceOrderDecrementsStock(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	user, product := seedUserAndProduct(t, s, 5, "29.90")

	order, err := s.PlaceOrder(ctx, PlaceOrderParams{
		UserID:          user.ID,
		Total:           decimal.RequireFromString("89.70"),
		ShippingAddress: models.ShippingAddress{Street: "Rua A", Number: "1"},
		Lines:           []models.OrderLine{{ProductID: product.ID, Quantity: 3, PriceAtPurchase: product.Price}},
	})
	require.NoError(t, err)

	after, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Stock)

	// later catalog edits do not touch the order
	newPrice := decimal.RequireFromString("99.00")
	_, err = s.UpdateProduct(ctx, product.ID, ProductUpdate{Price: &newPrice})
	require.NoError(t, err)

	stored, err := s.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Total.Equal(decimal.RequireFromString("89.70")))
	assert.True(t, stored.Lines[0].PriceAtPurchase.Equal(decimal.RequireFromString("29.90")))
}

func TestIntegrationConcurrentCheckoutNeverOversells(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	user, product := seedUserAndProduct(t, s, 1, "10.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.PlaceOrder(ctx, PlaceOrderParams{
				UserID:          user.ID,
				Total:           product.Price,
				ShippingAddress: models.ShippingAddress{Street: "Rua A", Number: "1"},
				Lines:           []models.OrderLine{{ProductID: product.ID, Quantity: 1, PriceAtPurchase: product.Price}},
			})
		}(i)
	}
	wg.Wait()

	succeeded, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientStock):
			lost++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, lost)

	after, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Stock)
}
