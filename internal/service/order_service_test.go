package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/models"
	"storefront/internal/service/servicetest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	store   *servicetest.Store
	idem    *servicetest.Idempotency
	pub     *servicetest.Publisher
	svc     *OrderService
	user    *Principal
	admin   *Principal
	address models.Address
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	st := servicetest.NewStore()
	idem := servicetest.NewIdempotency()
	pub := &servicetest.Publisher{}
	user := &Principal{UserID: uuid.New()}

	return &orderFixture{
		store:   st,
		idem:    idem,
		pub:     pub,
		svc:     NewOrderService(NewCartService(st), st, st, idem, pub),
		user:    user,
		admin:   &Principal{UserID: uuid.New(), Admin: true},
		address: st.AddAddress(user.UserID, "Rua das Flores"),
	}
}

func (f *orderFixture) cart(items ...models.CartItem) models.Cart {
	return models.Cart{Items: items, AddressID: f.address.ID}
}

func TestPlaceOrderEndToEnd(t *testing.T) {
	f := newOrderFixture(t)
	f.store.AddAddress(f.user.UserID, "Avenida Boa Viagem")
	p := f.store.AddProduct("Vela Lavanda Relaxante", "29.90", 5)

	order, replayed, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 3}), "")
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Equal(t, 2, f.store.Stock(p.ID))
	orders, lines := f.store.Counts()
	assert.Equal(t, 1, orders)
	assert.Equal(t, 1, lines)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, f.user.UserID, order.UserID)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("89.70")))
	assert.Equal(t, "Rua das Flores", order.ShippingAddress.Street)

	stored, err := f.svc.GetOrder(context.Background(), f.user, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Lines[0].PriceAtPurchase.Equal(p.Price))
	assert.Equal(t, 3, stored.Lines[0].Quantity)

	require.Len(t, f.pub.Placed, 1)
	assert.Equal(t, order.ID, f.pub.Placed[0].OrderID)
}

func TestPlaceOrderMissingProductNeverPlaces(t *testing.T) {
	f := newOrderFixture(t)

	_, _, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: uuid.New(), Quantity: 1}), "")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Zero(t, f.store.PlaceOrderCalls)
	assert.Empty(t, f.pub.Placed)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Jasmim Floral", "28.90", 1)

	_, _, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 2}), "")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "Vela Jasmim Floral")
	assert.Zero(t, f.store.PlaceOrderCalls)
}

func TestPlaceOrderRequiresIdentity(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Lavanda", "10.00", 1)

	_, _, err := f.svc.PlaceOrder(context.Background(), nil,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestPlaceOrderRejectsForeignAddress(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Lavanda", "10.00", 1)
	stranger := &Principal{UserID: uuid.New()}

	_, _, err := f.svc.PlaceOrder(context.Background(), stranger,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	assert.Equal(t, KindForbidden, KindOf(err))

	// admins may not ship to someone else's address either
	_, _, err = f.svc.PlaceOrder(context.Background(), f.admin,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	assert.Equal(t, KindForbidden, KindOf(err))

	_, _, err = f.svc.PlaceOrder(context.Background(), f.user,
		models.Cart{AddressID: uuid.New(), Items: []models.CartItem{{ProductID: p.ID, Quantity: 1}}}, "")
	assert.Equal(t, KindForbidden, KindOf(err))

	assert.Equal(t, 1, f.store.Stock(p.ID))
}

func TestPlaceOrderIsAtomic(t *testing.T) {
	for _, stage := range []string{"order", "line", "stock"} {
		t.Run(stage, func(t *testing.T) {
			f := newOrderFixture(t)
			a := f.store.AddProduct("Vela Lavanda", "10.00", 5)
			b := f.store.AddProduct("Vela Baunilha", "12.00", 5)

			calls := 0
			f.store.FailPlaceOrder = func(s string) error {
				if s != stage {
					return nil
				}
				calls++
				if calls == 2 || stage == "order" {
					return errors.New("injected failure")
				}
				return nil
			}

			_, _, err := f.svc.PlaceOrder(context.Background(), f.user, f.cart(
				models.CartItem{ProductID: a.ID, Quantity: 2},
				models.CartItem{ProductID: b.ID, Quantity: 1},
			), "")
			require.Error(t, err)
			assert.Equal(t, KindInternal, KindOf(err))

			orders, lines := f.store.Counts()
			assert.Zero(t, orders)
			assert.Zero(t, lines)
			assert.Equal(t, 5, f.store.Stock(a.ID))
			assert.Equal(t, 5, f.store.Stock(b.ID))
		})
	}
}

func TestPlaceOrderConcurrentLastUnit(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Rosas Vermelhas", "32.90", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, _, errs[i] = f.svc.PlaceOrder(context.Background(), f.user,
				f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if KindOf(err) == KindConflict {
			conflicts++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0, f.store.Stock(p.ID))
}

func TestPlaceOrderStockRaceAfterPricingIsConflict(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Oceano Fresco", "26.90", 1)

	// another checkout takes the last unit between pricing and commit
	f.store.BeforePlaceOrder = func() { f.store.SetStock(p.ID, 0) }

	_, _, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Contains(t, err.Error(), "Vela Oceano Fresco")

	orders, lines := f.store.Counts()
	assert.Zero(t, orders)
	assert.Zero(t, lines)
}

func TestPlaceOrderPricesAreImmutable(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Café Torrado", "27.50", 5)
	catalog := NewCatalogService(f.store, nil)

	order, _, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 2}), "")
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("99.99")
	_, err = catalog.UpdateProduct(context.Background(), f.admin, p.ID, &ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	stored, err := f.svc.GetOrder(context.Background(), f.user, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(decimal.RequireFromString("55.00")))
	assert.True(t, stored.Lines[0].PriceAtPurchase.Equal(decimal.RequireFromString("27.50")))
	assert.True(t, stored.Lines[0].Product.Price.Equal(newPrice))
}

func TestPlaceOrderIdempotencyReplay(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Pinho Natural", "26.00", 5)
	cart := f.cart(models.CartItem{ProductID: p.ID, Quantity: 1})

	first, replayed, err := f.svc.PlaceOrder(context.Background(), f.user, cart, "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := f.svc.PlaceOrder(context.Background(), f.user, cart, "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 4, f.store.Stock(p.ID))
	orders, _ := f.store.Counts()
	assert.Equal(t, 1, orders)
}

func TestPlaceOrderIdempotencyInFlight(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Pinho Natural", "26.00", 5)

	locked, err := f.idem.TryLock(context.Background(), f.user.UserID.String(), "key-2")
	require.NoError(t, err)
	require.True(t, locked)

	_, _, err = f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "key-2")
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 5, f.store.Stock(p.ID))
}

func TestPlaceOrderIdempotencyHolderFinishesBeforeLock(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Pinho Natural", "26.00", 5)
	cart := f.cart(models.CartItem{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	// the first request completes after the second one missed the recall
	var first *models.Order
	f.idem.BeforeTryLock = func() {
		f.idem.BeforeTryLock = nil
		var err error
		first, _, err = f.svc.PlaceOrder(ctx, f.user, cart, "key-4")
		require.NoError(t, err)
	}

	second, replayed, err := f.svc.PlaceOrder(ctx, f.user, cart, "key-4")
	require.NoError(t, err)
	assert.True(t, replayed)
	require.NotNil(t, first)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 4, f.store.Stock(p.ID))
	orders, _ := f.store.Counts()
	assert.Equal(t, 1, orders)
}

func TestPlaceOrderFailureReleasesIdempotencyKey(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Pinho Natural", "26.00", 1)

	_, _, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 2}), "key-3")
	require.Error(t, err)

	_, _, err = f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "key-3")
	assert.NoError(t, err)
}

func TestPlaceOrderPublishFailureDoesNotFail(t *testing.T) {
	f := newOrderFixture(t)
	f.pub.Err = errors.New("broker down")
	p := f.store.AddProduct("Vela Lavanda", "10.00", 1)

	_, _, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	assert.NoError(t, err)
}

func TestGetOrderAccess(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Lavanda", "10.00", 3)
	order, _, err := f.svc.PlaceOrder(context.Background(), f.user,
		f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	require.NoError(t, err)

	_, err = f.svc.GetOrder(context.Background(), f.admin, order.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetOrder(context.Background(), &Principal{UserID: uuid.New()}, order.ID)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.GetOrder(context.Background(), f.user, uuid.New())
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.GetOrder(context.Background(), nil, order.ID)
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestListOrdersScopedToCaller(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Lavanda", "10.00", 5)
	_, _, err := f.svc.PlaceOrder(context.Background(), f.user, f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	require.NoError(t, err)

	other := &Principal{UserID: uuid.New()}
	otherAddr := f.store.AddAddress(other.UserID, "Rua B")
	_, _, err = f.svc.PlaceOrder(context.Background(), other,
		models.Cart{AddressID: otherAddr.ID, Items: []models.CartItem{{ProductID: p.ID, Quantity: 1}}}, "")
	require.NoError(t, err)

	mine, err := f.svc.ListOrders(context.Background(), f.user)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = f.svc.ListAllOrders(context.Background(), f.user)
	assert.Equal(t, KindForbidden, KindOf(err))

	all, err := f.svc.ListAllOrders(context.Background(), f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateStatus(t *testing.T) {
	f := newOrderFixture(t)
	p := f.store.AddProduct("Vela Lavanda", "10.00", 5)
	order, _, err := f.svc.PlaceOrder(context.Background(), f.user, f.cart(models.CartItem{ProductID: p.ID, Quantity: 1}), "")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.UpdateStatus(ctx, f.user, order.ID, models.OrderStatusProcessing)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, f.admin, uuid.New(), models.OrderStatusProcessing)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, "PERDIDO")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, models.OrderStatusDelivered)
	assert.Equal(t, KindConflict, KindOf(err))

	updated, err := f.svc.UpdateStatus(ctx, f.admin, order.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)

	require.Len(t, f.pub.StatusChanged, 1)
	assert.Equal(t, models.OrderStatusPending, f.pub.StatusChanged[0].From)
	assert.Equal(t, models.OrderStatusProcessing, f.pub.StatusChanged[0].To)

	f.store.SetStatus(order.ID, models.OrderStatusDelivered)
	_, err = f.svc.UpdateStatus(ctx, f.admin, order.ID, models.OrderStatusPending)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		want     bool
	}{
		{models.OrderStatusPending, models.OrderStatusProcessing, true},
		{models.OrderStatusPending, models.OrderStatusCancelled, true},
		{models.OrderStatusPending, models.OrderStatusShipped, false},
		{models.OrderStatusProcessing, models.OrderStatusShipped, true},
		{models.OrderStatusShipped, models.OrderStatusDelivered, true},
		{models.OrderStatusShipped, models.OrderStatusCancelled, true},
		{models.OrderStatusDelivered, models.OrderStatusCancelled, false},
		{models.OrderStatusDelivered, models.OrderStatusPending, false},
		{models.OrderStatusCancelled, models.OrderStatusPending, false},
		{models.OrderStatusPending, models.OrderStatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
