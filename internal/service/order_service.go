package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	cart        *CartService
	orders      OrderStore
	addresses   AddressStore
	idempotency IdempotencyStore
	events      EventPublisher
	logger      *zap.Logger
}

// NewOrderService creates a new order service. idempotency and events may
// be nil.
func NewOrderService(
	cart *CartService,
	orders OrderStore,
	addresses AddressStore,
	idempotency IdempotencyStore,
	events EventPublisher,
) *OrderService {
	return &OrderService{
		cart:        cart,
		orders:      orders,
		addresses:   addresses,
		idempotency: idempotency,
		events:      events,
		logger:      util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Items     []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	AddressID string             `json:"addressId" binding:"required,uuid"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=2147483647"`
}

// Cart converts the request into a cart value.
func (r *CreateOrderRequest) Cart() (models.Cart, error) {
	addressID, err := uuid.Parse(r.AddressID)
	if err != nil {
		return models.Cart{}, ValidationError(map[string]string{"addressId": "must be a valid UUID"})
	}
	cart := models.Cart{AddressID: addressID, Items: make([]models.CartItem, len(r.Items))}
	for i, it := range r.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return models.Cart{}, ValidationError(map[string]string{
				fmt.Sprintf("items[%d].productId", i): "must be a valid UUID",
			})
		}
		cart.Items[i] = models.CartItem{ProductID: pid, Quantity: it.Quantity}
	}
	return cart, nil
}

// UpdateStatusRequest carries the target status of an order
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDENTE PROCESSANDO ENVIADO ENTREGUE CANCELADO"`
}

// PlaceOrder prices the cart, snapshots the caller's address and commits the
// order atomically. With a non-empty idempotencyKey a repeated call returns
// the first order and replayed=true.
func (s *OrderService) PlaceOrder(ctx context.Context, p *Principal, cart models.Cart, idempotencyKey string) (order *models.Order, replayed bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if err := Authorize(p, Authenticated()); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		scope := p.UserID.String()
		var prior *models.Order
		var found, locked bool
		if prior, found, err = s.recall(ctx, scope, idempotencyKey); err != nil {
			return nil, false, err
		}
		if found {
			util.OrderReplaysTotal.Inc()
			return prior, true, nil
		}

		if locked, err = s.idempotency.TryLock(ctx, scope, idempotencyKey); err != nil {
			return nil, false, InternalError(fmt.Errorf("claim idempotency key: %w", err))
		}
		if !locked {
			// the holder may have finished between the first recall and the lock
			if prior, found, err = s.recall(ctx, scope, idempotencyKey); err != nil {
				return nil, false, err
			}
			if found {
				util.OrderReplaysTotal.Inc()
				return prior, true, nil
			}
			return nil, false, Errorf(KindConflict, "a request with this Idempotency-Key is already in progress")
		}
		defer func() {
			if err == nil {
				return
			}
			if rerr := s.idempotency.Release(context.Background(), scope, idempotencyKey); rerr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.Error(rerr))
			}
		}()
	}

	order, err = s.placeOrder(ctx, p, cart)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(KindOf(err).String()).Inc()
		return nil, false, err
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if rerr := s.idempotency.Remember(ctx, p.UserID.String(), idempotencyKey, order.ID.String()); rerr != nil {
			s.logger.Warn("Failed to remember idempotency key",
				zap.String("order_id", order.ID.String()),
				zap.Error(rerr))
		}
	}
	return order, false, nil
}

func (s *OrderService) recall(ctx context.Context, scope, key string) (*models.Order, bool, error) {
	val, found, err := s.idempotency.Recall(ctx, scope, key)
	if err != nil {
		return nil, false, InternalError(fmt.Errorf("recall idempotency key: %w", err))
	}
	if !found {
		return nil, false, nil
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return nil, false, InternalError(fmt.Errorf("corrupt idempotency value %q: %w", val, err))
	}
	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, false, InternalError(fmt.Errorf("load replayed order: %w", err))
	}
	return order, true, nil
}

func (s *OrderService) placeOrder(ctx context.Context, p *Principal, cart models.Cart) (*models.Order, error) {
	address, err := s.addresses.GetAddressByID(ctx, cart.AddressID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindForbidden, "address does not belong to the caller")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("load address: %w", err))
	}
	if err := Authorize(p, OwnerOf(address.UserID)); err != nil {
		return nil, Errorf(KindForbidden, "address does not belong to the caller")
	}

	priced, err := s.cart.ProcessCart(ctx, cart.Items)
	if err != nil {
		return nil, err
	}

	lines := make([]models.OrderLine, len(priced.Lines))
	for i, l := range priced.Lines {
		lines[i] = models.OrderLine{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: priced.Products[l.ProductID].Price,
		}
	}

	order, err := s.orders.PlaceOrder(ctx, store.PlaceOrderParams{
		UserID:          p.UserID,
		Total:           priced.Total,
		ShippingAddress: address.Snapshot(),
		Lines:           lines,
	})
	if err != nil {
		var stockErr *store.InsufficientStockError
		if errors.As(err, &stockErr) {
			name := stockErr.ProductID.String()
			if product, ok := priced.Products[stockErr.ProductID]; ok {
				name = product.Name
			}
			return nil, Errorf(KindConflict, "insufficient stock for product: %s", name)
		}
		return nil, InternalError(fmt.Errorf("place order: %w", err))
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", p.UserID.String()),
		zap.String("total", order.Total.StringFixed(2)))

	s.publishPlaced(ctx, order, lines)
	return order, nil
}

func (s *OrderService) publishPlaced(ctx context.Context, order *models.Order, lines []models.OrderLine) {
	if s.events == nil {
		return
	}
	items := make([]models.OrderItemData, len(lines))
	for i, l := range lines {
		items[i] = models.OrderItemData{ProductID: l.ProductID, Quantity: l.Quantity, PriceAtPurchase: l.PriceAtPurchase}
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPlaced),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total,
		Items:     items,
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
}

// GetOrder returns an order with its lines. Only the owner or an admin may
// read it.
func (s *OrderService) GetOrder(ctx context.Context, p *Principal, id uuid.UUID) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	if err := Authorize(p, Authenticated()); err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindNotFound, "order not found")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("load order: %w", err))
	}

	if err := Authorize(p, OwnerOf(order.UserID), AdminRole()); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the caller's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, p *Principal) ([]models.Order, error) {
	if err := Authorize(p, Authenticated()); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrdersByUser(ctx, p.UserID)
	if err != nil {
		return nil, InternalError(fmt.Errorf("list orders: %w", err))
	}
	return orders, nil
}

// ListAllOrders returns every order with its owner. Admin only.
func (s *OrderService) ListAllOrders(ctx context.Context, p *Principal) ([]models.Order, error) {
	if err := Authorize(p, AdminRole()); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListAllOrders(ctx)
	if err != nil {
		return nil, InternalError(fmt.Errorf("list all orders: %w", err))
	}
	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. Admin only. Illegal
// transitions and lost races both fail with a conflict.
func (s *OrderService) UpdateStatus(ctx context.Context, p *Principal, id uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if err := Authorize(p, AdminRole()); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, ValidationError(map[string]string{"status": "unknown order status"})
	}

	current, err := s.orders.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindNotFound, "order not found")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("load order: %w", err))
	}

	if !CanTransition(current.Status, to) {
		return nil, Errorf(KindConflict, "cannot change order status from %s to %s", current.Status, to)
	}

	updated, err := s.orders.UpdateStatusIf(ctx, id, current.Status, to)
	if errors.Is(err, store.ErrStatusChanged) {
		return nil, Errorf(KindConflict, "order status changed concurrently, reload and retry")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("update order status: %w", err))
	}

	util.OrderStatusTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", id.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)))

	if s.events != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
			OrderID:   updated.ID,
			UserID:    updated.UserID,
			From:      current.Status,
			To:        to,
		}
		if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	updated.Lines = current.Lines
	return updated, nil
}
