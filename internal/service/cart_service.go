package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService validates and prices carts against the live catalog
type CartService struct {
	products ProductStore
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(products ProductStore) *CartService {
	return &CartService{
		products: products,
		logger:   util.GetLogger(),
	}
}

// CartResult is a priced cart.
type CartResult struct {
	Products map[uuid.UUID]*models.Product
	// Lines has one entry per product, in first-seen order.
	Lines []models.CartItem
	Total decimal.Decimal
}

// ProcessCart checks that every product exists and that the stock read
// covers each quantity, then sums price × quantity. It does not write.
// The stock check is advisory; placement re-checks atomically.
func (s *CartService) ProcessCart(ctx context.Context, items []models.CartItem) (*CartResult, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ProcessCart")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CartPricingLatency.Observe(time.Since(start).Seconds())
	}()

	lines, err := mergeLines(items)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, InternalError(fmt.Errorf("load cart products: %w", err))
	}
	if len(products) != len(ids) {
		return nil, Errorf(KindNotFound, "one or more products were not found")
	}

	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	total := decimal.Zero
	for _, l := range lines {
		product, ok := byID[l.ProductID]
		if !ok {
			return nil, Errorf(KindNotFound, "one or more products were not found")
		}
		if l.Quantity > product.Stock {
			s.logger.Debug("Cart line exceeds stock",
				zap.String("product_id", product.ID.String()),
				zap.Int("requested", l.Quantity),
				zap.Int("stock", product.Stock))
			return nil, Errorf(KindConflict, "insufficient stock for product: %s", product.Name)
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	if total.GreaterThanOrEqual(maxAmount) {
		return nil, ValidationError(map[string]string{"items": "order total is too large"})
	}

	return &CartResult{Products: byID, Lines: lines, Total: total}, nil
}

// maxLineQuantity is the largest quantity an order_lines row can hold.
const maxLineQuantity = math.MaxInt32

// mergeLines folds repeated products into one line with the summed quantity.
func mergeLines(items []models.CartItem) ([]models.CartItem, error) {
	if len(items) == 0 {
		return nil, ValidationError(map[string]string{"items": "cart must contain at least one item"})
	}

	index := make(map[uuid.UUID]int, len(items))
	lines := make([]models.CartItem, 0, len(items))
	for i, it := range items {
		field := fmt.Sprintf("items[%d].quantity", i)
		if it.Quantity < 1 {
			return nil, ValidationError(map[string]string{field: "must be at least 1"})
		}
		if it.Quantity > maxLineQuantity {
			return nil, ValidationError(map[string]string{field: "must be at most 2147483647"})
		}
		if j, ok := index[it.ProductID]; ok {
			if lines[j].Quantity > maxLineQuantity-it.Quantity {
				return nil, ValidationError(map[string]string{field: "combined quantity for this product is too large"})
			}
			lines[j].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, it)
	}
	return lines, nil
}
