package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxPage         = 1_000_000
)

// maxAmount is the first value a NUMERIC(12,2) column cannot hold.
var maxAmount = decimal.New(1, 10)

// CatalogService handles product reads and admin maintenance. Single
// product reads go through the cache when one is configured.
type CatalogService struct {
	products ProductStore
	cache    ProductCache
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(products ProductStore, cache ProductCache) *CatalogService {
	return &CatalogService{
		products: products,
		cache:    cache,
		logger:   util.GetLogger(),
	}
}

// ProductRequest is the full set of product fields
type ProductRequest struct {
	Name        string           `json:"name" binding:"required,min=5,max=50"`
	Description string           `json:"description" binding:"required,min=10,max=500"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Image       string           `json:"image" binding:"required,url"`
	Stock       *int             `json:"stock" binding:"required,min=0"`
}

// ProductPatch updates only the fields that are present
type ProductPatch struct {
	Name        *string          `json:"name" binding:"omitempty,min=5,max=50"`
	Description *string          `json:"description" binding:"omitempty,min=10,max=500"`
	Price       *decimal.Decimal `json:"price"`
	Image       *string          `json:"image" binding:"omitempty,url"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
}

// ProductListRequest holds the catalog query string
type ProductListRequest struct {
	Query  string `form:"q"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	SortBy string `form:"sortBy"`
}

// ProductPage is one page of the catalog
type ProductPage struct {
	Products    []models.Product `json:"products"`
	Total       int              `json:"total"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
}

// ListProducts searches by name and pages the catalog
func (s *CatalogService) ListProducts(ctx context.Context, req ProductListRequest) (*ProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if req.Page < 1 {
		req.Page = 1
	}
	if req.Page > maxPage {
		req.Page = maxPage
	}
	if req.Limit < 1 {
		req.Limit = defaultPageSize
	}
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}
	if req.SortBy == "" {
		req.SortBy = "name_asc"
	}
	if _, ok := store.SortOrder(req.SortBy); !ok {
		return nil, ValidationError(map[string]string{"sortBy": "must be one of name_asc, name_desc, price_asc, price_desc"})
	}

	products, total, err := s.products.ListProducts(ctx, store.ProductQuery{
		Search: req.Query,
		Page:   req.Page,
		Limit:  req.Limit,
		SortBy: req.SortBy,
	})
	if err != nil {
		return nil, InternalError(err)
	}

	return &ProductPage{
		Products:    products,
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / float64(req.Limit))),
		CurrentPage: req.Page,
	}, nil
}

// GetProduct returns one product, served from cache when possible
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	if s.cache != nil {
		product, hit, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("Product cache read failed, falling back to DB",
				zap.String("product_id", id.String()),
				zap.Error(err))
		}
		if hit {
			util.ProductCacheTotal.WithLabelValues("hit").Inc()
			return product, nil
		}
		util.ProductCacheTotal.WithLabelValues("miss").Inc()
	}

	product, err := s.products.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindNotFound, "product not found")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("load product: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, product); err != nil {
			s.logger.Warn("Failed to cache product", zap.String("product_id", id.String()), zap.Error(err))
		}
	}
	return product, nil
}

// GetProductsByIDs returns the products that exist among ids
func (s *CatalogService) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, InternalError(fmt.Errorf("load products: %w", err))
	}
	return products, nil
}

// CreateProduct adds a product to the catalog. Admin only.
func (s *CatalogService) CreateProduct(ctx context.Context, p *Principal, req *ProductRequest) (*models.Product, error) {
	if err := Authorize(p, AdminRole()); err != nil {
		return nil, err
	}
	if req.Price == nil {
		return nil, ValidationError(map[string]string{"price": "is required"})
	}
	if msg := priceIssue(*req.Price); msg != "" {
		return nil, ValidationError(map[string]string{"price": msg})
	}

	product := &models.Product{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Image:       req.Image,
		Stock:       *req.Stock,
	}
	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, InternalError(fmt.Errorf("create product: %w", err))
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct applies a partial update. Admin only. Existing orders keep
// the price captured at purchase.
func (s *CatalogService) UpdateProduct(ctx context.Context, p *Principal, id uuid.UUID, patch *ProductPatch) (*models.Product, error) {
	if err := Authorize(p, AdminRole()); err != nil {
		return nil, err
	}

	if patch.Price != nil {
		if msg := priceIssue(*patch.Price); msg != "" {
			return nil, ValidationError(map[string]string{"price": msg})
		}
	}

	// stock is only written when the patch carries it
	product, err := s.products.UpdateProduct(ctx, id, store.ProductUpdate{
		Name:        patch.Name,
		Description: patch.Description,
		Price:       patch.Price,
		Image:       patch.Image,
		Stock:       patch.Stock,
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindNotFound, "product not found")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("update product: %w", err))
	}

	s.invalidate(ctx, id)
	return product, nil
}

// DeleteProduct removes a product. Admin only. Products that appear on
// orders cannot be removed.
func (s *CatalogService) DeleteProduct(ctx context.Context, p *Principal, id uuid.UUID) error {
	if err := Authorize(p, AdminRole()); err != nil {
		return err
	}

	err := s.products.DeleteProduct(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Errorf(KindNotFound, "product not found")
	case errors.Is(err, store.ErrInUse):
		return Errorf(KindConflict, "product is referenced by existing orders")
	case err != nil:
		return InternalError(fmt.Errorf("delete product: %w", err))
	}

	s.invalidate(ctx, id)
	return nil
}

// HandleOrderPlaced drops cached entries whose stock the order changed
func (s *CatalogService) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.HandleOrderPlaced")
	defer span.End()

	ids := make([]uuid.UUID, len(event.Items))
	for i, item := range event.Items {
		ids[i] = item.ProductID
	}
	if s.cache == nil || len(ids) == 0 {
		return nil
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		return fmt.Errorf("invalidate products for order %s: %w", event.OrderID, err)
	}

	s.logger.Debug("Invalidated cached products",
		zap.String("order_id", event.OrderID.String()),
		zap.Int("count", len(ids)))
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

// priceIssue returns why a catalog price cannot be stored exactly, or "".
func priceIssue(price decimal.Decimal) string {
	switch {
	case !price.IsPositive():
		return "must be greater than zero"
	case !price.Equal(price.Truncate(2)):
		return "must have at most 2 decimal places"
	case price.GreaterThanOrEqual(maxAmount):
		return "must be less than 10000000000"
	}
	return ""
}
