package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const productColumns = "id, name, description, price, image, stock, created_at, updated_at"

// ProductQuery filters and pages the catalog listing.
type ProductQuery struct {
	Search string
	Page   int
	Limit  int
	SortBy string
}

var productSort = map[string]string{
	"name_asc":   "name ASC",
	"name_desc":  "name DESC",
	"price_asc":  "price ASC",
	"price_desc": "price DESC",
}

// SortOrder returns the ORDER BY clause for a sortBy key.
func SortOrder(sortBy string) (string, bool) {
	o, ok := productSort[sortBy]
	return o, ok
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs in one round trip.
// Missing ids are simply absent from the result.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListProducts returns one page of products and the total matching count.
func (s *Store) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int, error) {
	order, ok := SortOrder(q.SortBy)
	if !ok {
		order = productSort["name_asc"]
	}

	where := ""
	args := []interface{}{}
	if q.Search != "" {
		where = " WHERE name ILIKE $1"
		args = append(args, "%"+q.Search+"%")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (q.Page - 1) * q.Limit
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY %s, id LIMIT $%d OFFSET $%d",
		productColumns, where, order, len(args)+1, len(args)+2)
	args = append(args, q.Limit, offset)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// CountProducts returns the catalog size
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM products")
	return n, err
}

// CreateProduct inserts a product. The caller assigns the ID.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, description, price, image, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.ID, p.Name, p.Description, p.Price, p.Image, p.Stock)
}

// ProductUpdate lists the columns to change. Nil fields keep their stored
// value, so an update that does not carry Stock never races a checkout.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Image       *string
	Stock       *int
}

// UpdateProduct applies a partial update and returns the stored row
func (s *Store) UpdateProduct(ctx context.Context, id uuid.UUID, u ProductUpdate) (*models.Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price = COALESCE($4, price),
		    image = COALESCE($5, image),
		    stock = COALESCE($6, stock),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	var p models.Product
	err := s.db.GetContext(ctx, &p, query, id, u.Name, u.Description, u.Price, u.Image, u.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes a product. Products referenced by order lines
// cannot be deleted.
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return ErrInUse
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
