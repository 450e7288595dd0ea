package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const orderColumns = "o.id, o.user_id, o.total, o.shipping_address, o.status, o.created_at, o.updated_at"

// PlaceOrderParams carries a priced cart into the placement transaction.
type PlaceOrderParams struct {
	UserID          uuid.UUID
	Total           decimal.Decimal
	ShippingAddress models.ShippingAddress
	// Lines hold ProductID, Quantity and PriceAtPurchase. One line per product.
	Lines []models.OrderLine
}

// PlaceOrder creates the order, its lines and decrements stock in a single
// transaction. Each decrement only matches while stock covers the quantity,
// so a lost race surfaces as ErrInsufficientStock and nothing is persisted.
func (s *Store) PlaceOrder(ctx context.Context, p PlaceOrderParams) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          p.UserID,
		Total:           p.Total,
		ShippingAddress: p.ShippingAddress,
		Status:          models.OrderStatusPending,
	}
	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (id, user_id, total, shipping_address, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.Total, order.ShippingAddress, order.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	// consistent lock order across concurrent checkouts
	lines := make([]models.OrderLine, len(p.Lines))
	copy(lines, p.Lines)
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})

	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), order.ID, line.ProductID, line.Quantity, line.PriceAtPurchase); err != nil {
			return nil, fmt.Errorf("failed to insert order line: %w", err)
		}

		if err := decrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	return order, nil
}

func decrementStock(ctx context.Context, tx *sqlx.Tx, productID uuid.UUID, quantity int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`,
		quantity, productID)
	if err != nil {
		if pqCode(err) == codeCheckViolation {
			return &InsufficientStockError{ProductID: productID}
		}
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &InsufficientStockError{ProductID: productID}
	}
	return nil
}

// GetOrderByID retrieves an order with its lines and their products
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders o WHERE o.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	orders := []models.Order{order}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrdersByUser retrieves a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

type orderWithUser struct {
	models.Order
	UserName  string `db:"user_name"`
	UserEmail string `db:"user_email"`
}

// ListAllOrders retrieves every order with its owner's name and email
func (s *Store) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	var rows []orderWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+orderColumns+`, u.name AS user_name, u.email AS user_email
		FROM orders o JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, len(rows))
	for i, r := range rows {
		orders[i] = r.Order
		orders[i].User = &models.UserSummary{Name: r.UserName, Email: r.UserEmail}
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

type lineWithProduct struct {
	models.OrderLine
	Product models.Product `db:"product"`
}

// attachLines loads lines and products for all given orders in one query.
func (s *Store) attachLines(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT l.id, l.order_id, l.product_id, l.quantity, l.price_at_purchase,
			p.id AS "product.id", p.name AS "product.name", p.description AS "product.description",
			p.price AS "product.price", p.image AS "product.image", p.stock AS "product.stock",
			p.created_at AS "product.created_at", p.updated_at AS "product.updated_at"
		FROM order_lines l JOIN products p ON p.id = l.product_id
		WHERE l.order_id IN (?)
		ORDER BY l.order_id, p.name`, ids)
	if err != nil {
		return err
	}

	var rows []lineWithProduct
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load order lines: %w", err)
	}

	for _, r := range rows {
		i, ok := byID[r.OrderID]
		if !ok {
			continue
		}
		line := r.OrderLine
		product := r.Product
		line.Product = &product
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return nil
}

// UpdateStatusIf moves an order from one status to another only while it
// still holds the expected status.
func (s *Store) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders o SET status = $3, updated_at = NOW()
		WHERE o.id = $1 AND o.status = $2
		RETURNING `+orderColumns,
		id, from, to)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
