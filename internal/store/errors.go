package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrInsufficientStock is returned when a conditional stock decrement
	// matches no row. The whole placement transaction is rolled back.
	ErrInsufficientStock = errors.New("store: insufficient stock")
	// ErrStatusChanged is returned when an order's status moved between
	// read and compare-and-set.
	ErrStatusChanged = errors.New("store: order status changed concurrently")
	// ErrDuplicate is returned on unique constraint violations.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrInUse is returned when a row is still referenced by another table.
	ErrInUse = errors.New("store: referenced by other rows")
)

// InsufficientStockError names the product whose conditional decrement
// matched no row. It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID uuid.UUID
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: product %s", ErrInsufficientStock, e.ProductID)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// postgres error codes
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
