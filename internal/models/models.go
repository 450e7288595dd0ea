package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Image       string          `db:"image" json:"image"`
	Stock       int             `db:"stock" json:"stock"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Address is a shipping address owned by exactly one user
type Address struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"userId"`
	Street       string    `db:"street" json:"street"`
	Number       string    `db:"number" json:"number"`
	Complement   *string   `db:"complement" json:"complement,omitempty"`
	Neighborhood string    `db:"neighborhood" json:"neighborhood"`
	City         string    `db:"city" json:"city"`
	State        string    `db:"state" json:"state"`
	ZipCode      string    `db:"zip_code" json:"zipCode"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Snapshot copies the postal fields of an address for storage on an order.
func (a Address) Snapshot() ShippingAddress {
	s := ShippingAddress{
		Street:       a.Street,
		Number:       a.Number,
		Neighborhood: a.Neighborhood,
		City:         a.City,
		State:        a.State,
		ZipCode:      a.ZipCode,
	}
	if a.Complement != nil {
		s.Complement = *a.Complement
	}
	return s
}

// ShippingAddress is the denormalized address stored on an order. It is
// persisted as a JSONB column and never follows later edits of the Address.
type ShippingAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

// Value implements driver.Valuer.
func (s ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ShippingAddress) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = ShippingAddress{}
		return nil
	default:
		return errors.New("shipping address: unsupported source type")
	}
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending    OrderStatus = "PENDENTE"
	OrderStatusProcessing OrderStatus = "PROCESSANDO"
	OrderStatusShipped    OrderStatus = "ENVIADO"
	OrderStatusDelivered  OrderStatus = "ENTREGUE"
	OrderStatusCancelled  OrderStatus = "CANCELADO"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order represents a customer order
type Order struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"userId"`
	Total           decimal.Decimal `db:"total" json:"total"`
	ShippingAddress ShippingAddress `db:"shipping_address" json:"shippingAddress"`
	Status          OrderStatus     `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`

	Lines []OrderLine  `db:"-" json:"items,omitempty"`
	User  *UserSummary `db:"-" json:"user,omitempty"`
}

// OrderLine is one product, quantity and captured unit price of an order
type OrderLine struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	OrderID         uuid.UUID       `db:"order_id" json:"orderId"`
	ProductID       uuid.UUID       `db:"product_id" json:"productId"`
	Quantity        int             `db:"quantity" json:"quantity"`
	PriceAtPurchase decimal.Decimal `db:"price_at_purchase" json:"priceAtPurchase"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// User is a storefront account
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Admin        bool      `db:"admin" json:"admin"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// UserSummary is attached to orders in admin listings
type UserSummary struct {
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// CartItem is one requested product and quantity
type CartItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

// Cart is the client-held cart submitted at checkout
type Cart struct {
	Items     []CartItem `json:"items"`
	AddressID uuid.UUID  `json:"addressId"`
}
