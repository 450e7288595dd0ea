// Package servicetest provides in-memory fakes of the service dependencies.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/google/uuid"
)

// Store is an in-memory implementation of the product, address, order and
// user stores. PlaceOrder is atomic under a single mutex.
type Store struct {
	mu        sync.Mutex
	products  map[uuid.UUID]models.Product
	addresses map[uuid.UUID]models.Address
	orders    map[uuid.UUID]models.Order
	lines     map[uuid.UUID][]models.OrderLine
	users     map[uuid.UUID]models.User

	// FailPlaceOrder, when set, is called at each placement stage
	// ("order", "line", "stock"). A non-nil error aborts the placement.
	FailPlaceOrder func(stage string) error
	// BeforePlaceOrder runs before PlaceOrder takes the lock.
	BeforePlaceOrder func()
	// BeforeUpdateProduct runs before UpdateProduct takes the lock.
	BeforeUpdateProduct func()

	ProductByIDsCalls int
	PlaceOrderCalls   int
}

func NewStore() *Store {
	return &Store{
		products:  map[uuid.UUID]models.Product{},
		addresses: map[uuid.UUID]models.Address{},
		orders:    map[uuid.UUID]models.Order{},
		lines:     map[uuid.UUID][]models.OrderLine{},
		users:     map[uuid.UUID]models.User{},
	}
}

// AddProduct seeds a product and returns it.
func (s *Store) AddProduct(name, price string, stock int) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: name + " description",
		Price:       mustDecimal(price),
		Image:       "https://example.com/" + strings.ReplaceAll(strings.ToLower(name), " ", "-") + ".jpg",
		Stock:       stock,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.products[p.ID] = p
	return p
}

// AddAddress seeds an address owned by userID.
func (s *Store) AddAddress(userID uuid.UUID, street string) models.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := models.Address{
		ID: uuid.New(), UserID: userID, Street: street, Number: "100",
		Neighborhood: "Centro", City: "Recife", State: "PE", ZipCode: "50000-000",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.addresses[a.ID] = a
	return a
}

// Stock returns the current stock of a product.
func (s *Store) Stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

// SetStock overwrites a product's stock.
func (s *Store) SetStock(id uuid.UUID, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Stock = stock
	s.products[id] = p
}

// Counts returns the number of persisted orders and order lines.
func (s *Store) Counts() (orders, lines int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ls := range s.lines {
		lines += len(ls)
	}
	return len(s.orders), lines
}

func (s *Store) GetProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProductByIDsCalls++
	out := []models.Product{}
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListProducts(_ context.Context, q store.ProductQuery) ([]models.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Product
	for _, p := range s.products {
		if q.Search == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.SortBy {
		case "name_desc":
			return a.Name > b.Name
		case "price_asc":
			return a.Price.LessThan(b.Price)
		case "price_desc":
			return a.Price.GreaterThan(b.Price)
		default:
			return a.Name < b.Name
		}
	})

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return append([]models.Product{}, matched[start:end]...), total, nil
}

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, id uuid.UUID, u store.ProductUpdate) (*models.Product, error) {
	if s.BeforeUpdateProduct != nil {
		s.BeforeUpdateProduct()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	p.UpdatedAt = time.Now()
	s.products[id] = p
	return &p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	for _, ls := range s.lines {
		for _, l := range ls {
			if l.ProductID == id {
				return store.ErrInUse
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *Store) CreateAddress(_ context.Context, a *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.CreatedAt, a.UpdatedAt = time.Now(), time.Now()
	s.addresses[a.ID] = *a
	return nil
}

func (s *Store) GetAddressByID(_ context.Context, id uuid.UUID) (*models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAddressesByUser(_ context.Context, userID uuid.UUID) ([]models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Address{}
	for _, a := range s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAddress(_ context.Context, a *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addresses[a.ID]; !ok {
		return store.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	s.addresses[a.ID] = *a
	return nil
}

func (s *Store) DeleteAddress(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.addresses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.addresses, id)
	return nil
}

// PlaceOrder stages every change and applies them only if all stages
// succeed, mirroring the SQL transaction.
func (s *Store) PlaceOrder(_ context.Context, p store.PlaceOrderParams) (*models.Order, error) {
	if s.BeforePlaceOrder != nil {
		s.BeforePlaceOrder()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlaceOrderCalls++

	fail := func(stage string) error {
		if s.FailPlaceOrder == nil {
			return nil
		}
		return s.FailPlaceOrder(stage)
	}

	now := time.Now()
	order := models.Order{
		ID:              uuid.New(),
		UserID:          p.UserID,
		Total:           p.Total,
		ShippingAddress: p.ShippingAddress,
		Status:          models.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := fail("order"); err != nil {
		return nil, err
	}

	staged := map[uuid.UUID]models.Product{}
	lines := make([]models.OrderLine, 0, len(p.Lines))
	for _, l := range p.Lines {
		line := l
		line.ID = uuid.New()
		line.OrderID = order.ID
		lines = append(lines, line)
		if err := fail("line"); err != nil {
			return nil, err
		}

		product, ok := staged[l.ProductID]
		if !ok {
			product, ok = s.products[l.ProductID]
		}
		if !ok || product.Stock < l.Quantity {
			return nil, &store.InsufficientStockError{ProductID: l.ProductID}
		}
		product.Stock -= l.Quantity
		staged[l.ProductID] = product
		if err := fail("stock"); err != nil {
			return nil, err
		}
	}

	for id, product := range staged {
		s.products[id] = product
	}
	s.orders[order.ID] = order
	s.lines[order.ID] = lines
	return &order, nil
}

func (s *Store) orderWithLines(o models.Order) models.Order {
	lines := make([]models.OrderLine, len(s.lines[o.ID]))
	for i, l := range s.lines[o.ID] {
		product := s.products[l.ProductID]
		l.Product = &product
		lines[i] = l
	}
	o.Lines = lines
	return o
}

func (s *Store) GetOrderByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = s.orderWithLines(o)
	return &o, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, s.orderWithLines(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListAllOrders(_ context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Order{}
	for _, o := range s.orders {
		o = s.orderWithLines(o)
		if u, ok := s.users[o.UserID]; ok {
			o.User = &models.UserSummary{Name: u.Name, Email: u.Email}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return nil, store.ErrStatusChanged
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	return &o, nil
}

// SetStatus forces an order's status.
func (s *Store) SetStatus(id uuid.UUID, status models.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	o.Status = status
	s.orders[id] = o
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.CreatedAt = time.Now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}
