package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/fjod/go_cart/order-core/internal/idempotency"
	"github.com/fjod/go_cart/order-core/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// memState is the whole database of memStore. Transactions work on a clone
// and swap it in on commit.
type memState struct {
	nextID     int64
	products   map[int64]domain.Product
	carts      map[int64]domain.Cart // by cart id, Items unused
	cartByUser map[int64]int64
	items      map[int64]domain.CartItem
	orders     map[int64]domain.Order
	events     []*repository.OutboxEvent
	processed  map[int64]bool
}

func newMemState() *memState {
	return &memState{
		products:   map[int64]domain.Product{},
		carts:      map[int64]domain.Cart{},
		cartByUser: map[int64]int64{},
		items:      map[int64]domain.CartItem{},
		orders:     map[int64]domain.Order{},
		processed:  map[int64]bool{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	c.nextID = s.nextID
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartByUser {
		c.cartByUser[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	c.events = append(c.events, s.events...)
	for k, v := range s.processed {
		c.processed[k] = v
	}
	return c
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

type memStore struct {
	mu    *sync.Mutex
	state **memState
	tx    *memState // non-nil inside WithTx
	// failOn makes the named operation return the error.
	failOn map[string]error
	calls  map[string]int
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	st := newMemState()
	return &memStore{
		mu:     &sync.Mutex{},
		state:  &st,
		failOn: map[string]error{},
		calls:  map[string]int{},
	}
}

// begin returns the state to operate on and a release func.
func (m *memStore) begin(op string) (*memState, func(), error) {
	if m.tx != nil {
		m.calls[op]++
		if err := m.failOn[op]; err != nil {
			return nil, func() {}, err
		}
		return m.tx, func() {}, nil
	}
	m.mu.Lock()
	m.calls[op]++
	if err := m.failOn[op]; err != nil {
		return nil, m.mu.Unlock, err
	}
	return *m.state, m.mu.Unlock, nil
}

func (m *memStore) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *memStore) addProduct(price string, stock int, description string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := *m.state
	id := st.id()
	st.products[id] = domain.Product{
		ID:          id,
		Name:        description,
		Description: description,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		CreatedAt:   time.Now(),
	}
	return id
}

func (m *memStore) setPrice(id int64, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := *m.state
	p := st.products[id]
	p.Price = decimal.RequireFromString(price)
	st.products[id] = p
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*m.state).products[id].Stock
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len((*m.state).events)
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len((*m.state).orders)
}

func (m *memStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if m.tx != nil {
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w: %w", domain.ErrInternal, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls["WithTx"]++
	work := (*m.state).clone()
	txStore := &memStore{mu: m.mu, state: m.state, tx: work, failOn: m.failOn, calls: m.calls}
	if err := fn(txStore); err != nil {
		return err
	}
	*m.state = work
	return nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	st, done, err := m.begin("GetProduct")
	defer done()
	if err != nil {
		return nil, err
	}
	p, ok := st.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (m *memStore) ReserveAndDecrement(_ context.Context, productID int64, quantity int) error {
	st, done, err := m.begin("ReserveAndDecrement")
	defer done()
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	p, ok := st.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < quantity {
		return &domain.InsufficientStockError{ProductID: productID, Requested: quantity}
	}
	p.Stock -= quantity
	st.products[productID] = p
	return nil
}

func (m *memStore) GetOrCreateCart(_ context.Context, userID int64) (int64, error) {
	st, done, err := m.begin("GetOrCreateCart")
	defer done()
	if err != nil {
		return 0, err
	}
	if id, ok := st.cartByUser[userID]; ok {
		return id, nil
	}
	id := st.id()
	st.carts[id] = domain.Cart{ID: id, UserID: userID, CreatedAt: time.Now()}
	st.cartByUser[userID] = id
	return id, nil
}

func (m *memStore) AddItem(_ context.Context, cartID, productID int64, quantity int) (*domain.CartItem, error) {
	st, done, err := m.begin("AddItem")
	defer done()
	if err != nil {
		return nil, err
	}
	if _, ok := st.carts[cartID]; !ok {
		return nil, domain.ErrCartNotFound
	}
	if _, ok := st.products[productID]; !ok {
		return nil, domain.ErrProductNotFound
	}
	item := domain.CartItem{ID: st.id(), CartID: cartID, ProductID: productID, Quantity: quantity, CreatedAt: time.Now()}
	st.items[item.ID] = item
	return &item, nil
}

func (m *memStore) UpdateItemQuantity(_ context.Context, itemID int64, quantity int) (*domain.CartItem, error) {
	st, done, err := m.begin("UpdateItemQuantity")
	defer done()
	if err != nil {
		return nil, err
	}
	item, ok := st.items[itemID]
	if !ok {
		return nil, domain.ErrCartItemNotFound
	}
	item.Quantity = quantity
	st.items[itemID] = item
	return &item, nil
}

func (m *memStore) RemoveItem(_ context.Context, itemID int64) error {
	st, done, err := m.begin("RemoveItem")
	defer done()
	if err != nil {
		return err
	}
	if _, ok := st.items[itemID]; !ok {
		return domain.ErrCartItemNotFound
	}
	delete(st.items, itemID)
	return nil
}

func (m *memStore) GetCart(_ context.Context, userID int64) (*domain.Cart, error) {
	st, done, err := m.begin("GetCart")
	defer done()
	if err != nil {
		return nil, err
	}
	return st.cart(userID)
}

func (m *memStore) LockCart(_ context.Context, userID int64) (*domain.Cart, error) {
	st, done, err := m.begin("LockCart")
	defer done()
	if err != nil {
		return nil, err
	}
	return st.cart(userID)
}

func (s *memState) cart(userID int64) (*domain.Cart, error) {
	id, ok := s.cartByUser[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	c := s.carts[id]
	c.Items = make([]domain.CartLine, 0)
	for _, it := range s.items {
		if it.CartID == id {
			c.Items = append(c.Items, domain.CartLine{CartItem: it, Product: s.products[it.ProductID]})
		}
	}
	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].ID < c.Items[j].ID })
	return &c, nil
}

func (m *memStore) DeleteCart(_ context.Context, cartID int64) error {
	st, done, err := m.begin("DeleteCart")
	defer done()
	if err != nil {
		return err
	}
	c, ok := st.carts[cartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	for id, it := range st.items {
		if it.CartID == cartID {
			delete(st.items, id)
		}
	}
	delete(st.carts, cartID)
	delete(st.cartByUser, c.UserID)
	return nil
}

func (m *memStore) CreateOrder(_ context.Context, order *domain.Order) error {
	st, done, err := m.begin("CreateOrder")
	defer done()
	if err != nil {
		return err
	}
	order.ID = st.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = st.id()
		order.Items[i].OrderID = order.ID
	}
	saved := *order
	saved.Items = append([]domain.OrderItem(nil), order.Items...)
	st.orders[order.ID] = saved
	return nil
}

func (s *memState) view(o domain.Order) *domain.OrderView {
	v := &domain.OrderView{Order: o, Lines: make([]domain.OrderLine, 0, len(o.Items))}
	v.Items = append([]domain.OrderItem{}, o.Items...)
	for _, it := range o.Items {
		line := domain.OrderLine{OrderItem: it}
		if p, ok := s.products[it.ProductID]; ok {
			line.Product = &p
		}
		v.Lines = append(v.Lines, line)
	}
	return v
}

func (m *memStore) GetOrderByID(_ context.Context, id int64) (*domain.OrderView, error) {
	st, done, err := m.begin("GetOrderByID")
	defer done()
	if err != nil {
		return nil, err
	}
	o, ok := st.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return st.view(o), nil
}

func (m *memStore) ListOrdersByUserID(_ context.Context, userID int64) ([]*domain.OrderView, error) {
	st, done, err := m.begin("ListOrdersByUserID")
	defer done()
	if err != nil {
		return nil, err
	}
	var out []*domain.OrderView
	for _, o := range st.orders {
		if o.UserID == userID {
			out = append(out, st.view(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id int64, status domain.OrderStatus) (time.Time, error) {
	st, done, err := m.begin("UpdateOrderStatus")
	defer done()
	if err != nil {
		return time.Time{}, err
	}
	o, ok := st.orders[id]
	if !ok {
		return time.Time{}, domain.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	st.orders[id] = o
	return o.UpdatedAt, nil
}

func (m *memStore) InsertEvent(_ context.Context, aggregateID, eventType string, payload any) error {
	st, done, err := m.begin("InsertEvent")
	defer done()
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	st.events = append(st.events, &repository.OutboxEvent{
		ID:          st.id(),
		EventID:     uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     data,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (m *memStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	st, done, err := m.begin("GetUnprocessedEvents")
	defer done()
	if err != nil {
		return nil, err
	}
	var out []*repository.OutboxEvent
	for _, e := range st.events {
		if !st.processed[e.ID] && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	st, done, err := m.begin("MarkEventAsProcessed")
	defer done()
	if err != nil {
		return err
	}
	st.processed[id] = true
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// mockIdempotency is an in-memory IdempotencyStore.
type mockIdempotency struct {
	mu     sync.Mutex
	keys   map[string]int64
	getErr error
	setErr error
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: map[string]int64{}}
}

func (m *mockIdempotency) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return 0, m.getErr
	}
	id, ok := m.keys[key]
	if !ok {
		return 0, idempotency.ErrKeyNotFound
	}
	return id, nil
}

func (m *mockIdempotency) Set(_ context.Context, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	if _, ok := m.keys[key]; !ok {
		m.keys[key] = orderID
	}
	return nil
}
