package http

import (
	"context"
	"io"
	"sync"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/sirupsen/logrus"
)

type CartServiceMock struct {
	item *domain.CartItem
	view *domain.CartView
	err  error

	mu       sync.Mutex
	lastUser int64
	lastQty  int
	lastItem int64
}

func (c *CartServiceMock) AddItem(_ context.Context, userID, productID int64, quantity int) (*domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUser, c.lastQty = userID, quantity
	if c.err != nil {
		return nil, c.err
	}
	return c.item, nil
}

func (c *CartServiceMock) UpdateItem(_ context.Context, itemID int64, quantity int) (*domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastItem, c.lastQty = itemID, quantity
	if c.err != nil {
		return nil, c.err
	}
	return c.item, nil
}

func (c *CartServiceMock) RemoveItem(_ context.Context, itemID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastItem = itemID
	return c.err
}

func (c *CartServiceMock) GetItems(_ context.Context, userID int64) (*domain.CartView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUser = userID
	if c.err != nil {
		return nil, c.err
	}
	return c.view, nil
}

type CheckoutServiceMock struct {
	orderID  int64
	replayed bool
	err      error

	lastUser     int64
	lastKey      string
	lastShipping domain.ShippingInfo
}

func (c *CheckoutServiceMock) CreateOrderIdempotent(_ context.Context, userID int64, key string, shipping domain.ShippingInfo) (int64, bool, error) {
	c.lastUser, c.lastKey, c.lastShipping = userID, key, shipping
	if c.err != nil {
		return 0, false, c.err
	}
	return c.orderID, c.replayed, nil
}

type OrderServiceMock struct {
	order   *domain.OrderView
	history []*domain.OrderView
	err     error

	lastOrder  int64
	lastStatus domain.OrderStatus
}

func (o *OrderServiceMock) UpdateOrderStatus(_ context.Context, orderID int64, status domain.OrderStatus) error {
	o.lastOrder, o.lastStatus = orderID, status
	if o.err != nil {
		return o.err
	}
	if !status.IsValid() {
		return domain.ErrInvalidStatus
	}
	return nil
}

func (o *OrderServiceMock) GetOrderByID(_ context.Context, orderID int64) (*domain.OrderView, error) {
	o.lastOrder = orderID
	if o.err != nil {
		return nil, o.err
	}
	return o.order, nil
}

func (o *OrderServiceMock) GetOrderHistory(_ context.Context, _ int64) ([]*domain.OrderView, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.history, nil
}

type PingerMock struct {
	err error
}

func (p PingerMock) Ping(context.Context) error {
	return p.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
