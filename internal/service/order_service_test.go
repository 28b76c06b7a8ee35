package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeOrder(t *testing.T, f *checkoutFixture, userID int64) int64 {
	t.Helper()
	ctx := context.Background()
	pid := f.store.addProduct("2", 10, "thing")
	_, err := f.carts.AddItem(ctx, userID, pid, 1)
	require.NoError(t, err)
	id, err := f.checkout.CreateOrder(ctx, userID, shipping)
	require.NoError(t, err)
	return id
}

func TestUpdateOrderStatus_Unconstrained(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	id := placeOrder(t, f, 1)

	for _, status := range []domain.OrderStatus{
		domain.OrderStatusCompleted,
		domain.OrderStatusPending, // completed -> pending is allowed
		domain.OrderStatusCancelled,
		domain.OrderStatusCompleted,
	} {
		require.NoError(t, f.orders.UpdateOrderStatus(ctx, id, status))
		order, err := f.orders.GetOrderByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, order.Status)
	}
}

func TestUpdateOrderStatus_Errors(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	id := placeOrder(t, f, 1)
	before := f.store.eventCount()

	err := f.orders.UpdateOrderStatus(ctx, 9999, domain.OrderStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	err = f.orders.UpdateOrderStatus(ctx, id, domain.OrderStatus("teleported"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	assert.Equal(t, before, f.store.eventCount(), "failed updates emit nothing")
}

func TestUpdateOrderStatus_WritesEvent(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	id := placeOrder(t, f, 1)

	require.NoError(t, f.orders.UpdateOrderStatus(ctx, id, domain.OrderStatusCancelled))

	events, err := f.store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	last := events[1]
	assert.Equal(t, domain.EventOrderStatusChanged, last.EventType)

	var payload domain.OrderStatusChangedEvent
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, id, payload.OrderID)
	assert.Equal(t, domain.OrderStatusCancelled, payload.Status)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	f := newCheckoutFixture()

	order, err := f.orders.GetOrderByID(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Nil(t, order)
}

func TestGetOrderHistory_EmptyIsNotAnError(t *testing.T) {
	f := newCheckoutFixture()

	orders, err := f.orders.GetOrderHistory(context.Background(), 77)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestGetOrderHistory_NewestFirstAndIdempotent(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	first := placeOrder(t, f, 5)
	second := placeOrder(t, f, 5)
	placeOrder(t, f, 6)

	orders, err := f.orders.GetOrderHistory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second, orders[0].ID)
	assert.Equal(t, first, orders[1].ID)

	again, err := f.orders.GetOrderHistory(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, orders, again)

	byID, err := f.orders.GetOrderByID(ctx, first)
	require.NoError(t, err)
	byIDAgain, err := f.orders.GetOrderByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, byID, byIDAgain)
}
