package service

import (
	"context"
	"strconv"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/fjod/go_cart/order-core/internal/repository"
	"github.com/fjod/go_cart/order-core/pkg/logger"
	"github.com/sirupsen/logrus"
)

type OrderService struct {
	store repository.Store
	log   logrus.FieldLogger
}

func NewOrderService(store repository.Store, log logrus.FieldLogger) *OrderService {
	return &OrderService{
		store: store,
		log:   log,
	}
}

// UpdateOrderStatus overwrites the order status. Any known status may
// replace any other.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	if !status.IsValid() {
		return domain.ErrInvalidStatus
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		changedAt, err := tx.UpdateOrderStatus(ctx, orderID, status)
		if err != nil {
			return err
		}
		return tx.InsertEvent(ctx, strconv.FormatInt(orderID, 10), domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
			OrderID:   orderID,
			Status:    status,
			ChangedAt: changedAt,
		})
	})
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).WithField("order_id", orderID).Warn("update order status failed")
		return err
	}

	logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("order status updated")
	return nil
}

func (s *OrderService) GetOrderByID(ctx context.Context, orderID int64) (*domain.OrderView, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// GetOrderHistory lists the user's orders, newest first. A user without
// orders gets an empty slice.
func (s *OrderService) GetOrderHistory(ctx context.Context, userID int64) ([]*domain.OrderView, error) {
	orders, err := s.store.ListOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = make([]*domain.OrderView, 0)
	}
	return orders, nil
}
