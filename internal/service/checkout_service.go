package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/fjod/go_cart/order-core/internal/idempotency"
	"github.com/fjod/go_cart/order-core/internal/metrics"
	"github.com/fjod/go_cart/order-core/internal/repository"
	"github.com/fjod/go_cart/order-core/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// detachedCheckoutTimeout bounds a keyed checkout once it no longer follows
// the caller's context.
const detachedCheckoutTimeout = 30 * time.Second

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, orderID int64) error
}

type CheckoutService struct {
	store   repository.Store
	idem    IdempotencyStore
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	sfg     singleflight.Group // one checkout per idempotency key in this process
	timeout time.Duration
}

// NewCheckoutService builds the coordinator. idem and m may be nil.
func NewCheckoutService(store repository.Store, idem IdempotencyStore, m *metrics.Metrics, log logrus.FieldLogger) *CheckoutService {
	return &CheckoutService{
		store:   store,
		idem:    idem,
		metrics: m,
		log:     log,
		timeout: detachedCheckoutTimeout,
	}
}

// CreateOrder converts the user's cart into a pending order. Stock
// decrements, the order, its outbox event and the cart removal commit
// together or not at all.
func (s *CheckoutService) CreateOrder(ctx context.Context, userID int64, shipping domain.ShippingInfo) (int64, error) {
	var order *domain.Order

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.LockCart(ctx, userID)
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		for _, line := range byProduct(cart.Items) {
			if err := tx.ReserveAndDecrement(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		order = domain.BuildOrder(userID, cart.Items, shipping)
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		event := domain.OrderCreatedEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			TotalPrice: order.TotalPrice,
			Status:     order.Status,
			Items:      order.Items,
			CreatedAt:  order.CreatedAt,
		}
		if err := tx.InsertEvent(ctx, strconv.FormatInt(order.ID, 10), domain.EventOrderCreated, event); err != nil {
			return err
		}

		return tx.DeleteCart(ctx, cart.ID)
	})

	entry := logger.FromContext(ctx, s.log).WithField("user_id", userID)
	if err != nil {
		kind := domain.KindOf(err)
		s.metrics.ObserveCheckout(kind.String())
		if kind == domain.KindInternal {
			entry.WithError(err).Error("checkout failed")
		} else {
			entry.WithError(err).Info("checkout rejected")
		}
		return 0, err
	}

	s.metrics.ObserveCheckout("success")
	entry.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"total_price": order.TotalPrice.String(),
		"lines":       len(order.Items),
	}).Info("order created")
	return order.ID, nil
}

type checkoutResult struct {
	orderID  int64
	replayed bool
}

// CreateOrderIdempotent runs CreateOrder at most once per (user, key) while
// the key is remembered. replayed is true when an earlier order id is
// returned instead of a new checkout.
//
// A keyed checkout is shared by every concurrent request with the same key,
// so it runs on a context detached from the caller and bounded by its own
// timeout. A caller that goes away gets ctx.Err() while the checkout keeps
// going; its retry replays the stored order id.
func (s *CheckoutService) CreateOrderIdempotent(ctx context.Context, userID int64, key string, shipping domain.ShippingInfo) (orderID int64, replayed bool, err error) {
	if key == "" || s.idem == nil {
		id, err := s.CreateOrder(ctx, userID, shipping)
		return id, false, err
	}

	scoped := fmt.Sprintf("%d:%s", userID, key)
	ch := s.sfg.DoChan(scoped, func() (interface{}, error) {
		work, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.checkoutOnce(work, scoped, userID, shipping)
	})

	select {
	case <-ctx.Done():
		return 0, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, false, res.Err
		}
		out := res.Val.(checkoutResult)
		return out.orderID, out.replayed, nil
	}
}

func (s *CheckoutService) checkoutOnce(ctx context.Context, scoped string, userID int64, shipping domain.ShippingInfo) (checkoutResult, error) {
	if id, ok := s.lookup(ctx, scoped); ok {
		return checkoutResult{orderID: id, replayed: true}, nil
	}

	id, err := s.CreateOrder(ctx, userID, shipping)
	if errors.Is(err, domain.ErrEmptyCart) {
		// another process may have finished the same request first
		if prev, ok := s.lookup(ctx, scoped); ok {
			return checkoutResult{orderID: prev, replayed: true}, nil
		}
	}
	if err != nil {
		return checkoutResult{}, err
	}

	if errSet := s.idem.Set(ctx, scoped, id); errSet != nil {
		logger.FromContext(ctx, s.log).WithError(errSet).Warn("idempotency set error")
	}
	return checkoutResult{orderID: id}, nil
}

func (s *CheckoutService) lookup(ctx context.Context, key string) (int64, bool) {
	id, err := s.idem.Get(ctx, key)
	if err == nil {
		return id, true
	}
	if !errors.Is(err, idempotency.ErrKeyNotFound) {
		logger.FromContext(ctx, s.log).WithError(err).Warn("idempotency get error")
	}
	return 0, false
}

// byProduct orders lines by product id so concurrent checkouts lock product
// rows in the same order.
func byProduct(lines []domain.CartLine) []domain.CartLine {
	sorted := make([]domain.CartLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}
