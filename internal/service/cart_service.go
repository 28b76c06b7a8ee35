package service

import (
	"context"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/fjod/go_cart/order-core/internal/repository"
	"github.com/fjod/go_cart/order-core/pkg/logger"
	"github.com/sirupsen/logrus"
)

type CartService struct {
	store repository.Store
	log   logrus.FieldLogger
}

func NewCartService(store repository.Store, log logrus.FieldLogger) *CartService {
	return &CartService{
		store: store,
		log:   log,
	}
}

// AddItem puts quantity units of a product in the user's cart, creating the
// cart on first use. Every call adds a separate line.
func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := product.CheckAvailable(quantity); err != nil {
		logger.FromContext(ctx, s.log).WithFields(logrus.Fields{
			"user_id":    userID,
			"product_id": productID,
			"quantity":   quantity,
			"stock":      product.Stock,
		}).WithError(err).Info("add to cart rejected")
		return nil, err
	}

	var item *domain.CartItem
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		cartID, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		item, err = tx.AddItem(ctx, cartID, productID, quantity)
		return err
	})
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).Warn("repo add item error")
		return nil, err
	}

	return item, nil
}

// UpdateItem overwrites the quantity of a cart line. Stock is not rechecked
// here; checkout enforces it.
func (s *CartService) UpdateItem(ctx context.Context, itemID int64, quantity int) (*domain.CartItem, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	item, err := s.store.UpdateItemQuantity(ctx, itemID, quantity)
	if err != nil {
		logger.FromContext(ctx, s.log).WithError(err).WithField("item_id", itemID).Warn("repo update item quantity error")
		return nil, err
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, itemID int64) error {
	if err := s.store.RemoveItem(ctx, itemID); err != nil {
		logger.FromContext(ctx, s.log).WithError(err).WithField("item_id", itemID).Warn("repo remove item error")
		return err
	}
	return nil
}

// GetItems returns the user's cart lines joined with current products and
// the total at current prices.
func (s *CartService) GetItems(ctx context.Context, userID int64) (*domain.CartView, error) {
	cart, err := s.store.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cart.View(), nil
}
