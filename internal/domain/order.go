package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is a snapshot of a cart line taken at checkout. Price and
// description are never refreshed from the product afterwards.
type OrderItem struct {
	ID                 int64           `json:"id"`
	OrderID            int64           `json:"order_id"`
	ProductID          int64           `json:"product_id"`
	Quantity           int             `json:"quantity"`
	Price              decimal.Decimal `json:"price"`
	ProductDescription string          `json:"product_description"`
}

type Order struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        OrderStatus     `json:"status"`
	Address       string          `json:"address"`
	ContactNumber string          `json:"contact_number"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderLine pairs a snapshot item with the current product row, if it still
// exists. Product is for display only.
type OrderLine struct {
	OrderItem
	Product *Product `json:"product,omitempty"`
}

type OrderView struct {
	Order
	Lines []OrderLine `json:"lines"`
}

type ShippingInfo struct {
	Address       string `json:"address"`
	ContactNumber string `json:"contact_number"`
}

// BuildOrder turns a cart snapshot into an unsaved pending order. Prices and
// descriptions are copied from the products loaded with the cart.
func BuildOrder(userID int64, lines []CartLine, shipping ShippingInfo) *Order {
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItem{
			ProductID:          l.ProductID,
			Quantity:           l.Quantity,
			Price:              l.Product.Price,
			ProductDescription: l.Product.Description,
		})
	}

	return &Order{
		UserID:        userID,
		TotalPrice:    CartTotal(lines),
		Status:        OrderStatusPending,
		Address:       shipping.Address,
		ContactNumber: shipping.ContactNumber,
		Items:         items,
	}
}

// ItemsTotal recomputes the total from the snapshot items.
func (o *Order) ItemsTotal() decimal.Decimal {
	priced := make([]PricedQuantity, 0, len(o.Items))
	for _, it := range o.Items {
		priced = append(priced, PricedQuantity{Price: it.Price, Quantity: it.Quantity})
	}
	return Total(priced)
}
