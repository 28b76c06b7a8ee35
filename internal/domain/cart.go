package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Items     []CartLine `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

type CartItem struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLine is a cart item joined with the live product it references.
type CartLine struct {
	CartItem
	Product Product `json:"product"`
}

// CartView is what a user sees of their cart: every line plus the total at
// current prices.
type CartView struct {
	Items      []CartLine      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) View() *CartView {
	items := c.Items
	if items == nil {
		items = make([]CartLine, 0)
	}
	return &CartView{
		Items:      items,
		TotalPrice: CartTotal(items),
	}
}
