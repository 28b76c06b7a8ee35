package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CheckAvailable reports whether quantity units can be put in a cart.
func (p *Product) CheckAvailable(quantity int) error {
	if p.Stock <= 0 {
		return ErrOutOfStock
	}
	if quantity > p.Stock {
		return &InsufficientStockError{ProductID: p.ID, Requested: quantity}
	}
	return nil
}
