package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the repository and service layers
// wraps exactly one of these.
var (
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOutOfStock        = errors.New("out of stock")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrCartNotFound     = fmt.Errorf("cart %w", ErrNotFound)
	ErrCartItemNotFound = fmt.Errorf("cart item %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)

	ErrEmptyCart       = fmt.Errorf("%w: cart is empty, nothing to checkout", ErrBadRequest)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", ErrBadRequest)
	ErrInvalidStatus   = fmt.Errorf("%w: unknown order status", ErrBadRequest)
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindInsufficientStock
	KindOutOfStock
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindOutOfStock:
		return "out_of_stock"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// KindOf resolves err to its error kind. Errors that wrap none of the kinds
// are internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrOutOfStock):
		return KindOutOfStock
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// InsufficientStockError names the product whose stock could not cover a request.
type InsufficientStockError struct {
	ProductID int64
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d", e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
