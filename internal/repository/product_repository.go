package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fjod/go_cart/order-core/internal/domain"
)

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price, stock, created_at
		FROM products
		WHERE id = $1
	`

	p := &domain.Product{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, mapError("query product", err)
	}
	return p, nil
}

func (r *Repository) ReserveAndDecrement(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		productID, quantity)
	if err != nil {
		return mapError("decrement stock", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return mapError("decrement stock", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	err = r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if err != nil {
		return mapError("check product", err)
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return &domain.InsufficientStockError{ProductID: productID, Requested: quantity}
}
