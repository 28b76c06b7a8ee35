package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fjod/go_cart/order-core/internal/domain"
)

// GetOrCreateCart returns the user's cart id, creating the cart on first use.
// The upsert keeps one cart per user under concurrent first adds.
func (r *Repository) GetOrCreateCart(ctx context.Context, userID int64) (int64, error) {
	query := `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id
	`

	var id int64
	if err := r.q.QueryRowContext(ctx, query, userID).Scan(&id); err != nil {
		return 0, mapError("upsert cart", err)
	}
	return id, nil
}

func (r *Repository) AddItem(ctx context.Context, cartID, productID int64, quantity int) (*domain.CartItem, error) {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id, cart_id, product_id, quantity, created_at
	`

	item := &domain.CartItem{}
	err := r.q.QueryRowContext(ctx, query, cartID, productID, quantity).Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, mapError("insert cart item", err)
	}
	return item, nil
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) (*domain.CartItem, error) {
	query := `
		UPDATE cart_items SET quantity = $2
		WHERE id = $1
		RETURNING id, cart_id, product_id, quantity, created_at
	`

	item := &domain.CartItem{}
	err := r.q.QueryRowContext(ctx, query, itemID, quantity).Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartItemNotFound
	}
	if err != nil {
		return nil, mapError("update cart item", err)
	}
	return item, nil
}

func (r *Repository) RemoveItem(ctx context.Context, itemID int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return mapError("delete cart item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError("delete cart item", err)
	}
	if affected == 0 {
		return domain.ErrCartItemNotFound
	}
	return nil
}

func (r *Repository) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	return r.loadCart(ctx, userID, false)
}

func (r *Repository) LockCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	return r.loadCart(ctx, userID, true)
}

func (r *Repository) loadCart(ctx context.Context, userID int64, forUpdate bool) (*domain.Cart, error) {
	query := `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	cart := &domain.Cart{}
	err := r.q.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, mapError("query cart", err)
	}

	itemsQuery := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at,
		       p.id, p.name, p.description, p.price, p.stock, p.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`

	rows, err := r.q.QueryContext(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, mapError("query cart items", err)
	}
	defer rows.Close()

	cart.Items = make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ID,
			&line.CartID,
			&line.ProductID,
			&line.Quantity,
			&line.CartItem.CreatedAt,
			&line.Product.ID,
			&line.Product.Name,
			&line.Product.Description,
			&line.Product.Price,
			&line.Product.Stock,
			&line.Product.CreatedAt,
		); err != nil {
			return nil, mapError("scan cart item", err)
		}
		cart.Items = append(cart.Items, line)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError("cart item rows", err)
	}

	return cart, nil
}

// DeleteCart removes the cart's items and then the cart itself.
func (r *Repository) DeleteCart(ctx context.Context, cartID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return mapError("delete cart items", err)
	}

	res, err := r.q.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return mapError("delete cart", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapError("delete cart", err)
	}
	if affected == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}
