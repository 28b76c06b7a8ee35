package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// CreateOrder inserts the order and its item snapshots and fills in the
// generated ids and timestamps.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (user_id, total_price, status, address, contact_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		order.UserID,
		order.TotalPrice,
		order.Status,
		order.Address,
		order.ContactNumber,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return mapError("insert order", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, quantity, price, product_description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	for i := range order.Items {
		it := &order.Items[i]
		it.OrderID = order.ID
		if err := r.q.QueryRowContext(ctx, itemQuery,
			it.OrderID,
			it.ProductID,
			it.Quantity,
			it.Price,
			it.ProductDescription,
		).Scan(&it.ID); err != nil {
			return mapError("insert order item", err)
		}
	}

	return nil
}

const orderColumns = `id, user_id, total_price, status, address, contact_number, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order) error {
	return row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalPrice,
		&o.Status,
		&o.Address,
		&o.ContactNumber,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

func (r *Repository) GetOrderByID(ctx context.Context, id int64) (*domain.OrderView, error) {
	view := &domain.OrderView{}
	err := scanOrder(r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), &view.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, mapError("query order by id", err)
	}

	lines, err := r.loadOrderLines(ctx, []int64{view.ID})
	if err != nil {
		return nil, err
	}
	attachLines(view, lines[view.ID])
	return view, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.OrderView, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, mapError("query orders by user id", err)
	}
	defer rows.Close()

	orders := make([]*domain.OrderView, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		view := &domain.OrderView{}
		if err := scanOrder(rows, &view.Order); err != nil {
			return nil, mapError("scan order row", err)
		}
		orders = append(orders, view)
		ids = append(ids, view.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("order rows", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	lines, err := r.loadOrderLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		attachLines(o, lines[o.ID])
	}
	return orders, nil
}

// loadOrderLines fetches the item snapshots of the given orders together with
// whatever the live product row looks like now.
func (r *Repository) loadOrderLines(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderLine, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.product_description,
		       p.id, p.name, p.description, p.price, p.stock, p.created_at
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, mapError("query order items", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var (
			line       domain.OrderLine
			pID        sql.NullInt64
			pName      sql.NullString
			pDesc      sql.NullString
			pPrice     decimal.NullDecimal
			pStock     sql.NullInt64
			pCreatedAt sql.NullTime
		)
		if err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Quantity,
			&line.Price,
			&line.ProductDescription,
			&pID,
			&pName,
			&pDesc,
			&pPrice,
			&pStock,
			&pCreatedAt,
		); err != nil {
			return nil, mapError("scan order item", err)
		}
		if pID.Valid {
			line.Product = &domain.Product{
				ID:          pID.Int64,
				Name:        pName.String,
				Description: pDesc.String,
				Price:       pPrice.Decimal,
				Stock:       int(pStock.Int64),
				CreatedAt:   pCreatedAt.Time,
			}
		}
		out[line.OrderID] = append(out[line.OrderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("order item rows", err)
	}
	return out, nil
}

func attachLines(view *domain.OrderView, lines []domain.OrderLine) {
	if lines == nil {
		lines = make([]domain.OrderLine, 0)
	}
	view.Lines = lines
	view.Items = make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		view.Items = append(view.Items, l.OrderItem)
	}
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (time.Time, error) {
	var updatedAt time.Time
	err := r.q.QueryRowContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		id, status,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return time.Time{}, mapError("update order status", err)
	}
	return updatedAt, nil
}
