package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/google/uuid"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type OutboxEvent struct {
	ID          int64
	EventID     uuid.UUID
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type ProductRepository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	// ReserveAndDecrement takes quantity units from stock in one conditional
	// update. It never leaves stock negative.
	ReserveAndDecrement(ctx context.Context, productID int64, quantity int) error
}

type CartRepository interface {
	GetOrCreateCart(ctx context.Context, userID int64) (int64, error)
	AddItem(ctx context.Context, cartID, productID int64, quantity int) (*domain.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, itemID int64) error
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	// LockCart is GetCart with the cart row locked until the surrounding
	// transaction ends.
	LockCart(ctx context.Context, userID int64) (*domain.Cart, error)
	DeleteCart(ctx context.Context, cartID int64) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id int64) (*domain.OrderView, error)
	ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.OrderView, error)
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (time.Time, error)
}

type OutboxRepository interface {
	InsertEvent(ctx context.Context, aggregateID, eventType string, payload any) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type Store interface {
	ProductRepository
	CartRepository
	OrderRepository
	OutboxRepository
	// WithTx runs fn against a Store bound to one database transaction.
	// The transaction commits only if fn returns nil.
	WithTx(ctx context.Context, fn func(Store) error) error
}
