package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutService interface {
	CreateOrderIdempotent(ctx context.Context, userID int64, key string, shipping domain.ShippingInfo) (int64, bool, error)
}

type OrderService interface {
	UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error
	GetOrderByID(ctx context.Context, orderID int64) (*domain.OrderView, error)
	GetOrderHistory(ctx context.Context, userID int64) ([]*domain.OrderView, error)
}

type OrdersHandler struct {
	checkout CheckoutService
	orders   OrderService
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewOrdersHandler(checkout CheckoutService, orders OrderService, timeout time.Duration, log logrus.FieldLogger) *OrdersHandler {
	return &OrdersHandler{
		checkout: checkout,
		orders:   orders,
		timeout:  timeout,
		log:      log,
	}
}

type CreateOrderRequestDTO struct {
	Address       string `json:"address"`
	ContactNumber string `json:"contact_number"`
}

type CreateOrderResponseDTO struct {
	OrderID  int64 `json:"order_id"`
	Replayed bool  `json:"replayed,omitempty"`
}

// OrderItemDTO is the item snapshot taken at checkout. Product is the live
// catalog row and is absent once the product is gone.
type OrderItemDTO struct {
	ProductID          int64           `json:"product_id"`
	Quantity           int             `json:"quantity"`
	Price              decimal.Decimal `json:"price"`
	ProductDescription string          `json:"product_description"`
	Product            *domain.Product `json:"product,omitempty"`
}

type OrderResponseDTO struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"user_id"`
	TotalPrice    decimal.Decimal    `json:"total_price"`
	Status        domain.OrderStatus `json:"status"`
	Address       string             `json:"address"`
	ContactNumber string             `json:"contact_number"`
	Items         []OrderItemDTO     `json:"items"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func convertOrder(o *domain.OrderView) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, OrderItemDTO{
			ProductID:          line.ProductID,
			Quantity:           line.Quantity,
			Price:              line.Price,
			ProductDescription: line.ProductDescription,
			Product:            line.Product,
		})
	}

	return OrderResponseDTO{
		ID:            o.ID,
		UserID:        o.UserID,
		TotalPrice:    o.TotalPrice,
		Status:        o.Status,
		Address:       o.Address,
		ContactNumber: o.ContactNumber,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, r, h.log, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shipping := domain.ShippingInfo{
		Address:       strings.TrimSpace(req.Address),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
	}
	if shipping.Address == "" {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_address", "address is required")
		return
	}
	if shipping.ContactNumber == "" {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_contact_number", "contact_number is required")
		return
	}
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))

	orderID, replayed, err := h.checkout.CreateOrderIdempotent(ctx, userID, key, shipping)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	respondJSON(w, r, h.log, status, CreateOrderResponseDTO{OrderID: orderID, Replayed: replayed})
}

// GET /api/v1/orders/history
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, r, h.log, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.GetOrderHistory(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}

	respondJSON(w, r, h.log, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := pathID(w, r, h.log, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, h.log, http.StatusOK, convertOrder(order))
}

// PATCH /api/v1/orders/{order_id}
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := pathID(w, r, h.log, "order_id")
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if err := h.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
