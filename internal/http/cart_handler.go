package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const maxQuantity = 99

type CartService interface {
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, itemID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, itemID int64) error
	GetItems(ctx context.Context, userID int64) (*domain.CartView, error)
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewCartHandler(cart CartService, timeout time.Duration, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, r, h.log, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	item, err := h.cart.AddItem(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, h.log, http.StatusCreated, item)
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, r, h.log, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	view, err := h.cart.GetItems(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, h.log, http.StatusOK, view)
}

// PATCH /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, ok := pathID(w, r, h.log, "item_id")
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, r, h.log, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	item, err := h.cart.UpdateItem(ctx, itemID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, h.log, http.StatusOK, item)
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, ok := pathID(w, r, h.log, "item_id")
	if !ok {
		return
	}

	if err := h.cart.RemoveItem(ctx, itemID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID parses a positive integer URL parameter, writing a 400 when it is
// not one.
func pathID(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, log, http.StatusBadRequest, "invalid_"+name, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
