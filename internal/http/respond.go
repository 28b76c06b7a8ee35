package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/order-core/internal/domain"
	"github.com/fjod/go_cart/order-core/pkg/logger"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context(), log).WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, status int, code, message string) {
	respondJSON(w, r, log, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts a service error to an HTTP response using its
// error kind. Internal errors are logged and not echoed to the client.
func handleServiceError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	var httpStatus int
	kind := domain.KindOf(err)

	switch kind {
	case domain.KindNotFound:
		httpStatus = http.StatusNotFound
	case domain.KindBadRequest:
		httpStatus = http.StatusBadRequest
	case domain.KindInsufficientStock, domain.KindOutOfStock, domain.KindConflict:
		httpStatus = http.StatusConflict
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			respondError(w, r, log, http.StatusGatewayTimeout, "timeout", "request timed out")
			return
		}
		logger.FromContext(r.Context(), log).WithError(err).Error("request failed")
		respondError(w, r, log, http.StatusInternalServerError, kind.String(), "internal server error")
		return
	}

	resp := ErrorResponse{Error: err.Error(), Code: kind.String()}
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = fmt.Sprintf("product_id=%d", stockErr.ProductID)
	}
	respondJSON(w, r, log, httpStatus, resp)
}
