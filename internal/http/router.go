package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/order-core/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Cart           CartService
	Checkout       CheckoutService
	Orders         OrderService
	Health         Pinger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Log            logrus.FieldLogger
}

// NewRouter mounts the API under /api/v1 plus /health and /metrics, wrapped
// in OpenTelemetry server instrumentation.
func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Cart, cfg.RequestTimeout, cfg.Log)
	ordersHandler := NewOrdersHandler(cfg.Checkout, cfg.Orders, cfg.RequestTimeout, cfg.Log)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware(cfg.Metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := cfg.Health.Ping(ctx); err != nil {
			respondJSON(w, r, cfg.Log, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondJSON(w, r, cfg.Log, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler(cfg.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(UserIDMiddleware(cfg.Log))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Patch("/items/{item_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{item_id}", cartHandler.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordersHandler.CreateOrder)
			r.Get("/history", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
			r.Patch("/{order_id}", ordersHandler.UpdateStatus)
		})
	})

	return otelhttp.NewHandler(r, "order-core")
}
