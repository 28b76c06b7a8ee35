package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/order-core/internal/config"
	httpapi "github.com/fjod/go_cart/order-core/internal/http"
	"github.com/fjod/go_cart/order-core/internal/idempotency"
	"github.com/fjod/go_cart/order-core/internal/metrics"
	"github.com/fjod/go_cart/order-core/internal/publisher"
	"github.com/fjod/go_cart/order-core/internal/repository"
	"github.com/fjod/go_cart/order-core/internal/service"
	"github.com/fjod/go_cart/order-core/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"
)

func main() {
	log := logger.New("info", os.Stdout)
	log.Info("order-core starting...")

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log = logger.New(cfg.LogLevel, os.Stdout)

	creds := cfg.Credentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Info("Database migrations completed")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// checkout still works, replays just are not detected
		log.WithError(err).Warn("redis unavailable, idempotency keys will not be honored")
	}

	// incoming traceparent headers become the request span's parent
	otel.SetTextMapPropagator(propagation.TraceContext{})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cartService := service.NewCartService(repo, log)
	checkoutService := service.NewCheckoutService(repo, idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL), m, log)
	orderService := service.NewOrderService(repo, log)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Cart:           cartService,
		Checkout:       checkoutService,
		Orders:         orderService,
		Health:         repo,
		Metrics:        m,
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("order-core listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.PublishingEnabled() {
		writer := publisher.NewKafkaWriter(cfg.OutboxTopic, cfg.KafkaBrokers...)
		defer writer.Close()
		poller := publisher.NewOutboxPoller(repo, writer, m, log)
		g.Go(func() error {
			log.Infof("outbox publisher writing to %s", cfg.OutboxTopic)
			poller.Run(gctx)
			return nil
		})
	} else {
		log.Warn("KAFKA_BROKERS not set, outbox publisher disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("order-core stopped with error")
		return
	}
	log.Info("order-core stopped")
}
