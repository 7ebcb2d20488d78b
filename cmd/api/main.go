package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zipdrop/zipdrop-backend/api/routes"
	"github.com/zipdrop/zipdrop-backend/internal/fulfillment"
	"github.com/zipdrop/zipdrop-backend/internal/inventory"
	"github.com/zipdrop/zipdrop-backend/internal/notifications"
	"github.com/zipdrop/zipdrop-backend/internal/orders"
	"github.com/zipdrop/zipdrop-backend/internal/reconcile"
	"github.com/zipdrop/zipdrop-backend/pkg/config"
	"github.com/zipdrop/zipdrop-backend/pkg/db"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
	"github.com/zipdrop/zipdrop-backend/pkg/metrics"
	"github.com/zipdrop/zipdrop-backend/pkg/migrate"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox/idempotency"
	"github.com/zipdrop/zipdrop-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis client", err)
		}
	}()

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, inventory.NewLedger(), cfg.Orders.Mode())
	if err != nil {
		logg.Error(context.Background(), "failed to build orders service", err)
		os.Exit(1)
	}
	ordersSvc = orders.NewInstrumentedService(ordersSvc, orderMetrics, cfg.Orders.Mode())

	fulfillmentSvc, err := fulfillment.NewService(ordersSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to build fulfillment service", err)
		os.Exit(1)
	}

	reconcileSvc, err := reconcile.NewService(ordersRepo, dbClient, ordersSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build reconcile service", err)
		os.Exit(1)
	}
	reconcileSvc = reconcileSvc.WithMetrics(orderMetrics)

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to build notifications service", err)
		os.Exit(1)
	}

	webhookGuard, err := idempotency.NewWebhookGuard(redisClient, "payments", cfg.Payments.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build webhook guard", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		ordersSvc,
		fulfillmentSvc,
		notificationsSvc,
		reconcileSvc,
		webhookGuard,
	)

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "api",
		"port":        cfg.App.Port,
	})

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error shutting down server", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}
