package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zipdrop/zipdrop-backend/internal/cron"
	"github.com/zipdrop/zipdrop-backend/internal/inventory"
	"github.com/zipdrop/zipdrop-backend/internal/orders"
	"github.com/zipdrop/zipdrop-backend/internal/stats"
	"github.com/zipdrop/zipdrop-backend/pkg/config"
	"github.com/zipdrop/zipdrop-backend/pkg/db"
	"github.com/zipdrop/zipdrop-backend/pkg/logger"
	"github.com/zipdrop/zipdrop-backend/pkg/metrics"
	"github.com/zipdrop/zipdrop-backend/pkg/migrate"
	"github.com/zipdrop/zipdrop-backend/pkg/outbox"
	"github.com/zipdrop/zipdrop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	statsSvc, err := stats.NewService(stats.NewRepository(dbClient.DB()), cfg.Cron.StatsWindow, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build stats service", err)
		os.Exit(1)
	}

	statsJob, err := cron.NewStatsRollupJob(logg, statsSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to build stats rollup job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{
		Logger:     logg,
		Orders:     ordersSvc,
		PendingTTL: cfg.Orders.PendingTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build order expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron lock", err)
		os.Exit(1)
	}

	cronSvc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(statsJob, expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "cron-worker",
	})

	logg.Info(ctx, "starting cron worker")
	if err := cronSvc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}
