package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/worker"
	"github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const serviceName = "analytics-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, logger.Fields{
		"env":          cfg.App.Env,
		"instance":     instance.ID(),
		"subscription": cfg.PubSub.AnalyticsSubscription,
		"table":        cfg.BigQuery.SalesTable,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	broker, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer func() { err = multierr.Append(err, broker.Close()) }()

	warehouse, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer func() { err = multierr.Append(err, warehouse.Close()) }()

	subscription, err := broker.AnalyticsSubscription(ctx)
	if err != nil {
		return fmt.Errorf("analytics subscription: %w", err)
	}
	guard, err := idempotency.NewGuard(redisClient, cfg.Outbox.ConsumerIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency guard: %w", err)
	}
	catalog, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	salesWriter, err := writer.New(warehouse, writer.Config{SalesTable: cfg.BigQuery.SalesTable})
	if err != nil {
		return fmt.Errorf("sales writer: %w", err)
	}
	defer func() {
		if flushErr := salesWriter.Flush(context.WithoutCancel(ctx)); flushErr != nil {
			err = multierr.Append(err, fmt.Errorf("flush sale facts: %w", flushErr))
		}
	}()

	routes, err := router.NewRouter(salesWriter, catalog, logg, nil)
	if err != nil {
		return fmt.Errorf("analytics router: %w", err)
	}
	service, err := worker.NewService(subscription, routes, guard, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker ready")
	return service.Run(ctx)
}
