package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mercadito-app/mercadito-backend/internal/cron"
	"github.com/mercadito-app/mercadito-backend/internal/vendors"
	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/db"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/metrics"
	"github.com/mercadito-app/mercadito-backend/pkg/migrate"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox"
	"github.com/mercadito-app/mercadito-backend/pkg/redis"
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
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	runner, err := cron.NewRunner(redisClient, logg, jobMetrics, cfg.Cron.TickInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron runner", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	vendorsRepo := vendors.NewRepository(dbClient.DB())

	jobs := []cron.Job{
		cron.NewOutboxRetentionJob(outboxRepo, cfg.Outbox.PublishedTTL, cfg.Outbox.MaxAttempts, logg, jobMetrics),
		cron.NewStaleLocationJob(vendorsRepo, cfg.Cron.LocationStaleAfter, logg),
	}
	for _, job := range jobs {
		if err := runner.Register(job); err != nil {
			logg.Error(context.Background(), "failed to register cron job", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
	})
	logg.Info(ctx, "starting cron worker")

	runner.Start(ctx)

	logg.Info(ctx, "cron worker shutting down gracefully")
}
