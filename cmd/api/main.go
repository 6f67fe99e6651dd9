package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/mercadito-app/mercadito-backend/api/routes"
	"github.com/mercadito-app/mercadito-backend/internal/addresses"
	internalauth "github.com/mercadito-app/mercadito-backend/internal/auth"
	"github.com/mercadito-app/mercadito-backend/internal/inventory"
	"github.com/mercadito-app/mercadito-backend/internal/orders"
	"github.com/mercadito-app/mercadito-backend/internal/products"
	"github.com/mercadito-app/mercadito-backend/internal/reviews"
	"github.com/mercadito-app/mercadito-backend/internal/vendors"
	"github.com/mercadito-app/mercadito-backend/pkg/auth/session"
	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/db"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/migrate"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox"
	"github.com/mercadito-app/mercadito-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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
		if err := multierr.Append(dbClient.Close(), redisClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	vendorsService, err := vendors.NewService(vendors.NewRepository(gormDB), dbClient, outboxService)
	if err != nil {
		fatal(logg, "failed to create vendors service", err)
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(gormDB))
	if err != nil {
		fatal(logg, "failed to create inventory service", err)
	}
	productsService, err := products.NewService(products.NewRepository(gormDB), dbClient, outboxService)
	if err != nil {
		fatal(logg, "failed to create products service", err)
	}
	reviewsService, err := reviews.NewService(reviews.NewRepository(gormDB))
	if err != nil {
		fatal(logg, "failed to create reviews service", err)
	}
	ordersService, err := orders.NewService(orders.NewRepository(gormDB), inventoryService, dbClient, outboxService)
	if err != nil {
		fatal(logg, "failed to create orders service", err)
	}
	addressesService, err := addresses.NewService(addresses.NewRepository(gormDB), dbClient)
	if err != nil {
		fatal(logg, "failed to create addresses service", err)
	}
	authService, err := internalauth.NewService(
		internalauth.NewRepository(gormDB),
		dbClient,
		sessionManager,
		vendorsService,
		cfg.JWT,
		cfg.Password,
	)
	if err != nil {
		fatal(logg, "failed to create auth service", err)
	}

	router := routes.NewRouter(routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Sessions:  sessionManager,
		Auth:      authService,
		Vendors:   vendorsService,
		Products:  productsService,
		Inventory: inventoryService,
		Orders:    ordersService,
		Reviews:   reviewsService,
		Addresses: addressesService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
