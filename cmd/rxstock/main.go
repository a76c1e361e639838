package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/rxstock/rxstock/internal/app"
	"github.com/rxstock/rxstock/internal/audit"
	"github.com/rxstock/rxstock/internal/auth"
	"github.com/rxstock/rxstock/internal/broadcast"
	"github.com/rxstock/rxstock/internal/catalog"
	"github.com/rxstock/rxstock/internal/customers"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/migrations"
	"github.com/rxstock/rxstock/internal/observability"
	"github.com/rxstock/rxstock/internal/platform/cache"
	"github.com/rxstock/rxstock/internal/platform/db"
	"github.com/rxstock/rxstock/internal/purchase"
	"github.com/rxstock/rxstock/internal/sales"
	"github.com/rxstock/rxstock/internal/settings"
	"github.com/rxstock/rxstock/internal/shared"
	"github.com/rxstock/rxstock/internal/suppliers"
	"github.com/rxstock/rxstock/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Run(ctx, pool); err != nil {
		logger.Error("apply schema", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	broadcaster := broadcast.New(redisClient, logger)
	notify := func(reason string) {
		broadcaster.StockChanged(context.Background(), reason)
	}
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, redisClient, cfg.SessionTTL)
	authHandler := auth.NewHandler(logger, authService, cfg.IsProduction())

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryHandler := inventory.NewHandler(logger, inventoryRepo)

	purchaseRepo := purchase.NewRepository(pool)
	purchaseService := purchase.NewService(purchaseRepo, auditLogger, metrics, logger)
	purchaseHandler := purchase.NewHandler(logger, purchaseService, notify)

	settingsRepo := settings.NewRepository(pool)
	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, auditLogger, metrics, logger)
	salesHandler := sales.NewHandler(logger, salesService, settingsRepo, notify)

	suppliersHandler := suppliers.NewHandler(logger, suppliers.NewRepository(pool))
	customersHandler := customers.NewHandler(logger, customers.NewRepository(pool))
	settingsHandler := settings.NewHandler(logger, settingsRepo)

	auditHandler := audit.NewHandler(logger, auditLogger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Pool:             pool,
		Metrics:          metrics,
		AuthHandler:      authHandler,
		CatalogHandler:   catalogHandler,
		InventoryHandler: inventoryHandler,
		PurchaseHandler:  purchaseHandler,
		SalesHandler:     salesHandler,
		SuppliersHandler: suppliersHandler,
		CustomersHandler: customersHandler,
		SettingsHandler:  settingsHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		// Stock-change events fan out to any interested process. The server
		// itself only logs them; dashboards subscribe over the same channel.
		return broadcaster.Listen(groupCtx, func(ev broadcast.Event) {
			logger.Debug("stock changed", slog.String("reason", ev.Reason))
		})
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
