package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/controllers"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/api/routes"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/approvals"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/assets"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/bills"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/catalog"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/componentrequests"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/inventory"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/notifications"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/metrics"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/migrate"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/redis"
	blob "github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/storage/s3"
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
		Env:         cfg.App.Env,
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	readiness := []controllers.Dependency{
		{Name: "db", Pinger: dbClient},
		{Name: "redis", Pinger: redisClient},
	}

	sender, err := notifications.NewSender(cfg.Mail, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail sender", err)
		os.Exit(1)
	}
	dispatcher, err := notifications.NewDispatcher(sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail dispatcher", err)
		os.Exit(1)
	}

	ledger := inventory.NewLedger()
	registry := assets.NewRegistry()

	transactionService, err := transactions.NewService(transactions.Params{
		Tx:            dbClient,
		Repo:          transactions.NewRepository(dbClient.DB()),
		Ledger:        ledger,
		Assets:        registry,
		Notifier:      dispatcher,
		Logger:        logg,
		Inventory:     cfg.Inventory,
		PublicBaseURL: cfg.App.PublicBaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	approvalService, err := approvals.NewService(transactionService)
	if err != nil {
		logg.Error(context.Background(), "failed to create approval service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.Params{
		Tx:     dbClient,
		DB:     dbClient.DB(),
		Repo:   catalog.NewRepository(dbClient.DB()),
		Ledger: ledger,
		Assets: registry,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	componentRequestService, err := componentrequests.NewService(dbClient, componentrequests.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create component request service", err)
		os.Exit(1)
	}

	var billService bills.Service
	if cfg.S3.Enabled() {
		storage, err := blob.NewClient(context.Background(), cfg.S3, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bill storage", err)
			os.Exit(1)
		}
		readiness = append(readiness, controllers.Dependency{Name: "s3", Pinger: storage})
		billService, err = bills.NewService(bills.NewRepository(dbClient.DB()), storage, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create bill service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "bill storage disabled, MULTILAB_S3_BUCKET is empty")
	}

	handler := routes.NewRouter(routes.Params{
		Config:            cfg,
		Logger:            logg,
		Readiness:         readiness,
		Registry:          metrics.NewRegistry(),
		Limiter:           redisClient,
		Idempotency:       redisClient,
		Catalog:           catalogService,
		Transactions:      transactionService,
		Approvals:         approvalService,
		ComponentRequests: componentRequestService,
		Bills:             billService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "api server shutdown failed", err)
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "pending notifications not delivered", err)
	}
	logg.Info(shutdownCtx, "api server shutting down gracefully")
}
