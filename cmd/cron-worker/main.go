package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/assets"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/cron"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/inventory"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/notifications"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/config"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/db"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/metrics"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/migrate"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/redis"
)

const drainTimeout = 30 * time.Second

func main() {
	once := flag.Bool("once", false, "run a single sweep cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	transactionService, err := transactions.NewService(transactions.Params{
		Tx:            dbClient,
		Repo:          transactions.NewRepository(dbClient.DB()),
		Ledger:        inventory.NewLedger(),
		Assets:        assets.NewRegistry(),
		Notifier:      dispatcher,
		Logger:        logg,
		Inventory:     cfg.Inventory,
		PublicBaseURL: cfg.App.PublicBaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	jobs, err := cron.NewTransactionJobs(cron.TransactionJobParams{
		Logger:       logg,
		Transactions: transactionService,
		Metrics:      metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction jobs", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
	})

	if *once {
		_, err := service.RunOnce(ctx)
		drainNotifications(ctx, logg, dispatcher)
		if err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	err = service.Run(ctx)
	drainNotifications(ctx, logg, dispatcher)
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// drainNotifications waits for mail queued during the sweep. Overdue rows are
// already flagged as notified, so an undelivered message is never resent.
func drainNotifications(ctx context.Context, logg *logger.Logger, dispatcher *notifications.Dispatcher) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := dispatcher.Drain(drainCtx); err != nil {
		logg.Error(drainCtx, "pending notifications not delivered", err)
	}
}
