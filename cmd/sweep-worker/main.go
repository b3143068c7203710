package main

import (
	"context"
	stdErrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/karimndoye/sunumarket-backend/internal/cron"
	"github.com/karimndoye/sunumarket-backend/internal/fulfillment"
	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/internal/gateways/gatewayb"
	"github.com/karimndoye/sunumarket-backend/internal/ledger"
	"github.com/karimndoye/sunumarket-backend/internal/orders"
	"github.com/karimndoye/sunumarket-backend/internal/reconcile"
	"github.com/karimndoye/sunumarket-backend/internal/sweep"
	"github.com/karimndoye/sunumarket-backend/internal/transactions"
	"github.com/karimndoye/sunumarket-backend/pkg/config"
	"github.com/karimndoye/sunumarket-backend/pkg/db"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
	"github.com/karimndoye/sunumarket-backend/pkg/metrics"
	"github.com/karimndoye/sunumarket-backend/pkg/pubsub"
	"github.com/karimndoye/sunumarket-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	bootLogger := logger.New(logger.Options{ServiceName: "sunumarket-sweep-worker", Level: zerolog.InfoLevel})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error(ctx, "loading configuration", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "sunumarket-sweep-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(ctx, cfg, logg); err != nil && !stdErrors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweep worker terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer pubsubClient.Close()

	dispatcher, err := fulfillment.NewPubSubDispatcher(fulfillment.PubSubDispatcherParams{
		Client:         pubsubClient,
		Logger:         logg,
		PublishTimeout: cfg.PubSub.PublishTimeout,
	})
	if err != nil {
		return err
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:           ledger.NewRepo(dbClient.DB()),
		Logger:         logg,
		CommissionRate: cfg.Payments.CommissionRateDecimal(),
	})
	if err != nil {
		return err
	}

	transactionRepo := transactions.NewRepo(dbClient.DB())

	reconciler, err := reconcile.NewService(reconcile.ServiceParams{
		DB:           dbClient,
		Transactions: transactionRepo,
		Orders:       orders.NewRepo(dbClient.DB()),
		Ledger:       ledgerService,
		Dispatcher:   dispatcher,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	registry := gateways.NewRegistry()
	if cfg.GatewayB.Enabled {
		pollClient, err := gatewayb.NewClient(gatewayb.ClientParams{
			APIKey:  cfg.GatewayB.APIKey,
			BaseURL: cfg.GatewayB.BaseURL,
			Timeout: cfg.GatewayB.Timeout,
		})
		if err != nil {
			return err
		}
		registry.RegisterPoller(pollClient)
	}

	sweepMetrics := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)

	sweepJob, err := sweep.NewJob(sweep.JobParams{
		Transactions: transactionRepo,
		Registry:     registry,
		Reconciler:   reconciler,
		Logger:       logg,
		Metrics:      sweepMetrics,
		Lookback:     cfg.Payments.PollLookback,
		ItemTimeout:  cfg.Payments.PollItemTimeout,
	})
	if err != nil {
		return err
	}

	jobRegistry := cron.NewRegistry()
	jobRegistry.Add(sweepJob)

	cronService, err := cron.NewService(cron.ServiceParams{
		Registry: jobRegistry,
		Locker:   cron.NewLocker(redisClient),
		Logger:   logg,
		Metrics:  sweepMetrics,
		Interval: cfg.Payments.SweepInterval,
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	return cronService.Start(ctx)
}
