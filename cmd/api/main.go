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

	"github.com/karimndoye/sunumarket-backend/api/controllers"
	"github.com/karimndoye/sunumarket-backend/api/controllers/webhooks"
	"github.com/karimndoye/sunumarket-backend/api/routes"
	"github.com/karimndoye/sunumarket-backend/internal/fulfillment"
	"github.com/karimndoye/sunumarket-backend/internal/gateways/gatewaya"
	"github.com/karimndoye/sunumarket-backend/internal/gateways/gatewayb"
	"github.com/karimndoye/sunumarket-backend/internal/ledger"
	"github.com/karimndoye/sunumarket-backend/internal/orders"
	"github.com/karimndoye/sunumarket-backend/internal/reconcile"
	"github.com/karimndoye/sunumarket-backend/internal/transactions"
	"github.com/karimndoye/sunumarket-backend/pkg/config"
	"github.com/karimndoye/sunumarket-backend/pkg/db"
	"github.com/karimndoye/sunumarket-backend/pkg/logger"
	"github.com/karimndoye/sunumarket-backend/pkg/migrate"
	"github.com/karimndoye/sunumarket-backend/pkg/pubsub"
	"github.com/karimndoye/sunumarket-backend/pkg/redis"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	bootLogger := logger.New(logger.Options{ServiceName: "sunumarket-api", Level: zerolog.InfoLevel})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error(ctx, "loading configuration", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "sunumarket-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api terminated", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

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

	reconciler, err := reconcile.NewService(reconcile.ServiceParams{
		DB:           dbClient,
		Transactions: transactions.NewRepo(dbClient.DB()),
		Orders:       orders.NewRepo(dbClient.DB()),
		Ledger:       ledgerService,
		Dispatcher:   dispatcher,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	deps := routes.Deps{
		Logger: logg,
		Health: controllers.NewHealthController(logg, map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		}),
	}

	if cfg.GatewayA.Enabled {
		deps.GatewayA, err = webhooks.NewGatewayAController(webhooks.GatewayAParams{
			Adapter:       gatewaya.NewAdapter(),
			Reconciler:    reconciler,
			Logger:        logg,
			WebhookSecret: cfg.GatewayA.WebhookSecret,
		})
		if err != nil {
			return err
		}
	}
	if cfg.GatewayB.Enabled {
		deps.GatewayB, err = webhooks.NewGatewayBController(webhooks.GatewayBParams{
			Adapter:    gatewayb.NewAdapter(),
			Reconciler: reconciler,
			Logger:     logg,
		})
		if err != nil {
			return err
		}
	}
	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "api listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logg.Info(shutdownCtx, "api shutting down")
	return server.Shutdown(shutdownCtx)
}
