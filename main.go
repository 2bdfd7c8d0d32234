// package main provides the entry point of the paycheck-backend service: the
// organization membership workflow served over REST, GraphQL and Kafka.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paycheck/paycheck-backend/database"
	"github.com/paycheck/paycheck-backend/internal/api"
	"github.com/paycheck/paycheck-backend/internal/config"
	"github.com/paycheck/paycheck-backend/internal/kafka"
	"github.com/paycheck/paycheck-backend/internal/workflow"
	"github.com/paycheck/paycheck-backend/restapi/modules/auth"
	"github.com/paycheck/paycheck-backend/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// store is what the service persists to: the workflow contract plus seeding.
type store interface {
	workflow.EntityStore
	database.SeedStore
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return database.NewMemoryStore(), nil
	}

	conn, err := database.Connect(ctx, cfg.Arango, logger)
	if err != nil {
		return nil, err
	}
	return database.NewArangoStore(conn), nil
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := auth.SetJWTSecret(cfg.JWTSecret); err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.SeedPath != "" {
		if _, err := database.LoadSeed(ctx, cfg.SeedPath, st, logger); err != nil {
			return err
		}
	}

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithConflictRetries(cfg.ConflictRetries),
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("Failed to close Kafka producer", zap.Error(err))
			}
		}()
		opts = append(opts, workflow.WithPublisher(producer))
	}

	orch := workflow.New(st, opts...)

	if cfg.Kafka.Enabled {
		if err := kafka.RunCommandProcessor(ctx, cfg.Kafka, orch, logger); err != nil {
			return err
		}
	}

	app, err := api.NewFiberApp(orch, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		logger.Info("GraphQL endpoint available at /api/v1/graphql")
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	return g.Wait()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("Invalid configuration", zap.Error(err))
	}

	logger := util.InitLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Service stopped", zap.Error(err))
	}
}
