package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"cuentas/internal/amqp"
	"cuentas/internal/config"
	"cuentas/internal/log"
	"cuentas/internal/services"
	"cuentas/internal/storage"
	"cuentas/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("starting cuentas-worker", log.FieldOperation, log.OpStartup)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	engine := services.NewEngine(services.EngineConfig{
		SafetyBufferPercent:     cfg.SafetyBufferPercent,
		FeasibilityCeiling:      cfg.FeasibilityCeiling,
		HistoryMonths:           cfg.HistoryMonths,
		RecurringWindowMonths:   cfg.RecurringWindowMonths,
		RecurringMinOccurrences: cfg.RecurringMinOccurrences,
		RecurringMaxCV:          cfg.RecurringMaxCV,
	}, logger)

	w := worker.New(repo, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := amqpClient.ConsumeImported(ctx, w.HandleImported)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("worker error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}
