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
	"golang.org/x/sync/errgroup"

	"cuentas/internal/ai"
	"cuentas/internal/cache"
	"cuentas/internal/config"
	apphttp "cuentas/internal/http"
	"cuentas/internal/log"
	"cuentas/internal/services"
	"cuentas/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", log.FieldError, err.Error(), "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	cacheManager := cache.NewManager(logger)
	insightCache := cache.NewLRUCache[string](cfg.InsightCacheSize, cfg.InsightCacheTTL)
	cacheManager.Register(insightCache)
	cacheManager.StartCleanup(time.Hour)
	defer cacheManager.Stop()

	opts := []services.EngineOption{services.WithInsightCache(insightCache)}
	if cfg.AIBaseURL != "" {
		refiner := ai.NewClient(ai.Config{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
			Timeout: cfg.AITimeout,
		}, logger)
		opts = append(opts, services.WithRefiner(refiner))
		logger.Info("AI refiner enabled", "model", cfg.AIModel)
	} else {
		logger.Info("AI refiner disabled, suggestions are statistical only")
	}

	engine := services.NewEngine(services.EngineConfig{
		SafetyBufferPercent:     cfg.SafetyBufferPercent,
		FeasibilityCeiling:      cfg.FeasibilityCeiling,
		HistoryMonths:           cfg.HistoryMonths,
		RecurringWindowMonths:   cfg.RecurringWindowMonths,
		RecurringMinOccurrences: cfg.RecurringMinOccurrences,
		RecurringMaxCV:          cfg.RecurringMaxCV,
	}, logger, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, repo, engine, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", log.FieldOperation, log.OpStartup, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}
