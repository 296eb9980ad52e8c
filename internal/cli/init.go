// Package cli holds the startup steps shared by cmd/backoffice,
// cmd/recurring-worker and cmd/sheets-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"backoffice/internal/config"
	applog "backoffice/internal/log"
	"backoffice/internal/ports"
	"backoffice/internal/rates"
)

// SetupLogger initializes structured logging at the given level and installs
// it as the default logger.
func SetupLogger(level slog.Level, component string) *slog.Logger {
	logger := applog.New(applog.Config{
		Level:     level,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger.Logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// NewRatesCache builds the exchange-rate cache over kv. Without a provider
// URL the cache serves the persisted snapshot only.
func NewRatesCache(cfg *config.Config, kv ports.KVStore) *rates.Cache {
	var provider rates.Provider
	if cfg.RatesProviderURL != "" {
		provider = rates.NewHTTPProvider(cfg.RatesProviderURL, cfg.RatesBaseCurrency, cfg.RatesFetchTimeout)
	}
	return rates.NewCache(provider, rates.NewKVSnapshotStore(kv), rates.CacheConfig{
		MaxAge:       cfg.RatesMaxAge,
		FetchTimeout: cfg.RatesFetchTimeout,
	})
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has run.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
