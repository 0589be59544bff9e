// Package cli provides common initialization shared by cmd/cashflow,
// cmd/cashflow-worker and cmd/cashflowctl.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cashflow/internal/backend"
	"cashflow/internal/cache"
	"cashflow/internal/config"
	"cashflow/internal/log"
	"cashflow/internal/report"
	"cashflow/internal/schedule"
	"cashflow/internal/series"
)

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default.
func SetupLogger(out io.Writer) *log.Logger {
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	format := log.Format(os.Getenv("LOG_FORMAT"))
	if format != log.FormatJSON {
		format = log.FormatText
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    format,
		Component: log.ComponentApp,
		Output:    out,
	})
	slog.SetDefault(logger.Logger)
	if err != nil {
		logger.Warn("Falling back to info level", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured store, applying the seed file if any.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// NewReportService wires the report service with the cache and expansion
// limits from cfg.
func NewReportService(store backend.Store, logger *log.Logger, cfg *config.Config) *report.Service {
	return report.NewService(store, logger,
		report.WithCache(cache.NewLRUCache[series.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)),
		report.WithExpander(schedule.NewRecurrenceExpander(cfg.MaxOccurrences)),
		report.WithScheduleConcurrency(cfg.ScheduleConcurrency),
	)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// ReloadOnHangup calls reload on every SIGHUP until stop is called. Servers
// use it to drop cached reports after the store was changed from outside.
func ReloadOnHangup(logger *log.Logger, reload func()) (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-quit:
				return
			case <-sigChan:
				logger.Info("Reload signal received, dropping cached reports")
				reload()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(quit)
		})
	}
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
