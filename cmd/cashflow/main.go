package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/cli"
	apphttp "cashflow/internal/http"
	"cashflow/internal/log"
	"cashflow/internal/preset"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	be, err := cli.InitBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer be.Close()

	reports := cli.NewReportService(be.Store, logger, cfg)

	cacheManager := cache.NewManager(logger)
	for _, c := range reports.Cleaners() {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(time.Minute)
	stopReload := cli.ReloadOnHangup(logger, reports.Invalidate)

	opts := []apphttp.Option{}
	if cfg.PresetsFile != "" {
		set, err := preset.Load(cfg.PresetsFile)
		if err != nil {
			logger.Error("Failed to load presets", log.FieldError, err, "path", cfg.PresetsFile)
			os.Exit(1)
		}
		opts = append(opts, apphttp.WithPresets(set))
		logger.Info("Presets loaded", "count", len(set.Presets))
	}

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPResultQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, report queue disabled", log.FieldError, err)
			amqpClient = nil
		} else {
			opts = append(opts, apphttp.WithEnqueuer(amqpClient))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, reports, be.Store, logger, opts...)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 45 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		stopReload()
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting cashflow server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
