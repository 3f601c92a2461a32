// Package main is the entry point for the logsentry upload service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"logsentry/internal/api"
	"logsentry/internal/config"
	apperrors "logsentry/internal/errors"
	"logsentry/internal/kafka"
	"logsentry/internal/logging"
	"logsentry/internal/middleware"
	"logsentry/internal/pipeline"
)

var version = "dev"

func main() {
	// Bootstrap logger until the configured one is available
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LoggerConfig())
	slog.SetDefault(logger)
	apperrors.SetProductionMode(cfg.Production)

	slog.Info("configuration loaded",
		"version", version,
		"http_port", cfg.Server.HTTPPort,
		"upload_dir", cfg.Upload.Dir,
		"max_upload", cfg.Upload.MaxSize,
		"exclusions", len(cfg.Detection.Exclusions),
		"rate_limit_enabled", cfg.RateLimit.Enabled,
		"kafka_enabled", cfg.Kafka.Enabled,
		"production", apperrors.IsProduction(),
	)

	if err := os.MkdirAll(cfg.Upload.Dir, 0o750); err != nil {
		slog.Error("failed to create upload dir", "dir", cfg.Upload.Dir, "error", err)
		os.Exit(1)
	}

	p := pipeline.New(cfg.Policy(), logger)
	handler := api.NewHandler(p, cfg.Upload.Dir, logger).
		WithMaxUpload(cfg.Upload.MaxSize)

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			slog.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		handler.WithPublisher(producer)
		slog.Info("anomaly forwarding enabled",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, logger)
	defer limiter.Stop()
	handler.Metrics().RegisterRateLimiter(limiter)

	router := api.NewRouter(handler, logger,
		middleware.SecurityHeaders(cfg.SecurityHeaders, logger),
		limiter.Middleware,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server
	go func() {
		slog.Info("starting upload server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting new uploads
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Let background anomaly publishes finish before the producer closes
	if err := handler.Drain(shutdownCtx); err != nil {
		slog.Warn("pending anomaly publishes abandoned", "error", err)
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			slog.Error("kafka producer close error", "error", err)
		}
		m := producer.GetMetrics()
		slog.Info("kafka metrics",
			"messages_produced", m.MessagesProduced,
			"bytes_produced", m.BytesProduced,
			"errors", m.Errors,
			"retries", m.Retries,
		)
	}

	slog.Info("shutdown complete")
}
