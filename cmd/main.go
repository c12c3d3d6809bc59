package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/nearby/internal/app"
	"github.com/UnknownOlympus/nearby/internal/config"
	"github.com/UnknownOlympus/nearby/internal/handlers"
	"github.com/UnknownOlympus/nearby/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	application, err := app.New(ctx, cfg, logger, appMetrics)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() {
		if errClose := application.Close(); errClose != nil {
			logger.Error("Failed to close connections", "error", errClose)
		}
	}()

	logger.InfoContext(ctx, "Application initialized",
		"provider", cfg.Provider.Type,
		"store", cfg.Store.Type,
		"cache", cfg.Redis.Addr != "",
		"events", len(cfg.Kafka.Brokers) > 0)

	mux := handlers.NewRouter(
		handlers.NewBatchHandler(application.Batches, application.Settings, logger),
		handlers.NewSettingsHandler(application.Settings, application.NewProvider, logger),
		application.HealthChecks(),
		reg,
		logger,
	)

	serverErr := make(chan error, 1)
	server := newServer(mux, cfg.Port)
	go func() {
		logger.InfoContext(ctx, "Starting HTTP server", "port", cfg.Port)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C) or the server to fail.
	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")
	case err = <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "HTTP server failed", "error", err)
		}
	}

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "HTTP server shutdown failed", "error", err)
	}

	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")
}

// newServer builds the API server. Batch runs clear their own write deadline.
func newServer(handler http.Handler, port int) *http.Server {
	const (
		readTimeout  = 5 * time.Second
		writeTimeout = 30 * time.Second
	)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
