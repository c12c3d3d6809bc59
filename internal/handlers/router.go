package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is pinged by /healthz.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheck names a dependency reported by /healthz.
type HealthCheck struct {
	Name    string
	Checker HealthChecker
}

// NewRouter registers every route on a new mux.
func NewRouter(
	batches *BatchHandler,
	settingsHandler *SettingsHandler,
	health []HealthCheck,
	reg *prometheus.Registry,
	log *slog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/batches", batches.CreateBatch)
	mux.HandleFunc("GET /api/v1/batches/status", batches.GetStatus)
	mux.HandleFunc("GET /api/v1/batches/latest", batches.GetLatest)
	mux.HandleFunc("GET /api/v1/batches/latest/export", batches.ExportLatest)
	mux.HandleFunc("GET /api/v1/batches/latest/map", batches.GetMap)

	mux.HandleFunc("GET /api/v1/settings", settingsHandler.GetSettings)
	mux.HandleFunc("POST /api/v1/settings/probe", settingsHandler.Probe)
	mux.HandleFunc("PUT /api/v1/settings/{key}", settingsHandler.PutSetting)
	mux.HandleFunc("DELETE /api/v1/settings/{key}", settingsHandler.DeleteSetting)

	mux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, r *http.Request) {
		log.DebugContext(r.Context(), "Performing health checks...")
		status, body := http.StatusOK, "OK"
		for _, check := range health {
			if err := check.Checker.Ping(r.Context()); err != nil {
				log.WarnContext(r.Context(), "Health check failed", "check", check.Name, "error", err)
				status, body = http.StatusServiceUnavailable, check.Name+" ping failed"
				break
			}
		}
		writer.WriteHeader(status)
		if _, err := writer.Write([]byte(body)); err != nil {
			log.ErrorContext(r.Context(), "failed to write reply", "error", err)
		}
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}
