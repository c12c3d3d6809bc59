package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/UnknownOlympus/nearby/internal/export"
	"github.com/UnknownOlympus/nearby/internal/locator"
	"github.com/UnknownOlympus/nearby/internal/mapview"
	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/internal/service"
	"github.com/UnknownOlympus/nearby/internal/settings"
)

// BatchRunner runs the pipeline.
type BatchRunner interface {
	Process(ctx context.Context, req service.BatchRequest) (*models.BatchResult, error)
	Status() models.RunStatus
}

// AddressSaver persists the last submitted input.
type AddressSaver interface {
	Set(ctx context.Context, key, value string) error
}

// BatchRequest is the body of POST /api/v1/batches.
type BatchRequest struct {
	Addresses string          `json:"addresses"`
	Device    *locator.Report `json:"device,omitempty"`
}

// BatchHandler serves batch runs and the latest result.
type BatchHandler struct {
	runner BatchRunner
	saver  AddressSaver
	log    *slog.Logger

	mu     sync.RWMutex
	latest *models.BatchResult
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(runner BatchRunner, saver AddressSaver, log *slog.Logger) *BatchHandler {
	return &BatchHandler{runner: runner, saver: saver, log: log}
}

// CreateBatch runs a batch and answers with its result. A run is bounded by its limit and delay,
// not by the server write timeout, so the deadline is cleared for this response.
func (h *BatchHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.log.DebugContext(r.Context(), "Could not clear write deadline", "error", err)
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.saver.Set(r.Context(), settings.KeyAddresses, req.Addresses); err != nil {
		h.log.WarnContext(r.Context(), "Failed to save addresses", "error", err)
	}

	result, err := h.runner.Process(r.Context(), service.BatchRequest{Text: req.Addresses, Device: req.Device})
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	h.latest = result
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

// GetStatus answers with the state of the current or last run.
func (h *BatchHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Status())
}

// GetLatest answers with the last successful result.
func (h *BatchHandler) GetLatest(w http.ResponseWriter, _ *http.Request) {
	latest, ok := h.latestResult(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// ExportLatest streams the last result as CSV (default) or XLSX.
func (h *BatchHandler) ExportLatest(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.latestResult(w)
	if !ok {
		return
	}

	var (
		buf         bytes.Buffer
		err         error
		name        string
		contentType string
	)
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		err = export.WriteCSV(&buf, latest.Results)
		name, contentType = export.FileName, "text/csv; charset=utf-8"
	case "xlsx":
		err = export.WriteXLSX(&buf, latest.Results)
		name, contentType = export.XLSXFileName,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		WriteErrorResponse(w, http.StatusBadRequest, "unsupported export format: "+format)
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "Export failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err = buf.WriteTo(w); err != nil {
		h.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}

// GetMap answers with the map scene of the last result as GeoJSON.
func (h *BatchHandler) GetMap(w http.ResponseWriter, _ *http.Request) {
	latest, ok := h.latestResult(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(mapview.SceneFromBatch(latest).GeoJSON())
}

func (h *BatchHandler) latestResult(w http.ResponseWriter) (*models.BatchResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.latest == nil {
		WriteErrorResponse(w, http.StatusNotFound, "no batch has completed yet")
		return nil, false
	}
	return h.latest, true
}
