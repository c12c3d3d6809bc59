package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/nearby/internal/geocoding"
	"github.com/UnknownOlympus/nearby/internal/service"
	"github.com/UnknownOlympus/nearby/internal/settings"
)

// minJSAPIKeyLength is the shortest JS API key that passes the format check.
const minJSAPIKeyLength = 30

// SettingsStore is the settings surface used over HTTP.
type SettingsStore interface {
	All(ctx context.Context) ([]settings.Entry, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// SettingValue is the body of PUT /api/v1/settings/{key}.
type SettingValue struct {
	Value string `json:"value"`
}

// ProbeRequest carries candidate keys. Empty fields fall back to the stored settings.
type ProbeRequest struct {
	JSAPIKey   string `json:"js_api_key"`
	RESTAPIKey string `json:"rest_api_key"`
}

// ProbeCheck is the outcome of one key check.
type ProbeCheck struct {
	Key     string `json:"key"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// SettingsHandler serves the settings.
type SettingsHandler struct {
	store       SettingsStore
	newProvider service.ProviderFactory
	log         *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. newProvider builds the provider used by the probe.
func NewSettingsHandler(store SettingsStore, newProvider service.ProviderFactory, log *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, newProvider: newProvider, log: log}
}

// GetSettings lists every setting with the layer its value came from.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.All(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "Failed to read settings", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// PutSetting stores one value. An empty value resets the key.
func (h *SettingsHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	var body SettingValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.respondToWrite(w, r, h.store.Set(r.Context(), r.PathValue("key"), body.Value))
}

// DeleteSetting resets one key.
func (h *SettingsHandler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	h.respondToWrite(w, r, h.store.Delete(r.Context(), r.PathValue("key")))
}

func (h *SettingsHandler) respondToWrite(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, settings.ErrUnknownKey):
		WriteErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settings.ErrInvalidValue):
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "Failed to write setting", "key", r.PathValue("key"), "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "failed to write setting")
	}
}

// Probe checks the REST key with a live geocode and the JS key by format.
func (h *SettingsHandler) Probe(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if key := strings.TrimSpace(req.RESTAPIKey); key != "" {
		snap.RESTAPIKey = key
	}
	if key := strings.TrimSpace(req.JSAPIKey); key != "" {
		snap.JSAPIKey = key
	}

	if !snap.HasCredential() && strings.TrimSpace(snap.JSAPIKey) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "请至少输入一个API Key进行测试")
		return
	}

	checks := make([]ProbeCheck, 0, 2)
	if snap.HasCredential() {
		checks = append(checks, h.probeREST(r.Context(), snap))
	}
	if snap.JSAPIKey != "" {
		if len(snap.JSAPIKey) >= minJSAPIKeyLength {
			checks = append(checks, ProbeCheck{Key: settings.KeyJSAPIKey, OK: true, Message: "JS API Key 格式正确"})
		} else {
			checks = append(checks, ProbeCheck{Key: settings.KeyJSAPIKey, Message: "JS API Key 格式可能不正确"})
		}
	}

	writeJSON(w, http.StatusOK, checks)
}

func (h *SettingsHandler) probeREST(ctx context.Context, snap settings.Snapshot) ProbeCheck {
	check := ProbeCheck{Key: settings.KeyRESTAPIKey}

	provider, err := h.newProvider(snap)
	if err == nil {
		err = geocoding.Probe(ctx, provider)
	}
	if err != nil {
		h.log.InfoContext(ctx, "REST key probe failed", "error", err)
		check.Message = "REST API Key 错误: " + err.Error()
		return check
	}

	check.OK = true
	check.Message = "REST API Key 配置正确"
	return check
}
