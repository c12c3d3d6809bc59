// Package handlers exposes the batch pipeline and the settings over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/UnknownOlympus/nearby/internal/service"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteErrorResponse writes message with status.
func WriteErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeError maps err to a status code by its kind.
func writeError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	writeJSON(w, statusFor(err, kind), ErrorResponse{Error: err.Error(), Kind: kind})
}

func statusFor(err error, kind models.ErrorKind) int {
	if errors.Is(err, service.ErrBatchInProgress) {
		return http.StatusConflict
	}

	switch kind {
	case models.KindValidation, models.KindLimitExceeded:
		return http.StatusBadRequest
	case models.KindConfiguration:
		return http.StatusPreconditionFailed
	case models.KindGeolocation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
