package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fitcheckhq/fitcheck/internal/library"
	"github.com/fitcheckhq/fitcheck/internal/orchestrator"
	"github.com/fitcheckhq/fitcheck/internal/quota"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors onto HTTP statuses. Unknown errors
// are logged and reported as a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, orchestrator.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, orchestrator.ErrMissingSelection):
		status = http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrQuotaExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, orchestrator.ErrRequestInProgress):
		status = http.StatusConflict
	case errors.Is(err, library.ErrUnknownCategory), errors.Is(err, library.ErrAssetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, quota.ErrUnknown):
		status = http.StatusServiceUnavailable
	default:
		var unavailable *orchestrator.AssetUnavailableError
		var genFailed *orchestrator.GenerationError
		switch {
		case errors.As(err, &unavailable):
			status = http.StatusUnprocessableEntity
		case errors.As(err, &genFailed):
			status = http.StatusBadGateway
		default:
			slog.Error("unhandled request error", "path", r.URL.Path, "error", err)
			respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}
	}

	respondJSON(w, status, errorResponse{Error: err.Error()})
}
