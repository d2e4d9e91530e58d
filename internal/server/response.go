package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oggyb/matchpoint/internal/apperrors"
	"github.com/oggyb/matchpoint/internal/logger"
)

// ErrorResponse is the standard error shape for every REST endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("failed to encode response", "err", err)
		}
	}
}

// writeError maps domain error kinds to HTTP. Services stay transport-free;
// this is the only place that knows the status codes.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		kind := "internal_error"

		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			status = http.StatusNotFound
			kind = "not_found"
		case errors.Is(err, apperrors.ErrValidation):
			status = http.StatusBadRequest
			kind = "validation_error"
		case errors.Is(err, apperrors.ErrInvalidState):
			status = http.StatusConflict
			kind = "invalid_state"
		case errors.Is(err, apperrors.ErrConflict):
			status = http.StatusConflict
			kind = "conflict"
		case errors.Is(err, apperrors.ErrTimeout):
			status = http.StatusServiceUnavailable
			kind = "timeout"
		}

		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
		return
	}

	logger.Error("unhandled error", "err", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}
