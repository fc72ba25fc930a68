package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/middleware"
)

// ApiResponse is the standard envelope for successful API responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error onto a status code:
// not found -> 404, invalid request -> 400, everything else -> 500.
// Execution failures carry the driver message; other 500s stay generic.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, op string, err error) {
	requestID := zap.String("request_id", middleware.RequestIDFromContext(r.Context()))
	status, code, message := http.StatusInternalServerError, op+"_failed", "An internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, apperrors.ErrInvalidRequest):
		status, code, message = http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, apperrors.ErrQueryExecution):
		code, message = "query_execution_failed", err.Error()
		logger.Error("Report query failed", zap.String("op", op), requestID, zap.Error(err))
	default:
		logger.Error("Request failed", zap.String("op", op), requestID, zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
