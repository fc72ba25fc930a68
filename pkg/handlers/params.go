package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ParseTemplateID extracts and validates the template ID from the request path.
// Returns the ID and true on success, or 0 and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseTemplateID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_template_id", "Invalid template ID"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return id, true
}
