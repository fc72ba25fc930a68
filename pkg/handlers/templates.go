package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// SaveTemplateRequest for POST /api/reports/templates and PUT /api/reports/templates/{id}
type SaveTemplateRequest struct {
	Name     string                    `json:"name"`
	SQLQuery string                    `json:"sqlQuery"`
	Fields   []string                  `json:"fields"`
	Filters  []models.FilterDefinition `json:"filters"`
}

// SaveTemplateResponse carries the id of a created template.
type SaveTemplateResponse struct {
	ID int64 `json:"id"`
}

func (req *SaveTemplateRequest) toModel() *models.ReportTemplate {
	filters := make([]models.FilterDefinition, len(req.Filters))
	for i, f := range req.Filters {
		filters[i] = models.FilterDefinition{Key: f.Key, Label: f.Key, Type: f.Type}
	}
	return &models.ReportTemplate{
		Name:     req.Name,
		SQLQuery: req.SQLQuery,
		Fields:   req.Fields,
		Filters:  filters,
	}
}

// TemplatesHandler handles report template HTTP requests.
type TemplatesHandler struct {
	templateService services.ReportTemplateService
	logger          *zap.Logger
}

// NewTemplatesHandler creates a new templates handler.
func NewTemplatesHandler(templateService services.ReportTemplateService, logger *zap.Logger) *TemplatesHandler {
	return &TemplatesHandler{
		templateService: templateService,
		logger:          logger,
	}
}

// RegisterRoutes registers the template routes on the given mux.
func (h *TemplatesHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/reports/templates"

	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base+"/{id}", h.Get)
	mux.HandleFunc("PUT "+base+"/{id}", h.Update)
	mux.HandleFunc("DELETE "+base+"/{id}", h.Delete)
	mux.HandleFunc("GET "+base+"/{id}/metadata", h.Metadata)
	mux.HandleFunc("GET "+base+"/{id}/group-metadata", h.GroupMetadata)
}

// List handles GET /api/reports/templates
func (h *TemplatesHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list_templates", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: templates}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/reports/templates
func (h *TemplatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SaveTemplateRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	id, err := h.templateService.Save(r.Context(), req.toModel())
	if err != nil {
		writeServiceError(w, r, h.logger, "save_template", err)
		return
	}

	resp := ApiResponse{Success: true, Data: SaveTemplateResponse{ID: id}, Message: "Saved successfully"}
	if err := WriteJSON(w, http.StatusCreated, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/reports/templates/{id}
func (h *TemplatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	tmpl, err := h.templateService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get_template", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: tmpl}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/reports/templates/{id}
func (h *TemplatesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	var req SaveTemplateRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	if err := h.templateService.Update(r.Context(), id, req.toModel()); err != nil {
		writeServiceError(w, r, h.logger, "update_template", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Updated successfully"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/reports/templates/{id}
func (h *TemplatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.templateService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, "delete_template", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Deleted successfully"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Metadata handles GET /api/reports/templates/{id}/metadata
func (h *TemplatesHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	meta, err := h.templateService.GetMetadata(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get_metadata", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: meta}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GroupMetadata handles GET /api/reports/templates/{id}/group-metadata
func (h *TemplatesHandler) GroupMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTemplateID(w, r, h.logger)
	if !ok {
		return
	}

	meta, err := h.templateService.GetGroupMetadata(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get_group_metadata", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: meta}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
