package handlers

import (
	"bytes"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// FilterOptionsRequest for POST /api/reports/filters/options
type FilterOptionsRequest struct {
	TemplateID int64  `json:"templateId"`
	FilterKey  string `json:"filterKey"`
}

// AnalyzeQueryRequest for POST /api/reports/analyze-query
type AnalyzeQueryRequest struct {
	SQLQuery string `json:"sqlQuery"`
}

// ReportsHandler handles report execution, export and query analysis.
type ReportsHandler struct {
	reportService   services.ReportService
	templateService services.ReportTemplateService
	analyzer        services.SchemaAnalyzer
	logger          *zap.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(
	reportService services.ReportService,
	templateService services.ReportTemplateService,
	analyzer services.SchemaAnalyzer,
	logger *zap.Logger,
) *ReportsHandler {
	return &ReportsHandler{
		reportService:   reportService,
		templateService: templateService,
		analyzer:        analyzer,
		logger:          logger,
	}
}

// RegisterRoutes registers the report routes on the given mux.
func (h *ReportsHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/reports"

	mux.HandleFunc("POST "+base+"/filters/options", h.FilterOptions)
	mux.HandleFunc("POST "+base+"/analyze-query", h.AnalyzeQuery)
	mux.HandleFunc("POST "+base+"/generate", h.Generate)
	mux.HandleFunc("POST "+base+"/export/excel", h.ExportExcel)
	mux.HandleFunc("POST "+base+"/export/html", h.ExportHTML)
}

// FilterOptions handles POST /api/reports/filters/options
// Always answers 200; a failed lookup yields an empty list.
func (h *ReportsHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	var req FilterOptionsRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	options := h.templateService.GetFilterOptions(r.Context(), req.TemplateID, req.FilterKey)

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: options}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AnalyzeQuery handles POST /api/reports/analyze-query
func (h *ReportsHandler) AnalyzeQuery(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeQueryRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result := h.analyzer.Analyze(r.Context(), req.SQLQuery)
	if !result.IsValid {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_query", result.ErrorMessage); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Generate handles POST /api/reports/generate
func (h *ReportsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.ReportRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.reportService.Generate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, "generate_report", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ExportExcel handles POST /api/reports/export/excel
func (h *ReportsHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, services.ExportFormatXLSX, export.XLSXContentType, `attachment; filename="report.xlsx"`)
}

// ExportHTML handles POST /api/reports/export/html
func (h *ReportsHandler) ExportHTML(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, services.ExportFormatHTML, export.HTMLContentType, "")
}

// export renders into a buffer first so a failure can still be reported as JSON.
func (h *ReportsHandler) export(w http.ResponseWriter, r *http.Request, format services.ExportFormat, contentType, disposition string) {
	var req models.ReportRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	var buf bytes.Buffer
	if err := h.reportService.Export(r.Context(), &req, format, &buf); err != nil {
		writeServiceError(w, r, h.logger, "export_report", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("Failed to write export", zap.Error(err))
	}
}
