package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/config"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Datasource *DatasourceHealth `json:"datasource,omitempty"`
}

// DatasourceHealth reports whether the report datasource answers a ping.
type DatasourceHealth struct {
	Dialect string `json:"dialect"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	ds     datasource.Datasource
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. ds may be nil.
func NewHealthHandler(cfg *config.Config, ds datasource.Datasource, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, ds: ds, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// The process is live whenever it answers; an unreachable datasource is
// reported as "degraded" with status 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}

	if h.ds != nil {
		dsHealth := &DatasourceHealth{Dialect: h.ds.Dialect(), Status: "ok"}
		if err := h.ds.Ping(r.Context()); err != nil {
			dsHealth.Status = "error"
			// Driver messages can echo the DSN.
			dsHealth.Error = logging.SanitizeConnectionString(datasource.DriverMessage(err))
			response.Status = "degraded"
		}
		response.Datasource = dsHealth
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-reports",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
