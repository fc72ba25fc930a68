package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/reportsql"
	"github.com/ekaya-inc/ekaya-reports/pkg/repositories"
)

// ExportFormat selects the document a report is exported as.
type ExportFormat string

const (
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatHTML ExportFormat = "html"
)

// ReportService executes report templates.
type ReportService interface {
	// Generate runs a template with the request's filters and grouping and
	// returns the rows restricted to the visible columns.
	Generate(ctx context.Context, req *models.ReportRequest) (*models.ReportResult, error)

	// Export generates the report and writes it to w in the given format.
	Export(ctx context.Context, req *models.ReportRequest, format ExportFormat, w io.Writer) error
}

type reportService struct {
	repo   repositories.ReportTemplateRepository
	ds     datasource.Datasource
	policy identifierPolicy
	logger *zap.Logger
}

var _ ReportService = (*reportService)(nil)

// NewReportService creates a report executor running templates on ds.
// With strictIdentifiers set, requests naming columns the template does not
// declare are rejected instead of logged.
func NewReportService(
	repo repositories.ReportTemplateRepository,
	ds datasource.Datasource,
	strictIdentifiers bool,
	logger *zap.Logger,
) ReportService {
	logger = logger.Named("reports")
	return &reportService{
		repo:   repo,
		ds:     ds,
		policy: identifierPolicy{strict: strictIdentifiers, logger: logger},
		logger: logger,
	}
}

func (s *reportService) Generate(ctx context.Context, req *models.ReportRequest) (*models.ReportResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: report request is required", apperrors.ErrInvalidRequest)
	}

	tmpl, err := s.repo.GetFull(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if err := s.policy.enforce(tmpl.ID, reportsql.CheckIdentifiers(tmpl, req)); err != nil {
		return nil, err
	}

	// The stored source is authoritative; a template without one cannot run.
	baseSQL, err := s.repo.GetBaseQuery(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}

	var group *reportsql.GroupSpec
	if strings.TrimSpace(req.GroupByField) != "" {
		group = &reportsql.GroupSpec{
			Field:           req.GroupByField,
			AggregateFields: req.AggregateFields,
			Function:        req.AggregateFunction,
		}
	}

	built, err := reportsql.BuildReportQuery(baseSQL, req.Filters, group)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.ds.Query(ctx, built.SQL, built.NamedArgs())
	if err != nil {
		msg := datasource.DriverMessage(err)
		s.logger.Error("Report query failed",
			zap.Int64("template_id", tmpl.ID),
			zap.String("sql", logging.SanitizeQuery(built.SQL)),
			zap.String("error", msg))
		return nil, fmt.Errorf("%w: %s", apperrors.ErrQueryExecution, msg)
	}

	s.logger.Info("Generated report",
		zap.Int64("template_id", tmpl.ID),
		zap.Bool("grouped", group != nil),
		zap.Int("params", len(built.Params)),
		zap.Int("rows", len(result.Rows)),
		zap.Duration("elapsed", time.Since(start)))

	return result.ToReportResult().Project(req.VisibleColumns), nil
}

func (s *reportService) Export(ctx context.Context, req *models.ReportRequest, format ExportFormat, w io.Writer) error {
	switch format {
	case ExportFormatXLSX, ExportFormatHTML:
	default:
		return fmt.Errorf("%w: unsupported export format %q", apperrors.ErrInvalidRequest, format)
	}

	result, err := s.Generate(ctx, req)
	if err != nil {
		return err
	}

	// Exports keep every requested column as a header; absent ones render blank.
	if len(req.VisibleColumns) > 0 {
		result = &models.ReportResult{Columns: req.VisibleColumns, Rows: result.Rows}
	}

	if format == ExportFormatHTML {
		if _, err := io.WriteString(w, export.RenderHTML(result)); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}
	return export.WriteXLSX(w, result)
}
