package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/cache"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/reportsql"
	"github.com/ekaya-inc/ekaya-reports/pkg/repositories"
)

// ReportTemplateService manages report templates and the metadata derived from them.
type ReportTemplateService interface {
	// List returns the id and name of every template.
	List(ctx context.Context) ([]models.TemplateSummary, error)

	// Get returns a complete template.
	Get(ctx context.Context, id int64) (*models.ReportTemplate, error)

	// Save validates and stores a new template, returning its id.
	Save(ctx context.Context, tmpl *models.ReportTemplate) (int64, error)

	// Update replaces an existing template.
	Update(ctx context.Context, id int64, tmpl *models.ReportTemplate) error

	// Delete removes a template.
	Delete(ctx context.Context, id int64) error

	// GetMetadata returns the declared fields and filters of a template.
	GetMetadata(ctx context.Context, id int64) (*models.TemplateMetadata, error)

	// GetGroupMetadata suggests grouping and aggregation fields from the
	// template's declared field names.
	GetGroupMetadata(ctx context.Context, id int64) (*models.GroupMetadata, error)

	// GetFilterOptions lists the distinct values of a dropdown filter.
	// Any failure yields an empty list.
	GetFilterOptions(ctx context.Context, templateID int64, filterKey string) []string
}

type reportTemplateService struct {
	repo    repositories.ReportTemplateRepository
	ds      datasource.Datasource
	options cache.OptionCache
	policy  identifierPolicy
	logger  *zap.Logger
}

var _ ReportTemplateService = (*reportTemplateService)(nil)

// NewReportTemplateService creates a template service.
// ds is the datasource dropdown options are read from.
func NewReportTemplateService(
	repo repositories.ReportTemplateRepository,
	ds datasource.Datasource,
	options cache.OptionCache,
	strictIdentifiers bool,
	logger *zap.Logger,
) ReportTemplateService {
	logger = logger.Named("report-templates")
	return &reportTemplateService{
		repo:    repo,
		ds:      ds,
		options: options,
		policy:  identifierPolicy{strict: strictIdentifiers, logger: logger},
		logger:  logger,
	}
}

func (s *reportTemplateService) List(ctx context.Context) ([]models.TemplateSummary, error) {
	return s.repo.List(ctx)
}

func (s *reportTemplateService) Get(ctx context.Context, id int64) (*models.ReportTemplate, error) {
	return s.repo.GetFull(ctx, id)
}

func (s *reportTemplateService) Save(ctx context.Context, tmpl *models.ReportTemplate) (int64, error) {
	if err := validateTemplate(tmpl); err != nil {
		return 0, err
	}

	id, err := s.repo.Save(ctx, strings.TrimSpace(tmpl.Name), tmpl.SQLQuery, tmpl.Fields, tmpl.Filters)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Saved report template",
		zap.Int64("template_id", id),
		zap.String("name", tmpl.Name),
		zap.Int("fields", len(tmpl.Fields)),
		zap.Int("filters", len(tmpl.Filters)))

	return id, nil
}

func (s *reportTemplateService) Update(ctx context.Context, id int64, tmpl *models.ReportTemplate) error {
	if err := validateTemplate(tmpl); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, strings.TrimSpace(tmpl.Name), tmpl.SQLQuery, tmpl.Fields, tmpl.Filters); err != nil {
		return err
	}
	s.options.Invalidate(ctx, id)

	s.logger.Info("Updated report template", zap.Int64("template_id", id))
	return nil
}

func (s *reportTemplateService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.options.Invalidate(ctx, id)

	s.logger.Info("Deleted report template", zap.Int64("template_id", id))
	return nil
}

func (s *reportTemplateService) GetMetadata(ctx context.Context, id int64) (*models.TemplateMetadata, error) {
	tmpl, err := s.repo.GetFull(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.TemplateMetadata{Fields: tmpl.Fields, Filters: tmpl.Filters}, nil
}

func (s *reportTemplateService) GetGroupMetadata(ctx context.Context, id int64) (*models.GroupMetadata, error) {
	tmpl, err := s.repo.GetFull(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := reportsql.GroupMetadataFor(tmpl.Fields)
	return &meta, nil
}

func (s *reportTemplateService) GetFilterOptions(ctx context.Context, templateID int64, filterKey string) []string {
	filterKey = strings.TrimSpace(filterKey)
	if filterKey == "" {
		return []string{}
	}

	if cached, ok := s.options.Get(ctx, templateID, filterKey); ok {
		return cached
	}

	tmpl, err := s.repo.GetFull(ctx, templateID)
	if err != nil {
		s.logger.Warn("Failed to load template for filter options",
			zap.Int64("template_id", templateID),
			zap.String("filter_key", filterKey),
			zap.Error(err))
		return []string{}
	}

	if err := s.policy.enforce(templateID, reportsql.CheckOptionKey(tmpl, filterKey)); err != nil {
		return []string{}
	}

	result, err := s.ds.Query(ctx, reportsql.BuildOptionsQuery(tmpl.SQLQuery, filterKey), nil)
	if err != nil {
		s.logger.Warn("Failed to query filter options",
			zap.Int64("template_id", templateID),
			zap.String("filter_key", filterKey),
			zap.String("error", datasource.DriverMessage(err)))
		return []string{}
	}

	options := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) == 0 || row[0].Value == nil {
			continue
		}
		options = append(options, export.FormatValue(row[0].Value))
	}

	s.options.Set(ctx, templateID, filterKey, options)
	return options
}

// validateTemplate checks the fields a template cannot be stored without.
func validateTemplate(tmpl *models.ReportTemplate) error {
	if tmpl == nil {
		return fmt.Errorf("%w: template is required", apperrors.ErrInvalidRequest)
	}
	if strings.TrimSpace(tmpl.Name) == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrInvalidRequest)
	}
	if strings.TrimSpace(tmpl.SQLQuery) == "" {
		return fmt.Errorf("%w: sqlQuery is required", apperrors.ErrInvalidRequest)
	}
	for i, f := range tmpl.Filters {
		if strings.TrimSpace(f.Key) == "" {
			return fmt.Errorf("%w: filter %d has no key", apperrors.ErrInvalidRequest, i+1)
		}
		if !f.Type.IsValid() {
			return fmt.Errorf("%w: filter %q has unsupported type %q", apperrors.ErrInvalidRequest, f.Key, f.Type)
		}
	}
	return nil
}
