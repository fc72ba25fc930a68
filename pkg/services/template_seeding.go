package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/repositories"
)

// TemplateSeedFile is the YAML layout of a template seed file:
//
//	templates:
//	  - name: Invoices by region
//	    sql: SELECT CustomerName, Region, InvoiceDate, Total FROM Invoices
//	    fields: [CustomerName, Region, InvoiceDate, Total]
//	    filters:
//	      - key: Region
//	        type: dropdown
type TemplateSeedFile struct {
	Templates []TemplateSeed `yaml:"templates"`
}

// TemplateSeed is one template in a seed file.
type TemplateSeed struct {
	Name    string       `yaml:"name"`
	SQL     string       `yaml:"sql"`
	Fields  []string     `yaml:"fields"`
	Filters []FilterSeed `yaml:"filters"`
}

// FilterSeed is one filter of a seeded template.
type FilterSeed struct {
	Key  string `yaml:"key"`
	Type string `yaml:"type"`
}

// TemplateSeeder creates templates from a seed file at startup.
type TemplateSeeder struct {
	repo      repositories.ReportTemplateRepository
	templates ReportTemplateService
	logger    *zap.Logger
}

// NewTemplateSeeder creates a seeder. Templates are stored through the template
// service so they pass the same validation as API requests.
func NewTemplateSeeder(repo repositories.ReportTemplateRepository, templates ReportTemplateService, logger *zap.Logger) *TemplateSeeder {
	return &TemplateSeeder{repo: repo, templates: templates, logger: logger.Named("template-seeding")}
}

// SeedFile loads path and creates every template whose name does not exist yet.
// Returns the number of templates created.
func (s *TemplateSeeder) SeedFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file TemplateSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	return s.Seed(ctx, file.Templates)
}

// Seed creates the given templates, skipping names that already exist.
func (s *TemplateSeeder) Seed(ctx context.Context, seeds []TemplateSeed) (int, error) {
	created := 0
	for _, seed := range seeds {
		if _, err := s.repo.FindIDByName(ctx, seed.Name); err == nil {
			s.logger.Debug("Template already exists, skipping", zap.String("name", seed.Name))
			continue
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return created, fmt.Errorf("failed to look up template %q: %w", seed.Name, err)
		}

		tmpl := &models.ReportTemplate{
			Name:     seed.Name,
			SQLQuery: seed.SQL,
			Fields:   seed.Fields,
			Filters:  make([]models.FilterDefinition, len(seed.Filters)),
		}
		for i, f := range seed.Filters {
			tmpl.Filters[i] = models.FilterDefinition{Key: f.Key, Label: f.Key, Type: models.FilterType(f.Type)}
		}

		if _, err := s.templates.Save(ctx, tmpl); err != nil {
			return created, fmt.Errorf("failed to seed template %q: %w", seed.Name, err)
		}
		created++
	}

	s.logger.Info("Seeded report templates",
		zap.Int("created", created),
		zap.Int("skipped", len(seeds)-created))

	return created, nil
}
