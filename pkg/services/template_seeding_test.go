package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

const seedYAML = `
templates:
  - name: Invoices by region
    sql: SELECT CustomerName, Region, InvoiceDate, Total FROM Invoices
    fields: [CustomerName, Region, InvoiceDate, Total]
    filters:
      - key: Region
        type: dropdown
      - key: DateFrom
        type: date
  - name: Existing
    sql: SELECT 1 AS one
    fields: [one]
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestSeeder(repo *mockTemplateRepo) *TemplateSeeder {
	svc := NewReportTemplateService(repo, &mockDatasource{}, newMockOptionCache(), false, zap.NewNop())
	return NewTemplateSeeder(repo, svc, zap.NewNop())
}

func TestTemplateSeeder_SeedFile(t *testing.T) {
	repo := newMockTemplateRepo()
	existingID := repo.add(&models.ReportTemplate{Name: "Existing", SQLQuery: "SELECT 2"})
	seeder := newTestSeeder(repo)

	created, err := seeder.SeedFile(context.Background(), writeSeedFile(t, seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	id, err := repo.FindIDByName(context.Background(), "Invoices by region")
	require.NoError(t, err)
	tmpl := repo.templates[id]
	assert.Equal(t, []string{"CustomerName", "Region", "InvoiceDate", "Total"}, tmpl.Fields)
	assert.Equal(t, []models.FilterDefinition{
		{Key: "Region", Label: "Region", Type: models.FilterTypeDropdown},
		{Key: "DateFrom", Label: "DateFrom", Type: models.FilterTypeDate},
	}, tmpl.Filters)

	assert.Equal(t, "SELECT 2", repo.templates[existingID].SQLQuery, "existing templates are left untouched")
}

func TestTemplateSeeder_SeedFileIsIdempotent(t *testing.T) {
	repo := newMockTemplateRepo()
	seeder := newTestSeeder(repo)
	path := writeSeedFile(t, seedYAML)

	created, err := seeder.SeedFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = seeder.SeedFile(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, repo.templates, 2)
}

func TestTemplateSeeder_InvalidTemplate(t *testing.T) {
	repo := newMockTemplateRepo()
	seeder := newTestSeeder(repo)

	_, err := seeder.Seed(context.Background(), []TemplateSeed{
		{Name: "bad filter", SQL: "SELECT 1", Filters: []FilterSeed{{Key: "x", Type: "slider"}}},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	assert.Empty(t, repo.templates)
}

func TestTemplateSeeder_BadFile(t *testing.T) {
	seeder := newTestSeeder(newMockTemplateRepo())

	_, err := seeder.SeedFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = seeder.SeedFile(context.Background(), writeSeedFile(t, "templates: [unclosed"))
	assert.Error(t, err)
}
