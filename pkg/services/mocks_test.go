package services

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// mockTemplateRepo is an in-memory ReportTemplateRepository.
type mockTemplateRepo struct {
	templates map[int64]*models.ReportTemplate
	nextID    int64
	saveErr   error
	updateErr error
	getErr    error
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{templates: make(map[int64]*models.ReportTemplate), nextID: 1}
}

func (m *mockTemplateRepo) add(tmpl *models.ReportTemplate) int64 {
	id := m.nextID
	m.nextID++
	cp := *tmpl
	cp.ID = id
	m.templates[id] = &cp
	return id
}

func (m *mockTemplateRepo) List(ctx context.Context) ([]models.TemplateSummary, error) {
	list := make([]models.TemplateSummary, 0, len(m.templates))
	for id, t := range m.templates {
		list = append(list, models.TemplateSummary{ID: id, Name: t.Name})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *mockTemplateRepo) GetFull(ctx context.Context, id int64) (*models.ReportTemplate, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	t, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %d: %w", id, apperrors.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *mockTemplateRepo) GetBaseQuery(ctx context.Context, id int64) (string, error) {
	t, ok := m.templates[id]
	if !ok || t.SQLQuery == "" {
		return "", fmt.Errorf("source for template %d: %w", id, apperrors.ErrNotFound)
	}
	return t.SQLQuery, nil
}

func (m *mockTemplateRepo) FindIDByName(ctx context.Context, name string) (int64, error) {
	var found int64
	for id, t := range m.templates {
		if t.Name == name && (found == 0 || id < found) {
			found = id
		}
	}
	if found == 0 {
		return 0, fmt.Errorf("template %q: %w", name, apperrors.ErrNotFound)
	}
	return found, nil
}

func (m *mockTemplateRepo) Save(ctx context.Context, name, sqlQuery string, fields []string, filters []models.FilterDefinition) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	return m.add(&models.ReportTemplate{Name: name, SQLQuery: sqlQuery, Fields: fields, Filters: filters}), nil
}

func (m *mockTemplateRepo) Update(ctx context.Context, id int64, name, sqlQuery string, fields []string, filters []models.FilterDefinition) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.templates[id]; !ok {
		return fmt.Errorf("template %d: %w", id, apperrors.ErrNotFound)
	}
	m.templates[id] = &models.ReportTemplate{ID: id, Name: name, SQLQuery: sqlQuery, Fields: fields, Filters: filters}
	return nil
}

func (m *mockTemplateRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.templates[id]; !ok {
		return fmt.Errorf("template %d: %w", id, apperrors.ErrNotFound)
	}
	delete(m.templates, id)
	return nil
}

// mockDatasource records statements and returns canned results.
type mockDatasource struct {
	result     *datasource.QueryResult
	queryErr   error
	columns    []datasource.ColumnInfo
	analyzeErr error

	queries  []string
	params   []map[string]any
	analyzed []string
}

func (m *mockDatasource) Dialect() string { return "mock" }

func (m *mockDatasource) Query(ctx context.Context, sqlQuery string, params map[string]any) (*datasource.QueryResult, error) {
	m.queries = append(m.queries, sqlQuery)
	m.params = append(m.params, params)
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.result == nil {
		return &datasource.QueryResult{}, nil
	}
	return m.result, nil
}

func (m *mockDatasource) AnalyzeSchema(ctx context.Context, sqlQuery string) ([]datasource.ColumnInfo, error) {
	m.analyzed = append(m.analyzed, sqlQuery)
	if m.analyzeErr != nil {
		return nil, m.analyzeErr
	}
	return m.columns, nil
}

func (m *mockDatasource) Ping(ctx context.Context) error { return nil }
func (m *mockDatasource) Close() error                   { return nil }

// mockOptionCache is an in-memory OptionCache that records invalidations.
type mockOptionCache struct {
	entries     map[string][]string
	invalidated []int64
}

func newMockOptionCache() *mockOptionCache {
	return &mockOptionCache{entries: make(map[string][]string)}
}

func optionCacheKey(templateID int64, key string) string {
	return fmt.Sprintf("%d:%s", templateID, key)
}

func (m *mockOptionCache) Get(ctx context.Context, templateID int64, key string) ([]string, bool) {
	v, ok := m.entries[optionCacheKey(templateID, key)]
	return v, ok
}

func (m *mockOptionCache) Set(ctx context.Context, templateID int64, key string, options []string) {
	m.entries[optionCacheKey(templateID, key)] = options
}

func (m *mockOptionCache) Invalidate(ctx context.Context, templateID int64) {
	m.invalidated = append(m.invalidated, templateID)
	prefix := fmt.Sprintf("%d:", templateID)
	for k := range m.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.entries, k)
		}
	}
}

// newInvoiceDatasource opens an in-memory SQLite datasource with a small
// Invoices table.
func newInvoiceDatasource(t *testing.T) *sqlite.Adapter {
	t.Helper()
	ctx := context.Background()

	ds, err := sqlite.NewAdapter(ctx, &sqlite.Config{Path: sqlite.MemoryPath}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	_, err = ds.DB().ExecContext(ctx, `
		CREATE TABLE Invoices (
			InvoiceID    INTEGER PRIMARY KEY,
			CustomerName TEXT NOT NULL,
			Region       VARCHAR(20),
			InvoiceDate  DATETIME,
			Total        NUMERIC(10,2)
		);
		INSERT INTO Invoices VALUES (1, 'Acme', 'West', '2024-01-05 00:00:00', 100.0);
		INSERT INTO Invoices VALUES (2, 'Acme', 'West', '2024-02-10 00:00:00', 250.5);
		INSERT INTO Invoices VALUES (3, 'Globex', 'East', '2024-02-11 00:00:00', 75.25);
		INSERT INTO Invoices VALUES (4, 'Initech', NULL, '2024-03-01 00:00:00', 10.0);`)
	require.NoError(t, err)

	return ds
}

const invoiceSQL = "SELECT InvoiceID, CustomerName, Region, InvoiceDate, Total FROM Invoices"

func invoiceTemplate() *models.ReportTemplate {
	return &models.ReportTemplate{
		Name:     "Invoices",
		SQLQuery: invoiceSQL,
		Fields:   []string{"InvoiceID", "CustomerName", "Region", "InvoiceDate", "Total"},
		Filters: []models.FilterDefinition{
			{Key: "Region", Label: "Region", Type: models.FilterTypeDropdown},
			{Key: "DateFrom", Label: "DateFrom", Type: models.FilterTypeDate},
			{Key: "DateTo", Label: "DateTo", Type: models.FilterTypeDate},
		},
	}
}
