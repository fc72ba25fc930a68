package handlers

import (
	"context"
	"io"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

type mockTemplateService struct {
	templates     map[int64]*models.ReportTemplate
	saveID        int64
	err           error
	saved         *models.ReportTemplate
	updatedID     int64
	deletedID     int64
	options       []string
	optionsCalled struct {
		templateID int64
		filterKey  string
	}
}

var _ services.ReportTemplateService = (*mockTemplateService)(nil)

func (m *mockTemplateService) List(ctx context.Context) ([]models.TemplateSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	summaries := []models.TemplateSummary{}
	for id, t := range m.templates {
		summaries = append(summaries, models.TemplateSummary{ID: id, Name: t.Name})
	}
	return summaries, nil
}

func (m *mockTemplateService) Get(ctx context.Context, id int64) (*models.ReportTemplate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.templates[id], nil
}

func (m *mockTemplateService) Save(ctx context.Context, tmpl *models.ReportTemplate) (int64, error) {
	m.saved = tmpl
	if m.err != nil {
		return 0, m.err
	}
	return m.saveID, nil
}

func (m *mockTemplateService) Update(ctx context.Context, id int64, tmpl *models.ReportTemplate) error {
	m.updatedID = id
	m.saved = tmpl
	return m.err
}

func (m *mockTemplateService) Delete(ctx context.Context, id int64) error {
	m.deletedID = id
	return m.err
}

func (m *mockTemplateService) GetMetadata(ctx context.Context, id int64) (*models.TemplateMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	t := m.templates[id]
	return &models.TemplateMetadata{Fields: t.Fields, Filters: t.Filters}, nil
}

func (m *mockTemplateService) GetGroupMetadata(ctx context.Context, id int64) (*models.GroupMetadata, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.GroupMetadata{
		GroupableFields: []string{"Region"},
		NumericFields:   []string{"Total"},
	}, nil
}

func (m *mockTemplateService) GetFilterOptions(ctx context.Context, templateID int64, filterKey string) []string {
	m.optionsCalled.templateID = templateID
	m.optionsCalled.filterKey = filterKey
	if m.options == nil {
		return []string{}
	}
	return m.options
}

type mockReportService struct {
	result  *models.ReportResult
	err     error
	payload string
	request *models.ReportRequest
	format  services.ExportFormat
}

var _ services.ReportService = (*mockReportService)(nil)

func (m *mockReportService) Generate(ctx context.Context, req *models.ReportRequest) (*models.ReportResult, error) {
	m.request = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockReportService) Export(ctx context.Context, req *models.ReportRequest, format services.ExportFormat, w io.Writer) error {
	m.request = req
	m.format = format
	if m.err != nil {
		return m.err
	}
	_, err := io.WriteString(w, m.payload)
	return err
}

type mockAnalyzer struct {
	result *models.SchemaAnalysisResult
	sql    string
}

var _ services.SchemaAnalyzer = (*mockAnalyzer)(nil)

func (m *mockAnalyzer) Analyze(ctx context.Context, sqlQuery string) *models.SchemaAnalysisResult {
	m.sql = sqlQuery
	return m.result
}

type mockDatasource struct {
	pingErr error
}

var _ datasource.Datasource = (*mockDatasource)(nil)

func (m *mockDatasource) Dialect() string { return "sqlite" }

func (m *mockDatasource) Query(ctx context.Context, sqlQuery string, params map[string]any) (*datasource.QueryResult, error) {
	return &datasource.QueryResult{}, nil
}

func (m *mockDatasource) AnalyzeSchema(ctx context.Context, sqlQuery string) ([]datasource.ColumnInfo, error) {
	return nil, nil
}

func (m *mockDatasource) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockDatasource) Close() error { return nil }
