package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

func setupReportService(t *testing.T, strict bool) (ReportService, *mockTemplateRepo, int64) {
	t.Helper()
	repo := newMockTemplateRepo()
	id := repo.add(invoiceTemplate())
	return NewReportService(repo, newInvoiceDatasource(t), strict, zap.NewNop()), repo, id
}

func column(t *testing.T, result *models.ReportResult, name string) []any {
	t.Helper()
	values := make([]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		v, ok := row.Get(name)
		require.True(t, ok, "row is missing %s", name)
		values = append(values, v)
	}
	return values
}

func TestReportService_Generate_Ungrouped(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	result, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID: id,
		Filters:    map[string]string{"Region": "West", "CustomerName": "  "},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"InvoiceID", "CustomerName", "Region", "InvoiceDate", "Total"}, result.Columns)
	assert.Equal(t, []any{int64(1), int64(2)}, column(t, result, "InvoiceID"))
}

func TestReportService_Generate_DateRange(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	result, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID: id,
		Filters:    map[string]string{"DateFrom": "2024-02-01", "DateTo": "2024-02-28"},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{int64(2), int64(3)}, column(t, result, "InvoiceID"))
}

func TestReportService_Generate_VisibleColumns(t *testing.T) {
	repo := newMockTemplateRepo()
	id := repo.add(&models.ReportTemplate{Name: "abc", SQLQuery: "SELECT a, b, c FROM t", Fields: []string{"a", "b", "c"}})
	ds := newInvoiceDatasource(t)
	_, err := ds.DB().Exec(`CREATE TABLE t (a INTEGER, b TEXT, c TEXT); INSERT INTO t VALUES (1, 'x', 'y'), (2, 'z', 'w')`)
	require.NoError(t, err)
	svc := NewReportService(repo, ds, false, zap.NewNop())

	result, err := svc.Generate(context.Background(), &models.ReportRequest{TemplateID: id, VisibleColumns: []string{"b"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, result.Columns)
	require.Len(t, result.Rows, 2)
	for _, row := range result.Rows {
		require.Len(t, row, 1)
		assert.Equal(t, "b", row[0].Field)
	}

	result, err = svc.Generate(context.Background(), &models.ReportRequest{TemplateID: id, VisibleColumns: []string{"c", "nope", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, result.Columns)
}

func TestReportService_Generate_Grouped(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	result, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID:        id,
		GroupByField:      "CustomerName",
		AggregateFields:   []string{"Total"},
		AggregateFunction: "sum",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"CustomerName", "Total_sum"}, result.Columns)
	totals := make(map[any]any, len(result.Rows))
	for _, row := range result.Rows {
		name, _ := row.Get("CustomerName")
		total, _ := row.Get("Total_sum")
		totals[name] = total
	}
	assert.Len(t, totals, 3)
	assert.InDelta(t, 350.5, totals["Acme"], 0.001)
}

func TestReportService_Generate_GroupedCount(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	result, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID:   id,
		Filters:      map[string]string{"Region": "West"},
		GroupByField: "Region",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Region", "RecordCount"}, result.Columns)
	require.Len(t, result.Rows, 1)
	count, _ := result.Rows[0].Get("RecordCount")
	assert.Equal(t, int64(2), count)
}

func TestReportService_Generate_InvalidAggregate(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	_, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID:        id,
		GroupByField:      "CustomerName",
		AggregateFunction: "MEDIAN",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestReportService_Generate_TemplateNotFound(t *testing.T) {
	svc, _, _ := setupReportService(t, false)

	_, err := svc.Generate(context.Background(), &models.ReportRequest{TemplateID: 999})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReportService_Generate_MissingSource(t *testing.T) {
	repo := newMockTemplateRepo()
	id := repo.add(&models.ReportTemplate{Name: "no source"})
	svc := NewReportService(repo, &mockDatasource{}, false, zap.NewNop())

	_, err := svc.Generate(context.Background(), &models.ReportRequest{TemplateID: id})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReportService_Generate_ExecutionError(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	_, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID: id,
		Filters:    map[string]string{"Salary": "100"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueryExecution)
	assert.Contains(t, err.Error(), "Salary")
}

func TestReportService_Generate_StrictIdentifiers(t *testing.T) {
	repo := newMockTemplateRepo()
	id := repo.add(invoiceTemplate())
	ds := &mockDatasource{}
	svc := NewReportService(repo, ds, true, zap.NewNop())

	_, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID: id,
		Filters:    map[string]string{"Salary": "100"},
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	assert.Contains(t, err.Error(), `filter key "Salary"`)
	assert.Empty(t, ds.queries, "rejected requests must not be executed")

	_, err = svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID: id,
		Filters:    map[string]string{"Region": "West", "DateFrom": "2024-01-01"},
	})
	require.NoError(t, err)
	require.Len(t, ds.queries, 1)
	assert.Equal(t,
		invoiceSQL+" WHERE 1=1 AND InvoiceDate >= @DateFrom AND Region = @Region",
		ds.queries[0])
	assert.Equal(t, map[string]any{"DateFrom": "2024-01-01", "Region": "West"}, ds.params[0])
}

func TestReportService_Generate_LenientPassesUndeclared(t *testing.T) {
	repo := newMockTemplateRepo()
	id := repo.add(invoiceTemplate())
	ds := &mockDatasource{}
	svc := NewReportService(repo, ds, false, zap.NewNop())

	_, err := svc.Generate(context.Background(), &models.ReportRequest{
		TemplateID: id,
		Filters:    map[string]string{"Salary": "100"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{invoiceSQL + " WHERE 1=1 AND Salary = @Salary"}, ds.queries)
}

func TestReportService_Generate_DatasourceErrorMessage(t *testing.T) {
	repo := newMockTemplateRepo()
	id := repo.add(invoiceTemplate())
	ds := &mockDatasource{queryErr: fmt.Errorf("failed to execute query: %w", errors.New("Invalid object name 'Invoices'."))}
	svc := NewReportService(repo, ds, false, zap.NewNop())

	_, err := svc.Generate(context.Background(), &models.ReportRequest{TemplateID: id})
	require.ErrorIs(t, err, apperrors.ErrQueryExecution)
	assert.Equal(t, "query execution failed: Invalid object name 'Invoices'.", err.Error())
}

func TestReportService_Export_HTML(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), &models.ReportRequest{
		TemplateID:     id,
		Filters:        map[string]string{"Region": "East"},
		VisibleColumns: []string{"CustomerName", "Total"},
	}, ExportFormatHTML, &buf)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "<th>CustomerName</th><th>Total</th></tr>")
	assert.Contains(t, buf.String(), "<td>Globex</td><td>75.25</td>")
}

func TestReportService_Export_HTMLNoRows(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), &models.ReportRequest{
		TemplateID: id,
		Filters:    map[string]string{"Region": "North"},
	}, ExportFormatHTML, &buf)
	require.NoError(t, err)
	assert.Equal(t, export.EmptyReportHTML, buf.String())
}

func TestReportService_Export_XLSX(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), &models.ReportRequest{
		TemplateID:     id,
		VisibleColumns: []string{"CustomerName", "Region"},
	}, ExportFormatXLSX, &buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"CustomerName", "Region"}, rows[0])
	assert.Equal(t, []string{"Acme", "West"}, rows[1])
	// NULL region is left blank; GetRows trims trailing empty cells.
	assert.Equal(t, []string{"Initech"}, rows[4])
}

func TestReportService_Export_KeepsAbsentVisibleColumns(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), &models.ReportRequest{
		TemplateID:     id,
		Filters:        map[string]string{"Region": "East"},
		VisibleColumns: []string{"CustomerName", "Discount", "Total"},
	}, ExportFormatHTML, &buf)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "<th>CustomerName</th><th>Discount</th><th>Total</th></tr>")
	assert.Contains(t, buf.String(), "<td>Globex</td><td></td><td>75.25</td>")

	buf.Reset()
	err = svc.Export(context.Background(), &models.ReportRequest{
		TemplateID:     id,
		VisibleColumns: []string{"Discount", "CustomerName"},
	}, ExportFormatXLSX, &buf)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Discount", "CustomerName"}, rows[0])
	assert.Equal(t, []string{"", "Acme"}, rows[1])
}

func TestReportService_Export_UnknownFormat(t *testing.T) {
	svc, _, id := setupReportService(t, false)

	err := svc.Export(context.Background(), &models.ReportRequest{TemplateID: id}, ExportFormat("pdf"), &bytes.Buffer{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestReportService_NilRequest(t *testing.T) {
	svc := NewReportService(newMockTemplateRepo(), &mockDatasource{result: &datasource.QueryResult{}}, false, zap.NewNop())

	_, err := svc.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}
