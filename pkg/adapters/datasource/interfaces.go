package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// Datasource runs report statements against the configured database.
// Each implementation owns its connection pool and must be closed when done.
type Datasource interface {
	// Dialect returns the registered adapter type ("mssql", "postgres", "sqlite").
	Dialect() string

	// Query executes sqlQuery with @name placeholders bound from params and
	// materializes every row in column order.
	Query(ctx context.Context, sqlQuery string, params map[string]any) (*QueryResult, error)

	// AnalyzeSchema wraps sqlQuery in the dialect's single-row construct and
	// returns its output columns. No row data is read.
	AnalyzeSchema(ctx context.Context, sqlQuery string) ([]ColumnInfo, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection pool.
	Close() error
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Normalized database type name (e.g., "INT", "DECIMAL", "DATETIME")
}

// QueryResult holds the columns and rows of one executed statement.
type QueryResult struct {
	Columns []ColumnInfo       `json:"columns"`
	Rows    []models.ResultRow `json:"rows"`
}

// ColumnNames returns the column names in execution order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ToReportResult converts the executed rows to a report result.
// Rows are never nil so an empty report serializes as [].
func (r *QueryResult) ToReportResult() *models.ReportResult {
	rows := r.Rows
	if rows == nil {
		rows = []models.ResultRow{}
	}
	return &models.ReportResult{
		Columns: r.ColumnNames(),
		Rows:    rows,
	}
}
