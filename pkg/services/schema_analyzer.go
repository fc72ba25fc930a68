package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
	"github.com/ekaya-inc/ekaya-reports/pkg/reportsql"
)

// Messages returned in an invalid SchemaAnalysisResult.
const (
	ErrMsgSelectOnly    = "Only SELECT queries are supported."
	errMsgAnalyzePrefix = "Error analyzing query: "
)

// SchemaAnalyzer discovers the output schema of a caller supplied query.
type SchemaAnalyzer interface {
	// Analyze returns the query's columns and their semantic types.
	// Failures are reported in the result, never as an error, and no row
	// data is ever returned.
	Analyze(ctx context.Context, sqlQuery string) *models.SchemaAnalysisResult
}

type schemaAnalyzer struct {
	ds     datasource.Datasource
	logger *zap.Logger
}

var _ SchemaAnalyzer = (*schemaAnalyzer)(nil)

// NewSchemaAnalyzer creates an analyzer that introspects queries on ds.
func NewSchemaAnalyzer(ds datasource.Datasource, logger *zap.Logger) SchemaAnalyzer {
	return &schemaAnalyzer{ds: ds, logger: logger.Named("schema-analyzer")}
}

func (a *schemaAnalyzer) Analyze(ctx context.Context, sqlQuery string) *models.SchemaAnalysisResult {
	if !reportsql.IsSelectStatement(sqlQuery) {
		return &models.SchemaAnalysisResult{IsValid: false, ErrorMessage: ErrMsgSelectOnly}
	}

	columns, err := a.ds.AnalyzeSchema(ctx, reportsql.TrimStatement(sqlQuery))
	if err != nil {
		msg := datasource.DriverMessage(err)
		a.logger.Info("Query analysis failed",
			zap.String("sql", logging.SanitizeQuery(sqlQuery)),
			zap.String("error", msg))
		return &models.SchemaAnalysisResult{IsValid: false, ErrorMessage: errMsgAnalyzePrefix + msg}
	}

	result := &models.SchemaAnalysisResult{
		IsValid:    true,
		Fields:     make([]string, 0, len(columns)),
		FieldTypes: make(map[string]string, len(columns)),
	}
	for _, col := range columns {
		result.Fields = append(result.Fields, col.Name)
		result.FieldTypes[col.Name] = reportsql.ClassifyNativeType(col.Type)
	}
	return result
}
