package datasource

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// TypeNormalizer maps a driver type name to the name reported in ColumnInfo.
type TypeNormalizer func(driverType string) string

// BinaryType is the normalized name adapters use for raw byte columns.
const BinaryType = "BINARY"

// NamedArgs converts params to sql.Named arguments in name order.
func NamedArgs(params map[string]any) []any {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = sql.Named(name, params[name])
	}
	return args
}

// ColumnsOf reads the column metadata of rows without advancing them.
func ColumnsOf(rows *sql.Rows, normalize TypeNormalizer) ([]ColumnInfo, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]ColumnInfo, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ColumnInfo{
			Name: ct.Name(),
			Type: normalize(ct.DatabaseTypeName()),
		}
	}
	return columns, nil
}

// ValueConverter turns a scanned driver value into the value a report cell holds.
type ValueConverter func(col ColumnInfo, val any) any

// BytesAsText keeps native driver values, except []byte values of non-binary
// columns, which become strings.
func BytesAsText(col ColumnInfo, val any) any {
	if b, ok := val.([]byte); ok && col.Type != BinaryType {
		return string(b)
	}
	return val
}

// CollectRows materializes all rows of a database/sql result set in column order.
// Each value passes through convert; nil means BytesAsText.
func CollectRows(rows *sql.Rows, normalize TypeNormalizer, convert ValueConverter) (*QueryResult, error) {
	if convert == nil {
		convert = BytesAsText
	}

	columns, err := ColumnsOf(rows, normalize)
	if err != nil {
		return nil, err
	}

	resultRows := make([]models.ResultRow, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(models.ResultRow, len(columns))
		for i, col := range columns {
			row[i] = models.Cell{Field: col.Name, Value: convert(col, values[i])}
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryResult{Columns: columns, Rows: resultRows}, nil
}

// DriverMessage returns the message of the innermost wrapped error, which is
// the text the database driver produced.
func DriverMessage(err error) string {
	if err == nil {
		return ""
	}
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err.Error()
		}
		err = inner
	}
}
