package mssql

import (
	"strconv"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// normalizeType maps SQL Server type names onto the names report schema
// analysis classifies. Integer and date/time names pass through unchanged.
func normalizeType(sqlServerType string) string {
	sqlServerType = strings.ToUpper(sqlServerType)

	switch sqlServerType {
	// Integer types
	case "TINYINT", "SMALLINT", "INT", "BIGINT":
		return sqlServerType

	// Decimal types
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return "DECIMAL"
	case "FLOAT", "REAL":
		return "FLOAT"

	// String types
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"

	// Binary types
	case "BINARY", "VARBINARY", "IMAGE":
		return datasource.BinaryType

	// Date/Time types
	case "DATE", "TIME", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET":
		return sqlServerType

	case "BIT":
		return "BIT"
	case "UNIQUEIDENTIFIER":
		return "UNIQUEIDENTIFIER"

	default:
		return sqlServerType
	}
}

// convertValue maps driver values that arrive as raw bytes onto report cell values.
// DECIMAL, NUMERIC, MONEY and SMALLMONEY become float64; UNIQUEIDENTIFIER becomes
// its canonical string form.
func convertValue(col datasource.ColumnInfo, val any) any {
	b, ok := val.([]byte)
	if !ok {
		return val
	}

	switch col.Type {
	case "DECIMAL":
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return string(b)
		}
		return f
	case "UNIQUEIDENTIFIER":
		var id mssqldb.UniqueIdentifier
		if err := id.Scan(b); err != nil {
			return nil
		}
		return id.String()
	}
	return datasource.BytesAsText(col, val)
}
