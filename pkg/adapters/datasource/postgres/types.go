package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// OIDs without a pgtype constant.
const (
	moneyOID  = 790
	timetzOID = 1266
)

func columnsOf(fields []pgconn.FieldDescription) []datasource.ColumnInfo {
	columns := make([]datasource.ColumnInfo, len(fields))
	for i, fd := range fields {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: typeNameFromOID(fd.DataTypeOID),
		}
	}
	return columns
}

// typeNameFromOID maps a PostgreSQL type OID onto the names report schema
// analysis classifies.
func typeNameFromOID(oid uint32) string {
	switch oid {
	case pgtype.Int2OID:
		return "SMALLINT"
	case pgtype.Int4OID:
		return "INT"
	case pgtype.Int8OID:
		return "BIGINT"
	case pgtype.NumericOID, moneyOID:
		return "DECIMAL"
	case pgtype.Float4OID, pgtype.Float8OID:
		return "FLOAT"
	case pgtype.DateOID:
		return "DATE"
	case pgtype.TimeOID, timetzOID:
		return "TIME"
	case pgtype.TimestampOID:
		return "TIMESTAMP"
	case pgtype.TimestamptzOID:
		return "TIMESTAMP WITH TIME ZONE"
	case pgtype.IntervalOID:
		// Not a point in time and not a plain number.
		return "DURATION"
	case pgtype.BoolOID:
		return "BOOLEAN"
	case pgtype.TextOID:
		return "TEXT"
	case pgtype.VarcharOID:
		return "VARCHAR"
	case pgtype.BPCharOID, pgtype.QCharOID:
		return "CHAR"
	case pgtype.NameOID:
		return "NAME"
	case pgtype.UUIDOID:
		return "UUID"
	case pgtype.JSONOID:
		return "JSON"
	case pgtype.JSONBOID:
		return "JSONB"
	case pgtype.ByteaOID:
		return datasource.BinaryType
	default:
		return "UNKNOWN"
	}
}

// convertValue turns pgx decoded values without a natural JSON or
// spreadsheet form into plain Go values.
func convertValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		return formatClock(val.Microseconds)
	default:
		return v
	}
}

func formatClock(us int64) string {
	return fmt.Sprintf("%02d:%02d:%02d", us/3_600_000_000, (us/60_000_000)%60, (us/1_000_000)%60)
}
