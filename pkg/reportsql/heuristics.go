package reportsql

import (
	"strings"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// Semantic field types reported by schema analysis.
const (
	FieldTypeDate   = "date"
	FieldTypeNumber = "number"
	FieldTypeText   = "text"
)

// numericNameHints are the name fragments that mark a field as numeric-looking.
var numericNameHints = []string{"amount", "price", "quantity", "total", "count"}

// IsSelectStatement reports whether the trimmed statement starts with SELECT.
func IsSelectStatement(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	return len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "SELECT")
}

// ClassifyNativeType maps a driver type name to date, number or text.
// Matching is by substring: DATE/TIME -> date, INT/DECIMAL/FLOAT -> number.
func ClassifyNativeType(native string) string {
	t := strings.ToUpper(native)
	switch {
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return FieldTypeDate
	case strings.Contains(t, "INT"), strings.Contains(t, "DECIMAL"), strings.Contains(t, "FLOAT"):
		return FieldTypeNumber
	default:
		return FieldTypeText
	}
}

// IsGroupable reports whether a field name looks like a plain column reference:
// no space, parenthesis, or quote character. The check is on the name only,
// never on the column's type.
func IsGroupable(field string) bool {
	return !strings.Contains(field, " ") &&
		!strings.Contains(field, "(") &&
		!strings.Contains(field, `"`) &&
		!strings.Contains(field, "'")
}

// IsNumericLooking reports whether a field name contains amount, price,
// quantity, total or count (case-insensitive).
func IsNumericLooking(field string) bool {
	lower := strings.ToLower(field)
	for _, hint := range numericNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// GroupMetadataFor applies the name heuristics to a field list, keeping order.
func GroupMetadataFor(fields []string) models.GroupMetadata {
	meta := models.GroupMetadata{
		GroupableFields: make([]string, 0, len(fields)),
		NumericFields:   make([]string, 0),
	}
	for _, f := range fields {
		if IsGroupable(f) {
			meta.GroupableFields = append(meta.GroupableFields, f)
		}
		if IsNumericLooking(f) {
			meta.NumericFields = append(meta.NumericFields, f)
		}
	}
	return meta
}
