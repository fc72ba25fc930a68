package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// EmptyReportHTML is returned instead of a document when a report has no rows.
const EmptyReportHTML = "<h2>No data found for this report.</h2>"

// HTMLContentType is the MIME type of a rendered report.
const HTMLContentType = "text/html; charset=utf-8"

const reportStyle = `table { width: 100%; border-collapse: collapse; font-family: Arial; }` +
	`th, td { border: 1px solid #ccc; padding: 8px; text-align: left; }` +
	`th { background-color: #f2f2f2; }`

// RenderHTML renders result as a standalone HTML document with one table.
// Header and cell text is escaped.
func RenderHTML(result *models.ReportResult) string {
	if len(result.Rows) == 0 {
		return EmptyReportHTML
	}

	var sb strings.Builder
	sb.WriteString("<html><head><meta charset=\"utf-8\"><style>")
	sb.WriteString(reportStyle)
	sb.WriteString("</style></head><body>")
	sb.WriteString("<h2>Dynamic Report</h2>")
	sb.WriteString("<table><thead><tr>")
	for _, col := range result.Columns {
		sb.WriteString("<th>")
		sb.WriteString(html.EscapeString(col))
		sb.WriteString("</th>")
	}
	sb.WriteString("</tr></thead><tbody>")

	for _, row := range result.Rows {
		sb.WriteString("<tr>")
		for _, col := range result.Columns {
			sb.WriteString("<td>")
			if v, ok := row.Get(col); ok {
				sb.WriteString(html.EscapeString(FormatValue(v)))
			}
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>")
	}

	sb.WriteString("</tbody></table></body></html>")
	return sb.String()
}

// FormatValue renders a cell value as display text. NULL renders empty.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.DateTime)
	default:
		return fmt.Sprint(val)
	}
}
