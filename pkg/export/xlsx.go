// Package export renders report results as downloadable documents.
package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// SheetName is the single worksheet an exported workbook contains.
const SheetName = "Report"

const (
	minColumnWidth = 10
	maxColumnWidth = 60
)

// XLSXContentType is the MIME type of an exported workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes result as a workbook with a bold header row followed by one
// row per result row, columns in result order. Missing and NULL cells stay
// blank; numbers, booleans and timestamps are written as typed cells.
func WriteXLSX(w io.Writer, result *models.ReportResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	widths := make([]int, len(result.Columns))
	for col, name := range result.Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, name); err != nil {
			return fmt.Errorf("failed to write header %q: %w", name, err)
		}
		widths[col] = utf8.RuneCountInString(name)
	}
	if len(result.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(result.Columns), 1)
		if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for r, row := range result.Rows {
		for col, name := range result.Columns {
			value, ok := row.Get(name)
			if !ok || value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, cellValue(value)); err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
			if n := utf8.RuneCountInString(FormatValue(value)); n > widths[col] {
				widths[col] = n
			}
		}
	}

	for col, width := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, fitWidth(width)); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// cellValue passes native scalars through so excelize stores them typed.
func cellValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}

func fitWidth(chars int) float64 {
	width := chars + 2
	if width < minColumnWidth {
		width = minColumnWidth
	}
	if width > maxColumnWidth {
		width = maxColumnWidth
	}
	return float64(width)
}
