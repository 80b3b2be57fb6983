package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ContentType is the xlsx MIME type used on export responses.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column describes one spreadsheet column: header label, the row map key
// its values come from, and the display width.
type Column struct {
	Header string
	Key    string
	Width  float64
}

// Totals asks Build to append a bold trailing row: the sum of SumKey over
// all rows goes in the SumKey column and the literal "TOTAL" in the
// LabelKey column.
type Totals struct {
	SumKey   string
	LabelKey string
}

// Build renders rows into a one-sheet workbook with a bold header row and
// an auto-filter spanning the header range. Row order is preserved. A nil
// value leaves the cell blank.
func Build(sheet string, cols []Column, rows []map[string]any, totals *Totals) (*excelize.File, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("report: no columns")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, col := range cols {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, name, name, col.Width); err != nil {
			return nil, err
		}
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return nil, err
		}
	}

	lastHeader, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, bold); err != nil {
		return nil, err
	}
	if err := f.AutoFilter(sheet, "A1:"+lastHeader, nil); err != nil {
		return nil, err
	}

	for r, row := range rows {
		for c, col := range cols {
			val, ok := row[col.Key]
			if !ok || val == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}

	if totals != nil {
		if err := writeTotals(f, sheet, cols, rows, totals); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func writeTotals(f *excelize.File, sheet string, cols []Column, rows []map[string]any, totals *Totals) error {
	var total int64
	for _, row := range rows {
		total += toInt64(row[totals.SumKey])
	}

	rowNo := len(rows) + 2
	for i, col := range cols {
		var val any
		switch col.Key {
		case totals.SumKey:
			val = total
		case totals.LabelKey:
			val = "TOTAL"
		default:
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "right"},
	})
	if err != nil {
		return err
	}
	first, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), rowNo)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
