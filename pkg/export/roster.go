// Package export renders admin spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

type Sheet struct {
	Title  string
	Header []string
	Rows   [][]string
}

// Workbook writes the sheets into an xlsx file with a bold, filterable header row.
func Workbook(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Title); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Title); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}
		if err := writeSheet(f, s, bold); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, s Sheet, headerStyle int) error {
	for c, h := range s.Header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(s.Title, cell, h); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	if len(s.Header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(s.Header), 1)
		_ = f.SetCellStyle(s.Title, "A1", last, headerStyle)
		_ = f.AutoFilter(s.Title, "A1:"+last, nil)
	}

	for r, row := range s.Rows {
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(s.Title, cell, val); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	for c := range s.Header {
		width := len(s.Header[c])
		for _, row := range s.Rows {
			if c < len(row) && len(row[c]) > width {
				width = len(row[c])
			}
		}
		col, _ := excelize.ColumnNumberToName(c + 1)
		_ = f.SetColWidth(s.Title, col, col, clamp(float64(width)*1.1, 12, 40))
	}
	return nil
}

// Bytes renders the workbook for an HTTP download.
func Bytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
