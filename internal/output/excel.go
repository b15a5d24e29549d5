// internal/output/excel.go
package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/StoreScrapexter/internal/store"
)

const (
	excelSheetName = "Stores"
	// DefaultExcelMaxCellLength is Excel's own cell limit
	DefaultExcelMaxCellLength = 32767
)

// Column widths for the store sheet; unlisted columns use 15.
var excelColumnWidths = map[string]float64{
	"name":    30,
	"address": 45,
	"hours":   60,
	"url":     50,
}

// ExcelWriter writes stores into a single worksheet and saves the workbook on Close.
type ExcelWriter struct {
	file      *excelize.File
	filename  string
	sheetName string
	row       int
	closed    bool
}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter(filename string) (*ExcelWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("Excel file path is required")
	}

	file := excelize.NewFile()
	if defaultSheet := file.GetSheetName(0); defaultSheet != excelSheetName {
		if err := file.SetSheetName(defaultSheet, excelSheetName); err != nil {
			return nil, err
		}
	}

	w := &ExcelWriter{
		file:      file,
		filename:  filename,
		sheetName: excelSheetName,
		row:       1,
	}
	if err := w.writeHeaders(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends one row per store
func (w *ExcelWriter) Write(stores []store.Store) error {
	if w.closed {
		return fmt.Errorf("excel writer is closed")
	}
	for _, s := range stores {
		values := s.Values()
		for i, v := range values {
			if text, ok := v.(string); ok && len(text) > DefaultExcelMaxCellLength {
				values[i] = text[:DefaultExcelMaxCellLength]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(w.sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", w.row, err)
		}
		w.row++
	}
	return nil
}

// Close applies final formatting and saves the file
func (w *ExcelWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Close()

	if err := w.applyFinalFormatting(); err != nil {
		return err
	}
	if err := ensureDir(w.filename); err != nil {
		return err
	}
	return w.file.SaveAs(w.filename)
}

func (w *ExcelWriter) writeHeaders() error {
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E0E0E0"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	headers := make([]interface{}, len(store.Columns))
	for i, c := range store.Columns {
		headers[i] = c
	}
	if err := w.file.SetSheetRow(w.sheetName, "A1", &headers); err != nil {
		return err
	}
	last := columnName(len(store.Columns)) + "1"
	if err := w.file.SetCellStyle(w.sheetName, "A1", last, style); err != nil {
		return err
	}
	w.row = 2
	return nil
}

func (w *ExcelWriter) applyFinalFormatting() error {
	for i, header := range store.Columns {
		col := columnName(i + 1)
		width, ok := excelColumnWidths[header]
		if !ok {
			width = 15
		}
		if err := w.file.SetColWidth(w.sheetName, col, col, width); err != nil {
			return err
		}
	}

	if w.row > 2 {
		rangeRef := fmt.Sprintf("A1:%s%d", columnName(len(store.Columns)), w.row-1)
		if err := w.file.AutoFilter(w.sheetName, rangeRef, nil); err != nil {
			return err
		}
	}

	return w.file.SetPanes(w.sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// columnName converts a column number to Excel column name (A, B, ..., AA, AB, etc.)
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
