package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"csvmapper/pkg/contracts/domain"
)

// XLSXWriter renders a table into a single-sheet workbook. Cells are written
// as text so values round-trip exactly as they appear in the table.
type XLSXWriter struct {
	sheet string
}

// NewXLSXWriter creates a workbook writer; an empty sheet name defaults to "Data".
func NewXLSXWriter(sheet string) *XLSXWriter {
	if sheet == "" {
		sheet = "Data"
	}
	return &XLSXWriter{sheet: sheet}
}

// Format implements Exporter
func (w *XLSXWriter) Format() domain.ExportFormat {
	return domain.FormatXLSX
}

// ContentType implements Exporter
func (w *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export streams t into a workbook written to out
func (w *XLSXWriter) Export(out io.Writer, t *domain.Table) error {
	if t == nil {
		return fmt.Errorf("no table to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(w.sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	for i, record := range t.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(record))
		for j, v := range record {
			values[j] = v
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
