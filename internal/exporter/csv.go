package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"csvmapper/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// CSVWriter renders tables as comma-separated text: header first, no row
// index, fields quoted only when they contain the delimiter, quotes or newlines.
type CSVWriter struct {
	options WriteOptions
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(options WriteOptions) *CSVWriter {
	return &CSVWriter{options: options}
}

// Format implements Exporter
func (w *CSVWriter) Format() domain.ExportFormat {
	return domain.FormatCSV
}

// ContentType implements Exporter
func (w *CSVWriter) ContentType() string {
	return "text/csv; charset=utf-8"
}

// Export writes t to out
func (w *CSVWriter) Export(out io.Writer, t *domain.Table) error {
	if t == nil {
		return fmt.Errorf("no table to export")
	}

	if w.options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range t.Rows {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile exports t to path with the given exporter, creating parent directories.
func WriteFile(path string, e Exporter, t *domain.Table) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := e.Export(file, t); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
