package exporter

import (
	"fmt"
	"io"
	"strings"

	"csvmapper/pkg/contracts/domain"
)

// Exporter renders a table in one download format
type Exporter interface {
	Format() domain.ExportFormat
	ContentType() string
	Export(w io.Writer, t *domain.Table) error
}

// Options configures the exporters returned by New
type Options struct {
	CSVBOM bool
}

// New returns the exporter for format
func New(format domain.ExportFormat, opts Options) (Exporter, error) {
	switch format {
	case domain.FormatCSV, "":
		return NewCSVWriter(WriteOptions{BOMPrefix: opts.CSVBOM}), nil
	case domain.FormatXLSX:
		return NewXLSXWriter(""), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// ParseFormat validates a format name, case-insensitively. Empty means CSV.
func ParseFormat(s string) (domain.ExportFormat, error) {
	switch f := domain.ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return domain.FormatCSV, nil
	case domain.FormatCSV, domain.FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FileName returns the download name for an exported stage
func FileName(stage domain.Stage, format domain.ExportFormat) string {
	base := "custom_mapped_data"
	if stage == domain.StagePivot {
		base = "custom_pivot_data"
	}
	return base + "." + string(format)
}
