package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"csvmapper/internal/config"
	"csvmapper/internal/dataprocessing"
	"csvmapper/internal/exporter"
	"csvmapper/internal/validation"
	"csvmapper/pkg/contracts/domain"
)

// stdoutPath makes an output flag write to stdout instead of a file
const stdoutPath = "-"

// readTable loads a CSV or XLSX file under the same limits and encodings as
// an HTTP upload.
func readTable(cfg *config.Config, path string, logger *slog.Logger) (*domain.Table, error) {
	files := validation.NewFileValidator(cfg.Upload.MaxBytes, cfg.Upload.AllowedExtensions, logger)
	if err := files.ValidateFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := filepath.Base(path)
	if dataprocessing.IsWorkbook(name) {
		table, _, err := dataprocessing.ParseWorkbook(name, data)
		return table, err
	}

	encodings, err := dataprocessing.LookupEncodings(cfg.Upload.Encodings)
	if err != nil {
		return nil, err
	}
	table, encoding, err := dataprocessing.NewCSVDecoder(encodings, logger).Decode(name, data)
	if err != nil {
		return nil, err
	}
	logger.Debug("table loaded",
		slog.String("file", path),
		slog.String("encoding", encoding),
		slog.Int("rows", table.Len()))
	return table, nil
}

// resolveOutput picks the export format and destination. The format comes from
// --format, else the output extension, else CSV; an empty output uses the
// download name of the stage.
func resolveOutput(stage domain.Stage, output, format string) (string, domain.ExportFormat, error) {
	if format == "" && output != stdoutPath {
		if strings.EqualFold(filepath.Ext(output), ".xlsx") {
			format = string(domain.FormatXLSX)
		}
	}
	f, err := exporter.ParseFormat(format)
	if err != nil {
		return "", "", err
	}
	if output == "" {
		output = exporter.FileName(stage, f)
	}
	return output, f, nil
}

// writeTable exports t to output, or to stdout when output is "-"
func writeTable(cfg *config.Config, t *domain.Table, output string, format domain.ExportFormat, stdout io.Writer, logger *slog.Logger) error {
	e, err := exporter.New(format, exporter.Options{CSVBOM: cfg.Export.CSVBOM})
	if err != nil {
		return err
	}

	if output == stdoutPath {
		return e.Export(stdout, t)
	}

	files := validation.NewFileValidator(0, nil, logger)
	if err := files.ValidateOutputDirectory(filepath.Dir(output)); err != nil {
		return err
	}
	if err := exporter.WriteFile(output, e, t); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	logger.Info("table written",
		slog.String("file", output),
		slog.String("format", string(format)),
		slog.Int("rows", t.Len()))
	return nil
}

// uniqueColumns drops repeated names, keeping first occurrences
func uniqueColumns(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
