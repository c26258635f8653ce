package dataprocessing

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "csvmapper/internal/errors"
	"csvmapper/pkg/contracts/domain"
)

// IsWorkbook reports whether a file name has a spreadsheet extension.
func IsWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ParseWorkbook reads the first non-empty sheet of an XLSX upload. The first
// row is the header; blank header cells become "Unnamed: N".
func ParseWorkbook(name string, data []byte) (*domain.Table, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewFileDecodeError(fmt.Sprintf("error reading %s", name), err)
	}
	defer f.Close()

	var rows [][]string
	var sheetName string
	for _, sheet := range f.GetSheetList() {
		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return nil, "", apperrors.NewFileDecodeError(fmt.Sprintf("error reading sheet %s of %s", sheet, name), err)
		}
		if len(sheetRows) > 0 {
			rows, sheetName = sheetRows, sheet
			break
		}
	}
	if len(rows) == 0 {
		return nil, "", apperrors.NewFileDecodeError(fmt.Sprintf("error reading %s", name), ErrEmptyFile)
	}

	slog.Debug("workbook sheet selected",
		slog.String("file", name),
		slog.String("sheet_name", sheetName),
		slog.Int("total_rows", len(rows)))

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	header := make([]string, width)
	for i := range header {
		if i < len(rows[0]) && strings.TrimSpace(rows[0][i]) != "" {
			header[i] = rows[0][i]
			continue
		}
		header[i] = fmt.Sprintf("Unnamed: %d", i)
	}

	table, err := domain.NewTable(name, DedupeHeader(header), rows[1:])
	if err != nil {
		return nil, "", apperrors.NewFileDecodeError(fmt.Sprintf("error reading %s", name), err)
	}
	return table, "xlsx:" + sheetName, nil
}
