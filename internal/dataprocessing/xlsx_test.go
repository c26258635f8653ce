package dataprocessing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "csvmapper/internal/errors"
)

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	data := workbookBytes(t, [][]interface{}{
		{"id", "name", nil},
		{1, "x", "extra"},
		{2, "y"},
	})

	table, enc, err := ParseWorkbook("book.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, "xlsx:Sheet1", enc)
	assert.Equal(t, []string{"id", "name", "Unnamed: 2"}, table.Header)
	assert.Equal(t, [][]string{{"1", "x", "extra"}, {"2", "y", ""}}, table.Rows)
}

func TestParseWorkbookInvalid(t *testing.T) {
	_, _, err := ParseWorkbook("broken.xlsx", []byte("not a zip"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFileDecode))
}

func TestIsWorkbook(t *testing.T) {
	assert.True(t, IsWorkbook("data.XLSX"))
	assert.False(t, IsWorkbook("data.csv"))
}
