// Package exporter renders merged and pivot tables for download.
//
// Two formats are supported:
//
// CSVWriter: comma-delimited text without a row index, with an optional UTF-8
// BOM for Excel compatibility.
//
// XLSXWriter: a single-sheet workbook streamed through excelize.
//
// Example usage:
//
//	e, err := exporter.New(domain.FormatCSV, exporter.Options{CSVBOM: true})
//	if err != nil {
//		return err
//	}
//	err = e.Export(w, table)
package exporter
