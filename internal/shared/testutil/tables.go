package testutil

import (
	"bytes"
	"encoding/csv"
	"testing"

	"csvmapper/pkg/contracts/domain"
)

// MustTable builds a table or fails the test
func MustTable(t testing.TB, name string, header []string, rows ...[]string) *domain.Table {
	t.Helper()
	table, err := domain.NewTable(name, header, rows)
	if err != nil {
		t.Fatalf("invalid fixture table %s: %v", name, err)
	}
	return table
}

// CSVBytes renders a header and rows as comma-separated UTF-8 text
func CSVBytes(t testing.TB, header []string, rows ...[]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		t.Fatalf("failed to write fixture header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("failed to write fixture rows: %v", err)
	}
	return buf.Bytes()
}

// CustomersTable is table A of the standard merge scenario
func CustomersTable(t testing.TB) *domain.Table {
	return MustTable(t, "customers.csv", []string{"id", "name"},
		[]string{"1", "x"},
		[]string{"2", "y"},
	)
}

// BalancesTable is table B of the standard merge scenario
func BalancesTable(t testing.TB) *domain.Table {
	return MustTable(t, "balances.csv", []string{"id", "val"},
		[]string{"1", "10"},
		[]string{"3", "30"},
	)
}

// SalesTable is a flat table suited to pivoting
func SalesTable(t testing.TB) *domain.Table {
	return MustTable(t, "sales.csv", []string{"region", "product", "units", "note"},
		[]string{"north", "apple", "10", "ok"},
		[]string{"south", "apple", "4", ""},
		[]string{"north", "pear", "3", "late"},
		[]string{"north", "apple", "5", "ok"},
		[]string{"south", "pear", "7", "ok"},
	)
}
