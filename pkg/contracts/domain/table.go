package domain

import (
	"fmt"
	"strings"
)

// Table is an ordered set of named text columns with positionally aligned rows.
type Table struct {
	Name   string     `json:"name,omitempty"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// NewTable builds a table and pads or rejects rows so every row matches the header width.
func NewTable(name string, header []string, rows [][]string) (*Table, error) {
	t := &Table{
		Name:   name,
		Header: append([]string(nil), header...),
		Rows:   make([][]string, 0, len(rows)),
	}
	for i, row := range rows {
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(row), len(header))
		}
		padded := make([]string, len(header))
		copy(padded, row)
		t.Rows = append(t.Rows, padded)
	}
	return t, nil
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.Header)
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
// Names are matched exactly first and then with surrounding whitespace ignored.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	trimmed := strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == trimmed {
			return i
		}
	}
	return -1
}

// Cell returns the value at row i, column j, or "" when the row is short.
func (t *Table) Cell(i, j int) string {
	row := t.Rows[i]
	if j < 0 || j >= len(row) {
		return ""
	}
	return row[j]
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, &ColumnNotFoundError{Column: name, Available: t.Header}
	}
	values := make([]string, len(t.Rows))
	for i := range t.Rows {
		values[i] = t.Cell(i, idx)
	}
	return values, nil
}

// ResolveColumns maps column names to indices, failing on the first unknown name.
func (t *Table) ResolveColumns(names []string) ([]int, error) {
	indices := make([]int, len(names))
	for i, name := range names {
		idx := t.ColumnIndex(name)
		if idx < 0 {
			return nil, &ColumnNotFoundError{Column: name, Available: t.Header}
		}
		indices[i] = idx
	}
	return indices, nil
}

// Select returns a new table holding only the named columns, in the given order.
func (t *Table) Select(names []string) (*Table, error) {
	indices, err := t.ResolveColumns(names)
	if err != nil {
		return nil, err
	}

	out := &Table{
		Name:   t.Name,
		Header: make([]string, len(indices)),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, idx := range indices {
		out.Header[i] = t.Header[idx]
	}
	for r := range t.Rows {
		row := make([]string, len(indices))
		for i, idx := range indices {
			row[i] = t.Cell(r, idx)
		}
		out.Rows[r] = row
	}
	return out, nil
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:   t.Name,
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Records returns header and rows as one slice, ready for a CSV writer.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, t.Header)
	records = append(records, t.Rows...)
	return records
}

// ColumnNotFoundError reports a column name missing from a table header
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found; available columns: [%s]", e.Column, strings.Join(e.Available, ", "))
}
