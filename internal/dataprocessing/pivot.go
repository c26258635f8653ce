package dataprocessing

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	apperrors "csvmapper/internal/errors"
	"csvmapper/pkg/contracts/domain"
)

// tupleSep joins label tuples into map keys
const tupleSep = "\x1f"

// Aggregator reshapes a flat table into a pivot table.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger.With(slog.String("component", "aggregator"))}
}

// accumulator folds the non-missing values of one pivot cell
type accumulator struct {
	count int
	sum   float64
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}
	a.sum += v
	a.count++
}

func (a *accumulator) result(fn domain.AggFunc) string {
	if fn == domain.AggCount {
		return fmt.Sprintf("%d", a.count)
	}
	if a.count == 0 {
		return ""
	}
	switch fn {
	case domain.AggSum:
		return FormatNumber(a.sum)
	case domain.AggMean:
		return FormatNumber(a.sum / float64(a.count))
	case domain.AggMin:
		return FormatNumber(a.min)
	case domain.AggMax:
		return FormatNumber(a.max)
	}
	return ""
}

type cellKey struct {
	row, col, value int
}

// labelSet assigns stable ids to distinct label tuples
type labelSet struct {
	ids    map[string]int
	tuples [][]string
}

func newLabelSet() *labelSet {
	return &labelSet{ids: make(map[string]int)}
}

func (s *labelSet) id(tuple []string) int {
	k := strings.Join(tuple, tupleSep)
	if id, ok := s.ids[k]; ok {
		return id
	}
	id := len(s.tuples)
	s.ids[k] = id
	s.tuples = append(s.tuples, slices.Clone(tuple))
	return id
}

// numericPositions reports, per tuple position, whether every label there
// parses as a number.
func (s *labelSet) numericPositions() []bool {
	if len(s.tuples) == 0 {
		return nil
	}
	numeric := make([]bool, len(s.tuples[0]))
	for i := range numeric {
		numeric[i] = true
		for _, tuple := range s.tuples {
			if _, ok := ParseNumber(tuple[i]); !ok {
				numeric[i] = false
				break
			}
		}
	}
	return numeric
}

// sorted returns tuple ids in ascending tuple order
func (s *labelSet) sorted() []int {
	numeric := s.numericPositions()
	order := make([]int, len(s.tuples))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(x, y int) int {
		return CompareTuples(s.tuples[x], s.tuples[y], numeric)
	})
	return order
}

// Pivot groups t by the index fields, spreads column-field combinations across
// output columns and aggregates every value field per cell. Rows whose index or
// column fields are missing do not contribute; missing values are skipped.
func (g *Aggregator) Pivot(t *domain.Table, req domain.PivotRequest) (*domain.Table, error) {
	if t == nil {
		return nil, apperrors.NewPivotConfigError("there is no table to pivot")
	}
	if len(req.Index) == 0 {
		return nil, apperrors.NewPivotConfigError("select at least one index field")
	}
	if len(req.Values) == 0 {
		return nil, apperrors.NewPivotConfigError("select at least one value field")
	}
	fn, err := domain.ParseAggFunc(string(req.AggFunc))
	if err != nil {
		return nil, apperrors.NewPivotConfigError(err.Error())
	}

	indexCols, err := t.ResolveColumns(req.Index)
	if err != nil {
		return nil, apperrors.NewPivotExecutionError("error resolving index fields", err)
	}
	columnCols, err := t.ResolveColumns(req.Columns)
	if err != nil {
		return nil, apperrors.NewPivotExecutionError("error resolving column fields", err)
	}
	valueCols, err := t.ResolveColumns(req.Values)
	if err != nil {
		return nil, apperrors.NewPivotExecutionError("error resolving value fields", err)
	}

	rows, cols := newLabelSet(), newLabelSet()
	cells := make(map[cellKey]*accumulator)
	rowTuple := make([]string, len(indexCols))
	colTuple := make([]string, len(columnCols))

	for r := range t.Rows {
		if !fillTuple(t, r, indexCols, rowTuple) || !fillTuple(t, r, columnCols, colTuple) {
			continue
		}
		ri, ci := rows.id(rowTuple), cols.id(colTuple)

		for vi, c := range valueCols {
			key := cellKey{row: ri, col: ci, value: vi}
			acc, ok := cells[key]
			if !ok {
				acc = &accumulator{}
				cells[key] = acc
			}

			cell := t.Cell(r, c)
			if IsMissing(cell) {
				continue
			}
			if !fn.Numeric() {
				acc.count++
				continue
			}
			v, ok := ParseNumber(cell)
			if !ok {
				return nil, apperrors.NewPivotExecutionError(
					fmt.Sprintf("cannot apply %s to non-numeric value %q in column %q", fn, cell, t.Header[c]),
					nil,
				).WithContext("column", t.Header[c]).WithContext("row", r+1)
			}
			acc.add(v)
		}
	}

	rowOrder, colOrder := rows.sorted(), cols.sorted()

	type outCol struct {
		col, value int
	}
	header := make([]string, 0, len(indexCols)+len(valueCols)*len(colOrder))
	for _, c := range indexCols {
		header = append(header, t.Header[c])
	}
	var layout []outCol
	for vi, c := range valueCols {
		for _, ci := range colOrder {
			layout = append(layout, outCol{col: ci, value: vi})
			header = append(header, pivotLabel(t.Header[c], cols.tuples[ci], len(valueCols)))
		}
	}

	out := &domain.Table{
		Name:   "pivot",
		Header: header,
		Rows:   make([][]string, 0, len(rowOrder)),
	}
	for _, ri := range rowOrder {
		row := make([]string, 0, len(header))
		row = append(row, rows.tuples[ri]...)
		for _, oc := range layout {
			acc, ok := cells[cellKey{row: ri, col: oc.col, value: oc.value}]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, acc.result(fn))
		}
		out.Rows = append(out.Rows, row)
	}

	g.logger.Debug("pivot finished",
		slog.String("aggfunc", string(fn)),
		slog.Int("input_rows", t.Len()),
		slog.Int("row_labels", len(rowOrder)),
		slog.Int("column_labels", len(colOrder)))

	return out, nil
}

// fillTuple copies the given cells of row r into dst, reporting false when any
// of them is missing.
func fillTuple(t *domain.Table, r int, cols []int, dst []string) bool {
	for i, c := range cols {
		cell := t.Cell(r, c)
		if IsMissing(cell) {
			return false
		}
		dst[i] = cell
	}
	return true
}

// pivotLabel names an output column. Without column fields the value field
// name is used as is; with a single value field the column tuple alone
// suffices.
func pivotLabel(value string, tuple []string, values int) string {
	if len(tuple) == 0 {
		return value
	}
	label := strings.Join(tuple, "_")
	if values == 1 {
		return label
	}
	return value + "_" + label
}

// CompareLabels orders two labels by value when numeric is set and lexically
// otherwise. Numerically equal labels with different spellings ("1", "1.0")
// fall back to lexical order.
func CompareLabels(a, b string, numeric bool) int {
	if numeric {
		x, okA := ParseNumber(a)
		y, okB := ParseNumber(b)
		if okA && okB {
			if c := cmp.Compare(x, y); c != 0 {
				return c
			}
		}
	}
	return strings.Compare(a, b)
}

// CompareTuples orders label tuples element by element. numeric[i] selects
// value ordering for position i; positions beyond numeric compare lexically.
func CompareTuples(a, b []string, numeric []bool) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareLabels(a[i], b[i], i < len(numeric) && numeric[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}
