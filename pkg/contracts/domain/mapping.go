package domain

import (
	"fmt"
	"strings"
	"time"
)

// Slot identifies one of the two upload positions of a mapping session
type Slot string

const (
	SlotA Slot = "a"
	SlotB Slot = "b"
)

// ParseSlot accepts "a"/"b" and the "1"/"2" aliases used by the upload form.
func ParseSlot(s string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "1":
		return SlotA, nil
	case "b", "2":
		return SlotB, nil
	}
	return "", fmt.Errorf("unknown slot %q: expected a or b", s)
}

// AggFunc names the aggregation applied to pivot cells
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggMean  AggFunc = "mean"
	AggCount AggFunc = "count"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// AggFuncs lists the supported aggregations in display order
var AggFuncs = []AggFunc{AggSum, AggMean, AggCount, AggMin, AggMax}

// ParseAggFunc validates an aggregation name, case-insensitively.
func ParseAggFunc(s string) (AggFunc, error) {
	f := AggFunc(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AggFuncs {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported aggregation function %q", s)
}

// Numeric reports whether the aggregation needs numeric values
func (f AggFunc) Numeric() bool {
	return f != AggCount
}

// MergeRequest selects key columns on both tables and the matching strategy.
type MergeRequest struct {
	KeysA   []string `json:"keys_a" validate:"omitempty,dive,required"`
	KeysB   []string `json:"keys_b" validate:"omitempty,dive,required"`
	Partial bool     `json:"partial"`
}

// MergeSummary describes the outcome of a merge
type MergeSummary struct {
	Mode       string `json:"mode"`
	RowsA      int    `json:"rows_a"`
	RowsB      int    `json:"rows_b"`
	Matched    int    `json:"matched"`
	Unmatched  int    `json:"unmatched"`
	OutputRows int    `json:"output_rows"`
	DurationMS int64  `json:"duration_ms"`
}

// PivotRequest configures the aggregation of a filtered merged table.
type PivotRequest struct {
	Index   []string `json:"index" validate:"omitempty,dive,required"`
	Columns []string `json:"columns,omitempty" validate:"omitempty,dive,required"`
	Values  []string `json:"values" validate:"omitempty,dive,required"`
	AggFunc AggFunc  `json:"aggfunc" validate:"required,aggfunc"`
}

// Stage names an exportable table of a session
type Stage string

const (
	StageMerged Stage = "merged"
	StagePivot  Stage = "pivot"
)

// ExportFormat names a download encoding
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// UploadInfo describes a table loaded into a slot
type UploadInfo struct {
	Slot       Slot      `json:"slot"`
	FileName   string    `json:"file_name"`
	Encoding   string    `json:"encoding"`
	Columns    []string  `json:"columns"`
	Rows       int       `json:"rows"`
	UploadedAt time.Time `json:"uploaded_at"`
}
