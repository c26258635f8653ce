package dataprocessing

import (
	"math"
	"strconv"
	"strings"
)

// missingTokens are the cell spellings read as "no value", matching common
// spreadsheet and dataframe exports.
var missingTokens = map[string]struct{}{
	"":         {},
	"NA":       {},
	"N/A":      {},
	"n/a":      {},
	"NaN":      {},
	"nan":      {},
	"-NaN":     {},
	"-nan":     {},
	"NULL":     {},
	"null":     {},
	"None":     {},
	"<NA>":     {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"1.#QNAN":  {},
}

// IsMissing reports whether a cell holds no value
func IsMissing(cell string) bool {
	_, ok := missingTokens[strings.TrimSpace(cell)]
	return ok
}

// ParseNumber converts a cell to float64. Surrounding whitespace is ignored;
// anything strconv cannot parse is reported with ok=false.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// KeyText renders a cell for key construction. It never fails: cells are
// already text, so coercion is the identity.
func KeyText(cell string) string {
	return cell
}

// FormatNumber renders an aggregate without float noise: integral values print
// without a fractional part, everything else uses the shortest exact form.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
