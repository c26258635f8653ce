package dataprocessing

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "csvmapper/internal/errors"
	"csvmapper/pkg/contracts/domain"
)

const (
	// ExactKeySeparator joins key cells for exact matching
	ExactKeySeparator = "-"
	// PartialKeySeparator joins key cells for substring matching
	PartialKeySeparator = " "
)

// MergeOptions controls how colliding column names are disambiguated
type MergeOptions struct {
	LeftSuffix  string
	RightSuffix string
}

// DefaultMergeOptions returns the conventional _x/_y suffixes
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		LeftSuffix:  "_x",
		RightSuffix: "_y",
	}
}

// Merger joins two tables on composite keys built from user-selected columns.
type Merger struct {
	opts   MergeOptions
	logger *slog.Logger
}

// NewMerger creates a merger
func NewMerger(opts MergeOptions, logger *slog.Logger) *Merger {
	if opts.LeftSuffix == "" || opts.RightSuffix == "" || opts.LeftSuffix == opts.RightSuffix {
		opts = DefaultMergeOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		opts:   opts,
		logger: logger.With(slog.String("component", "merger")),
	}
}

// colSource points an output column at a column of the left or right input
type colSource struct {
	right bool
	index int
}

// Merge performs an inner join of a and b. Neither input is modified and the
// derived key strings never appear in the result.
func (m *Merger) Merge(a, b *domain.Table, req domain.MergeRequest) (*domain.Table, domain.MergeSummary, error) {
	start := time.Now()
	summary := domain.MergeSummary{Mode: "exact"}
	if req.Partial {
		summary.Mode = "partial"
	}

	if a == nil || b == nil {
		return nil, summary, apperrors.NewMergeConfigError("both tables must be uploaded before merging")
	}
	if len(req.KeysA) == 0 || len(req.KeysB) == 0 {
		return nil, summary, apperrors.NewMergeConfigError("select at least one key column from each table")
	}
	if !req.Partial && len(req.KeysA) != len(req.KeysB) {
		return nil, summary, apperrors.NewMergeConfigError(fmt.Sprintf(
			"exact matching needs the same number of key columns on both sides (got %d and %d)",
			len(req.KeysA), len(req.KeysB)))
	}

	idxA, err := a.ResolveColumns(req.KeysA)
	if err != nil {
		return nil, summary, apperrors.NewMergeExecutionError("error building keys for table A", err)
	}
	idxB, err := b.ResolveColumns(req.KeysB)
	if err != nil {
		return nil, summary, apperrors.NewMergeExecutionError("error building keys for table B", err)
	}

	summary.RowsA = a.Len()
	summary.RowsB = b.Len()

	var pairs [][2]int
	var dropRight map[int]bool
	if req.Partial {
		pairs = partialPairs(BuildKeys(a, idxA, PartialKeySeparator), BuildKeys(b, idxB, PartialKeySeparator))
	} else {
		pairs = exactPairs(BuildKeys(a, idxA, ExactKeySeparator), BuildKeys(b, idxB, ExactKeySeparator))
		dropRight = sharedKeyColumns(a, b, idxA, idxB, pairs)
	}

	header, sources := m.outputLayout(a, b, dropRight)
	out := &domain.Table{
		Name:   "merged",
		Header: header,
		Rows:   make([][]string, 0, len(pairs)),
	}
	matchedLeft := make(map[int]struct{}, len(pairs))
	for _, p := range pairs {
		row := make([]string, len(sources))
		for c, src := range sources {
			if src.right {
				row[c] = b.Cell(p[1], src.index)
			} else {
				row[c] = a.Cell(p[0], src.index)
			}
		}
		out.Rows = append(out.Rows, row)
		matchedLeft[p[0]] = struct{}{}
	}

	summary.Matched = len(matchedLeft)
	summary.Unmatched = summary.RowsA - summary.Matched
	summary.OutputRows = out.Len()
	summary.DurationMS = time.Since(start).Milliseconds()

	m.logger.Debug("merge finished",
		slog.String("mode", summary.Mode),
		slog.Int("rows_a", summary.RowsA),
		slog.Int("rows_b", summary.RowsB),
		slog.Int("output_rows", summary.OutputRows))

	return out, summary, nil
}

// BuildKeys concatenates the given columns of every row with sep.
func BuildKeys(t *domain.Table, cols []int, sep string) []string {
	keys := make([]string, t.Len())
	parts := make([]string, len(cols))
	for r := range t.Rows {
		for i, c := range cols {
			parts[i] = KeyText(t.Cell(r, c))
		}
		keys[r] = strings.Join(parts, sep)
	}
	return keys
}

// exactPairs hash-joins on key equality, emitting pairs in left order and,
// within one left row, in right order.
func exactPairs(left, right []string) [][2]int {
	index := make(map[string][]int, len(right))
	for j, k := range right {
		index[k] = append(index[k], j)
	}

	var pairs [][2]int
	for i, k := range left {
		for _, j := range index[k] {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}

// partialPairs matches every left key to the first right key containing it.
// Ties always go to the earliest right row; there is no best-match scoring.
func partialPairs(left, right []string) [][2]int {
	var pairs [][2]int
	for i, k := range left {
		for j, candidate := range right {
			if strings.Contains(candidate, k) {
				pairs = append(pairs, [2]int{i, j})
				break
			}
		}
	}
	return pairs
}

// sharedKeyColumns returns the right-side key columns paired with a left key
// column of the same name whose cells agree in every matched row. Those are
// emitted once from the left side. Joined keys can match while their parts
// differ ("a-b"+"c" and "a"+"b-c"), in which case both columns are kept.
func sharedKeyColumns(a, b *domain.Table, idxA, idxB []int, pairs [][2]int) map[int]bool {
	drop := make(map[int]bool)
	for i := range idxA {
		if a.Header[idxA[i]] != b.Header[idxB[i]] {
			continue
		}
		equal := true
		for _, p := range pairs {
			if a.Cell(p[0], idxA[i]) != b.Cell(p[1], idxB[i]) {
				equal = false
				break
			}
		}
		if equal {
			drop[idxB[i]] = true
		}
	}
	return drop
}

// outputLayout lists left columns then the kept right columns, suffixing names
// present on both sides and keeping every final name unique.
func (m *Merger) outputLayout(a, b *domain.Table, dropRight map[int]bool) ([]string, []colSource) {
	var sources []colSource
	leftNames := make(map[string]bool, a.Width())
	for i, h := range a.Header {
		sources = append(sources, colSource{index: i})
		leftNames[h] = true
	}
	rightNames := make(map[string]bool, b.Width())
	for j, h := range b.Header {
		if dropRight[j] {
			continue
		}
		sources = append(sources, colSource{right: true, index: j})
		rightNames[h] = true
	}

	header := make([]string, len(sources))
	used := make(map[string]bool, len(sources))
	for c, src := range sources {
		var name, suffix string
		if src.right {
			name, suffix = b.Header[src.index], m.opts.RightSuffix
			if leftNames[name] {
				name += suffix
			}
		} else {
			name, suffix = a.Header[src.index], m.opts.LeftSuffix
			if rightNames[name] {
				name += suffix
			}
		}
		for used[name] {
			name += suffix
		}
		used[name] = true
		header[c] = name
	}
	return header, sources
}
