package dataprocessing

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "csvmapper/internal/errors"
	"csvmapper/internal/shared/testutil"
	"csvmapper/pkg/contracts/domain"
)

func newTestMerger(t *testing.T) *Merger {
	logger, _ := testutil.NewTestLogger(t)
	return NewMerger(DefaultMergeOptions(), logger)
}

func TestMergeExactScenario(t *testing.T) {
	m := newTestMerger(t)
	a := testutil.CustomersTable(t)
	b := testutil.BalancesTable(t)

	out, summary, err := m.Merge(a, b, domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"id"}})
	require.NoError(t, err)

	want := &domain.Table{
		Name:   "merged",
		Header: []string{"id", "name", "val"},
		Rows:   [][]string{{"1", "x", "10"}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("merged table mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "exact", summary.Mode)
	assert.Equal(t, 2, summary.RowsA)
	assert.Equal(t, 2, summary.RowsB)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched)
	assert.Equal(t, 1, summary.OutputRows)
}

func TestMergeExact(t *testing.T) {
	tests := []struct {
		name       string
		a          *domain.Table
		b          *domain.Table
		req        domain.MergeRequest
		wantHeader []string
		wantRows   [][]string
	}{
		{
			name: "disjoint key spaces yield no rows",
			a: testutil.MustTable(t, "a", []string{"id", "name"},
				[]string{"1", "x"}, []string{"2", "y"}),
			b: testutil.MustTable(t, "b", []string{"id", "val"},
				[]string{"3", "30"}, []string{"4", "40"}),
			req:        domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"id"}},
			wantHeader: []string{"id", "name", "val"},
			wantRows:   [][]string{},
		},
		{
			name: "differently named keys are both kept",
			a: testutil.MustTable(t, "a", []string{"code", "name"},
				[]string{"1", "x"}),
			b: testutil.MustTable(t, "b", []string{"ref", "val"},
				[]string{"1", "10"}),
			req:        domain.MergeRequest{KeysA: []string{"code"}, KeysB: []string{"ref"}},
			wantHeader: []string{"code", "name", "ref", "val"},
			wantRows:   [][]string{{"1", "x", "1", "10"}},
		},
		{
			name: "colliding non-key columns get suffixes",
			a: testutil.MustTable(t, "a", []string{"id", "v"},
				[]string{"1", "left"}),
			b: testutil.MustTable(t, "b", []string{"id", "v"},
				[]string{"1", "right"}),
			req:        domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"id"}},
			wantHeader: []string{"id", "v_x", "v_y"},
			wantRows:   [][]string{{"1", "left", "right"}},
		},
		{
			name: "duplicate right keys fan out in right order",
			a: testutil.MustTable(t, "a", []string{"id", "name"},
				[]string{"1", "x"}, []string{"2", "y"}),
			b: testutil.MustTable(t, "b", []string{"id", "val"},
				[]string{"1", "first"}, []string{"2", "other"}, []string{"1", "second"}),
			req:        domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"id"}},
			wantHeader: []string{"id", "name", "val"},
			wantRows: [][]string{
				{"1", "x", "first"},
				{"1", "x", "second"},
				{"2", "y", "other"},
			},
		},
		{
			name: "composite keys join with a dash",
			a: testutil.MustTable(t, "a", []string{"year", "month", "sales"},
				[]string{"2024", "01", "5"}, []string{"2024", "02", "6"}),
			b: testutil.MustTable(t, "b", []string{"y", "m", "target"},
				[]string{"2024", "02", "9"}),
			req:        domain.MergeRequest{KeysA: []string{"year", "month"}, KeysB: []string{"y", "m"}},
			wantHeader: []string{"year", "month", "sales", "y", "m", "target"},
			wantRows:   [][]string{{"2024", "02", "6", "2024", "02", "9"}},
		},
		{
			name: "separator ambiguity matches like the concatenated text",
			a: testutil.MustTable(t, "a", []string{"p", "q"},
				[]string{"1-2", "3"}),
			b: testutil.MustTable(t, "b", []string{"r", "s"},
				[]string{"1", "2-3"}),
			req:        domain.MergeRequest{KeysA: []string{"p", "q"}, KeysB: []string{"r", "s"}},
			wantHeader: []string{"p", "q", "r", "s"},
			wantRows:   [][]string{{"1-2", "3", "1", "2-3"}},
		},
		{
			name: "empty key cells match each other",
			a: testutil.MustTable(t, "a", []string{"id", "name"},
				[]string{"", "x"}),
			b: testutil.MustTable(t, "b", []string{"id", "val"},
				[]string{"", "10"}),
			req:        domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"id"}},
			wantHeader: []string{"id", "name", "val"},
			wantRows:   [][]string{{"", "x", "10"}},
		},
		{
			name: "same-named keys with differing parts are both kept",
			a: testutil.MustTable(t, "a", []string{"id", "code"},
				[]string{"a-b", "c"}),
			b: testutil.MustTable(t, "b", []string{"id", "code"},
				[]string{"a", "b-c"}),
			req:        domain.MergeRequest{KeysA: []string{"id", "code"}, KeysB: []string{"id", "code"}},
			wantHeader: []string{"id_x", "code_x", "id_y", "code_y"},
			wantRows:   [][]string{{"a-b", "c", "a", "b-c"}},
		},
		{
			name: "agreeing key columns still collapse",
			a: testutil.MustTable(t, "a", []string{"p", "id", "code"},
				[]string{"x", "a-b", "c"}),
			b: testutil.MustTable(t, "b", []string{"p", "id", "code"},
				[]string{"x", "a", "b-c"}),
			req: domain.MergeRequest{
				KeysA: []string{"p", "id", "code"}, KeysB: []string{"p", "id", "code"},
			},
			wantHeader: []string{"p", "id_x", "code_x", "id_y", "code_y"},
			wantRows:   [][]string{{"x", "a-b", "c", "a", "b-c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := newTestMerger(t).Merge(tt.a, tt.b, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, out.Header)
			if diff := cmp.Diff(tt.wantRows, out.Rows); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergePartial(t *testing.T) {
	tests := []struct {
		name     string
		a        *domain.Table
		b        *domain.Table
		req      domain.MergeRequest
		wantRows [][]string
	}{
		{
			name: "substring match",
			a:    testutil.MustTable(t, "a", []string{"key1"}, []string{"abc"}),
			b: testutil.MustTable(t, "b", []string{"key2"},
				[]string{"xabcy"}, []string{"qqq"}),
			req:      domain.MergeRequest{KeysA: []string{"key1"}, KeysB: []string{"key2"}, Partial: true},
			wantRows: [][]string{{"abc", "xabcy"}},
		},
		{
			name: "first right row wins",
			a:    testutil.MustTable(t, "a", []string{"key1"}, []string{"abc"}),
			b: testutil.MustTable(t, "b", []string{"key2"},
				[]string{"zzabc"}, []string{"abc"}),
			req:      domain.MergeRequest{KeysA: []string{"key1"}, KeysB: []string{"key2"}, Partial: true},
			wantRows: [][]string{{"abc", "zzabc"}},
		},
		{
			name: "unmatched left rows are dropped",
			a: testutil.MustTable(t, "a", []string{"key1"},
				[]string{"abc"}, []string{"nope"}),
			b:        testutil.MustTable(t, "b", []string{"key2"}, []string{"abcd"}),
			req:      domain.MergeRequest{KeysA: []string{"key1"}, KeysB: []string{"key2"}, Partial: true},
			wantRows: [][]string{{"abc", "abcd"}},
		},
		{
			name: "composite keys join with a space and counts may differ",
			a: testutil.MustTable(t, "a", []string{"first", "last"},
				[]string{"Ada", "Lovelace"}),
			b: testutil.MustTable(t, "b", []string{"full"},
				[]string{"Countess Ada Lovelace"}),
			req:      domain.MergeRequest{KeysA: []string{"first", "last"}, KeysB: []string{"full"}, Partial: true},
			wantRows: [][]string{{"Ada", "Lovelace", "Countess Ada Lovelace"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, summary, err := newTestMerger(t).Merge(tt.a, tt.b, tt.req)
			require.NoError(t, err)
			assert.Equal(t, "partial", summary.Mode)
			if diff := cmp.Diff(tt.wantRows, out.Rows); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergePartialKeepsBothKeyColumns(t *testing.T) {
	a := testutil.MustTable(t, "a", []string{"id"}, []string{"12"})
	b := testutil.MustTable(t, "b", []string{"id"}, []string{"123"})

	out, _, err := newTestMerger(t).Merge(a, b, domain.MergeRequest{
		KeysA: []string{"id"}, KeysB: []string{"id"}, Partial: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id_x", "id_y"}, out.Header)
	assert.Equal(t, [][]string{{"12", "123"}}, out.Rows)
}

func TestMergeErrors(t *testing.T) {
	a := testutil.CustomersTable(t)
	b := testutil.BalancesTable(t)

	tests := []struct {
		name     string
		a, b     *domain.Table
		req      domain.MergeRequest
		wantType apperrors.ErrorType
	}{
		{
			name:     "missing table",
			a:        a,
			req:      domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"id"}},
			wantType: apperrors.ErrTypeMergeConfig,
		},
		{
			name:     "no keys on A",
			a:        a,
			b:        b,
			req:      domain.MergeRequest{KeysB: []string{"id"}},
			wantType: apperrors.ErrTypeMergeConfig,
		},
		{
			name:     "no keys on B",
			a:        a,
			b:        b,
			req:      domain.MergeRequest{KeysA: []string{"id"}, Partial: true},
			wantType: apperrors.ErrTypeMergeConfig,
		},
		{
			name:     "mismatched key counts in exact mode",
			a:        a,
			b:        b,
			req:      domain.MergeRequest{KeysA: []string{"id", "name"}, KeysB: []string{"id"}},
			wantType: apperrors.ErrTypeMergeConfig,
		},
		{
			name:     "unknown key column",
			a:        a,
			b:        b,
			req:      domain.MergeRequest{KeysA: []string{"missing"}, KeysB: []string{"id"}},
			wantType: apperrors.ErrTypeMergeExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := newTestMerger(t).Merge(tt.a, tt.b, tt.req)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantType, apperrors.TypeOf(err))
		})
	}
}

func TestMergeUnknownColumnCause(t *testing.T) {
	_, _, err := newTestMerger(t).Merge(testutil.CustomersTable(t), testutil.BalancesTable(t),
		domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"nope"}})
	require.Error(t, err)

	var notFound *domain.ColumnNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "nope", notFound.Column)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := testutil.CustomersTable(t)
	b := testutil.BalancesTable(t)
	beforeA, beforeB := a.Clone(), b.Clone()

	_, _, err := newTestMerger(t).Merge(a, b, domain.MergeRequest{KeysA: []string{"id"}, KeysB: []string{"id"}})
	require.NoError(t, err)

	if diff := cmp.Diff(beforeA, a); diff != "" {
		t.Errorf("table A changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(beforeB, b); diff != "" {
		t.Errorf("table B changed (-before +after):\n%s", diff)
	}
}

func TestNewMergerFallsBackToDefaultSuffixes(t *testing.T) {
	m := NewMerger(MergeOptions{LeftSuffix: "_l", RightSuffix: "_l"}, nil)
	assert.Equal(t, DefaultMergeOptions(), m.opts)
}

func TestOutputLayoutKeepsNamesUnique(t *testing.T) {
	m := newTestMerger(t)
	a := testutil.MustTable(t, "a", []string{"v", "v_x"})
	b := testutil.MustTable(t, "b", []string{"v"})

	header, sources := m.outputLayout(a, b, nil)
	assert.Equal(t, []string{"v_x", "v_x_x", "v_y"}, header)
	assert.Len(t, sources, 3)
}
