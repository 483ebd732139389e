package harness

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/puget/internal/store"
	"github.com/roach88/puget/internal/table"
)

// validIdentifier matches the column names final_state may filter on.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError describes a failed expectation with enough context to
// debug it from the test log alone.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func runAssertion(ctx context.Context, st *store.Store, a Assertion, result *Result) error {
	switch a.Type {
	case AssertColumnEquals:
		return assertColumn(result.Table, a.Column, a.Values)
	case AssertRowCount:
		if result.Table.Len() != *a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d rows", *a.Count),
				Actual:   fmt.Sprintf("%d rows", result.Table.Len()),
			}
		}
		return nil
	case AssertWarningContains:
		for _, w := range result.Summary.Warnings {
			if strings.Contains(w, a.Text) {
				return nil
			}
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("a warning containing %q", a.Text),
			Actual:   fmt.Sprintf("%q", result.Summary.Warnings),
		}
	case AssertFinalState:
		return assertFinalState(ctx, st, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// checkColumns compares each expected column of the final table.
func checkColumns(expect map[string][]any, result *Result) {
	cols := make([]string, 0, len(expect))
	for c := range expect {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	for _, c := range cols {
		if err := assertColumn(result.Table, c, expect[c]); err != nil {
			result.AddError(err.Error())
		}
	}
}

func assertColumn(t *table.Table, c string, want []any) error {
	got, err := t.Column(c)
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return &AssertionError{
			Type:     "column " + c,
			Expected: fmt.Sprintf("%d cells", len(want)),
			Actual:   fmt.Sprintf("%d cells", len(got)),
		}
	}
	for i := range want {
		if !cellMatches(want[i], got[i]) {
			return &AssertionError{
				Type:     fmt.Sprintf("column %s row %d", c, i),
				Expected: fmt.Sprintf("%v", want[i]),
				Actual:   describe(got[i]),
			}
		}
	}
	return nil
}

func checkMatrix(want [][]float64, result *Result) {
	if len(want) != len(result.Matrix) {
		result.AddError(fmt.Sprintf("matrix: expected %d individuals, got %d", len(want), len(result.Matrix)))
		return
	}
	for i := range want {
		if len(want[i]) != len(result.Matrix[i]) {
			result.AddError(fmt.Sprintf("matrix row %d: expected %d entries, got %d", i, len(want[i]), len(result.Matrix[i])))
			continue
		}
		for j := range want[i] {
			if math.Abs(want[i][j]-result.Matrix[i][j]) > 1e-9 {
				result.AddError(fmt.Sprintf("matrix (%d, %d): expected %v, got %v", i, j, want[i][j], result.Matrix[i][j]))
			}
		}
	}
}

// cellMatches compares a YAML scalar with a table cell by their text
// rendering, so 1 matches Int(1) and "2020-01-01" matches a midnight Time.
// nil matches only null cells.
func cellMatches(want any, got table.Value) bool {
	if want == nil {
		return table.IsNull(got)
	}
	if table.IsNull(got) {
		return false
	}
	w, err := table.Of(want)
	if err != nil {
		return false
	}
	return table.Format(w) == table.Format(got)
}

func describe(v table.Value) string {
	if table.IsNull(v) {
		return "null"
	}
	return table.Format(v)
}

// assertFinalState reads back the stored output rows matching the where
// clause and checks the expected cells on each. At least one row must
// match.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	where, args, err := buildWhereClause(a.Where)
	if err != nil {
		return err
	}
	got, err := st.SelectRows(ctx, OutputTable, where, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", OutputTable, err)
	}

	cols := make([]string, 0, len(a.Expect))
	for c := range a.Expect {
		if !got.Has(c) {
			return fmt.Errorf("final_state: unknown column %q", c)
		}
		cols = append(cols, c)
	}
	slices.Sort(cols)

	if got.Len() == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("rows where %v", a.Where),
			Actual:   "no rows",
		}
	}
	for i := 0; i < got.Len(); i++ {
		for _, c := range cols {
			if cell := got.Get(i, c); !cellMatches(a.Expect[c], cell) {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("%s = %v where %v", c, a.Expect[c], a.Where),
					Actual:   describe(cell),
				}
			}
		}
	}
	return nil
}

// buildWhereClause builds an AND of equality tests in column name order.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		if where[key] == nil {
			clauses = append(clauses, fmt.Sprintf("%q IS NULL", key))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%q = ?", key))
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, float64:
		return val
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return fmt.Sprintf("%v", val)
	}
}
