package harness

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/puget/internal/table"
	"github.com/roach88/puget/internal/testutil"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestGoldenSnapshots(t *testing.T) {
	for _, name := range []string{
		"households_bridged",
		"households_disconnected",
		"time_window",
		"linkage_ssn_block",
		"cooccurrence_groups",
	} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

const minimal = `
name: minimal
description: "one household"
operation: cluster
input:
  columns: [individual, group]
  rows:
    - [1, 1]
    - [2, 1]
config:
  individual_var: individual
  group_var: group
`

func TestRunRecordsFailedExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimal + `
expect:
  cluster: [1, 2]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "column cluster row 1")
}

func TestRunUsesScenarioRunID(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimal + `
run_id: run-42
assertions:
  - type: row_count
    count: 2
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "run-42", result.Summary.RunID)
	assert.Equal(t, OutputTable, result.Summary.Table)
}

func TestRunDefaultRunID(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimal + `
expect:
  cluster: [1, 1]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultRunID, result.Summary.RunID)
	assert.Equal(t, []string{"input", "cluster", "store"}, stageNames(result))
}

func TestRunUnexpectedError(t *testing.T) {
	scenario, err := ParseScenario([]byte(strings.Replace(minimal, "group_var: group", "group_var: household", 1) + `
expect:
  cluster: [1, 1]
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Error(t, result.Err)
	assert.Contains(t, result.Errors[0], "run failed")
}

func TestRunExpectErrorNotRaised(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimal + `
expect_error: "boom"
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "run succeeded")
}

func TestFinalStateNoMatchingRows(t *testing.T) {
	scenario, err := ParseScenario([]byte(minimal + `
assertions:
  - type: final_state
    where: { individual: 9 }
    expect: { cluster: 1 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "no rows")
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", minimal + "expectations: {}\n", "failed to parse YAML"},
		{"no expectations", minimal, "one of expect"},
		{"bad operation", strings.Replace(minimal, "operation: cluster", "operation: kmeans", 1) + "expect: {cluster: [1, 1]}\n", "operation must be one of"},
		{"ragged row", strings.Replace(minimal, "- [2, 1]", "- [2]", 1) + "expect: {cluster: [1, 1]}\n", "input.rows[1]"},
		{"unknown time column", strings.Replace(minimal, "  rows:", "  time_columns: [entry]\n  rows:", 1) + "expect: {cluster: [1, 1]}\n", `unknown column "entry"`},
		{"matrix on cluster", minimal + "expect_matrix: [[0]]\n", "expect_matrix only applies"},
		{"row_count without count", minimal + "assertions: [{type: row_count}]\n", "count is required"},
		{"unknown assertion", minimal + "assertions: [{type: trace_order}]\n", "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestBuildWhereClause(t *testing.T) {
	where, args, err := buildWhereClause(map[string]any{"b": true, "a": 1, "c": nil})
	require.NoError(t, err)
	assert.Equal(t, `"a" = ? AND "b" = ? AND "c" IS NULL`, where)
	assert.Equal(t, []any{1, 1}, args)

	_, _, err = buildWhereClause(map[string]any{"a; DROP TABLE runs": 1})
	assert.Error(t, err)
}

func TestCellMatches(t *testing.T) {
	assert.True(t, cellMatches(1, table.Int(1)))
	assert.True(t, cellMatches(1.5, table.Float(1.5)))
	assert.True(t, cellMatches("2020-01-01", table.Date(2020, 1, 1)))
	assert.True(t, cellMatches(nil, table.Null{}))
	assert.False(t, cellMatches(nil, table.Int(0)))
	assert.False(t, cellMatches(0, table.Null{}))
}

func stageNames(r *Result) []string {
	names := make([]string, len(r.Summary.Stages))
	for i, s := range r.Summary.Stages {
		names[i] = s.Name
	}
	return names
}
