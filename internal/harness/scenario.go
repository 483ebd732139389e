package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Operations a scenario can exercise.
const (
	OpCluster      = "cluster"
	OpLink         = "link"
	OpReconcile    = "reconcile"
	OpCoOccurrence = "cooccurrence"
)

var operations = []string{OpCluster, OpLink, OpReconcile, OpCoOccurrence}

// Scenario is one table-in, table-out check against the real packages.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Operation is one of cluster, link, reconcile or cooccurrence.
	Operation string `yaml:"operation"`

	// Input is the table the operation runs on.
	Input Input `yaml:"input"`

	// Config is the operation's settings, decoded when the scenario runs:
	// a cluster section for cluster and cooccurrence, a link section for
	// link and a ReconcileConfig for reconcile.
	Config yaml.Node `yaml:"config"`

	// Expect maps an output column to its expected cells in row order.
	// A null entry expects a null cell.
	Expect map[string][]any `yaml:"expect,omitempty"`

	// ExpectMatrix is the expected co-occurrence matrix, indexed by
	// individuals in first-appearance order.
	ExpectMatrix [][]float64 `yaml:"expect_matrix,omitempty"`

	// Assertions check the stored output and the run summary.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// ExpectError, when set, requires the run to fail with an error whose
	// message contains it.
	ExpectError string `yaml:"expect_error,omitempty"`

	// RunID fixes the run id. Defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`
}

// Input is an inline table. Cells are YAML scalars; columns listed in
// TimeColumns are parsed as dates or datetimes.
type Input struct {
	Columns     []string `yaml:"columns"`
	Rows        [][]any  `yaml:"rows"`
	TimeColumns []string `yaml:"time_columns,omitempty"`
}

// ReconcileConfig is the reconcile section of a scenario. Keys left out
// stay nil, which the reconciler treats as not configured.
type ReconcileConfig struct {
	PersonKey   string   `yaml:"person_id"`
	TimeVar     []string `yaml:"time_var"`
	Boolean     []string `yaml:"boolean"`
	NumericCode []string `yaml:"numeric_code"`
	Dedup       []string `yaml:"duplicate_check_columns"`
	DOB         string   `yaml:"dob_column"`
}

// Assertion checks the outcome of a run.
type Assertion struct {
	// Type is one of column_equals, final_state, row_count or
	// warning_contains.
	Type string `yaml:"type"`

	// Column and Values are used by column_equals.
	Column string `yaml:"column,omitempty"`
	Values []any  `yaml:"values,omitempty"`

	// Where selects stored rows and Expect lists the cells every selected
	// row must hold (final_state).
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of output rows (row_count).
	Count *int `yaml:"count,omitempty"`

	// Text must appear in at least one run warning (warning_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion types.
const (
	AssertColumnEquals    = "column_equals"
	AssertFinalState      = "final_state"
	AssertRowCount        = "row_count"
	AssertWarningContains = "warning_contains"
)

// LoadScenario reads and parses a scenario YAML file. Unknown keys, a
// missing required field and an unknown operation are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if !slices.Contains(operations, s.Operation) {
		return fmt.Errorf("operation must be one of %v, got %q", operations, s.Operation)
	}
	if len(s.Input.Columns) == 0 {
		return fmt.Errorf("input.columns is required")
	}
	for i, row := range s.Input.Rows {
		if len(row) != len(s.Input.Columns) {
			return fmt.Errorf("input.rows[%d]: has %d cells, want %d", i, len(row), len(s.Input.Columns))
		}
	}
	for _, c := range s.Input.TimeColumns {
		if !slices.Contains(s.Input.Columns, c) {
			return fmt.Errorf("input.time_columns: unknown column %q", c)
		}
	}
	if s.Config.Kind == 0 {
		return fmt.Errorf("config is required")
	}
	if len(s.ExpectMatrix) > 0 && s.Operation != OpCoOccurrence {
		return fmt.Errorf("expect_matrix only applies to cooccurrence")
	}
	if s.ExpectError == "" && len(s.Expect) == 0 && len(s.ExpectMatrix) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("one of expect, expect_matrix, assertions or expect_error is required")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertColumnEquals:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for column_equals", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for row_count", index)
		}
	case AssertWarningContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for warning_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
