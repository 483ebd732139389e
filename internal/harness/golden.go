package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/puget/internal/table"
)

// Snapshot is the golden form of a scenario run: stage row counts and the
// final table rendered as text. Stage details are left out so snapshots
// stay stable when summaries gain fields.
type Snapshot struct {
	ScenarioName string          `json:"scenario_name"`
	RunID        string          `json:"run_id"`
	Stages       []StageSnapshot `json:"stages"`
	Columns      []string        `json:"columns"`
	Rows         [][]string      `json:"rows"`
	Matrix       [][]float64     `json:"matrix,omitempty"`
}

// StageSnapshot is one stage of a Snapshot.
type StageSnapshot struct {
	Seq     int64  `json:"seq"`
	Name    string `json:"name"`
	RowsIn  int    `json:"rows_in"`
	RowsOut int    `json:"rows_out"`
}

// NewSnapshot builds the snapshot of a completed run. Null cells render
// as the empty string.
func NewSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{
		ScenarioName: name,
		RunID:        result.Summary.RunID,
		Stages:       make([]StageSnapshot, len(result.Summary.Stages)),
		Columns:      []string{},
		Rows:         [][]string{},
		Matrix:       result.Matrix,
	}
	for i, s := range result.Summary.Stages {
		snap.Stages[i] = StageSnapshot{Seq: s.Seq, Name: s.Name, RowsIn: s.RowsIn, RowsOut: s.RowsOut}
	}
	if result.Table == nil {
		return snap
	}
	snap.Columns = result.Table.Columns()
	for i := 0; i < result.Table.Len(); i++ {
		row := result.Table.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = table.Format(v)
		}
		snap.Rows = append(snap.Rows, cells)
	}
	return snap
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario, fails the test if any expectation
// failed, and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, e)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
