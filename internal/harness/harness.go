package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/puget/internal/cluster"
	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/ingest"
	"github.com/roach88/puget/internal/pipeline"
	"github.com/roach88/puget/internal/reconcile"
	"github.com/roach88/puget/internal/store"
	"github.com/roach88/puget/internal/table"
	"github.com/roach88/puget/internal/testutil"
)

// OutputTable is the store table every scenario run writes.
const OutputTable = "output"

// Run executes a scenario: the input table goes through the operation's
// pipeline stage and is stored in a fresh in-memory database, then the
// expectations and assertions are checked against the result.
//
// The returned error reports harness failures (bad input, database setup).
// Failed expectations, including an unexpected run error, are recorded in
// the Result.
func Run(scenario *Scenario) (*Result, error) {
	in, err := inputTable(scenario.Input)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	result := NewResult()
	ctx := context.Background()

	var matrix [][]float64
	op, err := operationStage(scenario, &matrix)
	if err == nil {
		d := pipeline.New(scenario.Name, []pipeline.Stage{
			pipeline.InputStage("input", in),
			op,
			pipeline.StoreStage(st, OutputTable),
		},
			pipeline.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
			pipeline.WithRunRecorder(st),
		)
		result.Table, result.Summary, err = d.Run(ctx, nil)
	}
	result.Err = err
	result.Matrix = matrix

	if scenario.ExpectError != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("expected error containing %q, run succeeded", scenario.ExpectError))
		case !strings.Contains(err.Error(), scenario.ExpectError):
			result.AddError(fmt.Sprintf("expected error containing %q, got %q", scenario.ExpectError, err.Error()))
		}
		return result, nil
	}
	if err != nil {
		result.AddError(fmt.Sprintf("run failed: %v", err))
		return result, nil
	}

	checkColumns(scenario.Expect, result)
	if len(scenario.ExpectMatrix) > 0 {
		checkMatrix(scenario.ExpectMatrix, result)
	}
	for i, a := range scenario.Assertions {
		if err := runAssertion(ctx, st, a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

// inputTable builds the scenario's input, parsing the time columns.
func inputTable(in Input) (*table.Table, error) {
	t, err := table.FromRows(in.Columns, in.Rows)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	for _, c := range in.TimeColumns {
		vals, err := t.Column(c)
		if err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
		if t, err = t.WithColumn(c, ingest.ParseTimes(vals)); err != nil {
			return nil, fmt.Errorf("input: %w", err)
		}
	}
	return t, nil
}

// operationStage decodes the scenario config into the stage for its
// operation. The cooccurrence stage stores its matrix in matrix.
func operationStage(s *Scenario, matrix *[][]float64) (pipeline.Stage, error) {
	switch s.Operation {
	case OpCluster, OpCoOccurrence:
		var c config.ClusterConfig
		if err := s.Config.Decode(&c); err != nil {
			return pipeline.Stage{}, fmt.Errorf("decode cluster config: %w", err)
		}
		opts, err := pipeline.ClusterOptions(&c)
		if err != nil {
			return pipeline.Stage{}, err
		}
		if s.Operation == OpCoOccurrence {
			return coOccurrenceStage(opts, matrix), nil
		}
		return pipeline.ClusterStage(opts), nil

	case OpLink:
		var c config.LinkConfig
		if err := s.Config.Decode(&c); err != nil {
			return pipeline.Stage{}, fmt.Errorf("decode link config: %w", err)
		}
		strategies, opts, err := pipeline.LinkOptions(&c)
		if err != nil {
			return pipeline.Stage{}, err
		}
		return pipeline.LinkStage(strategies, opts), nil

	case OpReconcile:
		var c ReconcileConfig
		if err := s.Config.Decode(&c); err != nil {
			return pipeline.Stage{}, fmt.Errorf("decode reconcile config: %w", err)
		}
		r, err := reconcile.New(reconcile.Policy{
			PersonKey:     c.PersonKey,
			TimeFields:    c.TimeVar,
			BooleanFields: c.Boolean,
			NumericFields: c.NumericCode,
			DedupKeys:     c.Dedup,
			DOBField:      c.DOB,
		})
		if err != nil {
			return pipeline.Stage{}, err
		}
		return pipeline.ReconcileStage(r), nil
	}
	return pipeline.Stage{}, fmt.Errorf("unknown operation %q", s.Operation)
}

// coOccurrenceStage replaces the working table with the co-occurrence
// edges (one row per pair of individuals with a non-zero weight, upper
// triangle only).
func coOccurrenceStage(opts cluster.Options, matrix *[][]float64) pipeline.Stage {
	return pipeline.Stage{Name: OpCoOccurrence, Apply: func(_ context.Context, in *table.Table) (pipeline.Result, error) {
		m, ents, err := cluster.CoOccurrence(in, opts)
		if err != nil {
			return pipeline.Result{}, err
		}

		n := m.Size()
		rows := make([][]float64, n)
		edges := table.New("individual_a", "individual_b", "weight")
		for i := 0; i < n; i++ {
			rows[i] = make([]float64, n)
			for j := 0; j < n; j++ {
				w := m.At(i, j)
				rows[i][j] = w
				if j > i && w != 0 {
					if err := edges.Append(ents.Value(i), ents.Value(j), table.Float(w)); err != nil {
						return pipeline.Result{}, err
					}
				}
			}
		}
		*matrix = rows
		return pipeline.Result{Table: edges}, nil
	}}
}
