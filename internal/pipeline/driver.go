package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/puget/internal/store"
	"github.com/roach88/puget/internal/table"
)

// StageFunc transforms the working table. in is nil for the first stage
// of a run started without a table.
type StageFunc func(ctx context.Context, in *table.Table) (Result, error)

// Result is the output of one stage.
type Result struct {
	Table *table.Table

	// Details is the stage's own summary (merge, cluster, link or
	// reconcile report). It must marshal to JSON.
	Details any

	// Warnings are non-fatal data-quality issues.
	Warnings []string

	// Stored names the table the stage wrote to a sink, if any.
	Stored string
}

// Stage is a named step of a run.
type Stage struct {
	Name  string
	Apply StageFunc
}

// RunRecorder persists completed runs. *store.Store implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, r store.RunRecord) error
}

// StageSummary is one completed stage.
type StageSummary struct {
	Seq     int64  `json:"seq"`
	Name    string `json:"name"`
	RowsIn  int    `json:"rows_in"`
	RowsOut int    `json:"rows_out"`
	Details any    `json:"details,omitempty"`
}

// RunSummary describes a completed run.
type RunSummary struct {
	RunID    string         `json:"run_id"`
	Name     string         `json:"name"`
	Stages   []StageSummary `json:"stages"`
	Rows     int            `json:"rows"`
	Table    string         `json:"table,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Option configures a Driver.
type Option func(*Driver)

// WithRunIDGenerator sets the run id source. Defaults to UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(d *Driver) {
		d.ids = gen
	}
}

// WithRunRecorder records every completed run.
func WithRunRecorder(r RunRecorder) Option {
	return func(d *Driver) {
		d.recorder = r
	}
}

// Driver runs stages in declaration order.
type Driver struct {
	name     string
	stages   []Stage
	ids      RunIDGenerator
	recorder RunRecorder
}

// New creates a Driver for the named pipeline.
func New(name string, stages []Stage, opts ...Option) *Driver {
	d := &Driver{
		name:   name,
		stages: stages,
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stages returns the stage names in run order.
func (d *Driver) Stages() []string {
	names := make([]string, len(d.stages))
	for i, s := range d.stages {
		names[i] = s.Name
	}
	return names
}

// Run applies every stage to in and returns the final table.
// A failed stage stops the run; nothing is recorded for it.
func (d *Driver) Run(ctx context.Context, in *table.Table) (*table.Table, RunSummary, error) {
	if len(d.stages) == 0 {
		return nil, RunSummary{}, errors.New("pipeline has no stages")
	}

	sum := RunSummary{RunID: d.ids.Generate(), Name: d.name}
	clock := NewClock()
	cur := in

	slog.Info("run started", "run_id", sum.RunID, "pipeline", d.name, "stages", len(d.stages))
	for _, st := range d.stages {
		if err := ctx.Err(); err != nil {
			return nil, sum, stageError(st.Name, sum.RunID, err)
		}

		rowsIn := 0
		if cur != nil {
			rowsIn = cur.Len()
		}
		res, err := st.Apply(ctx, cur)
		if err != nil {
			return nil, sum, stageError(st.Name, sum.RunID, err)
		}
		if res.Table == nil {
			return nil, sum, &StageError{
				Code:    ErrCodeNoTable,
				Stage:   st.Name,
				RunID:   sum.RunID,
				Message: "stage returned no table",
			}
		}
		cur = res.Table

		ss := StageSummary{
			Seq:     clock.Next(),
			Name:    st.Name,
			RowsIn:  rowsIn,
			RowsOut: cur.Len(),
			Details: res.Details,
		}
		sum.Stages = append(sum.Stages, ss)
		sum.Warnings = append(sum.Warnings, res.Warnings...)
		if res.Stored != "" {
			sum.Table = res.Stored
		}
		slog.Info("stage complete",
			"run_id", sum.RunID,
			"stage", st.Name,
			"seq", ss.Seq,
			"rows_in", ss.RowsIn,
			"rows_out", ss.RowsOut)
	}
	sum.Rows = cur.Len()

	if d.recorder != nil {
		if err := d.record(ctx, sum); err != nil {
			return nil, sum, err
		}
	}
	slog.Info("run complete", "run_id", sum.RunID, "rows", sum.Rows, "warnings", len(sum.Warnings))
	return cur, sum, nil
}

func (d *Driver) record(ctx context.Context, sum RunSummary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	rec := store.RunRecord{
		ID:      sum.RunID,
		Name:    sum.Name,
		Table:   sum.Table,
		Rows:    sum.Rows,
		Summary: string(data),
	}
	for _, s := range sum.Stages {
		rec.Stages = append(rec.Stages, store.StageRecord{
			Seq:     int(s.Seq),
			Name:    s.Name,
			RowsIn:  s.RowsIn,
			RowsOut: s.RowsOut,
		})
	}
	if err := d.recorder.RecordRun(ctx, rec); err != nil {
		return fmt.Errorf("record run %s: %w", sum.RunID, err)
	}
	return nil
}
