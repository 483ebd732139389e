package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/store"
	"github.com/roach88/puget/internal/table"
	"github.com/roach88/puget/internal/testutil"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// appendRow returns a stage that adds one row of ints.
func appendRow(name string, v int64) Stage {
	return Stage{Name: name, Apply: func(_ context.Context, in *table.Table) (Result, error) {
		out := in.Clone()
		if err := out.Append(table.Int(v)); err != nil {
			return Result{}, err
		}
		return Result{Table: out, Warnings: []string{name + " warned"}}, nil
	}}
}

type recorder struct {
	runs []store.RunRecord
	err  error
}

func (r *recorder) RecordRun(_ context.Context, rec store.RunRecord) error {
	if r.err != nil {
		return r.err
	}
	r.runs = append(r.runs, rec)
	return nil
}

func TestRunStagesInOrder(t *testing.T) {
	in := testutil.Table(t, []string{"n"}, []any{int64(0)})
	d := New("test", []Stage{appendRow("first", 1), appendRow("second", 2)},
		WithRunIDGenerator(NewFixedGenerator("run-1")))
	assert.Equal(t, []string{"first", "second"}, d.Stages())

	out, sum, err := d.Run(context.Background(), in)
	require.NoError(t, err)

	vals, err := out.Column("n")
	require.NoError(t, err)
	assert.Equal(t, []table.Value{table.Int(0), table.Int(1), table.Int(2)}, vals)
	assert.Equal(t, 1, in.Len(), "input table is not modified")

	assert.Equal(t, RunSummary{
		RunID: "run-1",
		Name:  "test",
		Stages: []StageSummary{
			{Seq: 1, Name: "first", RowsIn: 1, RowsOut: 2},
			{Seq: 2, Name: "second", RowsIn: 2, RowsOut: 3},
		},
		Rows:     3,
		Warnings: []string{"first warned", "second warned"},
	}, sum)
}

func TestRunRecordsSummary(t *testing.T) {
	rec := &recorder{}
	in := testutil.Table(t, []string{"n"}, []any{int64(0)})
	d := New("test", []Stage{appendRow("first", 1), StoreStage(tableSink{}, "out")},
		WithRunIDGenerator(NewFixedGenerator("run-1")),
		WithRunRecorder(rec))

	_, _, err := d.Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, rec.runs, 1)
	got := rec.runs[0]
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "out", got.Table)
	assert.Equal(t, 2, got.Rows)
	assert.Equal(t, []store.StageRecord{
		{Seq: 1, Name: "first", RowsIn: 1, RowsOut: 2},
		{Seq: 2, Name: "store", RowsIn: 2, RowsOut: 2},
	}, got.Stages)
	assert.JSONEq(t, `{
		"run_id": "run-1",
		"name": "test",
		"stages": [
			{"seq": 1, "name": "first", "rows_in": 1, "rows_out": 2},
			{"seq": 2, "name": "store", "rows_in": 2, "rows_out": 2}
		],
		"rows": 2,
		"table": "out",
		"warnings": ["first warned"]
	}`, got.Summary)
}

func TestRunRecorderError(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	d := New("test", []Stage{appendRow("first", 1)},
		WithRunIDGenerator(NewFixedGenerator("run-1")), WithRunRecorder(rec))

	_, _, err := d.Run(context.Background(), testutil.Table(t, []string{"n"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record run run-1")
	assert.False(t, IsStageError(err))
}

func TestRunStageFailure(t *testing.T) {
	boom := errors.New("boom")
	failing := Stage{Name: "bad", Apply: func(context.Context, *table.Table) (Result, error) {
		return Result{}, boom
	}}
	rec := &recorder{}
	d := New("test", []Stage{appendRow("first", 1), failing, appendRow("never", 2)},
		WithRunIDGenerator(NewFixedGenerator("run-1")), WithRunRecorder(rec))

	_, sum, err := d.Run(context.Background(), testutil.Table(t, []string{"n"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsStageError(err))
	assert.Equal(t, "bad", FailedStage(err))
	assert.Equal(t, "STAGE_FAILED: stage bad: boom (run=run-1)", err.Error())
	assert.Len(t, sum.Stages, 1)
	assert.Empty(t, rec.runs)
}

func TestRunClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code StageErrorCode
	}{
		{"config", config.MissingKey("individual_var"), ErrCodeConfig},
		{"wrapped config", errors.Join(errors.New("cluster"), config.MissingKey("x")), ErrCodeConfig},
		{"deadline", context.DeadlineExceeded, ErrCodeCanceled},
		{"other", io.ErrUnexpectedEOF, ErrCodeStageFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Stage{Name: "s", Apply: func(context.Context, *table.Table) (Result, error) {
				return Result{}, tt.err
			}}
			_, _, err := New("test", []Stage{st}).Run(context.Background(), nil)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
		})
	}
}

func TestRunNoTable(t *testing.T) {
	empty := Stage{Name: "empty", Apply: func(context.Context, *table.Table) (Result, error) {
		return Result{}, nil
	}}
	_, _, err := New("test", []Stage{empty}).Run(context.Background(), nil)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeNoTable, se.Code)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancelling := Stage{Name: "cancel", Apply: func(_ context.Context, in *table.Table) (Result, error) {
		cancel()
		return Result{Table: in}, nil
	}}
	d := New("test", []Stage{cancelling, appendRow("never", 1)})

	_, sum, err := d.Run(ctx, testutil.Table(t, []string{"n"}))
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.Equal(t, "never", FailedStage(err))
	assert.Len(t, sum.Stages, 1)
}

func TestRunNoStages(t *testing.T) {
	_, _, err := New("test", nil).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunWithStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	in := testutil.Table(t, []string{"individual", "group"},
		[]any{int64(1), int64(10)}, []any{int64(2), int64(10)}, []any{int64(3), int64(20)})
	d := New("households", []Stage{
		InputStage("input", in),
		ClusterStage(clusterByGroup),
		StoreStage(s, "clustered"),
	}, WithRunIDGenerator(NewFixedGenerator("run-1")), WithRunRecorder(s))

	_, sum, err := d.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "clustered", sum.Table)

	stored, err := s.ReadTable(ctx, "clustered")
	require.NoError(t, err)
	labels, err := stored.Column("cluster")
	require.NoError(t, err)
	assert.Equal(t, []table.Value{table.Int(1), table.Int(1), table.Int(2)}, labels)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "clustered", runs[0].Table)
	assert.Len(t, runs[0].Stages, 3)
}

// tableSink accepts every write.
type tableSink struct{}

func (tableSink) WriteTable(context.Context, string, *table.Table) error { return nil }
