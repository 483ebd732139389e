package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/puget/internal/table"
)

func TestWriteTableRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	entry := time.Date(2013, 5, 1, 9, 30, 0, 0, time.UTC)
	in, err := table.FromRows(
		[]string{"PersonalID", "Name", "Income", "Veteran", "EntryDate", "Score"},
		[][]any{
			{int64(1), "Ann", 250.5, true, entry, int64(3)},
			{int64(2), nil, nil, false, nil, 1.5},
			{nil, "Bo", 75.0, nil, entry.AddDate(0, 0, 1), nil},
		},
	)
	require.NoError(t, err)

	require.NoError(t, s.WriteTable(ctx, "merged", in))
	out, err := s.ReadTable(ctx, "merged")
	require.NoError(t, err)

	assert.Equal(t, in.Columns(), out.Columns())
	require.Equal(t, 3, out.Len())
	assert.Equal(t, table.Int(1), out.Get(0, "PersonalID"))
	assert.Equal(t, table.String("Ann"), out.Get(0, "Name"))
	assert.Equal(t, table.Float(250.5), out.Get(0, "Income"))
	assert.Equal(t, table.Bool(true), out.Get(0, "Veteran"))
	assert.Equal(t, table.NewTime(entry), out.Get(0, "EntryDate"))
	// Ints sharing a column with floats come back as floats.
	assert.Equal(t, table.Float(3), out.Get(0, "Score"))
	assert.Equal(t, table.Float(1.5), out.Get(1, "Score"))

	assert.True(t, table.IsNull(out.Get(1, "Name")))
	assert.True(t, table.IsNull(out.Get(1, "EntryDate")))
	assert.Equal(t, table.Bool(false), out.Get(1, "Veteran"))
	assert.True(t, table.IsNull(out.Get(2, "PersonalID")))
	assert.True(t, table.IsNull(out.Get(2, "Veteran")))
}

func TestWriteTableReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := table.FromRows([]string{"a", "b"}, [][]any{{int64(1), "x"}, {int64(2), "y"}})
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(ctx, "out", first))

	second, err := table.FromRows([]string{"c"}, [][]any{{"only"}})
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(ctx, "out", second))

	got, err := s.ReadTable(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.Columns())
	require.Equal(t, 1, got.Len())
	assert.Equal(t, table.String("only"), got.Get(0, "c"))
}

func TestWriteTableMixedKindsAsText(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in, err := table.FromRows([]string{"code"}, [][]any{{int64(1)}, {"n/a"}})
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(ctx, "codes", in))

	got, err := s.ReadTable(ctx, "codes")
	require.NoError(t, err)
	assert.Equal(t, table.String("1"), got.Get(0, "code"))
	assert.Equal(t, table.String("n/a"), got.Get(1, "code"))
}

func TestWriteTableEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteTable(ctx, "empty", table.New("a", "b")))
	got, err := s.ReadTable(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Columns())
	assert.Equal(t, 0, got.Len())
}

func TestWriteTableQuotesColumnNames(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in, err := table.FromRows([]string{"Exit Date", `say "hi"`}, [][]any{{"2014-01-01", "hello"}})
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(ctx, "quoted", in))

	got, err := s.ReadTable(ctx, "quoted")
	require.NoError(t, err)
	assert.Equal(t, in.Columns(), got.Columns())
	assert.Equal(t, table.String("hello"), got.Get(0, `say "hi"`))
}

func TestWriteTableRejectsBadNames(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "1st", "a-b", "x; DROP TABLE runs", "runs", "Table_Columns"} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.WriteTable(ctx, name, table.New("a")))
		})
	}
}

func TestReadTableUnknown(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadTable(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = s.ReadTable(ctx, "runs")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestRecordRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	second := RunRecord{
		ID: "0190b2a4-0000-7000-8000-000000000002", Name: "king", Rows: 4, Summary: `{"rows":4}`,
	}
	first := RunRecord{
		ID: "0190b2a4-0000-7000-8000-000000000001", Name: "king", Table: "merged", Rows: 5,
		Summary: `{"rows":5}`,
		Stages: []StageRecord{
			{Seq: 2, Name: "cluster", RowsIn: 5, RowsOut: 5},
			{Seq: 1, Name: "merge", RowsIn: 0, RowsOut: 5},
		},
	}
	require.NoError(t, s.RecordRun(ctx, second))
	require.NoError(t, s.RecordRun(ctx, first))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, "merged", runs[0].Table)
	assert.Equal(t, 5, runs[0].Rows)
	assert.Equal(t, []StageRecord{
		{Seq: 1, Name: "merge", RowsIn: 0, RowsOut: 5},
		{Seq: 2, Name: "cluster", RowsIn: 5, RowsOut: 5},
	}, runs[0].Stages)

	assert.Equal(t, second.ID, runs[1].ID)
	assert.Equal(t, "", runs[1].Table)
	assert.Nil(t, runs[1].Stages)

	assert.Error(t, s.RecordRun(ctx, first), "duplicate run id")
}

func TestRecordRunDuplicateStageRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.RecordRun(ctx, RunRecord{
		ID: "run-1", Name: "x", Summary: "{}",
		Stages: []StageRecord{{Seq: 1, Name: "a"}, {Seq: 1, Name: "b"}},
	})
	require.Error(t, err)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSelectRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in, err := table.FromRows([]string{"individual", "cluster", "Veteran"}, [][]any{
		{int64(1), int64(1), true},
		{int64(2), int64(1), false},
		{int64(3), int64(2), true},
	})
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(ctx, "clustered", in))

	got, err := s.SelectRows(ctx, "clustered", `"cluster" = ? AND "Veteran" = ?`, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, table.Int(1), got.Get(0, "individual"))
	assert.Equal(t, table.Bool(true), got.Get(0, "Veteran"))

	got, err = s.SelectRows(ctx, "clustered", `"cluster" = ?`, 9)
	require.NoError(t, err)
	assert.Equal(t, in.Columns(), got.Columns())
	assert.Equal(t, 0, got.Len())

	_, err = s.SelectRows(ctx, "clustered", `"nope" = 1`)
	assert.Error(t, err)

	_, err = s.SelectRows(ctx, "missing", `"cluster" = 1`)
	assert.ErrorIs(t, err, ErrUnknownTable)
}
