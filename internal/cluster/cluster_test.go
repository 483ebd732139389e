package cluster

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/table"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func households(t *testing.T, individuals, groups []any) *table.Table {
	t.Helper()
	rows := make([][]any, len(individuals))
	for i := range individuals {
		rows[i] = []any{individuals[i], groups[i]}
	}
	tbl, err := table.FromRows([]string{"individual", "group"}, rows)
	require.NoError(t, err)
	return tbl
}

func labelsOf(t *testing.T, tbl *table.Table) []table.Value {
	t.Helper()
	vals, err := tbl.Column(DefaultColumn)
	require.NoError(t, err)
	return vals
}

func ints(vs ...int) []table.Value {
	out := make([]table.Value, len(vs))
	for i, v := range vs {
		out[i] = table.Int(v)
	}
	return out
}

var individuals = []any{1, 2, 3, 4, 1, 2, 3, 4}

func TestCoOccurrenceGroups(t *testing.T) {
	tbl := households(t, individuals, []any{1, 1, 2, 2, 1, 2, 1, 2})

	for _, sparse := range []bool{false, true} {
		m, ents, err := CoOccurrence(tbl, Options{IndividualVar: "individual", GroupVar: "group", Sparse: sparse})
		require.NoError(t, err)
		assert.Equal(t, 4, ents.Len())

		want := [][]float64{
			{0, 1, 1, 0},
			{1, 0, 2, 1},
			{1, 2, 0, 1},
			{0, 1, 1, 0},
		}
		for i := range want {
			for j := range want[i] {
				assert.Equal(t, want[i][j], m.At(i, j), "(%d, %d)", i, j)
			}
		}
	}
}

func TestClusterBridgedGroups(t *testing.T) {
	tbl := households(t, individuals, []any{1, 1, 2, 2, 1, 2, 1, 2})

	out, sum, err := Cluster(tbl, Options{IndividualVar: "individual", GroupVar: "group"})
	require.NoError(t, err)
	assert.Equal(t, ints(1, 1, 1, 1, 1, 1, 1, 1), labelsOf(t, out))
	assert.Equal(t, Summary{Individuals: 4, Clusters: 1, Method: MethodComponents}, sum)
}

func TestClusterDisconnectedGroups(t *testing.T) {
	tbl := households(t, individuals, []any{1, 1, 2, 2, 1, 1, 2, 2})

	for _, method := range []Method{MethodComponents, MethodHierarchical} {
		for _, sparse := range []bool{false, true} {
			out, _, err := Cluster(tbl, Options{IndividualVar: "individual", GroupVar: "group", Method: method, Sparse: sparse})
			require.NoError(t, err)
			assert.Equal(t, ints(1, 1, 2, 2, 1, 1, 2, 2), labelsOf(t, out), "method=%s sparse=%v", method, sparse)
		}
	}
}

func TestClusterHierarchicalRequiresFullCooccurrence(t *testing.T) {
	tbl := households(t, individuals, []any{1, 1, 2, 2, 1, 2, 1, 2})

	out, sum, err := Cluster(tbl, Options{IndividualVar: "individual", GroupVar: "group", Method: MethodHierarchical})
	require.NoError(t, err)
	assert.Equal(t, ints(1, 1, 1, 2, 1, 1, 1, 2), labelsOf(t, out))
	assert.Equal(t, 2, sum.Clusters)
}

func TestClusterLabelsIgnoreGroupNames(t *testing.T) {
	a := households(t, individuals, []any{1, 1, 2, 2, 1, 1, 2, 2})
	b := households(t, individuals, []any{"z", "z", "a", "a", "z", "z", "a", "a"})

	outA, _, err := Cluster(a, Options{IndividualVar: "individual", GroupVar: "group"})
	require.NoError(t, err)
	outB, _, err := Cluster(b, Options{IndividualVar: "individual", GroupVar: "group"})
	require.NoError(t, err)
	assert.Equal(t, labelsOf(t, outA), labelsOf(t, outB))
}

func TestClusterNullIndividual(t *testing.T) {
	tbl := households(t, []any{1, nil, 2}, []any{1, 1, 2})

	out, sum, err := Cluster(tbl, Options{IndividualVar: "individual", GroupVar: "group"})
	require.NoError(t, err)
	assert.Equal(t, []table.Value{table.Int(1), table.Null{}, table.Int(2)}, labelsOf(t, out))
	assert.Equal(t, 2, sum.Individuals)
}

func TestClusterTimeCooccurrence(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }
	tbl, err := table.FromRows([]string{"individual", "group", "entry"}, [][]any{
		{1, 1, day(1)},
		{2, 2, day(1)},
		{3, 3, day(5)},
		{4, 4, day(6)},
	})
	require.NoError(t, err)

	out, _, err := Cluster(tbl, Options{
		IndividualVar: "individual",
		TimeVars:      []string{"entry"},
	})
	require.NoError(t, err)
	assert.Equal(t, ints(1, 1, 2, 3), labelsOf(t, out))

	out, _, err = Cluster(tbl, Options{
		IndividualVar: "individual",
		GroupVar:      "group",
		TimeVars:      []string{"entry"},
		TimeDelta:     24 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, ints(1, 1, 2, 2), labelsOf(t, out))

	m, _, err := CoOccurrence(tbl, Options{IndividualVar: "individual", TimeVars: []string{"entry"}})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Zero(t, m.At(i, i))
	}
}

func TestClusterErrors(t *testing.T) {
	tbl := households(t, individuals, []any{1, 1, 2, 2, 1, 1, 2, 2})

	_, _, err := Cluster(tbl, Options{GroupVar: "group"})
	assert.True(t, config.IsMissingKey(err))

	_, _, err = Cluster(tbl, Options{IndividualVar: "individual"})
	assert.True(t, config.IsMissingKey(err))

	_, _, err = Cluster(tbl, Options{IndividualVar: "individual", GroupVar: "group", Method: "kmeans"})
	assert.True(t, config.IsConfigError(err))

	_, _, err = Cluster(tbl, Options{IndividualVar: "individual", TimeVars: []string{"group"}, Sparse: true})
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, _, err = Cluster(tbl, Options{IndividualVar: "individual", GroupVar: "household"})
	assert.ErrorIs(t, err, table.ErrUnknownColumn)
}
