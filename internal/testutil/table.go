// Package testutil provides helpers shared by package tests and the
// scenario harness: table builders and a fixed run id source.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/puget/internal/table"
)

// Table builds a table from Go values, failing the test on unsupported
// cells or ragged rows.
func Table(t testing.TB, columns []string, rows ...[]any) *table.Table {
	t.Helper()
	tbl, err := table.FromRows(columns, rows)
	require.NoError(t, err)
	return tbl
}

// Column returns column c of tbl, failing the test if it is missing.
func Column(t testing.TB, tbl *table.Table, c string) []table.Value {
	t.Helper()
	vals, err := tbl.Column(c)
	require.NoError(t, err)
	return vals
}

// Ints converts vs to Int cells.
func Ints(vs ...int) []table.Value {
	out := make([]table.Value, len(vs))
	for i, v := range vs {
		out[i] = table.Int(v)
	}
	return out
}

// Day returns midnight UTC on the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
