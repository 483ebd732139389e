package reconcile

import (
	"time"

	"github.com/roach88/puget/internal/table"
)

// MaxMidpointSpan is the widest spread of time observations that still
// resolves to a midpoint. Spreads of this size or larger resolve to null.
const MaxMidpointSpan = 365 * 24 * time.Hour

// distinctNonNull returns the non-null values of vals with duplicates
// removed, in first-occurrence order.
func distinctNonNull(vals []table.Value) []table.Value {
	var out []table.Value
	seen := make(map[string]bool)
	for _, v := range vals {
		if table.IsNull(v) {
			continue
		}
		k := table.Key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// ResolveTime resolves conflicting time observations.
//
// One distinct non-null value is kept as is. Otherwise the span max-min
// decides: under MaxMidpointSpan the result is min + span/2 truncated to
// the day, otherwise Null. Non-time values are ignored.
func ResolveTime(vals []table.Value) table.Value {
	var times []time.Time
	for _, v := range distinctNonNull(vals) {
		if t, ok := table.AsTime(v); ok {
			times = append(times, t)
		}
	}
	switch len(times) {
	case 0:
		return table.Null{}
	case 1:
		return table.NewTime(times[0])
	}
	lo, hi := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	span := hi.Sub(lo)
	if span >= MaxMidpointSpan {
		return table.Null{}
	}
	return table.NewTime(table.Truncate(lo.Add(span / 2)))
}

// ResolveBoolean resolves conflicting boolean observations to their
// maximum. Works for Bool cells and 0/1 coded Int cells alike.
func ResolveBoolean(vals []table.Value) table.Value {
	distinct := distinctNonNull(vals)
	if len(distinct) == 0 {
		return table.Null{}
	}
	best := distinct[0]
	for _, v := range distinct[1:] {
		if table.Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}

// ResolveNumeric resolves conflicting numeric codes. Multiple distinct
// non-null values cannot be reconciled and resolve to Null.
func ResolveNumeric(vals []table.Value) table.Value {
	distinct := distinctNonNull(vals)
	if len(distinct) == 1 {
		return distinct[0]
	}
	return table.Null{}
}

// conflicting reports whether vals holds more than one distinct cell,
// counting Null as a cell.
func conflicting(vals []table.Value) bool {
	for _, v := range vals[1:] {
		if !table.Equal(v, vals[0]) {
			return true
		}
	}
	return false
}
