package pairs

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/index"
	"github.com/roach88/puget/internal/table"
)

type stamp struct {
	entity int
	at     time.Time
}

// TimeWindow emits, for every column in timeVars, the ordered pair
// (entity(r1), entity(r2)) for every row pair r1, r2 whose timestamps are
// both present and at most delta apart. A row pairs with itself, so
// self pairs appear and are left for the diagonal rule downstream.
//
// Rows with a null individual or a null timestamp never pair.
func TimeWindow(t *table.Table, individualVar string, timeVars []string, delta time.Duration, ents *index.Entities) ([]Pair, error) {
	if delta < 0 {
		return nil, fmt.Errorf("time pairs: negative tolerance %s", delta)
	}
	if err := t.Require(append([]string{individualVar}, timeVars...)...); err != nil {
		return nil, fmt.Errorf("time pairs: %w", err)
	}

	var out []Pair
	for _, c := range timeVars {
		var stamps []stamp
		for r := 0; r < t.Len(); r++ {
			v := t.Get(r, individualVar)
			at, ok := table.AsTime(t.Get(r, c))
			if table.IsNull(v) || !ok {
				continue
			}
			e, err := ents.IndexOf(v)
			if err != nil {
				return nil, fmt.Errorf("time pairs: %w", err)
			}
			stamps = append(stamps, stamp{entity: e, at: at})
		}
		slices.SortStableFunc(stamps, func(a, b stamp) int {
			return a.at.Compare(b.at)
		})

		for a := range stamps {
			for b := a; b < len(stamps) && stamps[b].at.Sub(stamps[a].at) <= delta; b++ {
				out = append(out, Pair{I: stamps[a].entity, J: stamps[b].entity})
				if a != b {
					out = append(out, Pair{I: stamps[b].entity, J: stamps[a].entity})
				}
			}
		}
	}
	return out, nil
}

var units = map[string]time.Duration{
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"h": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"s": time.Second, "sec": time.Second, "second": time.Second, "seconds": time.Second,
	"ms": time.Millisecond,
}

// ParseDelta converts a unit and magnitude into a tolerance. Units are
// case-insensitive except that "M" is rejected as ambiguous.
func ParseDelta(unit string, magnitude float64) (time.Duration, error) {
	if unit == "M" {
		return 0, config.InvalidValue("time_unit", "ambiguous unit %q, use \"min\" or \"days\"", unit)
	}
	base, ok := units[strings.ToLower(unit)]
	if !ok {
		return 0, config.InvalidValue("time_unit", "unknown unit %q", unit)
	}
	if magnitude < 0 || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return 0, config.InvalidValue("time_delta", "must be a non-negative number, got %v", magnitude)
	}
	d := magnitude * float64(base)
	if d >= math.MaxInt64 {
		return 0, config.InvalidValue("time_delta", "tolerance %v %s is too large", magnitude, unit)
	}
	return time.Duration(d), nil
}
