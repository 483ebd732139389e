package table

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// keySep separates cell keys in a row key. It cannot appear in a cell key
// because string cells are quoted.
const keySep = "\x1f"

// Key returns the canonical string form of v for hashing and equality.
//
// Properties:
//   - Strings are NFC normalized, so composed and decomposed forms agree
//   - Integral floats share the key of the equal Int
//   - Times are keyed by their UTC instant
//   - Null and NaN share one key
func Key(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "n"
	case String:
		return "s" + strconv.Quote(norm.NFC.String(string(val)))
	case Int:
		return "i" + strconv.FormatInt(int64(val), 10)
	case Float:
		f := float64(val)
		if math.IsNaN(f) {
			return "n"
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return "i" + strconv.FormatInt(int64(f), 10)
		}
		return "f" + strconv.FormatFloat(f, 'g', -1, 64)
	case Bool:
		if val {
			return "b1"
		}
		return "b0"
	case Time:
		return "t" + val.Std().UTC().Format(time.RFC3339Nano)
	default:
		return "?"
	}
}

// RowKey joins the keys of the given cells.
func RowKey(cells []Value) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteString(keySep)
		}
		b.WriteString(Key(c))
	}
	return b.String()
}
