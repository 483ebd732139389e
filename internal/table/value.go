package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Value is a sealed interface representing a single table cell.
// Only Null, String, Int, Float, Bool, and Time implement this.
type Value interface {
	tableValue() // Sealed - only these types implement it
}

// Null represents a missing cell.
type Null struct{}

func (Null) tableValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a text cell.
type String string

func (String) tableValue() {}

// Int represents an integer cell (codes, identifiers, counts).
type Int int64

func (Int) tableValue() {}

// Float represents a real-valued cell (amounts).
type Float float64

func (Float) tableValue() {}

// MarshalJSON implements json.Marshaler for Float. NaN and infinities have
// no JSON form and are written as null.
func (f Float) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// Bool represents a yes/no cell.
type Bool bool

func (Bool) tableValue() {}

// Time represents a calendar instant. Times are stored in UTC.
type Time time.Time

func (Time) tableValue() {}

// Std returns the value as a time.Time.
func (t Time) Std() time.Time {
	return time.Time(t)
}

// MarshalJSON implements json.Marshaler for Time using Format.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(Format(t))
}

// NewTime creates a Time value normalized to UTC.
func NewTime(t time.Time) Time {
	return Time(t.UTC())
}

// Date creates a Time value at midnight UTC.
func Date(year int, month time.Month, day int) Time {
	return Time(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Truncate returns t with the time of day removed.
func Truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsNull reports whether v is missing. A nil Value counts as missing.
// Float NaN is also treated as missing.
func IsNull(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case Float:
		return math.IsNaN(float64(val))
	default:
		return false
	}
}

// Of converts a Go value to a Value. Supported inputs are nil, string, the
// integer kinds, float64, bool, time.Time and Value itself.
func Of(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case bool:
		return Bool(val), nil
	case time.Time:
		return NewTime(val), nil
	default:
		return nil, fmt.Errorf("unsupported cell type: %T", v)
	}
}

// AsFloat returns the numeric value of an Int, Float or Bool cell.
func AsFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		if math.IsNaN(float64(val)) {
			return 0, false
		}
		return float64(val), true
	case Bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsTime returns the instant of a Time cell.
func AsTime(v Value) (time.Time, bool) {
	if t, ok := v.(Time); ok {
		return t.Std(), true
	}
	return time.Time{}, false
}

// Format renders v for text output. Null renders as the empty string and
// times at midnight render as a bare date.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		if math.IsNaN(float64(val)) {
			return ""
		}
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case Time:
		t := val.Std().UTC()
		if t.Equal(Truncate(t)) {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.DateTime)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// kindRank orders values of different kinds: Null first, then Bool, numbers,
// strings and times.
func kindRank(v Value) int {
	switch v.(type) {
	case nil, Null:
		return 0
	case Bool:
		return 1
	case Int, Float:
		return 2
	case String:
		return 3
	case Time:
		return 4
	default:
		return 5
	}
}

// Compare orders two values. Values of different kinds order by kind; Int and
// Float compare numerically.
func Compare(a, b Value) int {
	if IsNull(a) || IsNull(b) {
		switch {
		case IsNull(a) && IsNull(b):
			return 0
		case IsNull(a):
			return -1
		default:
			return 1
		}
	}
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Int, Float:
		af, _ := AsFloat(a)
		bf, _ := AsFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case String:
		bv := b.(String)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case Time:
		return av.Std().Compare(b.(Time).Std())
	}
	return 0
}

// Equal reports whether two values are the same. Null equals Null, which is
// the behavior deduplication and grouping need.
func Equal(a, b Value) bool {
	return Key(a) == Key(b)
}
