package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Extracted holds reader-specific keys claimed from a TableConfig.
type Extracted struct {
	table  string
	values map[string]any
}

// Extract removes keys from the pass-through payload. It returns the
// claimed values and a new TableConfig without them; the receiver is not
// modified. Keys absent from the payload are simply not claimed.
func (t TableConfig) Extract(table string, keys ...string) (Extracted, TableConfig) {
	ex := Extracted{table: table, values: make(map[string]any)}
	rest := t
	rest.Extra = maps.Clone(t.Extra)
	for _, k := range keys {
		if v, ok := rest.Extra[k]; ok {
			ex.values[k] = v
			delete(rest.Extra, k)
		}
	}
	return ex, rest
}

// ExtraKeys returns the unclaimed pass-through keys in sorted order.
func (t TableConfig) ExtraKeys() []string {
	keys := make([]string, 0, len(t.Extra))
	for k := range t.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Has reports whether key was claimed.
func (e Extracted) Has(key string) bool {
	_, ok := e.values[key]
	return ok
}

func (e Extracted) missing(key string) *Error {
	err := MissingKey(key)
	err.Table = e.table
	return err
}

func (e Extracted) mismatch(key, want string, got any) *Error {
	return &Error{
		Code:    ErrCodeTypeMismatch,
		Table:   e.table,
		Key:     key,
		Message: fmt.Sprintf("expected %s, got %T", want, got),
	}
}

// String returns a required single column name or scalar as a string.
// A list where one value is expected is a type mismatch.
func (e Extracted) String(key string) (string, error) {
	v, ok := e.values[key]
	if !ok || v == nil {
		return "", e.missing(key)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case int:
		return strconv.Itoa(val), nil
	case bool, float64:
		return fmt.Sprint(val), nil
	default:
		return "", e.mismatch(key, "a single value", v)
	}
}

// OptionalString returns the value of key, or def when it is absent.
func (e Extracted) OptionalString(key, def string) (string, error) {
	if !e.Has(key) {
		return def, nil
	}
	return e.String(key)
}

// Strings returns a required list of strings. A single string is accepted
// as a one-element list.
func (e Extracted) Strings(key string) ([]string, error) {
	v, ok := e.values[key]
	if !ok || v == nil {
		return nil, e.missing(key)
	}
	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, e.mismatch(key, "a list of strings", item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, e.mismatch(key, "a list of strings", v)
	}
}

// Int returns a required integer.
func (e Extracted) Int(key string) (int64, error) {
	v, ok := e.values[key]
	if !ok || v == nil {
		return 0, e.missing(key)
	}
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, e.mismatch(key, "an integer", v)
		}
		return n, nil
	default:
		return 0, e.mismatch(key, "an integer", v)
	}
}

// CodeNames returns a required mapping from integer codes to names.
func (e Extracted) CodeNames(key string) (map[int64]string, error) {
	v, ok := e.values[key]
	if !ok || v == nil {
		return nil, e.missing(key)
	}
	out := make(map[int64]string)
	add := func(k any, name any) error {
		s, ok := name.(string)
		if !ok {
			return e.mismatch(key, "string names", name)
		}
		code, err := strconv.ParseInt(fmt.Sprint(k), 10, 64)
		if err != nil {
			return e.mismatch(key, "integer codes", k)
		}
		out[code] = s
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		for k, name := range val {
			if err := add(k, name); err != nil {
				return nil, err
			}
		}
	case map[any]any:
		for k, name := range val {
			if err := add(k, name); err != nil {
				return nil, err
			}
		}
	default:
		return nil, e.mismatch(key, "a code to name mapping", v)
	}
	return out, nil
}
