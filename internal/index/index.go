// Package index maps entity identifiers onto dense integer indices.
//
// A Map is built once per clustering or linkage invocation and discarded
// afterwards. Indices are assigned in first-occurrence order, so building
// twice from the same sequence yields identical maps.
package index

import (
	"errors"
	"fmt"

	"github.com/roach88/puget/internal/table"
)

// ErrUnknownID is returned when looking up an identifier the map was not
// built from.
var ErrUnknownID = errors.New("unknown identifier")

// Map is a bijection between distinct identifiers and 0..n-1.
type Map[K comparable] struct {
	pos map[K]int
	ids []K
}

// Build registers each distinct identifier in ids, in first-occurrence order.
func Build[K comparable](ids []K) *Map[K] {
	m := &Map[K]{pos: make(map[K]int, len(ids))}
	for _, id := range ids {
		if _, ok := m.pos[id]; ok {
			continue
		}
		m.pos[id] = len(m.ids)
		m.ids = append(m.ids, id)
	}
	return m
}

// Index returns the dense index of id.
func (m *Map[K]) Index(id K) (int, error) {
	i, ok := m.pos[id]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownID, id)
	}
	return i, nil
}

// ID returns the identifier at dense index i.
func (m *Map[K]) ID(i int) K {
	return m.ids[i]
}

// IDs returns the identifiers in index order.
func (m *Map[K]) IDs() []K {
	out := make([]K, len(m.ids))
	copy(out, m.ids)
	return out
}

// Len returns the number of registered identifiers.
func (m *Map[K]) Len() int {
	return len(m.ids)
}

// Entities indexes the non-null values of a table column. Values are keyed
// by table.Key so Int(3) and Float(3) name the same entity.
type Entities struct {
	*Map[string]
	values []table.Value
}

// FromColumn builds Entities from column c of t. Null cells are skipped.
func FromColumn(t *table.Table, c string) (*Entities, error) {
	vals, err := t.Column(c)
	if err != nil {
		return nil, err
	}
	var keys []string
	var firsts []table.Value
	seen := make(map[string]bool)
	for _, v := range vals {
		if table.IsNull(v) {
			continue
		}
		k := table.Key(v)
		keys = append(keys, k)
		if !seen[k] {
			seen[k] = true
			firsts = append(firsts, v)
		}
	}
	return &Entities{Map: Build(keys), values: firsts}, nil
}

// IndexOf returns the dense index of the entity v.
func (e *Entities) IndexOf(v table.Value) (int, error) {
	i, ok := e.pos[table.Key(v)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownID, table.Format(v))
	}
	return i, nil
}

// Value returns the first-seen cell for dense index i.
func (e *Entities) Value(i int) table.Value {
	return e.values[i]
}
