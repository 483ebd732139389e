package table

// Group is a set of rows sharing the same key.
type Group struct {
	// Key holds the grouping cells, one per grouping column.
	Key []Value

	// Rows lists row indices in table order.
	Rows []int
}

// GroupBy partitions rows by the given columns. Groups are returned in the
// order their first row appears. Rows with a Null in any grouping column
// belong to no group.
func (t *Table) GroupBy(cols ...string) ([]Group, error) {
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	idx := make([]int, len(cols))
	for k, c := range cols {
		idx[k] = t.index[c]
	}
	var groups []Group
	pos := make(map[string]int)
	for i, r := range t.rows {
		key := make([]Value, len(idx))
		skip := false
		for k, j := range idx {
			if IsNull(r[j]) {
				skip = true
				break
			}
			key[k] = r[j]
		}
		if skip {
			continue
		}
		rk := RowKey(key)
		g, ok := pos[rk]
		if !ok {
			g = len(groups)
			pos[rk] = g
			groups = append(groups, Group{Key: key})
		}
		groups[g].Rows = append(groups[g].Rows, i)
	}
	return groups, nil
}
