package table

import "slices"

// LeftJoin keeps every row of t and attaches the columns of right whose key
// columns match. A left row matching several right rows is repeated once per
// match, in right order; a left row matching none gets Null right cells.
//
// Right columns already present in t (other than the keys) are dropped, so
// the left side wins. Null keys never match.
func (t *Table) LeftJoin(right *Table, on ...string) (*Table, error) {
	return t.join(right, on, false)
}

// OuterJoin is LeftJoin followed by the right rows no left row matched,
// with Null left cells and the key cells taken from the right row.
func (t *Table) OuterJoin(right *Table, on ...string) (*Table, error) {
	return t.join(right, on, true)
}

func (t *Table) join(right *Table, on []string, outer bool) (*Table, error) {
	if err := t.Require(on...); err != nil {
		return nil, err
	}
	if err := right.Require(on...); err != nil {
		return nil, err
	}

	var extra []string
	for _, c := range right.columns {
		if !t.Has(c) {
			extra = append(extra, c)
		}
	}
	cols := append(slices.Clone(t.columns), extra...)
	out := New(cols...)

	lidx := make([]int, len(on))
	ridx := make([]int, len(on))
	for k, c := range on {
		lidx[k] = t.index[c]
		ridx[k] = right.index[c]
	}
	xidx := make([]int, len(extra))
	for k, c := range extra {
		xidx[k] = right.index[c]
	}

	byKey := make(map[string][]int)
	for i, r := range right.rows {
		if anyNull(r, ridx) {
			continue
		}
		k := rowKeyAt(r, ridx)
		byKey[k] = append(byKey[k], i)
	}

	matched := make([]bool, len(right.rows))
	for _, l := range t.rows {
		var hits []int
		if !anyNull(l, lidx) {
			hits = byKey[rowKeyAt(l, lidx)]
		}
		if len(hits) == 0 {
			row := make([]Value, len(cols))
			copy(row, l)
			for k := range extra {
				row[len(l)+k] = Null{}
			}
			out.rows = append(out.rows, row)
			continue
		}
		for _, h := range hits {
			matched[h] = true
			row := make([]Value, len(cols))
			copy(row, l)
			for k, j := range xidx {
				row[len(l)+k] = right.rows[h][j]
			}
			out.rows = append(out.rows, row)
		}
	}

	if outer {
		for i, r := range right.rows {
			if matched[i] {
				continue
			}
			row := make([]Value, len(cols))
			for j := range t.columns {
				row[j] = Null{}
			}
			for k, j := range lidx {
				row[j] = r[ridx[k]]
			}
			for k, j := range xidx {
				row[len(t.columns)+k] = r[j]
			}
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}

func anyNull(r []Value, idx []int) bool {
	for _, j := range idx {
		if IsNull(r[j]) {
			return true
		}
	}
	return false
}
