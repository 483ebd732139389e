package table

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownColumn is returned when an operation names a column the table
// does not have.
var ErrUnknownColumn = errors.New("unknown column")

// ColumnError reports missing columns. It wraps ErrUnknownColumn.
type ColumnError struct {
	Columns []string
}

// Error implements the error interface.
func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownColumn, strings.Join(e.Columns, ", "))
}

// Unwrap returns ErrUnknownColumn so errors.Is works.
func (e *ColumnError) Unwrap() error {
	return ErrUnknownColumn
}

// Table is an ordered set of named columns with row-major storage.
//
// Tables are built with New and Append. Operations that change shape
// (WithColumn, Select, DropColumns, DropDuplicates, joins) return a new
// table; Set mutates in place and is meant for tables the caller owns,
// typically a Clone.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New creates an empty table with the given columns.
// Panics on duplicate column names.
func New(columns ...string) *Table {
	t := &Table{
		columns: slices.Clone(columns),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := t.index[c]; dup {
			panic(fmt.Sprintf("table: duplicate column %q", c))
		}
		t.index[c] = i
	}
	return t
}

// FromRows creates a table from columns and rows of Go values (see Of).
func FromRows(columns []string, rows [][]any) (*Table, error) {
	t := New(columns...)
	for i, r := range rows {
		cells := make([]Value, len(r))
		for j, c := range r {
			v, err := Of(c)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			cells[j] = v
		}
		if err := t.Append(cells...); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return t, nil
}

// Append adds a row. nil cells are stored as Null.
func (t *Table) Append(cells ...Value) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.columns))
	}
	row := make([]Value, len(cells))
	for i, c := range cells {
		if c == nil {
			c = Null{}
		}
		row[i] = c
	}
	t.rows = append(t.rows, row)
	return nil
}

// AppendRecord adds a row from a column-to-value map. Columns absent from
// the map are Null; keys that are not columns are an error.
func (t *Table) AppendRecord(rec map[string]Value) error {
	row := make([]Value, len(t.columns))
	for i := range row {
		row[i] = Null{}
	}
	for k, v := range rec {
		i, ok := t.index[k]
		if !ok {
			return &ColumnError{Columns: []string{k}}
		}
		if v == nil {
			v = Null{}
		}
		row[i] = v
	}
	t.rows = append(t.rows, row)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// Has reports whether the table has column c.
func (t *Table) Has(c string) bool {
	_, ok := t.index[c]
	return ok
}

// Require returns a ColumnError listing every column in cols the table lacks.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &ColumnError{Columns: missing}
	}
	return nil
}

func (t *Table) mustIndex(c string) int {
	i, ok := t.index[c]
	if !ok {
		panic(fmt.Sprintf("table: unknown column %q", c))
	}
	return i
}

// Get returns the cell at row i, column c. Panics if c is not a column;
// validate with Require first.
func (t *Table) Get(i int, c string) Value {
	return t.rows[i][t.mustIndex(c)]
}

// Set replaces the cell at row i, column c.
func (t *Table) Set(i int, c string, v Value) {
	if v == nil {
		v = Null{}
	}
	t.rows[i][t.mustIndex(c)] = v
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Value {
	return slices.Clone(t.rows[i])
}

// Record returns row i as a column-to-value map.
func (t *Table) Record(i int) map[string]Value {
	rec := make(map[string]Value, len(t.columns))
	for j, c := range t.columns {
		rec[c] = t.rows[i][j]
	}
	return rec
}

// Column returns a copy of column c.
func (t *Table) Column(c string) ([]Value, error) {
	j, ok := t.index[c]
	if !ok {
		return nil, &ColumnError{Columns: []string{c}}
	}
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.columns...)
	out.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		out.rows[i] = slices.Clone(r)
	}
	return out
}

// WithColumn returns a new table with column c set to vals. An existing
// column is replaced in place; a new column is appended at the end.
func (t *Table) WithColumn(c string, vals []Value) (*Table, error) {
	if len(vals) != len(t.rows) {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", c, len(vals), len(t.rows))
	}
	cols := t.columns
	j, exists := t.index[c]
	if !exists {
		cols = append(slices.Clone(t.columns), c)
		j = len(cols) - 1
	}
	out := New(cols...)
	out.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		row := make([]Value, len(cols))
		copy(row, r)
		v := vals[i]
		if v == nil {
			v = Null{}
		}
		row[j] = v
		out.rows[i] = row
	}
	return out, nil
}

// Select returns a new table with only the given columns, in that order.
func (t *Table) Select(cols ...string) (*Table, error) {
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	idx := make([]int, len(cols))
	for k, c := range cols {
		idx[k] = t.index[c]
	}
	out := New(cols...)
	out.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		row := make([]Value, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.rows[i] = row
	}
	return out, nil
}

// DropColumns returns a new table without the given columns. Names that are
// not columns are ignored.
func (t *Table) DropColumns(cols ...string) *Table {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	var keep []string
	for _, c := range t.columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

// Rename returns a new table with columns renamed according to names.
func (t *Table) Rename(names map[string]string) (*Table, error) {
	cols := make([]string, len(t.columns))
	seen := make(map[string]bool, len(t.columns))
	for i, c := range t.columns {
		if n, ok := names[c]; ok {
			c = n
		}
		if seen[c] {
			return nil, fmt.Errorf("rename produces duplicate column %q", c)
		}
		seen[c] = true
		cols[i] = c
	}
	out := t.Clone()
	out.columns = cols
	out.index = make(map[string]int, len(cols))
	for i, c := range cols {
		out.index[c] = i
	}
	return out, nil
}

// Filter returns a new table with the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := New(t.columns...)
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, slices.Clone(r))
		}
	}
	return out
}

// SortBy returns a new table with rows stably sorted by the given columns.
func (t *Table) SortBy(cols ...string) (*Table, error) {
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	out := t.Clone()
	idx := make([]int, len(cols))
	for k, c := range cols {
		idx[k] = t.index[c]
	}
	slices.SortStableFunc(out.rows, func(a, b []Value) int {
		for _, j := range idx {
			if c := Compare(a[j], b[j]); c != 0 {
				return c
			}
		}
		return 0
	})
	return out, nil
}

// DropDuplicates returns a new table where rows that agree on cols appear
// once. With keepLast the last occurrence survives, otherwise the first;
// either way survivors keep their original relative order. Empty cols
// compares whole rows. Null cells compare equal to each other.
func (t *Table) DropDuplicates(cols []string, keepLast bool) (*Table, error) {
	if len(cols) == 0 {
		cols = t.columns
	}
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	idx := make([]int, len(cols))
	for k, c := range cols {
		idx[k] = t.index[c]
	}
	keys := make([]string, len(t.rows))
	winner := make(map[string]int, len(t.rows))
	for i, r := range t.rows {
		keys[i] = rowKeyAt(r, idx)
		if _, seen := winner[keys[i]]; !seen || keepLast {
			winner[keys[i]] = i
		}
	}
	return t.Filter(func(i int) bool { return winner[keys[i]] == i }), nil
}

func rowKeyAt(r []Value, idx []int) string {
	cells := make([]Value, len(idx))
	for k, j := range idx {
		cells[k] = r[j]
	}
	return RowKey(cells)
}

// Concat stacks tables vertically. The result has the union of columns in
// first-seen order; cells for columns a table lacks are Null.
func Concat(tables ...*Table) *Table {
	var cols []string
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	out := New(cols...)
	for _, t := range tables {
		for _, r := range t.rows {
			row := make([]Value, len(cols))
			for j, c := range cols {
				if k, ok := t.index[c]; ok {
					row[j] = r[k]
				} else {
					row[j] = Null{}
				}
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}
