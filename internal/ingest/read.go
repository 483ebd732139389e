package ingest

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/table"
)

// DefaultCategoricalUnknown lists the codes HMIS uses for "client doesn't
// know", "client refused" and "data not collected".
var DefaultCategoricalUnknown = []int64{8, 9, 99}

// Warnings collects non-fatal data-quality issues. The zero value is ready
// to use and a nil *Warnings only logs.
type Warnings struct {
	msgs []string
}

// Add logs msg for the named table and records it.
func (w *Warnings) Add(tableName, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn(msg, "table", tableName)
	if w != nil {
		w.msgs = append(w.msgs, tableName+": "+msg)
	}
}

// List returns the recorded warnings in order.
func (w *Warnings) List() []string {
	if w == nil {
		return nil
	}
	return slices.Clone(w.msgs)
}

// ReadOptions configures ReadTable.
type ReadOptions struct {
	// Table names the table in warnings and errors.
	Table string

	ColumnsToDrop []string

	// CategoricalVar columns have the CategoricalUnknown codes replaced
	// by Null. A nil CategoricalUnknown uses DefaultCategoricalUnknown.
	CategoricalVar     []string
	CategoricalUnknown []int64

	// TimeVar columns are parsed as times; StringVar columns are kept as
	// text. All other columns are typed with Infer.
	TimeVar   []string
	StringVar []string

	// DuplicateCheckColumns drive keep-last deduplication when Dedup is
	// set. A nil list skips deduplication with a warning.
	DuplicateCheckColumns []string
	Dedup                 bool

	Warnings *Warnings
}

// OptionsFor builds ReadOptions from a table configuration.
func OptionsFor(name string, tc config.TableConfig) ReadOptions {
	return ReadOptions{
		Table:                 name,
		ColumnsToDrop:         tc.ColumnsToDrop,
		CategoricalVar:        tc.CategoricalVar,
		CategoricalUnknown:    tc.CategoricalUnknown,
		TimeVar:               tc.TimeVar,
		StringVar:             tc.StringVar,
		DuplicateCheckColumns: tc.DuplicateCheckColumns,
		Dedup:                 true,
	}
}

// ReadTable reads and concatenates the partitions of m, then:
//  1. drops ColumnsToDrop
//  2. parses TimeVar columns (unparseable cells become Null) and infers
//     the type of every column not in StringVar
//  3. deduplicates on DuplicateCheckColumns, keeping the last row
//  4. replaces CategoricalUnknown codes in CategoricalVar columns by Null
func ReadTable(m Manifest, opts ReadOptions) (*table.Table, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("read %s: empty manifest", opts.Table)
	}
	parts := make([]*table.Table, 0, len(m))
	for _, p := range m {
		t, err := ReadCSVFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", opts.Table, err)
		}
		slog.Debug("read partition", "table", opts.Table, "partition", p.Name, "rows", t.Len())
		parts = append(parts, t)
	}
	t := table.Concat(parts...)

	if err := t.Require(opts.ColumnsToDrop...); err != nil {
		return nil, fmt.Errorf("read %s: columns_to_drop: %w", opts.Table, err)
	}
	t = t.DropColumns(opts.ColumnsToDrop...)

	t, err := typeColumns(t, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.Table, err)
	}

	if opts.Dedup {
		if opts.DuplicateCheckColumns == nil {
			opts.Warnings.Add(opts.Table, "dedup is on but duplicate_check_columns is not set, no deduplication")
		} else {
			if t, err = t.DropDuplicates(opts.DuplicateCheckColumns, true); err != nil {
				return nil, fmt.Errorf("read %s: duplicate_check_columns: %w", opts.Table, err)
			}
		}
	}

	if err := t.Require(opts.CategoricalVar...); err != nil {
		return nil, fmt.Errorf("read %s: categorical_var: %w", opts.Table, err)
	}
	unknown := opts.CategoricalUnknown
	if unknown == nil {
		unknown = DefaultCategoricalUnknown
	}
	for _, c := range opts.CategoricalVar {
		vals, _ := t.Column(c)
		if t, err = t.WithColumn(c, nullCodes(vals, unknown)); err != nil {
			return nil, err
		}
	}

	slog.Info("read table", "table", opts.Table, "partitions", len(m), "rows", t.Len())
	return t, nil
}

func typeColumns(t *table.Table, opts ReadOptions) (*table.Table, error) {
	if err := t.Require(opts.TimeVar...); err != nil {
		return nil, fmt.Errorf("time_var: %w", err)
	}
	if err := t.Require(opts.StringVar...); err != nil {
		return nil, fmt.Errorf("string_var: %w", err)
	}
	out := t
	for _, c := range t.Columns() {
		if slices.Contains(opts.StringVar, c) {
			continue
		}
		vals, _ := t.Column(c)
		if slices.Contains(opts.TimeVar, c) {
			vals = ParseTimes(vals)
		} else {
			vals = Infer(vals)
		}
		var err error
		if out, err = out.WithColumn(c, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// nullCodes replaces numeric cells equal to one of codes by Null.
func nullCodes(vals []table.Value, codes []int64) []table.Value {
	out := make([]table.Value, len(vals))
	for i, v := range vals {
		out[i] = v
		var f float64
		switch n := v.(type) {
		case table.Int:
			f = float64(n)
		case table.Float:
			f = float64(n)
		default:
			continue
		}
		for _, c := range codes {
			if f == float64(c) {
				out[i] = table.Null{}
				break
			}
		}
	}
	return out
}
