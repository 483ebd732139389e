package ingest

import (
	"fmt"
	"slices"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/table"
)

// Suffixes appended to measurement columns collected at entry and exit.
const (
	EntrySuffix = "_entry"
	ExitSuffix  = "_exit"
)

// Category maps one value of a category column to a column suffix.
type Category struct {
	Value  table.Value
	Suffix string
}

// SplitRowsToColumns turns rows that differ only in categoryCol into
// columns. For every category, in the given order, the rows holding that
// category have every column other than mergeCols suffixed; the per-category
// tables are then outer-joined on mergeCols. The category column itself is
// dropped. A category value without a suffix is an error.
func SplitRowsToColumns(t *table.Table, categoryCol string, cats []Category, mergeCols []string) (*table.Table, error) {
	if slices.Contains(mergeCols, categoryCol) {
		return nil, fmt.Errorf("split rows: category column %q is also a merge column", categoryCol)
	}
	if err := t.Require(append([]string{categoryCol}, mergeCols...)...); err != nil {
		return nil, fmt.Errorf("split rows: %w", err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("split rows: no categories")
	}

	for i := 0; i < t.Len(); i++ {
		v := t.Get(i, categoryCol)
		if !slices.ContainsFunc(cats, func(c Category) bool { return table.Equal(c.Value, v) }) {
			return nil, fmt.Errorf("split rows: %s value %s has no suffix", categoryCol, table.Format(v))
		}
	}

	var wide *table.Table
	for _, cat := range cats {
		part := t.Filter(func(i int) bool { return table.Equal(t.Get(i, categoryCol), cat.Value) }).
			DropColumns(categoryCol)
		names := make(map[string]string)
		for _, c := range part.Columns() {
			if !slices.Contains(mergeCols, c) {
				names[c] = c + cat.Suffix
			}
		}
		part, err := part.Rename(names)
		if err != nil {
			return nil, fmt.Errorf("split rows: %w", err)
		}
		if wide == nil {
			wide = part
			continue
		}
		if wide, err = wide.OuterJoin(part, mergeCols...); err != nil {
			return nil, fmt.Errorf("split rows: %w", err)
		}
	}
	return wide, nil
}

// Stages identifies the collection stage of entry/exit measurements.
type Stages struct {
	Column       string
	Entry        table.Value
	Exit         table.Value
	Update       table.Value
	EnrollmentID string
}

// stageKeys are the configuration keys read by StagesFrom.
var stageKeys = []string{
	"collection_stage_column",
	"entry_stage_val",
	"exit_stage_val",
	"update_stage_val",
	"person_enrollment_id",
}

// StagesFrom claims the collection stage keys from tc. All of them are
// required.
func StagesFrom(name string, tc config.TableConfig) (Stages, config.TableConfig, error) {
	ex, rest := tc.Extract(name, stageKeys...)
	var st Stages
	var err error
	if st.Column, err = ex.String("collection_stage_column"); err != nil {
		return st, rest, err
	}
	vals := make([]table.Value, 3)
	for i, k := range []string{"entry_stage_val", "exit_stage_val", "update_stage_val"} {
		n, err := ex.Int(k)
		if err != nil {
			return st, rest, err
		}
		vals[i] = table.Int(n)
	}
	st.Entry, st.Exit, st.Update = vals[0], vals[1], vals[2]
	if st.EnrollmentID, err = ex.String("person_enrollment_id"); err != nil {
		return st, rest, err
	}
	return st, rest, nil
}

// stageRows drops the update stage and any stage that is neither entry nor
// exit, with a warning for the latter.
func stageRows(t *table.Table, st Stages, opts ReadOptions) (*table.Table, error) {
	if err := t.Require(st.Column, st.EnrollmentID); err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.Table, err)
	}
	other := 0
	out := t.Filter(func(i int) bool {
		v := t.Get(i, st.Column)
		switch {
		case table.Equal(v, st.Update):
			return false
		case table.Equal(v, st.Entry), table.Equal(v, st.Exit):
			return true
		default:
			other++
			return false
		}
	})
	if other > 0 {
		opts.Warnings.Add(opts.Table, "dropped %d rows with a collection stage other than entry, exit or update", other)
	}
	return out, nil
}

// ReadEntryExitTable reads a table whose measurements come in entry and
// exit rows and returns one row per enrollment with _entry and _exit
// columns. Update stage rows are not used.
func ReadEntryExitTable(m Manifest, opts ReadOptions, st Stages) (*table.Table, error) {
	t, err := ReadTable(m, opts)
	if err != nil {
		return nil, err
	}
	if t, err = stageRows(t, st, opts); err != nil {
		return nil, err
	}
	wide, err := SplitRowsToColumns(t, st.Column, []Category{
		{Value: st.Entry, Suffix: EntrySuffix},
		{Value: st.Exit, Suffix: ExitSuffix},
	}, []string{st.EnrollmentID})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.Table, err)
	}
	return wide, nil
}
