package ingest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/reconcile"
	"github.com/roach88/puget/internal/table"
)

// DefaultFiles maps the table names understood in the tables section of
// the configuration to the file read from each partition when none is
// configured.
var DefaultFiles = map[string]string{
	"enrollment":           "Enrollment.csv",
	"exit":                 "Exit.csv",
	"client":               "Client.csv",
	"disabilities":         "Disabilities.csv",
	"employment_education": "EmploymentEducation.csv",
	"health_dv":            "HealthAndDV.csv",
	"income":               "IncomeBenefits.csv",
	"project":              "Project.csv",
}

// Loader reads the tables of one configuration and collects the
// data-quality warnings raised along the way.
type Loader struct {
	cfg      *config.Config
	warnings Warnings
}

// NewLoader creates a Loader for cfg.
func NewLoader(cfg *config.Config) *Loader {
	return &Loader{cfg: cfg}
}

// Warnings returns the warnings recorded so far.
func (l *Loader) Warnings() []string {
	return l.warnings.List()
}

// source resolves the manifest and read options of a configured table.
func (l *Loader) source(name string, tc config.TableConfig) (Manifest, ReadOptions, error) {
	src := SourceFor(tc, DefaultFiles[name])
	var (
		m   Manifest
		err error
	)
	switch s := src.(type) {
	case ExplicitManifest:
		resolved := make(ExplicitManifest, len(s))
		for k, p := range s {
			resolved[k] = l.cfg.Resolve(p)
		}
		m, err = Resolve(resolved, l.cfg.DataDir, l.cfg.Paths)
	default:
		m, err = Resolve(src, l.cfg.Resolve(l.cfg.DataDir), l.cfg.Paths)
	}
	if err != nil {
		return nil, ReadOptions{}, inTable(err, name)
	}
	opts := OptionsFor(name, tc)
	opts.Warnings = &l.warnings
	return m, opts, nil
}

// inTable attributes a configuration error to the named table.
func inTable(err error, name string) error {
	var ce *config.Error
	if errors.As(err, &ce) && ce.Table == "" {
		ce.Table = name
	}
	return err
}

// EnrollmentKeys names the identifier columns of the enrollment table.
type EnrollmentKeys struct {
	GroupID      string
	EnrollmentID string
	PersonID     string
	ProgramID    string
	EntryDate    string
}

// Enrollment reads the enrollment table. With groups set only households
// of more than one row are kept. Rows are sorted by household.
func (l *Loader) Enrollment(groups bool) (*table.Table, EnrollmentKeys, error) {
	const name = "enrollment"
	var keys EnrollmentKeys
	tc, err := l.cfg.Table(name)
	if err != nil {
		return nil, keys, err
	}
	ex, tc := tc.Extract(name, "group_id_column", "person_enrollment_id", "person_id", "program_id", "entry_date")
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"group_id_column", &keys.GroupID},
		{"person_enrollment_id", &keys.EnrollmentID},
		{"person_id", &keys.PersonID},
		{"program_id", &keys.ProgramID},
		{"entry_date", &keys.EntryDate},
	} {
		if *f.dst, err = ex.String(f.key); err != nil {
			return nil, keys, err
		}
	}

	m, opts, err := l.source(name, tc)
	if err != nil {
		return nil, keys, err
	}
	t, err := ReadTable(m, opts)
	if err != nil {
		return nil, keys, err
	}

	if groups {
		gs, err := t.GroupBy(keys.GroupID)
		if err != nil {
			return nil, keys, fmt.Errorf("read %s: %w", name, err)
		}
		keep := make([]bool, t.Len())
		for _, g := range gs {
			if len(g.Rows) > 1 {
				for _, i := range g.Rows {
					keep[i] = true
				}
			}
		}
		t = t.Filter(func(i int) bool { return keep[i] })
	}
	if t, err = t.SortBy(keys.GroupID); err != nil {
		return nil, keys, fmt.Errorf("read %s: %w", name, err)
	}
	return t, keys, nil
}

// Exit reads the exit table and, when a destination map is configured,
// attaches the destination categories. It returns the enrollment id column.
func (l *Loader) Exit() (*table.Table, string, error) {
	const name = "exit"
	tc, err := l.cfg.Table(name)
	if err != nil {
		return nil, "", err
	}
	ex, tc := tc.Extract(name, "destination_column", "person_enrollment_id")
	destCol, err := ex.String("destination_column")
	if err != nil {
		return nil, "", err
	}
	enid, err := ex.String("person_enrollment_id")
	if err != nil {
		return nil, "", err
	}

	m, opts, err := l.source(name, tc)
	if err != nil {
		return nil, "", err
	}
	t, err := ReadTable(m, opts)
	if err != nil {
		return nil, "", err
	}
	if l.cfg.DestinationMap == "" {
		return t, enid, nil
	}
	dest, err := ReadDestinationMap(l.cfg.Resolve(l.cfg.DestinationMap))
	if err != nil {
		return nil, "", err
	}
	t, err = MergeDestination(t, destCol, dest)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	return t, enid, nil
}

// ReadDestinationMap reads the destination category table. Only rows of
// the "New Standards" standard are kept, Subsidy is recoded from Yes/No to
// a boolean and the Standard column is dropped.
func ReadDestinationMap(path string) (*table.Table, error) {
	t, err := ReadTable(Manifest{{Name: "destinations", Path: path}}, ReadOptions{Table: "destination_map"})
	if err != nil {
		return nil, err
	}
	if err := t.Require("DestinationNumeric"); err != nil {
		return nil, fmt.Errorf("destination map: %w", err)
	}
	if t.Has("Standard") {
		t = t.Filter(func(i int) bool {
			return table.Equal(t.Get(i, "Standard"), table.String("New Standards"))
		}).DropColumns("Standard")
	}
	if t.Has("Subsidy") {
		vals, _ := t.Column("Subsidy")
		for i, v := range vals {
			switch v {
			case table.String("Yes"):
				vals[i] = table.Bool(true)
			case table.String("No"):
				vals[i] = table.Bool(false)
			default:
				vals[i] = table.Null{}
			}
		}
		if t, err = t.WithColumn("Subsidy", vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MergeDestination left-joins the destination map onto t by the numeric
// destination code in destCol. The code is kept as DestinationNumeric.
func MergeDestination(t *table.Table, destCol string, dest *table.Table) (*table.Table, error) {
	if err := t.Require(destCol); err != nil {
		return nil, err
	}
	if destCol != "DestinationNumeric" {
		var err error
		if dest, err = dest.DropColumns(destCol).Rename(map[string]string{"DestinationNumeric": destCol}); err != nil {
			return nil, err
		}
	}
	out, err := t.LeftJoin(dest, destCol)
	if err != nil {
		return nil, err
	}
	if destCol == "DestinationNumeric" {
		return out, nil
	}
	return out.DropColumns("DestinationNumeric").Rename(map[string]string{destCol: "DestinationNumeric"})
}

// Client reads the client table and reconciles conflicting rows per
// person. The returned Reconciler applies the date of birth rule once
// enrollment dates are known.
func (l *Loader) Client() (*table.Table, *reconcile.Reconciler, reconcile.Report, error) {
	const name = "client"
	tc, err := l.cfg.Table(name)
	if err != nil {
		return nil, nil, reconcile.Report{}, err
	}
	ex, tc := tc.Extract(name, "person_id", "dob_column", "boolean", "numeric_code")
	p := reconcile.Policy{
		TimeFields: tc.TimeVar,
		DedupKeys:  tc.DuplicateCheckColumns,
	}
	if p.PersonKey, err = ex.String("person_id"); err != nil {
		return nil, nil, reconcile.Report{}, err
	}
	if p.DOBField, err = ex.String("dob_column"); err != nil {
		return nil, nil, reconcile.Report{}, err
	}
	if ex.Has("boolean") {
		if p.BooleanFields, err = ex.Strings("boolean"); err != nil {
			return nil, nil, reconcile.Report{}, err
		}
	}
	if ex.Has("numeric_code") {
		if p.NumericFields, err = ex.Strings("numeric_code"); err != nil {
			return nil, nil, reconcile.Report{}, err
		}
	}
	rec, err := reconcile.New(p)
	if err != nil {
		return nil, nil, reconcile.Report{}, inTable(err, name)
	}

	m, opts, err := l.source(name, tc)
	if err != nil {
		return nil, nil, reconcile.Report{}, err
	}
	// Deduplication waits until conflicts are resolved.
	opts.Dedup = false
	t, err := ReadTable(m, opts)
	if err != nil {
		return nil, nil, reconcile.Report{}, err
	}
	t, report, err := rec.Reconcile(t)
	if err != nil {
		return nil, nil, report, fmt.Errorf("read %s: %w", name, err)
	}
	for _, w := range report.Warnings {
		l.warnings.msgs = append(l.warnings.msgs, name+": "+w)
	}
	return t, rec, report, nil
}

// EntryExit reads a table with entry and exit measurements, such as
// employment_education or health_dv. It returns the enrollment id column.
func (l *Loader) EntryExit(name string) (*table.Table, string, error) {
	tc, err := l.cfg.Table(name)
	if err != nil {
		return nil, "", err
	}
	st, tc, err := StagesFrom(name, tc)
	if err != nil {
		return nil, "", err
	}
	m, opts, err := l.source(name, tc)
	if err != nil {
		return nil, "", err
	}
	t, err := ReadEntryExitTable(m, opts, st)
	if err != nil {
		return nil, "", err
	}
	return t, st.EnrollmentID, nil
}

// Disabilities reads the disabilities table and pivots it to one row per
// enrollment with a <type>_entry and <type>_exit column per disability type
// holding the response. type_names maps disability codes to names.
func (l *Loader) Disabilities() (*table.Table, string, error) {
	const name = "disabilities"
	tc, err := l.cfg.Table(name)
	if err != nil {
		return nil, "", err
	}
	st, tc, err := StagesFrom(name, tc)
	if err != nil {
		return nil, "", err
	}
	ex, tc := tc.Extract(name, "type_column", "response_column", "type_names")
	typeCol, err := ex.String("type_column")
	if err != nil {
		return nil, "", err
	}
	respCol, err := ex.String("response_column")
	if err != nil {
		return nil, "", err
	}
	names, err := ex.CodeNames("type_names")
	if err != nil {
		return nil, "", err
	}

	m, opts, err := l.source(name, tc)
	if err != nil {
		return nil, "", err
	}
	t, err := ReadTable(m, opts)
	if err != nil {
		return nil, "", err
	}
	if t, err = stageRows(t, st, opts); err != nil {
		return nil, "", err
	}
	wide, err := PivotResponses(t, st, typeCol, respCol, names, opts.Warnings)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	return wide, st.EnrollmentID, nil
}

// PivotResponses reshapes rows of (enrollment, stage, type, response) into
// one row per enrollment, in first-seen order, with a column per type name
// and stage. Later rows win. Rows with an unmapped type are skipped with a
// warning.
func PivotResponses(t *table.Table, st Stages, typeCol, respCol string, names map[int64]string, w *Warnings) (*table.Table, error) {
	if err := t.Require(st.EnrollmentID, st.Column, typeCol, respCol); err != nil {
		return nil, err
	}
	codes := make([]int64, 0, len(names))
	for c := range names {
		codes = append(codes, c)
	}
	slices.Sort(codes)

	cols := []string{st.EnrollmentID}
	for _, suffix := range []string{EntrySuffix, ExitSuffix} {
		for _, c := range codes {
			cols = append(cols, names[c]+suffix)
		}
	}
	out := table.New(cols...)

	groups, err := t.GroupBy(st.EnrollmentID)
	if err != nil {
		return nil, err
	}
	unmapped := 0
	for _, g := range groups {
		rec := map[string]table.Value{st.EnrollmentID: g.Key[0]}
		for _, i := range g.Rows {
			code, ok := t.Get(i, typeCol).(table.Int)
			typeName, known := names[int64(code)]
			if !ok || !known {
				unmapped++
				continue
			}
			suffix := EntrySuffix
			if table.Equal(t.Get(i, st.Column), st.Exit) {
				suffix = ExitSuffix
			}
			rec[typeName+suffix] = t.Get(i, respCol)
		}
		if err := out.AppendRecord(rec); err != nil {
			return nil, err
		}
	}
	if unmapped > 0 {
		w.Add("disabilities", "skipped %d rows with an unmapped disability type", unmapped)
	}
	return out, nil
}

// Income reads the income table, an entry/exit table in which several rows
// may describe the same enrollment. columns_to_take_max are reduced to
// their maximum per enrollment; every other column keeps its first value.
func (l *Loader) Income() (*table.Table, string, error) {
	const name = "income"
	tc, err := l.cfg.Table(name)
	if err != nil {
		return nil, "", err
	}
	ex, tc := tc.Extract(name, "columns_to_take_max")
	maxCols, err := ex.Strings("columns_to_take_max")
	if err != nil {
		return nil, "", err
	}
	st, tc, err := StagesFrom(name, tc)
	if err != nil {
		return nil, "", err
	}
	m, opts, err := l.source(name, tc)
	if err != nil {
		return nil, "", err
	}
	wide, err := ReadEntryExitTable(m, opts, st)
	if err != nil {
		return nil, "", err
	}
	out, err := TakeMax(wide, st.EnrollmentID, maxCols, opts.Warnings)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	return out, st.EnrollmentID, nil
}

// TakeMax reduces wide to one row per key. For every column in maxCols,
// with the entry and exit suffixes, the row holds the group maximum; every
// other column keeps the group's first value, with a warning. Rows with a
// null key are dropped.
func TakeMax(wide *table.Table, key string, maxCols []string, w *Warnings) (*table.Table, error) {
	var maximize []string
	for _, suffix := range []string{EntrySuffix, ExitSuffix} {
		for _, c := range maxCols {
			if wide.Has(c + suffix) {
				maximize = append(maximize, c+suffix)
			}
		}
	}
	for _, c := range wide.Columns() {
		if c != key && !slices.Contains(maximize, c) {
			w.Add("income", "%s is not in columns_to_take_max, only the first value per enrollment is kept", c)
		}
	}

	groups, err := wide.GroupBy(key)
	if err != nil {
		return nil, err
	}
	out := table.New(wide.Columns()...)
	for _, g := range groups {
		row := slices.Clone(wide.Row(g.Rows[0]))
		for _, c := range maximize {
			j := slices.Index(wide.Columns(), c)
			row[j] = maxValue(wide, g.Rows, c)
		}
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func maxValue(t *table.Table, rows []int, c string) table.Value {
	var best table.Value = table.Null{}
	for _, i := range rows {
		v := t.Get(i, c)
		if table.IsNull(v) {
			continue
		}
		if table.IsNull(best) || table.Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}

// Project reads the project table and replaces the numeric project type
// with its name (ProjectType) and code (ProjectNumeric). It returns the
// program id column.
func (l *Loader) Project() (*table.Table, string, error) {
	const name = "project"
	tc, err := l.cfg.Table(name)
	if err != nil {
		return nil, "", err
	}
	ex, tc := tc.Extract(name, "project_type_column", "program_id", "project_type_names")
	typeCol, err := ex.String("project_type_column")
	if err != nil {
		return nil, "", err
	}
	prid, err := ex.String("program_id")
	if err != nil {
		return nil, "", err
	}
	names, err := ex.CodeNames("project_type_names")
	if err != nil {
		return nil, "", err
	}

	m, opts, err := l.source(name, tc)
	if err != nil {
		return nil, "", err
	}
	t, err := ReadTable(m, opts)
	if err != nil {
		return nil, "", err
	}
	out, err := MapProjectTypes(t, typeCol, names)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	return out, prid, nil
}

// MapProjectTypes replaces typeCol by ProjectNumeric (the code) and
// ProjectType (its name, Null when unmapped).
func MapProjectTypes(t *table.Table, typeCol string, names map[int64]string) (*table.Table, error) {
	codes, err := t.Column(typeCol)
	if err != nil {
		return nil, err
	}
	typeNames := make([]table.Value, len(codes))
	for i, v := range codes {
		typeNames[i] = table.Null{}
		if code, ok := v.(table.Int); ok {
			if n, known := names[int64(code)]; known {
				typeNames[i] = table.String(n)
			}
		}
	}
	out := t.DropColumns(typeCol, "ProjectNumeric", "ProjectType")
	if out, err = out.WithColumn("ProjectNumeric", codes); err != nil {
		return nil, err
	}
	return out.WithColumn("ProjectType", typeNames)
}
