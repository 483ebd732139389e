package reconcile

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/table"
)

// MinDOB is the earliest date of birth considered plausible.
var MinDOB = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Policy names the columns the Reconciler works on.
//
// A nil slice means the list was not configured, which is distinct from an
// empty list: TimeFields must be configured, nil BooleanFields and
// NumericFields are treated as empty with a warning, and nil DedupKeys
// skips the final deduplication with a warning.
type Policy struct {
	// PersonKey identifies the person rows are grouped by. Required.
	PersonKey string

	// TimeFields resolve to a midpoint or null.
	TimeFields []string

	// BooleanFields resolve to their maximum.
	BooleanFields []string

	// NumericFields resolve to null on conflict.
	NumericFields []string

	// DedupKeys drive the final exact deduplication (keep last).
	DedupKeys []string

	// DOBField is the date of birth column. It is skipped by Reconcile
	// and handled by ResolveDOB.
	DOBField string
}

// Report summarizes a reconciliation pass.
type Report struct {
	// GroupsResolved counts person groups in which at least one field
	// conflict was resolved.
	GroupsResolved int `json:"groups_resolved"`

	// Nulled counts field conflicts resolved to null.
	Nulled int `json:"nulled"`

	// BadDOB counts date of birth entries flagged implausible.
	BadDOB int `json:"bad_dob"`

	// Warnings lists non-fatal data-quality issues.
	Warnings []string `json:"warnings,omitempty"`
}

// Reconciler applies a validated Policy to person tables.
type Reconciler struct {
	policy   Policy
	warnings []string
}

// New validates p and creates a Reconciler.
func New(p Policy) (*Reconciler, error) {
	if p.PersonKey == "" {
		return nil, config.MissingKey("person_id")
	}
	if p.TimeFields == nil {
		return nil, config.MissingKey("time_var")
	}

	r := &Reconciler{policy: p}
	if p.BooleanFields == nil {
		r.warn("boolean list not provided, no boolean fields will be reconciled")
		r.policy.BooleanFields = []string{}
	}
	if p.NumericFields == nil {
		r.warn("numeric_code list not provided, no numeric fields will be reconciled")
		r.policy.NumericFields = []string{}
	}
	if p.DedupKeys == nil {
		r.warn("duplicate_check_columns not provided, final deduplication skipped")
	}
	return r, nil
}

// Policy returns the policy the Reconciler was built with.
func (r *Reconciler) Policy() Policy {
	return r.policy
}

func (r *Reconciler) warn(msg string) {
	slog.Warn(msg, "person_key", r.policy.PersonKey)
	r.warnings = append(r.warnings, msg)
}

func (r *Reconciler) newReport() Report {
	return Report{Warnings: slices.Clone(r.warnings)}
}

// policyColumns returns every column the policy names, PersonKey first.
func (r *Reconciler) policyColumns() []string {
	var cols []string
	seen := make(map[string]bool)
	add := func(cs ...string) {
		for _, c := range cs {
			if c != "" && !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	add(r.policy.PersonKey)
	add(r.policy.DedupKeys...)
	add(r.policy.TimeFields...)
	add(r.policy.BooleanFields...)
	add(r.policy.NumericFields...)
	return cols
}

// Reconcile resolves field conflicts within each person group.
//
// Steps:
//  1. drop exact duplicates on the policy columns (keep last)
//  2. resolve time, boolean and numeric conflicts per person
//  3. drop duplicates on DedupKeys (keep last)
//
// The input table is not modified.
func (r *Reconciler) Reconcile(t *table.Table) (*table.Table, Report, error) {
	report := r.newReport()
	if err := t.Require(r.policyColumns()...); err != nil {
		return nil, report, fmt.Errorf("reconcile: %w", err)
	}

	work, err := t.DropDuplicates(r.policyColumns(), true)
	if err != nil {
		return nil, report, fmt.Errorf("reconcile: %w", err)
	}

	groups, err := work.GroupBy(r.policy.PersonKey)
	if err != nil {
		return nil, report, fmt.Errorf("reconcile: %w", err)
	}

	rules := []struct {
		fields  []string
		resolve func([]table.Value) table.Value
	}{
		{r.timeFields(), ResolveTime},
		{r.policy.BooleanFields, ResolveBoolean},
		{r.policy.NumericFields, ResolveNumeric},
	}

	for _, g := range groups {
		if len(g.Rows) < 2 {
			continue
		}
		resolved := false
		for _, rule := range rules {
			for _, f := range rule.fields {
				vals := cells(work, g.Rows, f)
				if !conflicting(vals) {
					continue
				}
				v := rule.resolve(vals)
				for _, i := range g.Rows {
					work.Set(i, f, v)
				}
				resolved = true
				if table.IsNull(v) {
					report.Nulled++
				}
			}
		}
		if resolved {
			report.GroupsResolved++
			slog.Debug("reconciled person", "person", table.Format(g.Key[0]), "rows", len(g.Rows))
		}
	}

	out, err := r.dedup(work)
	if err != nil {
		return nil, report, err
	}
	slog.Info("reconciled table",
		"rows_in", t.Len(),
		"rows_out", out.Len(),
		"groups_resolved", report.GroupsResolved,
		"nulled", report.Nulled)
	return out, report, nil
}

func (r *Reconciler) timeFields() []string {
	var fs []string
	for _, f := range r.policy.TimeFields {
		if f != r.policy.DOBField {
			fs = append(fs, f)
		}
	}
	return fs
}

func (r *Reconciler) dedup(t *table.Table) (*table.Table, error) {
	if r.policy.DedupKeys == nil {
		return t, nil
	}
	out, err := t.DropDuplicates(r.policy.DedupKeys, true)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	return out, nil
}

func cells(t *table.Table, rows []int, c string) []table.Value {
	vals := make([]table.Value, len(rows))
	for k, i := range rows {
		vals[k] = t.Get(i, c)
	}
	return vals
}

// EarliestDates returns the earliest non-null dateCol per person, keyed by
// table.Key of the person cell.
func EarliestDates(t *table.Table, personKey, dateCol string) (map[string]time.Time, error) {
	if err := t.Require(personKey, dateCol); err != nil {
		return nil, fmt.Errorf("earliest dates: %w", err)
	}
	out := make(map[string]time.Time)
	for i := 0; i < t.Len(); i++ {
		p := t.Get(i, personKey)
		d, ok := table.AsTime(t.Get(i, dateCol))
		if table.IsNull(p) || !ok {
			continue
		}
		k := table.Key(p)
		if cur, seen := out[k]; !seen || d.Before(cur) {
			out[k] = d
		}
	}
	return out, nil
}

// ResolveDOB applies the date of birth plausibility rule, then the time
// rule, then the final deduplication.
//
// A DOB after the person's earliest enrollment date, or before MinDOB, is
// bad. For a group containing a bad entry: a single row is nulled; a group
// whose DOBs are all equal is nulled entirely; otherwise only the bad
// entries are nulled. The count of bad entries is reported.
func (r *Reconciler) ResolveDOB(t *table.Table, earliest map[string]time.Time) (*table.Table, Report, error) {
	report := r.newReport()
	dob := r.policy.DOBField
	if dob == "" {
		return nil, report, config.MissingKey("dob_column")
	}
	if err := t.Require(r.policy.PersonKey, dob); err != nil {
		return nil, report, fmt.Errorf("resolve dob: %w", err)
	}

	work := t.Clone()
	groups, err := work.GroupBy(r.policy.PersonKey)
	if err != nil {
		return nil, report, fmt.Errorf("resolve dob: %w", err)
	}

	for _, g := range groups {
		first, hasFirst := earliest[table.Key(g.Key[0])]
		var bad []int
		for _, i := range g.Rows {
			d, ok := table.AsTime(work.Get(i, dob))
			if !ok {
				continue
			}
			if d.Before(MinDOB) || (hasFirst && d.After(first)) {
				bad = append(bad, i)
			}
		}
		if len(bad) == 0 {
			continue
		}
		report.BadDOB += len(bad)

		nullRows := bad
		if len(g.Rows) == 1 || len(distinctNonNull(cells(work, g.Rows, dob))) == 1 {
			nullRows = g.Rows
		}
		for _, i := range nullRows {
			work.Set(i, dob, table.Null{})
		}
	}

	for _, g := range groups {
		if len(g.Rows) < 2 {
			continue
		}
		vals := cells(work, g.Rows, dob)
		if !conflicting(vals) {
			continue
		}
		v := ResolveTime(vals)
		for _, i := range g.Rows {
			work.Set(i, dob, v)
		}
		report.GroupsResolved++
		if table.IsNull(v) {
			report.Nulled++
		}
	}

	out, err := r.dedup(work)
	if err != nil {
		return nil, report, err
	}
	slog.Info("resolved dates of birth", "bad_dob", report.BadDOB, "rows_out", out.Len())
	return out, report, nil
}
