package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/puget/internal/config"
	"github.com/roach88/puget/internal/reconcile"
	"github.com/roach88/puget/internal/table"
)

// TableCount records how many rows a source table contributed.
type TableCount struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
}

// MergeSummary describes a MergeTables run.
type MergeSummary struct {
	Tables   []TableCount `json:"tables"`
	Rows     int          `json:"rows"`
	BadDOB   int          `json:"bad_dob"`
	Warnings []string     `json:"warnings,omitempty"`
}

// JoinOn left-joins right onto left where left[leftKey] equals
// right[rightKey]. The right key column does not survive the join.
func JoinOn(left, right *table.Table, leftKey, rightKey string) (*table.Table, error) {
	if err := right.Require(rightKey); err != nil {
		return nil, err
	}
	if leftKey != rightKey {
		var err error
		right, err = right.DropColumns(leftKey).Rename(map[string]string{rightKey: leftKey})
		if err != nil {
			return nil, err
		}
	}
	return left.LeftJoin(right, leftKey)
}

// MergeTables reads every configured table and merges them into the
// enrollment table, one row per person per enrollment:
//
//	enrollment ← exit ← client ← disabilities ← employment_education
//	           ← health_dv ← income ← project
//
// Enrollment and client are required; the other tables are joined when
// configured. Client dates of birth are checked against each person's
// earliest enrollment before the client table is joined.
func MergeTables(ctx context.Context, cfg *config.Config) (*table.Table, MergeSummary, error) {
	var summary MergeSummary
	l := NewLoader(cfg)

	merged, keys, err := l.Enrollment(cfg.Groups)
	if err != nil {
		return nil, summary, err
	}
	summary.Tables = append(summary.Tables, TableCount{"enrollment", merged.Len()})

	join := func(name, leftKey string, read func() (*table.Table, string, error)) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !cfg.HasTable(name) {
			slog.Debug("table not configured, skipping", "table", name)
			return nil
		}
		t, rightKey, err := read()
		if err != nil {
			return err
		}
		summary.Tables = append(summary.Tables, TableCount{name, t.Len()})
		if merged, err = JoinOn(merged, t, leftKey, rightKey); err != nil {
			return fmt.Errorf("merge %s: %w", name, err)
		}
		return nil
	}

	if err := join("exit", keys.EnrollmentID, l.Exit); err != nil {
		return nil, summary, err
	}

	if err := ctx.Err(); err != nil {
		return nil, summary, err
	}
	client, dobReport, err := readClient(l, merged, keys)
	if err != nil {
		return nil, summary, err
	}
	summary.BadDOB = dobReport.BadDOB
	summary.Tables = append(summary.Tables, TableCount{"client", client.Table.Len()})
	if merged, err = JoinOn(merged, client.Table, keys.PersonID, client.PersonKey); err != nil {
		return nil, summary, fmt.Errorf("merge client: %w", err)
	}

	steps := []struct {
		name string
		key  string
		read func() (*table.Table, string, error)
	}{
		{"disabilities", keys.EnrollmentID, l.Disabilities},
		{"employment_education", keys.EnrollmentID, func() (*table.Table, string, error) { return l.EntryExit("employment_education") }},
		{"health_dv", keys.EnrollmentID, func() (*table.Table, string, error) { return l.EntryExit("health_dv") }},
		{"income", keys.EnrollmentID, l.Income},
		{"project", keys.ProgramID, l.Project},
	}
	for _, s := range steps {
		if err := join(s.name, s.key, s.read); err != nil {
			return nil, summary, err
		}
	}

	summary.Rows = merged.Len()
	summary.Warnings = l.Warnings()
	slog.Info("merged tables", "tables", len(summary.Tables), "rows", summary.Rows, "bad_dob", summary.BadDOB)
	return merged, summary, nil
}

type clientTable struct {
	Table     *table.Table
	PersonKey string
}

// readClient reads and reconciles the client table, then applies the date
// of birth rule against the earliest entry date in enrollments.
func readClient(l *Loader, enrollments *table.Table, keys EnrollmentKeys) (clientTable, reconcile.Report, error) {
	t, rec, _, err := l.Client()
	if err != nil {
		return clientTable{}, reconcile.Report{}, err
	}
	earliest, err := reconcile.EarliestDates(enrollments, keys.PersonID, keys.EntryDate)
	if err != nil {
		return clientTable{}, reconcile.Report{}, fmt.Errorf("merge client: %w", err)
	}
	t, report, err := rec.ResolveDOB(t, earliest)
	if err != nil {
		return clientTable{}, report, fmt.Errorf("merge client: %w", err)
	}
	if report.BadDOB > 0 {
		l.warnings.Add("client", "found %d entries with bad dates of birth", report.BadDOB)
	}
	return clientTable{Table: t, PersonKey: rec.Policy().PersonKey}, report, nil
}
