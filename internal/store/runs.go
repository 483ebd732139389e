package store

import (
	"context"
	"fmt"
)

// RunRecord is one completed pipeline run.
type RunRecord struct {
	ID      string
	Name    string
	Table   string // output table, empty when the run stored nothing
	Rows    int
	Summary string // JSON run summary
	Stages  []StageRecord
}

// StageRecord is the row counts of one stage of a run.
type StageRecord struct {
	Seq     int
	Name    string
	RowsIn  int
	RowsOut int
}

// RecordRun stores a run and its stages in one transaction.
// Recording the same run id twice is an error.
func (s *Store) RecordRun(ctx context.Context, r RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, output_table, row_count, summary)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Table, r.Rows, r.Summary); err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	for _, st := range r.Stages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_stages (run_id, seq, name, rows_in, rows_out)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, st.Seq, st.Name, st.RowsIn, st.RowsOut); err != nil {
			return fmt.Errorf("record run %s stage %d: %w", r.ID, st.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns every recorded run ordered by id, with stages in seq order.
func (s *Store) Runs(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, output_table, row_count, summary
		FROM runs
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Table, &r.Rows, &r.Summary); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	rows.Close()

	// Stages are read after the runs cursor is closed: the store holds a
	// single connection.
	for i := range runs {
		stages, err := s.stages(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Stages = stages
	}
	return runs, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, rows_in, rows_out
		FROM run_stages
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		var st StageRecord
		if err := rows.Scan(&st.Seq, &st.Name, &st.RowsIn, &st.RowsOut); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages for %s: %w", runID, err)
	}
	return out, nil
}
