package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/puget/internal/table"
)

// ErrUnknownTable is returned by ReadTable for a table WriteTable never
// wrote.
var ErrUnknownTable = errors.New("unknown table")

// Column kinds recorded in table_columns.
const (
	kindInt    = "int"
	kindFloat  = "float"
	kindBool   = "bool"
	kindTime   = "time"
	kindString = "string"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reserved names belong to the store's own schema.
var reserved = map[string]bool{"runs": true, "run_stages": true, "table_columns": true}

// quote returns name as a SQLite identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnKind picks the kind that holds every non-null cell of a column.
// Ints mixed with floats are floats; any other mix is stored as text.
func columnKind(vals []table.Value) string {
	seen := make(map[string]bool)
	for _, v := range vals {
		switch v.(type) {
		case table.Int:
			seen[kindInt] = true
		case table.Float:
			if !table.IsNull(v) {
				seen[kindFloat] = true
			}
		case table.Bool:
			seen[kindBool] = true
		case table.Time:
			seen[kindTime] = true
		case table.String:
			seen[kindString] = true
		}
	}
	switch {
	case len(seen) == 1:
		for k := range seen {
			return k
		}
	case len(seen) == 2 && seen[kindInt] && seen[kindFloat]:
		return kindFloat
	}
	return kindString
}

func affinity(kind string) string {
	switch kind {
	case kindInt, kindBool:
		return "INTEGER"
	case kindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// toSQL converts a cell to the driver value stored for kind.
func toSQL(v table.Value, kind string) any {
	if table.IsNull(v) {
		return nil
	}
	switch kind {
	case kindInt:
		return int64(v.(table.Int))
	case kindFloat:
		f, _ := table.AsFloat(v)
		return f
	case kindBool:
		if v.(table.Bool) {
			return int64(1)
		}
		return int64(0)
	case kindTime:
		return v.(table.Time).Std().Format(time.RFC3339Nano)
	default:
		return table.Format(v)
	}
}

// fromSQL converts a scanned driver value back to a cell of kind.
func fromSQL(raw any, kind string) (table.Value, error) {
	if raw == nil {
		return table.Null{}, nil
	}
	switch kind {
	case kindInt:
		if n, ok := raw.(int64); ok {
			return table.Int(n), nil
		}
	case kindFloat:
		switch n := raw.(type) {
		case float64:
			return table.Float(n), nil
		case int64:
			return table.Float(n), nil
		}
	case kindBool:
		if n, ok := raw.(int64); ok {
			return table.Bool(n != 0), nil
		}
	case kindTime:
		if s, ok := raw.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, err
			}
			return table.NewTime(t), nil
		}
	default:
		switch s := raw.(type) {
		case string:
			return table.String(s), nil
		case []byte:
			return table.String(s), nil
		}
	}
	return nil, fmt.Errorf("unexpected %T for %s column", raw, kind)
}

// WriteTable stores t as the SQLite table name, replacing any previous
// contents, in one transaction. Column types follow the cells: integers
// and booleans are INTEGER, numbers REAL, everything else TEXT.
func (s *Store) WriteTable(ctx context.Context, name string, t *table.Table) error {
	if !tableName.MatchString(name) || reserved[strings.ToLower(name)] {
		return fmt.Errorf("write table: invalid table name %q", name)
	}
	cols := t.Columns()
	if len(cols) == 0 {
		return fmt.Errorf("write table %s: no columns", name)
	}
	kinds := make([]string, len(cols))
	defs := make([]string, len(cols))
	for j, c := range cols {
		vals, err := t.Column(c)
		if err != nil {
			return fmt.Errorf("write table %s: %w", name, err)
		}
		kinds[j] = columnKind(vals)
		defs[j] = quote(c) + " " + affinity(kinds[j])
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		"DROP TABLE IF EXISTS " + quote(name),
		fmt.Sprintf("CREATE TABLE %s (%s)", quote(name), strings.Join(defs, ", ")),
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("write table %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM table_columns WHERE table_name = ?`, name); err != nil {
		return fmt.Errorf("write table %s: %w", name, err)
	}
	for j, c := range cols {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO table_columns (table_name, position, name, kind)
			VALUES (?, ?, ?, ?)
		`, name, j, c, kinds[j]); err != nil {
			return fmt.Errorf("write table %s: %w", name, err)
		}
	}

	if t.Len() > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		quoted := make([]string, len(cols))
		for j, c := range cols {
			quoted[j] = quote(c)
		}
		insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(name), strings.Join(quoted, ", "), placeholders))
		if err != nil {
			return fmt.Errorf("write table %s: %w", name, err)
		}
		defer insert.Close()

		args := make([]any, len(cols))
		for i := 0; i < t.Len(); i++ {
			for j, v := range t.Row(i) {
				args[j] = toSQL(v, kinds[j])
			}
			if _, err := insert.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("write table %s row %d: %w", name, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write table %s: %w", name, err)
	}
	return nil
}

// ReadTable loads a table written by WriteTable, in insertion order.
func (s *Store) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	return s.SelectRows(ctx, name, "")
}

// SelectRows loads the rows of a table written by WriteTable that satisfy
// where, a SQL boolean expression over its columns with ? placeholders
// bound to args. An empty where selects every row. Cells come back with
// the kinds they were written with, in insertion order.
func (s *Store) SelectRows(ctx context.Context, name, where string, args ...any) (*table.Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind FROM table_columns
		WHERE table_name = ?
		ORDER BY position ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	var cols, kinds []string
	for rows.Next() {
		var c, k string
		if err := rows.Scan(&c, &k); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read table %s: %w", name, err)
		}
		cols = append(cols, c)
		kinds = append(kinds, k)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	rows.Close()
	if cols == nil {
		if err := s.exists(ctx, name); err != nil {
			return nil, err
		}
		return table.New(), nil
	}

	quoted := make([]string, len(cols))
	for j, c := range cols {
		quoted[j] = quote(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quote(name))
	if where != "" {
		query += " WHERE " + where
	}
	data, err := s.db.QueryContext(ctx, query+" ORDER BY rowid ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	defer data.Close()

	out := table.New(cols...)
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for j := range raw {
		ptrs[j] = &raw[j]
	}
	for data.Next() {
		if err := data.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read table %s: %w", name, err)
		}
		row := make([]table.Value, len(cols))
		for j := range cols {
			if row[j], err = fromSQL(raw[j], kinds[j]); err != nil {
				return nil, fmt.Errorf("read table %s column %s: %w", name, cols[j], err)
			}
		}
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("read table %s: %w", name, err)
	}
	return out, nil
}

// exists reports ErrUnknownTable unless name is a table in the database.
func (s *Store) exists(ctx context.Context, name string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return fmt.Errorf("read table %s: %w", name, err)
	}
	if n == 0 || reserved[strings.ToLower(name)] {
		return fmt.Errorf("read table %s: %w", name, ErrUnknownTable)
	}
	return nil
}
