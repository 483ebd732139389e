package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/puget/internal/table"
)

// bom is the zero width no-break space some exports prepend to headers.
const bom = "\ufeff"

// TimeLayouts are tried in order when parsing time columns.
var TimeLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

// ReadCSV reads a CSV stream with a header row into a table of String
// cells. Empty cells are Null and a leading byte order mark is stripped
// from every header.
func ReadCSV(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return table.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, bom)
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		cols[i] = h
	}

	t := table.New(cols...)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]table.Value, len(cols))
		for i := range cols {
			if i < len(rec) && rec[i] != "" {
				row[i] = table.String(rec[i])
			} else {
				row[i] = table.Null{}
			}
		}
		if err := t.Append(row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ReadCSVFile reads the CSV file at path. See ReadCSV.
func ReadCSVFile(path string) (*table.Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := ReadCSV(bytes.NewReader(bytes.TrimPrefix(b, []byte(bom))))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteCSV writes t with a header row. Cells are rendered with
// table.Format, so Null becomes an empty field.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns()))
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			rec[j] = table.Format(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Infer types a column of raw cells. The column becomes Int if every
// non-null cell parses as an integer, else Float if every cell parses as a
// number, else Bool if every cell is true or false; otherwise it stays
// String. Non-string cells are left untouched.
func Infer(vals []table.Value) []table.Value {
	kinds := []func(string) (table.Value, bool){parseInt, parseFloat, parseBool}
	for _, parse := range kinds {
		if out, ok := convertAll(vals, parse); ok {
			return out
		}
	}
	return vals
}

// ParseTimes converts a column of raw cells to Time. Cells matching none
// of TimeLayouts become Null.
func ParseTimes(vals []table.Value) []table.Value {
	out := make([]table.Value, len(vals))
	for i, v := range vals {
		switch val := v.(type) {
		case table.String:
			out[i] = parseTime(strings.TrimSpace(string(val)))
		case table.Time:
			out[i] = val
		default:
			out[i] = table.Null{}
		}
	}
	return out
}

func parseTime(s string) table.Value {
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return table.NewTime(t)
		}
	}
	return table.Null{}
}

func convertAll(vals []table.Value, parse func(string) (table.Value, bool)) ([]table.Value, bool) {
	out := make([]table.Value, len(vals))
	converted := false
	for i, v := range vals {
		s, isString := v.(table.String)
		if !isString {
			out[i] = v
			continue
		}
		pv, ok := parse(strings.TrimSpace(string(s)))
		if !ok {
			return nil, false
		}
		out[i] = pv
		converted = true
	}
	return out, converted
}

func parseInt(s string) (table.Value, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, false
	}
	return table.Int(n), true
}

func parseFloat(s string) (table.Value, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return table.Float(f), true
}

func parseBool(s string) (table.Value, bool) {
	switch strings.ToLower(s) {
	case "true":
		return table.Bool(true), true
	case "false":
		return table.Bool(false), true
	}
	return nil, false
}
