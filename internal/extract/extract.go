// Package extract reads result values out of a completed solver case.
package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/sweepgridgo/internal/casestore"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// Fields maps result names to values.
type Fields map[string]float64

// Series maps result names to every value of a column, in row order.
type Series map[string][]float64

// Record is everything read from one case. A name appears in at most one of
// Fields and Series.
type Record struct {
	Fields Fields
	Series Series
}

// Names returns the sorted names of all fields and series in r.
func (r Record) Names() []string {
	names := make([]string, 0, len(r.Fields)+len(r.Series))
	for name := range r.Fields {
		names = append(names, name)
	}
	for name := range r.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON emits fields and series as one object with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+len(r.Series))
	for name, v := range r.Fields {
		out[name] = v
	}
	for name, v := range r.Series {
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%q is both a field and a series", name)
		}
		out[name] = v
	}
	return json.Marshal(out)
}

// Error reports that a case reported as successful has no usable output.
// It is never recovered from: it means solver success and output availability
// disagree.
type Error struct {
	Location identity.Location
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed for case %s: %v", e.Location, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as an *Error for loc unless it already is one.
func Wrap(loc identity.Location, err error) error {
	if err == nil {
		return nil
	}
	var extErr *Error
	if errors.As(err, &extErr) {
		return err
	}
	return &Error{Location: loc, Err: err}
}

// Func adapts a plain function to an extractor.
type Func func(ctx context.Context, c *casestore.Case) (Record, error)

// Extract calls f.
func (f Func) Extract(ctx context.Context, c *casestore.Case) (Record, error) {
	return f(ctx, c)
}

// Table reads a whitespace-separated numeric text file, such as
// postProcessing/forces/0/forceCoeffs.dat, and names its columns. It yields
// either one row as Fields or every row as Series.
type Table struct {
	// File is relative to the case directory.
	File    string
	Columns []string
	// Row selects the data row; negative values count from the end, so -1
	// (the default) is the last row. Ignored when Series is set.
	Row int
	// Series reads each column across all rows.
	Series bool
	// Comment is the line prefix of non-data lines. Defaults to "#".
	Comment string
}

// NewTable returns a Table extractor reading the last row of file.
func NewTable(file string, columns ...string) *Table {
	return &Table{File: file, Columns: columns, Row: -1, Comment: "#"}
}

// Extract reads the configured row, or every row, of the table inside c.Dir.
func (t *Table) Extract(ctx context.Context, c *casestore.Case) (Record, error) {
	if c.Dir == "" {
		return Record{}, &Error{Location: c.Location, Err: errors.New("case has no working directory")}
	}
	path := filepath.Join(c.Dir, t.File)
	rows, err := t.readRows(path)
	if err != nil {
		return Record{}, &Error{Location: c.Location, Err: err}
	}
	if len(rows) == 0 {
		return Record{}, &Error{Location: c.Location, Err: fmt.Errorf("%s has no data rows", t.File)}
	}
	if t.Series {
		series, err := t.series(rows)
		if err != nil {
			return Record{}, &Error{Location: c.Location, Err: err}
		}
		return Record{Series: series}, nil
	}

	idx := t.Row
	if idx < 0 {
		idx += len(rows)
	}
	if idx < 0 || idx >= len(rows) {
		return Record{}, &Error{Location: c.Location, Err: fmt.Errorf("row %d out of range in %s (%d rows)", t.Row, t.File, len(rows))}
	}
	row := rows[idx]
	if len(row) < len(t.Columns) {
		return Record{}, &Error{Location: c.Location, Err: fmt.Errorf("%s: row has %d values, want %d columns", t.File, len(row), len(t.Columns))}
	}

	fields := make(Fields, len(t.Columns))
	for i, name := range t.Columns {
		fields[name] = row[i]
	}
	return Record{Fields: fields}, nil
}

func (t *Table) series(rows [][]float64) (Series, error) {
	series := make(Series, len(t.Columns))
	for _, name := range t.Columns {
		series[name] = make([]float64, 0, len(rows))
	}
	for n, row := range rows {
		if len(row) < len(t.Columns) {
			return nil, fmt.Errorf("%s: data row %d has %d values, want %d columns", t.File, n+1, len(row), len(t.Columns))
		}
		for i, name := range t.Columns {
			series[name] = append(series[name], row[i])
		}
	}
	return series, nil
}

func (t *Table) readRows(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	comment := t.Comment
	if comment == "" {
		comment = "#"
	}

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, comment) {
			continue
		}
		parts := strings.Fields(text)
		row := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: column %d: %w", t.File, line, i+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", t.File, err)
	}
	return rows, nil
}
