package sweep

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/specialistvlad/sweepgridgo/internal/extract"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// Layout selects the shape of the JSON artifact.
type Layout string

const (
	// LayoutRows keys each point's field record by its rendered parameters.
	LayoutRows Layout = "rows"
	// LayoutColumns emits one list per axis and per field, aligned by index.
	LayoutColumns Layout = "columns"
)

// Entry is one successful sweep point.
type Entry struct {
	Params   identity.Params
	Location identity.Location
	Record   extract.Record
	// Cached is true when the case already existed and the solver was not run.
	Cached bool
}

// Summary counts what happened to each point of a run.
type Summary struct {
	Cached       int
	Computed     int
	Failed       int
	ConfigErrors int
}

// Result maps parameters to extracted records for successful points only, in
// the order their results were recorded.
type Result struct {
	mu      sync.Mutex
	entries []Entry
	index   map[identity.Location]int
	summary Summary
	// skip holds locations that failed or could not be configured.
	skip map[identity.Location]bool
}

func newResult() *Result {
	return &Result{
		index: make(map[identity.Location]int),
		skip:  make(map[identity.Location]bool),
	}
}

// add records e unless its location is already present.
func (r *Result) add(e Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.index[e.Location]; dup {
		return false
	}
	r.index[e.Location] = len(r.entries)
	r.entries = append(r.entries, e)
	if e.Cached {
		r.summary.Cached++
	} else {
		r.summary.Computed++
	}
	return true
}

func (r *Result) countFailed(loc identity.Location) {
	r.mu.Lock()
	r.summary.Failed++
	r.skip[loc] = true
	r.mu.Unlock()
}

func (r *Result) countConfigError(loc identity.Location) {
	r.mu.Lock()
	r.summary.ConfigErrors++
	r.skip[loc] = true
	r.mu.Unlock()
}

func (r *Result) skipped(loc identity.Location) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skip[loc]
}

// Len returns the number of successful points.
func (r *Result) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Get returns the record stored for p.
func (r *Result) Get(p identity.Params) (extract.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[identity.Of(p)]
	if !ok {
		return extract.Record{}, false
	}
	return r.entries[i].Record, true
}

// Entries returns a copy of the recorded entries in insertion order.
func (r *Result) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Locations returns the locations of all recorded entries in insertion order.
func (r *Result) Locations() []identity.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]identity.Location, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Location
	}
	return out
}

// Summary returns the per-outcome counts.
func (r *Result) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// MarshalJSON emits an object keyed by the rendered parameters, preserving
// insertion order. Records have sorted keys; series are arrays.
func (r *Result) MarshalJSON() ([]byte, error) {
	entries := r.Entries()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Params.String())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Record)
		if err != nil {
			return nil, fmt.Errorf("encoding fields of %s: %w", e.Location, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Columns returns one slice per axis and per result name, all aligned with
// the entry order. A series becomes a slice of slices. Axes beyond len(axes)
// are named p0, p1, ... Every entry must carry the same result names.
func (r *Result) Columns(axes []string) (map[string]any, error) {
	entries := r.Entries()
	cols := make(map[string]any)
	if len(entries) == 0 {
		return cols, nil
	}

	names := entries[0].Record.Names()
	for _, name := range names {
		for _, axis := range axes {
			if name == axis {
				return nil, fmt.Errorf("field %q collides with axis of the same name", name)
			}
		}
	}

	axisCols := make(map[string][]float64)
	scalarCols := make(map[string][]float64)
	seriesCols := make(map[string][][]float64)
	for _, e := range entries {
		for i, v := range e.Params {
			name := fmt.Sprintf("p%d", i)
			if i < len(axes) {
				name = axes[i]
			}
			axisCols[name] = append(axisCols[name], v)
		}
		if got := e.Record.Names(); len(got) != len(names) {
			return nil, fmt.Errorf("case %s has %d fields, want %d", e.Location, len(got), len(names))
		}
		for _, name := range names {
			if v, ok := e.Record.Fields[name]; ok {
				scalarCols[name] = append(scalarCols[name], v)
				continue
			}
			if v, ok := e.Record.Series[name]; ok {
				seriesCols[name] = append(seriesCols[name], v)
				continue
			}
			return nil, fmt.Errorf("case %s is missing field %q", e.Location, name)
		}
	}

	for name, v := range axisCols {
		cols[name] = v
	}
	for name, v := range scalarCols {
		if _, ok := seriesCols[name]; ok {
			return nil, fmt.Errorf("%q is a field in some cases and a series in others", name)
		}
		cols[name] = v
	}
	for name, v := range seriesCols {
		cols[name] = v
	}
	return cols, nil
}

// Encode renders the result as an indented JSON artifact in the given layout.
func (r *Result) Encode(layout Layout, axes []string) ([]byte, error) {
	switch layout {
	case LayoutRows, "":
		raw, err := r.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case LayoutColumns:
		cols, err := r.Columns(axes)
		if err != nil {
			return nil, err
		}
		return json.MarshalIndent(cols, "", "  ")
	default:
		return nil, fmt.Errorf("unknown layout %q", layout)
	}
}
