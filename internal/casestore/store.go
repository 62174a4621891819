// Package casestore owns the lifecycle of solver cases on disk:
// Absent -> Materializing -> Validated, or back to Absent on failure.
//
// A location counts as computed only when its completion marker exists. The
// marker is written last, after every solver stage has succeeded, so a crash
// at any earlier point leaves a location that is Incomplete and gets cleaned
// up instead of being mistaken for a finished run.
package casestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/fsutil"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

const (
	// MarkerFile is written inside a location once its run has been validated.
	MarkerFile = ".sweep-complete"
	// ConfigFile is the rendered case description inside a location.
	ConfigFile = "case.yaml"
)

// Marker is the content of MarkerFile.
type Marker struct {
	Location    identity.Location `json:"location"`
	Params      identity.Params   `json:"params"`
	Statuses    Outcome           `json:"statuses"`
	RunID       string            `json:"run_id,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

// FileStore keeps one directory per location under Root.
type FileStore struct {
	Root  string
	RunID string

	now func() time.Time
}

// NewFileStore creates a store rooted at root. runID is recorded in markers.
func NewFileStore(root, runID string) *FileStore {
	return &FileStore{Root: root, RunID: runID, now: time.Now}
}

// Dir returns the working directory for loc.
func (s *FileStore) Dir(loc identity.Location) string {
	return filepath.Join(s.Root, string(loc))
}

func (s *FileStore) markerPath(loc identity.Location) string {
	return filepath.Join(s.Dir(loc), MarkerFile)
}

// State reports where loc is in its lifecycle.
func (s *FileStore) State(ctx context.Context, loc identity.Location) (State, error) {
	if loc == "" {
		return Absent, identity.ErrEmptyParams
	}
	dirExists, err := fsutil.Exists(s.Dir(loc))
	if err != nil {
		return Absent, fmt.Errorf("checking case %s: %w", loc, err)
	}
	if !dirExists {
		return Absent, nil
	}
	markerExists, err := fsutil.Exists(s.markerPath(loc))
	if err != nil {
		return Absent, fmt.Errorf("checking marker of case %s: %w", loc, err)
	}
	if !markerExists {
		return Incomplete, nil
	}
	return Validated, nil
}

// Exists reports whether loc holds a validated run. It has no side effects.
func (s *FileStore) Exists(ctx context.Context, loc identity.Location) (bool, error) {
	st, err := s.State(ctx, loc)
	if err != nil {
		return false, err
	}
	return st == Validated, nil
}

// Materialize renders base plus overrides into a fresh directory at loc. The
// solver is not invoked. Overrides are applied to a copy of base before
// anything is written, so a ConfigurationError leaves no residue behind.
func (s *FileStore) Materialize(ctx context.Context, loc identity.Location, base *caseconfig.Document, overrides []caseconfig.Override) (*Case, error) {
	logger := ctxlog.FromContext(ctx)

	params, err := loc.Params()
	if err != nil {
		return nil, err
	}
	st, err := s.State(ctx, loc)
	if err != nil {
		return nil, err
	}
	switch st {
	case Validated:
		return nil, fmt.Errorf("materializing %s: %w", loc, ErrAlreadyValidated)
	case Incomplete:
		logger.Warn("Removing incomplete case left by an earlier run.", "location", loc)
		if err := s.Rollback(ctx, loc); err != nil {
			return nil, err
		}
	}

	doc := base.Clone()
	if err := doc.Apply(overrides...); err != nil {
		return nil, err
	}
	data, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("rendering case %s: %w", loc, err)
	}

	dir := s.Dir(loc)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating case directory %s: %w", dir, err)
	}
	configPath := filepath.Join(dir, ConfigFile)
	if err := fsutil.WriteFileAtomic(configPath, data, 0o644); err != nil {
		if rbErr := s.Rollback(ctx, loc); rbErr != nil {
			logger.Error("Rollback after failed materialization failed.", "location", loc, "error", rbErr)
		}
		return nil, fmt.Errorf("writing case description %s: %w", configPath, err)
	}

	logger.Debug("Case materialized.", "location", loc, "dir", dir)
	return &Case{
		Location:   loc,
		Params:     params,
		Dir:        dir,
		ConfigPath: configPath,
		Config:     doc,
	}, nil
}

// InvokeAndValidate runs solver on c and reports whether every stage
// succeeded. On failure the whole location is removed before returning, so a
// later Exists observes Absent. A solver error counts as a failed run; only
// context cancellation and rollback failures are returned as errors.
func (s *FileStore) InvokeAndValidate(ctx context.Context, c *Case, solver Solver) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	outcome, runErr := solver.Run(ctx, c)
	if runErr == nil && outcome.Succeeded() {
		if err := s.writeMarker(c, outcome); err != nil {
			if rbErr := s.Rollback(ctx, c.Location); rbErr != nil {
				return false, errors.Join(err, rbErr)
			}
			return false, err
		}
		logger.Debug("Case validated.", "location", c.Location, "statuses", []int(outcome))
		return true, nil
	}

	if runErr != nil {
		logger.Warn("Solver invocation failed.", "location", c.Location, "error", runErr)
	} else {
		logger.Warn("Solver reported failing stages.", "location", c.Location, "statuses", []int(outcome))
	}
	if err := s.Rollback(ctx, c.Location); err != nil {
		return false, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	return false, nil
}

// Open returns the validated case at loc with its case description loaded,
// or ErrNotValidated.
func (s *FileStore) Open(ctx context.Context, loc identity.Location) (*Case, error) {
	ok, err := s.Exists(ctx, loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("opening %s: %w", loc, ErrNotValidated)
	}
	params, err := loc.Params()
	if err != nil {
		return nil, err
	}
	dir := s.Dir(loc)
	configPath := filepath.Join(dir, ConfigFile)
	doc, err := caseconfig.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", loc, err)
	}
	return &Case{
		Location:   loc,
		Params:     params,
		Dir:        dir,
		ConfigPath: configPath,
		Config:     doc,
	}, nil
}

// ReadMarker returns the completion record of a validated case.
func (s *FileStore) ReadMarker(loc identity.Location) (*Marker, error) {
	data, err := os.ReadFile(s.markerPath(loc))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading marker of %s: %w", loc, ErrNotValidated)
		}
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing marker of %s: %w", loc, err)
	}
	return &m, nil
}

// Rollback deletes everything at loc, restoring the Absent state.
func (s *FileStore) Rollback(ctx context.Context, loc identity.Location) error {
	if loc == "" {
		return identity.ErrEmptyParams
	}
	if err := os.RemoveAll(s.Dir(loc)); err != nil {
		return fmt.Errorf("rolling back case %s: %w", loc, err)
	}
	ctxlog.FromContext(ctx).Debug("Case rolled back.", "location", loc)
	return nil
}

// List returns every location under Root with its state, sorted by location.
// Entries whose names are not valid locations are ignored.
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	dirents, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", s.Root, err)
	}
	var entries []Entry
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		loc := identity.Location(d.Name())
		if _, err := loc.Params(); err != nil {
			continue
		}
		st, err := s.State(ctx, loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Location: loc, State: st})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Location < entries[j].Location })
	return entries, nil
}

// Prune removes every Incomplete location and returns what was removed.
func (s *FileStore) Prune(ctx context.Context) ([]identity.Location, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []identity.Location
	for _, e := range entries {
		if e.State != Incomplete {
			continue
		}
		if err := s.Rollback(ctx, e.Location); err != nil {
			return removed, err
		}
		removed = append(removed, e.Location)
	}
	return removed, nil
}

func (s *FileStore) writeMarker(c *Case, outcome Outcome) error {
	now := s.now
	if now == nil {
		now = time.Now
	}
	m := Marker{
		Location:    c.Location,
		Params:      c.Params,
		Statuses:    outcome,
		RunID:       s.RunID,
		CompletedAt: now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding marker for %s: %w", c.Location, err)
	}
	if err := fsutil.WriteFileAtomic(s.markerPath(c.Location), data, 0o644); err != nil {
		return fmt.Errorf("writing marker for %s: %w", c.Location, err)
	}
	return nil
}
