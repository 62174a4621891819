package inmemorystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/casestore"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// Store keeps cases in memory using sync.Map for fine-grained concurrent
// access without global lock contention.
//
// The store maintains two independent sync.Maps:
//   - states: location -> casestore.State (Incomplete or Validated; missing means Absent)
//   - cases: location -> *casestore.Case as materialized
type Store struct {
	states sync.Map
	cases  sync.Map
}

// New creates a new, empty in-memory case store.
func New() *Store {
	return &Store{}
}

// State reports where loc is in its lifecycle.
func (s *Store) State(ctx context.Context, loc identity.Location) (casestore.State, error) {
	st, ok := s.states.Load(loc)
	if !ok {
		return casestore.Absent, nil
	}
	return st.(casestore.State), nil
}

// Exists reports whether loc holds a validated run.
func (s *Store) Exists(ctx context.Context, loc identity.Location) (bool, error) {
	st, err := s.State(ctx, loc)
	return st == casestore.Validated, err
}

// Materialize records a new Incomplete case built from base plus overrides.
func (s *Store) Materialize(ctx context.Context, loc identity.Location, base *caseconfig.Document, overrides []caseconfig.Override) (*casestore.Case, error) {
	params, err := loc.Params()
	if err != nil {
		return nil, err
	}
	if st, _ := s.State(ctx, loc); st == casestore.Validated {
		return nil, fmt.Errorf("materializing %s: %w", loc, casestore.ErrAlreadyValidated)
	}

	doc := base.Clone()
	if err := doc.Apply(overrides...); err != nil {
		return nil, err
	}
	c := &casestore.Case{Location: loc, Params: params, Config: doc}
	s.cases.Store(loc, c)
	s.states.Store(loc, casestore.Incomplete)
	return c, nil
}

// InvokeAndValidate runs solver and either validates c or forgets it entirely.
func (s *Store) InvokeAndValidate(ctx context.Context, c *casestore.Case, solver casestore.Solver) (bool, error) {
	outcome, runErr := solver.Run(ctx, c)
	if runErr == nil && outcome.Succeeded() {
		s.states.Store(c.Location, casestore.Validated)
		return true, nil
	}
	ctxlog.FromContext(ctx).Warn("Solver run failed, rolling back.", "location", c.Location, "statuses", []int(outcome), "error", runErr)
	if err := s.Rollback(ctx, c.Location); err != nil {
		return false, err
	}
	return false, ctx.Err()
}

// Open returns the validated case at loc.
func (s *Store) Open(ctx context.Context, loc identity.Location) (*casestore.Case, error) {
	if ok, _ := s.Exists(ctx, loc); !ok {
		return nil, fmt.Errorf("opening %s: %w", loc, casestore.ErrNotValidated)
	}
	c, ok := s.cases.Load(loc)
	if !ok {
		// Rolled back after the state check.
		return nil, fmt.Errorf("opening %s: %w", loc, casestore.ErrNotValidated)
	}
	return c.(*casestore.Case), nil
}

// Rollback forgets loc.
func (s *Store) Rollback(ctx context.Context, loc identity.Location) error {
	s.states.Delete(loc)
	s.cases.Delete(loc)
	return nil
}

// Len returns the number of locations currently held, in any state.
func (s *Store) Len() int {
	n := 0
	s.states.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
