package casestore

import (
	"context"
	"errors"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// State is the lifecycle position of a case location.
type State int

const (
	// Absent means nothing exists at the location.
	Absent State = iota
	// Incomplete means the location exists but was never validated, e.g. the
	// process died mid-run before rollback could happen. Safe to delete.
	Incomplete
	// Validated means the solver completed with every stage succeeding.
	Validated
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Incomplete:
		return "incomplete"
	case Validated:
		return "validated"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyValidated is returned by Materialize when the location already
	// holds a completed run. Callers must check Exists first.
	ErrAlreadyValidated = errors.New("case already validated")
	// ErrNotValidated is returned by Open for absent or incomplete locations.
	ErrNotValidated = errors.New("case has no validated run")
)

// Case is a materialized, runnable solver case.
type Case struct {
	Location identity.Location
	Params   identity.Params
	// Dir is the case working directory. Empty for stores without a
	// filesystem backing.
	Dir string
	// ConfigPath is the rendered case description inside Dir.
	ConfigPath string
	Config     *caseconfig.Document
}

// Outcome is the ordered list of per-stage status codes of one solver run.
// Zero means success.
type Outcome []int

// Succeeded reports whether every stage returned zero. An empty outcome
// counts as success.
func (o Outcome) Succeeded() bool {
	for _, code := range o {
		if code != 0 {
			return false
		}
	}
	return true
}

// Solver runs a materialized case and reports its stage statuses. It blocks
// until the run has finished.
type Solver interface {
	Run(ctx context.Context, c *Case) (Outcome, error)
}

// Entry describes one location found by List.
type Entry struct {
	Location identity.Location
	State    State
}
