package config

import (
	"context"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// Loader is the interface for a format-specific sweep definition loader.
type Loader interface {
	// Load reads a sweep definition from path, translates it into the
	// format-agnostic model, and returns a matching Evaluator.
	Load(ctx context.Context, path string) (*Sweep, Evaluator, error)
}

// Evaluator computes the per-point overrides of a sweep. Failures to evaluate
// an override for a specific point are returned as a
// *caseconfig.ConfigurationError with caseconfig.ScopePoint.
type Evaluator interface {
	Overrides(ctx context.Context, p identity.Params) ([]caseconfig.Override, error)
}
