package app

import (
	"context"

	"github.com/specialistvlad/sweepgridgo/internal/casestore"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
)

// PointStatus is the on-disk state of one grid point.
type PointStatus struct {
	Params   identity.Params
	Location identity.Location
	State    casestore.State
}

// Status reports the state of every point of the sweep's grid without
// running anything.
func (a *App) Status(ctx context.Context) ([]PointStatus, error) {
	ctx, p, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}
	points := p.sweep.Points()
	out := make([]PointStatus, 0, len(points))
	seen := make(map[identity.Location]struct{}, len(points))
	for _, pt := range points {
		loc := identity.Of(pt)
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		st, err := p.store.State(ctx, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, PointStatus{Params: pt, Location: loc, State: st})
	}
	ctxlog.FromContext(ctx).Debug("Status collected.", "points", len(out))
	return out, nil
}

// Prune deletes every incomplete case under the sweep directory, including
// ones outside the current grid. Validated cases are never touched.
func (a *App) Prune(ctx context.Context) ([]identity.Location, error) {
	ctx, p, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}
	removed, err := p.store.Prune(ctx)
	if err != nil {
		return removed, err
	}
	ctxlog.FromContext(ctx).Info("Pruned incomplete cases.", "removed", len(removed))
	return removed, nil
}
