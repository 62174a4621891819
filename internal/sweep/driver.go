// Package sweep maps an ordered sequence of parameter points to results,
// reusing completed cases and running the solver only for points that have
// never succeeded.
//
// For each point the driver resolves its location, checks the store,
// materializes and runs the case when absent, and extracts results when the
// case is present. A point whose run fails is rolled back by the store and
// left out of the result; the sweep continues. Repeats of that point in the
// same run are skipped. A later sweep re-attempts it because rollback left it
// absent.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/casestore"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/extract"
	"github.com/specialistvlad/sweepgridgo/internal/identity"
	"github.com/specialistvlad/sweepgridgo/internal/metrics"
)

// Store is the case lifecycle the driver depends on. casestore.FileStore and
// inmemorystore.Store implement it.
type Store interface {
	Exists(ctx context.Context, loc identity.Location) (bool, error)
	Materialize(ctx context.Context, loc identity.Location, base *caseconfig.Document, overrides []caseconfig.Override) (*casestore.Case, error)
	InvokeAndValidate(ctx context.Context, c *casestore.Case, solver casestore.Solver) (bool, error)
	Open(ctx context.Context, loc identity.Location) (*casestore.Case, error)
}

// Extractor reads results from a validated case.
type Extractor interface {
	Extract(ctx context.Context, c *casestore.Case) (extract.Record, error)
}

// Planner produces the per-point overrides applied on top of the template.
type Planner interface {
	Overrides(ctx context.Context, p identity.Params) ([]caseconfig.Override, error)
}

// PlannerFunc adapts a plain function to Planner.
type PlannerFunc func(ctx context.Context, p identity.Params) ([]caseconfig.Override, error)

// Overrides calls f.
func (f PlannerFunc) Overrides(ctx context.Context, p identity.Params) ([]caseconfig.Override, error) {
	return f(ctx, p)
}

// Config wires a Driver.
type Config struct {
	Name      string
	Store     Store
	Solver    casestore.Solver
	Extractor Extractor
	Template  *caseconfig.Document
	// Planner is optional; without it every case is the bare template.
	Planner Planner
	// Workers bounds how many points are processed at once. Values below 2
	// give strictly sequential processing in input order.
	Workers int
	Metrics *metrics.Sweep
}

// Driver runs sweeps.
type Driver struct {
	cfg   Config
	locks *locationLocks
}

// New validates cfg and returns a Driver.
func New(cfg Config) (*Driver, error) {
	if cfg.Store == nil {
		return nil, errors.New("sweep: store is required")
	}
	if cfg.Solver == nil {
		return nil, errors.New("sweep: solver is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("sweep: extractor is required")
	}
	if cfg.Template == nil {
		return nil, errors.New("sweep: template is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Driver{cfg: cfg, locks: newLocationLocks()}, nil
}

// Run processes points and returns the successful ones. It returns an error
// only for failures that invalidate the whole sweep: a sweep-scoped
// configuration error, an extraction error, a store failure, or context
// cancellation. Individual run failures only shrink the result.
func (d *Driver) Run(ctx context.Context, points []identity.Params) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}

	res := newResult()
	logger.Info("Sweep started.", "sweep", d.cfg.Name, "points", len(points), "workers", d.cfg.Workers)

	if d.cfg.Workers == 1 {
		for _, p := range points {
			if err := d.runPoint(ctx, p, res); err != nil {
				return res, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.Workers)
		for _, p := range points {
			g.Go(func() error {
				return d.runPoint(gctx, p, res)
			})
		}
		if err := g.Wait(); err != nil {
			return res, err
		}
	}

	s := res.Summary()
	logger.Info("Sweep finished.",
		"sweep", d.cfg.Name,
		"succeeded", res.Len(),
		"cached", s.Cached,
		"computed", s.Computed,
		"failed", s.Failed,
		"config_errors", s.ConfigErrors,
	)
	return res, nil
}

// runPoint applies the cache-or-run policy to one point and records it.
func (d *Driver) runPoint(ctx context.Context, p identity.Params, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := identity.Of(p)
	ctx = ctxlog.With(ctx, "location", loc)
	logger := ctxlog.FromContext(ctx)

	unlock := d.locks.lock(loc)
	defer unlock()

	if res.skipped(loc) {
		logger.Debug("Point already skipped in this run.")
		return nil
	}

	exists, err := d.cfg.Store.Exists(ctx, loc)
	if err != nil {
		return fmt.Errorf("checking case %s: %w", loc, err)
	}

	if exists {
		logger.Debug("Reusing existing case.")
	} else {
		ok, err := d.compute(ctx, loc, p)
		if err != nil {
			if caseconfig.IsPointScoped(err) {
				logger.Warn("Skipping point: configuration cannot be built.", "error", err)
				d.cfg.Metrics.Point(metrics.OutcomeConfigError)
				res.countConfigError(loc)
				return nil
			}
			return err
		}
		if !ok {
			logger.Warn("Skipping point: solver run failed.")
			d.cfg.Metrics.Point(metrics.OutcomeFailed)
			res.countFailed(loc)
			return nil
		}
	}

	rec, err := d.extract(ctx, loc)
	if err != nil {
		return err
	}
	if !res.add(Entry{Params: p, Location: loc, Record: rec, Cached: exists}) {
		logger.Debug("Duplicate point ignored.")
		return nil
	}
	if exists {
		d.cfg.Metrics.Point(metrics.OutcomeCached)
	} else {
		logger.Info("Point computed.")
		d.cfg.Metrics.Point(metrics.OutcomeComputed)
	}
	return nil
}

// compute materializes and runs a case that does not exist yet.
func (d *Driver) compute(ctx context.Context, loc identity.Location, p identity.Params) (bool, error) {
	var overrides []caseconfig.Override
	if d.cfg.Planner != nil {
		var err error
		overrides, err = d.cfg.Planner.Overrides(ctx, p)
		if err != nil {
			return false, err
		}
	}

	c, err := d.cfg.Store.Materialize(ctx, loc, d.cfg.Template, overrides)
	if err != nil {
		return false, err
	}

	start := time.Now()
	ok, err := d.cfg.Store.InvokeAndValidate(ctx, c, d.cfg.Solver)
	d.cfg.Metrics.SolverRun(time.Since(start))
	if err != nil {
		return false, fmt.Errorf("running case %s: %w", loc, err)
	}
	return ok, nil
}

// Extract returns the results of the validated case for p. Calling it for a
// point that was never computed or was rolled back is a contract violation
// and yields an *extract.Error wrapping casestore.ErrNotValidated.
func (d *Driver) Extract(ctx context.Context, p identity.Params) (extract.Record, error) {
	if err := p.Validate(); err != nil {
		return extract.Record{}, err
	}
	return d.extract(ctx, identity.Of(p))
}

func (d *Driver) extract(ctx context.Context, loc identity.Location) (extract.Record, error) {
	c, err := d.cfg.Store.Open(ctx, loc)
	if err != nil {
		return extract.Record{}, extract.Wrap(loc, err)
	}
	rec, err := d.cfg.Extractor.Extract(ctx, c)
	if err != nil {
		return extract.Record{}, extract.Wrap(loc, err)
	}
	return rec, nil
}
