package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/extract"
	"github.com/specialistvlad/sweepgridgo/internal/fsutil"
	"github.com/specialistvlad/sweepgridgo/internal/metrics"
	"github.com/specialistvlad/sweepgridgo/internal/sweep"
)

// Run executes the sweep: every point of the definition's grid is reused or
// computed, results are written to the output artifact, and the metrics
// textfile is refreshed when one is configured.
func (a *App) Run(ctx context.Context) (*sweep.Result, error) {
	ctx, p, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)
	sw := p.sweep

	m := metrics.NewSweep(sw.Name)
	driver, err := sweep.New(sweep.Config{
		Name:   sw.Name,
		Store:  p.store,
		Solver: a.newSolver(sw, m.Stage),
		Extractor: &extract.Table{
			File:    sw.Extract.File,
			Columns: sw.Extract.Columns,
			Row:     sw.Extract.Row,
			Series:  sw.Extract.Series,
			Comment: sw.Extract.Comment,
		},
		Template: p.template,
		Planner:  p.evaluator,
		Workers:  a.config.Workers,
		Metrics:  m,
	})
	if err != nil {
		return nil, err
	}

	res, runErr := driver.Run(ctx, sw.Points())
	metricsErr := a.writeMetrics(ctx, m)
	if runErr != nil {
		return res, errors.Join(runErr, metricsErr)
	}

	out := a.outputPath(sw)
	data, err := res.Encode(a.layout(sw.Layout), sw.AxisNames())
	if err != nil {
		return res, fmt.Errorf("encoding results: %w", err)
	}
	if err := ensureParent(out); err != nil {
		return res, fmt.Errorf("creating output directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(out, data, 0o644); err != nil {
		return res, fmt.Errorf("writing results: %w", err)
	}
	logger.Info("Results written.", "path", out, "points", res.Len())
	return res, metricsErr
}

func (a *App) layout(fromSweep string) sweep.Layout {
	if a.config.Layout != "" {
		return sweep.Layout(a.config.Layout)
	}
	if fromSweep != "" {
		return sweep.Layout(fromSweep)
	}
	return sweep.LayoutRows
}

func (a *App) writeMetrics(ctx context.Context, m *metrics.Sweep) error {
	path := a.config.MetricsFile
	if path == "" {
		return nil
	}
	if err := ensureParent(path); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := m.WriteTextfile(path); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Metrics written.", "path", path)
	return nil
}
