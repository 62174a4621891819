package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/specialistvlad/sweepgridgo/internal/caseconfig"
	"github.com/specialistvlad/sweepgridgo/internal/casestore"
	"github.com/specialistvlad/sweepgridgo/internal/config"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
	"github.com/specialistvlad/sweepgridgo/internal/solver"
)

// ErrInvalidSweep marks failures to load or prepare a sweep definition,
// as opposed to failures while running it.
var ErrInvalidSweep = errors.New("invalid sweep")

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidSweep, err)
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader config.Loader
	solver casestore.Solver
}

// Option customizes an App.
type Option func(*App)

// WithSolver replaces the external-command solver built from the sweep's
// stage blocks. Used by tests and dry runs.
func WithSolver(s casestore.Solver) Option {
	return func(a *App) { a.solver = s }
}

// NewApp is the constructor for the main application. Logs go to outW.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, opts ...Option) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		loader: loader,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the application's configuration. This is primarily for testing.
func (a *App) Config() *Config {
	return a.config
}

// plan is everything needed to drive one sweep, resolved from the definition.
type plan struct {
	runID     string
	sweep     *config.Sweep
	evaluator config.Evaluator
	template  *caseconfig.Document
	store     *casestore.FileStore
}

// prepare loads the sweep definition and its template, applies sweep-wide
// settings, and checks every per-point override path against the template.
// Any failure here is a defect of the sweep setup and aborts before a case runs.
func (a *App) prepare(ctx context.Context) (context.Context, *plan, error) {
	runID := uuid.NewString()
	ctx = ctxlog.WithLogger(ctx, a.logger.With("run_id", runID))
	logger := ctxlog.FromContext(ctx)

	sw, eval, err := a.loader.Load(ctx, a.config.SweepPath)
	if err != nil {
		return ctx, nil, invalid(fmt.Errorf("failed to load sweep definition: %w", err))
	}
	ctx = ctxlog.With(ctx, "sweep", sw.Name)

	tmpl, err := caseconfig.LoadFile(sw.Template)
	if err != nil {
		return ctx, nil, invalid(err)
	}
	if err := tmpl.Apply(sw.Settings...); err != nil {
		return ctx, nil, invalid(fmt.Errorf("sweep-wide setting: %w", err))
	}
	for _, path := range sw.OverridePaths() {
		if err := tmpl.Validate(path); err != nil {
			return ctx, nil, invalid(fmt.Errorf("override: %w", err))
		}
	}
	logger.Debug("Template prepared.", "template", sw.Template, "settings", len(sw.Settings), "overrides", len(sw.Overrides))

	return ctx, &plan{
		runID:     runID,
		sweep:     sw,
		evaluator: eval,
		template:  tmpl,
		store:     casestore.NewFileStore(sw.Directory, runID),
	}, nil
}

// outputPath picks the artifact location: flag or env first, then the sweep
// definition, then <directory>/<name>.json.
func (a *App) outputPath(sw *config.Sweep) string {
	if a.config.Output != "" {
		return a.config.Output
	}
	if sw.Output != "" {
		return sw.Output
	}
	return filepath.Join(sw.Directory, sw.Name+".json")
}

func (a *App) newSolver(sw *config.Sweep, observer solver.Observer) casestore.Solver {
	if a.solver != nil {
		return a.solver
	}
	stages := make([]solver.Stage, len(sw.Stages))
	for i, st := range sw.Stages {
		stages[i] = solver.Stage{Name: st.Name, Command: st.Command, Env: st.Env}
	}
	ex := solver.NewExec(stages)
	ex.Observer = observer
	return ex
}

func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
