// Package solver invokes the external numerical solver on a materialized case.
//
// The solver is a sequence of stages (mesh generation, field setup, the solve
// itself, ...). Each stage is an external command run in the case directory;
// its exit code becomes one entry of the returned casestore.Outcome.
package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/specialistvlad/sweepgridgo/internal/casestore"
	"github.com/specialistvlad/sweepgridgo/internal/ctxlog"
)

// StatusNotStarted is reported for a stage whose command could not be started.
const StatusNotStarted = 127

// Stage is one external command of a solver run.
type Stage struct {
	Name    string
	Command []string
	Env     map[string]string
}

// Func adapts a plain function to casestore.Solver.
type Func func(ctx context.Context, c *casestore.Case) (casestore.Outcome, error)

// Run calls f.
func (f Func) Run(ctx context.Context, c *casestore.Case) (casestore.Outcome, error) {
	return f(ctx, c)
}

// Observer is notified after every stage. It is used for metrics.
type Observer func(stage string, status int, elapsed time.Duration)

// Exec runs stages sequentially with os/exec.
type Exec struct {
	Stages []Stage
	// ContinueOnFailure keeps running later stages after a failing one.
	ContinueOnFailure bool
	Observer          Observer
}

// NewExec creates an Exec invoker for the given stages.
func NewExec(stages []Stage) *Exec {
	return &Exec{Stages: stages}
}

// Run executes every stage in c.Dir and returns their exit codes in order.
// Combined stdout/stderr of a stage is written to log.<stage> in the case
// directory. Only context cancellation is returned as an error; commands that
// fail or cannot start are reported through their status.
func (e *Exec) Run(ctx context.Context, c *casestore.Case) (casestore.Outcome, error) {
	logger := ctxlog.FromContext(ctx).With("location", c.Location)
	if c.Dir == "" {
		return nil, fmt.Errorf("case %s has no working directory", c.Location)
	}

	outcome := make(casestore.Outcome, 0, len(e.Stages))
	for _, st := range e.Stages {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		start := time.Now()
		status, err := e.runStage(ctx, c, st)
		elapsed := time.Since(start)
		if err != nil {
			return append(outcome, status), err
		}
		if e.Observer != nil {
			e.Observer(st.Name, status, elapsed)
		}
		logger.Debug("Stage finished.", "stage", st.Name, "status", status, "elapsed", elapsed)
		outcome = append(outcome, status)
		if status != 0 && !e.ContinueOnFailure {
			break
		}
	}
	return outcome, nil
}

func (e *Exec) runStage(ctx context.Context, c *casestore.Case, st Stage) (int, error) {
	logger := ctxlog.FromContext(ctx)
	if len(st.Command) == 0 {
		return StatusNotStarted, nil
	}

	logPath := filepath.Join(c.Dir, "log."+st.Name)
	logFile, err := os.Create(logPath)
	if err != nil {
		return StatusNotStarted, fmt.Errorf("creating stage log %s: %w", logPath, err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, st.Command[0], st.Command[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(),
		"SWEEP_CASE_DIR="+c.Dir,
		"SWEEP_CASE_ID="+c.Location.String(),
		"SWEEP_CASE_CONFIG="+c.ConfigPath,
	)
	for k, v := range st.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	logger.Debug("Starting stage.", "stage", st.Name, "command", st.Command)
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	logger.Warn("Stage could not be started.", "stage", st.Name, "error", err)
	fmt.Fprintf(logFile, "sweepgrid: %v\n", err)
	return StatusNotStarted, nil
}
