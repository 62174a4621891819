package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/sweepgridgo/internal/app"
	"github.com/specialistvlad/sweepgridgo/internal/hcl"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	CodeAborted = 1
	CodeUsage   = 2
)

// Execute runs the command tree with args. Command output goes to outW and
// logs to errW. opts are passed through to every App the commands create.
func Execute(ctx context.Context, args []string, outW, errW io.Writer, opts ...app.Option) error {
	envCfg, err := app.ConfigFromEnv()
	if err != nil {
		return &ExitError{Code: CodeUsage, Message: err.Error()}
	}
	root := NewRootCommand(envCfg, outW, errW, opts...)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		// cobra's own argument and flag errors.
		return &ExitError{Code: CodeUsage, Message: err.Error()}
	}
	return nil
}

// NewRootCommand builds the sweepgrid command tree. defaults seeds every flag,
// so environment values apply unless a flag overrides them.
func NewRootCommand(defaults app.Config, outW, errW io.Writer, opts ...app.Option) *cobra.Command {
	cfg := defaults

	root := &cobra.Command{
		Use:   "sweepgrid",
		Short: "Sweep solver parameters over a grid, reusing every case that already succeeded.",
		Long: `sweepgrid runs an external solver once per point of a parameter grid.

Each point gets its own case directory named after its parameters. A case
that completed successfully is never run again; a failed one is removed so
the next sweep retries it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)

	pf := root.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "Logging level: debug, info, warn or error.")
	pf.StringVar(&cfg.LogFormat, "log-format", defaults.LogFormat, "Log output format: text or json.")

	newApp := func(sweepPath string) (*app.App, error) {
		c := cfg
		c.SweepPath = sweepPath
		c.LogLevel = strings.ToLower(c.LogLevel)
		c.LogFormat = strings.ToLower(c.LogFormat)
		valid, err := app.NewConfig(c)
		if err != nil {
			return nil, &ExitError{Code: CodeUsage, Message: err.Error()}
		}
		return app.NewApp(errW, valid, hcl.NewLoader(), opts...), nil
	}

	runCmd := &cobra.Command{
		Use:   "run SWEEP_FILE",
		Short: "Run the sweep and write the results artifact.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(args[0])
			if err != nil {
				return err
			}
			res, err := a.Run(cmd.Context())
			if err != nil {
				return classify(err)
			}
			s := res.Summary()
			fmt.Fprintf(cmd.OutOrStdout(), "%d succeeded (%d cached, %d computed), %d failed, %d skipped\n",
				res.Len(), s.Cached, s.Computed, s.Failed, s.ConfigErrors)
			return nil
		},
	}
	rf := runCmd.Flags()
	rf.IntVarP(&cfg.Workers, "workers", "w", defaults.Workers, "Number of points processed concurrently.")
	rf.StringVarP(&cfg.Output, "output", "o", defaults.Output, "Path of the JSON results artifact.")
	rf.StringVar(&cfg.Layout, "layout", defaults.Layout, "Artifact layout: rows or columns.")
	rf.StringVar(&cfg.MetricsFile, "metrics-file", defaults.MetricsFile, "Write Prometheus metrics to this textfile after the run.")

	statusCmd := &cobra.Command{
		Use:   "status SWEEP_FILE",
		Short: "Show the on-disk state of every point of the sweep.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(args[0])
			if err != nil {
				return err
			}
			statuses, err := a.Status(cmd.Context())
			if err != nil {
				return classify(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LOCATION\tSTATE")
			for _, s := range statuses {
				fmt.Fprintf(tw, "%s\t%s\n", s.Location, s.State)
			}
			return tw.Flush()
		},
	}

	pruneCmd := &cobra.Command{
		Use:   "prune SWEEP_FILE",
		Short: "Delete incomplete case directories left by interrupted runs.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(args[0])
			if err != nil {
				return err
			}
			removed, err := a.Prune(cmd.Context())
			if err != nil {
				return classify(err)
			}
			for _, loc := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", loc)
			}
			return nil
		},
	}

	root.AddCommand(runCmd, statusCmd, pruneCmd)
	return root
}

// classify maps application errors to exit codes.
func classify(err error) error {
	if errors.Is(err, app.ErrInvalidSweep) {
		return &ExitError{Code: CodeUsage, Message: err.Error()}
	}
	return &ExitError{Code: CodeAborted, Message: err.Error()}
}
