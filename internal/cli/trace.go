package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/doubles/internal/harness"
	"github.com/roach88/doubles/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Call     string // optional - filter to one Double.method
	List     bool   // list runs instead of showing one
	Scenario string // restrict --list to one scenario
}

// TraceResult holds one archived run and its calls.
type TraceResult struct {
	Run      store.Run            `json:"run"`
	Timeline []harness.TraceEvent `json:"timeline"`
	Stats    TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalCalls int            `json:"total_calls"`
	Failed     int            `json:"failed"`
	PerDouble  map[string]int `json:"per_double"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show archived scenario runs",
		Long: `Show the calls recorded by an archived scenario run.

Without a run ID the most recent run is shown. With --list the archived
runs are listed instead, optionally restricted to one scenario.

Examples:
  doubles trace --db runs.db
  doubles trace --db runs.db 0199a3c4-...
  doubles trace --db runs.db --call UserRepository.Save
  doubles trace --db runs.db --list --scenario create_user_happy_path`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") && opts.Config.DB != "" {
				opts.Database = opts.Config.DB
			}
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(cmd.Context(), opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to DOUBLES_DB)")
	cmd.Flags().StringVar(&opts.Call, "call", "", "filter to one Double.method")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list archived runs")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "restrict --list to one scenario")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, runID string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set DOUBLES_DB")
	}
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.List {
		runs, err := st.ListRuns(ctx, opts.Scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		outputRunList(cmd.OutOrStdout(), runs)
		return nil
	}

	var run store.Run
	if runID == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.GetRun(ctx, runID)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	trace, err := st.ReadTrace(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := buildTraceResult(run, trace, opts.Call)
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildTraceResult filters the timeline to call, when set. Stats always
// describe the whole run.
func buildTraceResult(run store.Run, trace []harness.TraceEvent, call string) TraceResult {
	stats := TraceStats{
		TotalCalls: len(trace),
		Failed:     lo.CountBy(trace, func(e harness.TraceEvent) bool { return e.Fail != "" }),
		PerDouble:  lo.CountValuesBy(trace, func(e harness.TraceEvent) string { return e.Double }),
	}

	timeline := trace
	if call != "" {
		timeline = lo.Filter(trace, func(e harness.TraceEvent, _ int) bool { return e.Call() == call })
	}

	return TraceResult{Run: run, Timeline: timeline, Stats: stats}
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	status := color.GreenString("PASS")
	if !result.Run.Pass {
		status = color.RedString("FAIL")
	}
	fmt.Fprintf(w, "Run %s (%s) %s\n", result.Run.ID, result.Run.Scenario, status)
	fmt.Fprintf(w, "Trace hash: %s\n", result.Run.TraceHash)
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No calls recorded.")
	}
	for _, event := range result.Timeline {
		fmt.Fprintf(w, "  %s\n", event)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Calls: %d, failed: %d\n", result.Stats.TotalCalls, result.Stats.Failed)
	if verbose {
		names := lo.Keys(result.Stats.PerDouble)
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, result.Stats.PerDouble[name])
		}
	}

	if len(result.Run.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, e := range result.Run.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

func outputRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs archived.")
		return
	}
	for _, run := range runs {
		mark := passMark()
		if !run.Pass {
			mark = failMark()
		}
		fmt.Fprintf(w, "%s %s  %s  %d call(s)\n", mark, run.ID, run.Scenario, run.Calls)
	}
}
