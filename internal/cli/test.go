package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/roach88/doubles/internal/harness"
	"github.com/roach88/doubles/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	Strict    bool   // force strict mode
	GoldenDir string // golden file directory
	Database  string // trace archive; empty disables archiving
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	RunID  string   `json:"run_id,omitempty"`
	Calls  int      `json:"calls"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenarios",
		Long: `Run every scenario file under a directory.

Each scenario registers its stubs, makes its calls through the doubles
and evaluates its assertions. When a golden file exists for a scenario
its trace must match it byte for byte. With --db every run is archived.

Golden files live in <scenarios-dir>/golden unless --golden-dir is set.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  doubles test ./scenarios
  doubles test ./scenarios --filter "create_user_*"
  doubles test ./scenarios --update
  doubles test ./scenarios --db runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.applyConfig(cmd)
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "run every scenario in strict mode")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "golden file directory")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive runs in this SQLite database")

	return cmd
}

// applyConfig fills flags the user did not set from the environment.
func (o *TestOptions) applyConfig(cmd *cobra.Command) {
	cfg := o.Config
	if !cmd.Flags().Changed("strict") {
		o.Strict = cfg.Strict
	}
	if !cmd.Flags().Changed("golden-dir") {
		o.GoldenDir = cfg.GoldenDir
	}
	if !cmd.Flags().Changed("db") {
		o.Database = cfg.DB
	}
}

func runTests(ctx context.Context, opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return formatter.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	var archive *store.Store
	if opts.Database != "" {
		archive, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer archive.Close()
	}

	runner := &scenarioRunner{
		opts:      opts,
		goldenDir: resolveGoldenDir(scenariosDir, opts.GoldenDir),
		archive:   archive,
		logger:    opts.logger(cmd.ErrOrStderr()),
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, file := range scenarioFiles {
		sr := runner.run(ctx, file)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format != "json" {
			printScenarioResult(cmd.OutOrStdout(), sr, opts.Update)
		}
	}

	if opts.Format == "json" {
		if err := formatter.Result(result.Failed == 0, result, &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}); err != nil {
			return err
		}
	} else {
		outputTestSummary(cmd.OutOrStdout(), result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles finds scenario files under dir whose base name,
// without extension, matches filter.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	files, err := harness.FindScenarios(dir)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return files, nil
	}
	if _, err := filepath.Match(filter, ""); err != nil {
		return nil, fmt.Errorf("invalid filter pattern: %w", err)
	}
	return lo.Filter(files, func(path string, _ int) bool {
		base := filepath.Base(path)
		matched, _ := filepath.Match(filter, strings.TrimSuffix(base, filepath.Ext(base)))
		return matched
	}), nil
}

// resolveGoldenDir places a relative golden directory inside the
// scenarios directory.
func resolveGoldenDir(scenariosDir, goldenDir string) string {
	if goldenDir == "" {
		goldenDir = "golden"
	}
	if filepath.IsAbs(goldenDir) {
		return goldenDir
	}
	return filepath.Join(scenariosDir, goldenDir)
}

type scenarioRunner struct {
	opts      *TestOptions
	goldenDir string
	archive   *store.Store
	logger    *slog.Logger
}

// run executes one scenario file, compares its golden trace and archives
// the run.
func (r *scenarioRunner) run(ctx context.Context, file string) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	runOpts := []harness.Option{harness.WithLogger(r.logger)}
	if r.opts.Strict {
		runOpts = append(runOpts, harness.WithStrict())
	}
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}

	if err := r.checkGolden(result); err != nil {
		result.AddError(err.Error())
	}

	if r.archive != nil {
		id, err := r.archive.WriteRun(ctx, result)
		if err != nil {
			result.AddError(fmt.Sprintf("failed to archive run: %v", err))
		}
		sr.RunID = id
	}

	sr.Pass = result.Pass
	sr.Calls = len(result.Trace)
	sr.Errors = result.Errors
	return sr
}

// checkGolden compares the trace with its golden file, or rewrites it
// with --update. Scenarios without a golden file rely on their
// assertions alone.
func (r *scenarioRunner) checkGolden(result *harness.Result) error {
	if r.opts.Update {
		return harness.CheckGolden(r.goldenDir, result, true)
	}
	path := filepath.Join(r.goldenDir, result.Scenario+".golden")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("no golden file", "scenario", result.Scenario, "path", path)
		return nil
	}
	err := harness.CheckGolden(r.goldenDir, result, false)
	if errors.Is(err, harness.ErrGoldenMismatch) {
		return fmt.Errorf("%w (run with --update to regenerate)", err)
	}
	return err
}

func printScenarioResult(w io.Writer, sr ScenarioResult, updated bool) {
	if !sr.Pass {
		fmt.Fprintf(w, "%s %s\n", failMark(), sr.Name)
		for _, e := range sr.Errors {
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
		return
	}
	suffix := ""
	if updated {
		suffix = " (golden updated)"
	}
	fmt.Fprintf(w, "%s %s%s\n", passMark(), sr.Name, suffix)
}

func outputTestSummary(w io.Writer, result TestResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed == 0 {
		fmt.Fprintf(w, "%s All scenarios passed\n", color.GreenString("✓"))
	}
}
