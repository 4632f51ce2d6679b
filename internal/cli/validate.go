package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/doubles/internal/descriptor"
	"github.com/roach88/doubles/internal/harness"
)

// ValidationIssue is one problem found in a file.
type ValidationIssue struct {
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Scenarios   int               `json:"scenarios"`
	Descriptors int               `json:"descriptors"`
	Errors      []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Validate scenarios and descriptors without running them",
		Long: `Validate scenario files and the CUE descriptors they reference.

Every scenario is parsed, its descriptor files are compiled and each
stub, flow step and assertion is checked against the declared methods
and arities. Nothing is executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("directory not found: %s", dir))
	}

	files, err := harness.FindScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	formatter.VerboseLog("Found %d scenario file(s) in %s", len(files), dir)

	result := ValidationResult{Scenarios: len(files)}
	seenDescs := make(map[string]bool)
	for _, file := range files {
		issues, names := validateScenarioFile(file, formatter)
		result.Errors = append(result.Errors, issues...)
		for _, name := range names {
			seenDescs[name] = true
		}
	}
	result.Descriptors = len(seenDescs)
	result.Valid = len(result.Errors) == 0

	if opts.Format == "json" {
		if err := formatter.Result(result.Valid, result, &CLIError{
			Code:    ErrCodeValidationFailed,
			Message: fmt.Sprintf("%d problem(s) found", len(result.Errors)),
		}); err != nil {
			return err
		}
	} else {
		outputValidationText(cmd, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateScenarioFile loads a scenario, compiles its descriptors and
// lints its calls. It returns the problems and the descriptor names.
func validateScenarioFile(file string, formatter *OutputFormatter) ([]ValidationIssue, []string) {
	formatter.VerboseLog("Validating %s", file)

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return []ValidationIssue{{File: file, Message: err.Error()}}, nil
	}

	descs, err := descriptor.LoadFiles(scenario.Specs...)
	if err != nil {
		issue := ValidationIssue{File: file, Message: err.Error()}
		var de *descriptor.Error
		if errors.As(err, &de) && de.Pos.IsValid() {
			issue.File = de.Pos.Filename()
			issue.Line = de.Pos.Line()
		}
		return []ValidationIssue{issue}, nil
	}

	var issues []ValidationIssue
	for _, problem := range harness.Lint(scenario, descs) {
		issues = append(issues, ValidationIssue{File: file, Message: problem})
	}

	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	return issues, names
}

func outputValidationText(cmd *cobra.Command, result ValidationResult) {
	w := cmd.OutOrStdout()
	if result.Valid {
		fmt.Fprintf(w, "%s %d scenario(s) valid, %d descriptor(s) checked\n",
			passMark(), result.Scenarios, result.Descriptors)
		return
	}
	for _, issue := range result.Errors {
		if issue.Line > 0 {
			fmt.Fprintf(w, "%s %s:%d: %s\n", failMark(), issue.File, issue.Line, issue.Message)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", failMark(), issue.File, issue.Message)
	}
	fmt.Fprintf(w, "\nValidation failed: %d problem(s)\n", len(result.Errors))
}
