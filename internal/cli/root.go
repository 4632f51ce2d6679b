package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/doubles/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config holds environment settings. Flags set on the command line
	// take precedence.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the doubles CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "doubles",
		Short: "doubles - scenario runner for test doubles",
		Long: `Run declarative scenarios against stubbed collaborators.

Scenarios arrange stubs on doubles, make calls through them and verify
what was recorded. Traces can be compared with golden files and archived
in a SQLite database.

Settings are read from DOUBLES_STRICT, DOUBLES_LOG_LEVEL,
DOUBLES_GOLDEN_DIR, DOUBLES_DB and DOUBLES_FORMAT. Flags override them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			opts.Config = cfg
			if !cmd.Flags().Changed("format") {
				opts.Format = cfg.Format
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// logger returns the diagnostic logger. --verbose lowers the level to
// debug.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	cfg := o.Config
	if o.Verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg.Logger(w)
}
