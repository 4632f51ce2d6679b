// Package config loads runtime settings from DOUBLES_* environment
// variables. Command-line flags override these values.
package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings shared by the CLI commands.
type Config struct {
	// Strict runs every scenario in strict mode.
	Strict bool `env:"DOUBLES_STRICT" envDefault:"false"`

	// LogLevel accepts DEBUG, INFO, WARN or ERROR.
	LogLevel slog.Level `env:"DOUBLES_LOG_LEVEL" envDefault:"WARN"`

	// GoldenDir holds golden traces, relative to the scenario directory
	// unless absolute.
	GoldenDir string `env:"DOUBLES_GOLDEN_DIR" envDefault:"golden"`

	// DB is the trace archive path. Empty disables archiving.
	DB string `env:"DOUBLES_DB"`

	// Format is the output format: text or json.
	Format string `env:"DOUBLES_FORMAT" envDefault:"text"`
}

// Load reads the process environment.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads the given environment instead of the process one.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values the parser cannot.
func (c Config) Validate() error {
	switch c.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}
