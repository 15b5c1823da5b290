// Package cmd implements the dirwatch CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/config"
	"github.com/twiced-technology-gmbh/dirwatch/internal/logging"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagJSON      bool
	flagTable     bool
	flagCompact   bool
	flagConfig    string
	flagNoColor   bool
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "dirwatch",
	Short: "Watch a directory tree for file changes",
	Long: `dirwatch reports every change below a directory: files created, removed,
renamed or modified, metadata and ownership changes. Events can be streamed to
the terminal, browsed in a TUI, journaled, or served over HTTP.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagNoColor {
			output.DisableColor()
			return
		}
		output.AutoColor(os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagTable, "table", false, "output as table")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "compact", false, "compact one-line-per-record output")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "oneline", false, "alias for --compact")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: search upward for "+config.ConfigFileName+")")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text, json")
	rootCmd.PersistentFlags().SetNormalizeFunc(normalizeFlagName)
}

// Execute runs the root command.
func Execute() {
	_, err := rootCmd.ExecuteC()
	if err == nil {
		return
	}

	// SilentError: exit with its code, no output.
	var silent *clierr.SilentError
	if errors.As(err, &silent) {
		os.Exit(silent.Code)
	}

	jsonMode := flagJSON
	if !jsonMode {
		jsonMode = os.Getenv(output.EnvOutput) == "json"
	}

	cliErr := clierr.As(err)
	if jsonMode {
		output.JSONError(os.Stdout, cliErr.Code, cliErr.Message, cliErr.Details)
		os.Exit(cliErr.ExitCode())
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(cliErr.ExitCode())
}

// loadConfig resolves the config for the current directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	cfg, err := config.Resolve(flagConfig, cwd)
	if errors.Is(err, config.ErrInvalid) {
		return nil, clierr.New(clierr.InvalidInput, err.Error())
	}
	return cfg, err
}

// newLogger builds the process logger from flags and config, and installs it
// as the slog default.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, format := cfg.Log.Level, cfg.Log.Format
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	if flagLogFormat != "" {
		format = flagLogFormat
	}

	logger, err := logging.New(os.Stderr, level, format)
	if err != nil {
		return nil, clierr.New(clierr.InvalidInput, err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}

// outputFormat returns the detected output format from flags, env and config.
func outputFormat(cfg *config.Config) output.Format {
	configured := ""
	if cfg != nil {
		configured = cfg.Output
	}
	return output.Detect(flagJSON, flagTable, flagCompact, configured)
}
