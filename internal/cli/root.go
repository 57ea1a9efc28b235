// Package cli implements the autotransform command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/event"
	"github.com/nathro/autotransform/internal/schema"

	// Built-in components register themselves with the factory registries.
	_ "github.com/nathro/autotransform/internal/batcher"
	_ "github.com/nathro/autotransform/internal/command"
	_ "github.com/nathro/autotransform/internal/filter"
	_ "github.com/nathro/autotransform/internal/input"
	_ "github.com/nathro/autotransform/internal/repo"
	_ "github.com/nathro/autotransform/internal/transformer"
	_ "github.com/nathro/autotransform/internal/validator"
)

// Exit codes. Config errors and validation failures get dedicated codes so
// schedulers and workflows can tell them apart from generic failures.
const (
	exitOK         = 0
	exitFailure    = 1
	exitConfig     = 2
	exitValidation = 3
)

// Global flag values accessible to all subcommands.
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagNoColor bool
)

// rootCmd is the base command for AutoTransform.
var rootCmd = &cobra.Command{
	Use:   "autotransform",
	Short: "Large-scale automated code modification engine",
	Long: `AutoTransform performs large-scale, automated code modifications and
manages the lifecycle of the resulting code-review submissions. A schema
declares a transformation as a composition of pluggable components; the
engine discovers work, transforms it, validates the result, and shepherds
each outstanding change to completion.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// RunE shows full help when invoked with no subcommand. Without RunE,
	// Cobra only prints the Long description (omitting Usage and Flags).
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check env vars for flags not explicitly set on command line.
		if !cmd.Flags().Changed("verbose") && os.Getenv("AUTO_TRANSFORM_VERBOSE") != "" {
			flagVerbose = true
		}
		if !cmd.Flags().Changed("quiet") && os.Getenv("AUTO_TRANSFORM_QUIET") != "" {
			flagQuiet = true
		}
		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("AUTO_TRANSFORM_NO_COLOR") != "") {
			flagNoColor = true
		}

		// Configure reads AUTO_TRANSFORM_LOG_FORMAT itself and installs the
		// default event handler at the matching threshold.
		event.Configure(flagVerbose, flagQuiet)

		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return fmt.Errorf("changing directory to %s: %w", flagDir, err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: AUTO_TRANSFORM_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: AUTO_TRANSFORM_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to autotransform.toml config file")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Override working directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: AUTO_TRANSFORM_NO_COLOR, NO_COLOR)")
}

// loadConfig assembles the effective config and registers any custom
// components it points at.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := schema.LoadCustomComponents(cfg.ComponentDirectory); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		logger := event.Logger("cli")
		var validationErr *schema.ValidationError
		switch {
		case errors.Is(err, config.ErrConfig):
			logger.Error("configuration error", "err", err)
			return exitConfig
		case errors.As(err, &validationErr):
			logger.Error("validation failed",
				"validator", validationErr.Result.Validator,
				"level", validationErr.Result.Level,
				"message", validationErr.Result.Message)
			return exitValidation
		default:
			logger.Error("command failed", "err", err)
			return exitFailure
		}
	}
	return exitOK
}
