package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/runner"
	"github.com/nathro/autotransform/internal/schema"
)

// runFlags holds the parsed flag values for the run command.
type runFlags struct {
	// Remote dispatches the run via the configured remote runner instead of
	// executing in-process.
	Remote bool

	// MaxSubmissions overrides the schema's submission cap for this run.
	MaxSubmissions int
}

// newRunCmd creates the "autotransform run" command.
func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <schema>",
		Short: "Run a schema's transformation pipeline",
		Long: `Run a schema's full transformation pipeline: get items from the input,
filter and batch them, transform each batch, validate the results, and
submit the outcome.

The schema argument is either a name resolved through the schema map or a
path to a schema bundle JSON file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			target, err := resolveSchema(cfg, args[0])
			if err != nil {
				return err
			}
			if flags.MaxSubmissions > 0 {
				target.Config.MaxSubmissions = flags.MaxSubmissions
			}

			r, err := runner.Select(cfg, !flags.Remote)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.Run(ctx, target)
		},
	}

	cmd.Flags().BoolVar(&flags.Remote, "remote", false, "Dispatch via the configured remote runner")
	cmd.Flags().IntVar(&flags.MaxSubmissions, "max-submissions", 0, "Override the schema's submission cap")
	return cmd
}

// resolveSchema loads a schema by bundle file path or by schema map name.
func resolveSchema(cfg *config.Config, target string) (*schema.Schema, error) {
	if strings.HasSuffix(target, ".json") {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w (%w)", target, err, config.ErrConfig)
		}
		return schema.FromBundle(data)
	}
	m, err := schema.LoadMap(schema.SchemaDirectory(cfg))
	if err != nil {
		return nil, err
	}
	return m.Get(target)
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
