package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nathro/autotransform/internal/change"
	"github.com/nathro/autotransform/internal/runner"
)

// newUpdateCmd creates the "autotransform update" command.
func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <change>",
		Short: "Re-run the pipeline for an outstanding change",
		Long: `Re-run the transformation pipeline for an outstanding change's batch,
refreshing it against the latest state of the codebase. When the refresh
produces no new work the change is abandoned.

The change argument is a JSON change reference (as dispatched by remote
update workflows) or a path to a file containing one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			raw := args[0]
			if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
				data, err := os.ReadFile(raw)
				if err != nil {
					return fmt.Errorf("reading change reference %s: %w", raw, err)
				}
				raw = string(data)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch, err := change.FromBundle(ctx, json.RawMessage(raw))
			if err != nil {
				return err
			}
			local := &runner.LocalRunner{}
			return local.Update(ctx, ch)
		},
	}
	return cmd
}

func init() {
	rootCmd.AddCommand(newUpdateCmd())
}
