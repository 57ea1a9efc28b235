package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nathro/autotransform/internal/runner"
	"github.com/nathro/autotransform/internal/scheduler"
	"github.com/nathro/autotransform/internal/schema"
)

// newScheduleCmd creates the "autotransform schedule" command.
func newScheduleCmd() *cobra.Command {
	var (
		flagFile string
		flagNow  int64
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run one scheduler tick",
		Long: `Run one scheduler tick: check every scheduled schema against the current
hour and day (relative to the scheduler's base time), compute shard
assignments, and dispatch due schemas via the configured remote runner.

The engine assumes this command is invoked at most once per hour by a
cron-like driver. The schedule is read from scheduler.json in the repo
config directory unless --file points elsewhere.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := flagFile
			if path == "" {
				if path, err = defaultConfigFile("scheduler.json"); err != nil {
					return err
				}
			}
			sched, err := scheduler.FromFile(path)
			if err != nil {
				return err
			}
			schemaMap, err := schema.LoadMap(schema.SchemaDirectory(cfg))
			if err != nil {
				return err
			}
			r, err := runner.Select(cfg, false)
			if err != nil {
				return err
			}

			now := flagNow
			if now == 0 {
				now = time.Now().Unix()
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return sched.Run(ctx, now, schemaMap, r)
		},
	}

	cmd.Flags().StringVar(&flagFile, "file", "", "Path to scheduler.json")
	cmd.Flags().Int64Var(&flagNow, "now", 0, "Tick time as a unix timestamp (default: current time)")
	return cmd
}

func init() {
	rootCmd.AddCommand(newScheduleCmd())
}
