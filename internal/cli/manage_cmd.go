package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/manage"
)

// newManageCmd creates the "autotransform manage" command.
func newManageCmd() *cobra.Command {
	var (
		flagFile  string
		flagLocal bool
	)

	cmd := &cobra.Command{
		Use:   "manage",
		Short: "Run one management pass over outstanding changes",
		Long: `Run one pass of the change management loop: fetch the repo's outstanding
changes and drive each through the manager's declarative steps, merging,
abandoning, updating, labeling, or commenting as the conditions dictate.

The manager definition is read from manager.json in the repo config
directory unless --file points elsewhere.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := flagFile
			if path == "" {
				if path, err = defaultConfigFile("manager.json"); err != nil {
					return err
				}
			}
			m, err := manage.FromFile(path)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return m.Run(ctx, cfg, flagLocal)
		},
	}

	cmd.Flags().StringVar(&flagFile, "file", "", "Path to manager.json")
	cmd.Flags().BoolVar(&flagLocal, "local", false, "Use the local runner for update actions")
	return cmd
}

// defaultConfigFile resolves a file living in the repo config directory.
func defaultConfigFile(name string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir, err := config.FindRepoConfigDir(cwd)
	if err != nil {
		return "", err
	}
	if dir == "" {
		return "", fmt.Errorf("no repo config directory found; pass --file: %w", config.ErrConfig)
	}
	return filepath.Join(dir, name), nil
}

func init() {
	rootCmd.AddCommand(newManageCmd())
}
