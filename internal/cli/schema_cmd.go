package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nathro/autotransform/internal/schema"
)

// newSchemaCmd creates the "autotransform schema" command group.
func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the schema map",
	}
	cmd.AddCommand(newSchemaListCmd(), newSchemaGetCmd())
	return cmd
}

func newSchemaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the schemas in the schema map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := schema.LoadMap(schema.SchemaDirectory(cfg))
			if err != nil {
				return err
			}
			names := m.Names()
			if len(names) == 0 {
				fmt.Println("No schemas in the schema map.")
				return nil
			}
			headerStyle := lipgloss.NewStyle().Bold(true)
			fmt.Println(headerStyle.Render(fmt.Sprintf("Schemas (%d)", len(names))))
			for _, name := range names {
				fmt.Println("  " + name)
			}
			return nil
		},
	}
}

func newSchemaGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a schema's bundle JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			target, err := resolveSchema(cfg, args[0])
			if err != nil {
				return err
			}
			out, err := target.ToJSON(true)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newSchemaCmd())
}
