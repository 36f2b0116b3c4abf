package cli

import (
	"fmt"

	"github.com/eleven-am/katas/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		force  bool
		dbFile string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a katas.yaml configuration file",
		Long: `Creates a katas.yaml configuration file with default settings and a
freshly generated session secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFile
			if path == "" {
				path = config.DefaultFile
			}

			cfg := config.Default()
			if dbFile != "" {
				cfg.Database.Path = dbFile
			}
			if _, err := cfg.EnsureSessionSecret(); err != nil {
				return err
			}

			if err := config.Save(cfg, path, force); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", path)
			fmt.Fprintf(out, "\nNext steps:\n")
			fmt.Fprintf(out, "1. Review the listen address and database path in %s\n", path)
			fmt.Fprintf(out, "2. Run 'katas migrate' to create the schema\n")
			fmt.Fprintf(out, "3. Run 'katas serve'\n")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cmd.Flags().StringVar(&dbFile, "database", "", "database path to write into the file")
	return cmd
}
