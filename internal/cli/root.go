package cli

import (
	"fmt"

	"github.com/eleven-am/katas/internal/config"
	"github.com/eleven-am/katas/internal/logger"
	"github.com/eleven-am/katas/pkg/katas"
	"github.com/spf13/cobra"
)

// Global configuration variables
var (
	configFile string
	dbPath     string
	debug      bool
	appConfig  *config.Config
)

// commands that run without loading the configuration
var standalone = map[string]bool{"init": true, "version": true, "help": true}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "katas",
		Short: "Katas - a community site for coding exercises",
		Long: `Katas serves a small web site where people share coding exercises,
filter and search them, track what they upvoted, saved or completed, keep
private notes, and compile prompt templates from their recent activity.

Data lives in a single SQLite file.`,
		Version:       katas.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if standalone[cmd.Name()] {
				return nil
			}
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: katas.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func loadConfig() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	appConfig = cfg
	return nil
}
