// Package cmd provides the CLI commands for lorekit.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/config"
	"github.com/fablekit/lorekit/pkg/version"
)

// Persistent flags shared by every command.
var (
	cfgPath  string
	logLevel string
	noColor  bool
)

// NewRootCmd creates the root command for the lorekit CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lorekit",
		Short: "Lore retrieval and scene caching for storytelling engines",
		Long: `Lorekit indexes markdown content packs and serves scene-scoped lore
through a hybrid retrieval pipeline: entity manifest lookup, keyword
full-text search, entity references, and semantic vector search,
trimmed to a token budget.

Point 'lorekit index' at a packs directory to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("lorekit version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (default: .lorekit.yaml if present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSceneCmd())
	cmd.AddCommand(newPacksCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}
