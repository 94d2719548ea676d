package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/ui"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <pack-id>",
		Short: "Remove an indexed pack from every storage surface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.acquireLock(); err != nil {
				return err
			}
			ix, err := a.indexer()
			if err != nil {
				return err
			}

			removed, err := ix.RemovePack(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ui.NewRenderer(cmd.OutOrStdout(), noColor).
				Successf("removed %s (%d chunks)", args[0], removed)
			return nil
		},
	}
}
