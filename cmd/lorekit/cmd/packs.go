package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/ui"
)

func newPacksCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "packs",
		Short: "List indexed content packs",
		Args:  cobra.NoArgs,
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

			ctx := cmd.Context()
			manifests, err := a.store.ListPacks(ctx)
			if err != nil {
				return err
			}

			counts := make(map[string]int, len(manifests))
			for _, m := range manifests {
				n, err := a.store.CountChunks(ctx, m.ID)
				if err != nil {
					return err
				}
				counts[m.ID] = n
			}

			if format == "json" {
				type packInfo struct {
					ID      string `json:"id"`
					Name    string `json:"name"`
					Version string `json:"version"`
					Layer   string `json:"layer"`
					Chunks  int    `json:"chunks"`
				}
				infos := make([]packInfo, 0, len(manifests))
				for _, m := range manifests {
					infos = append(infos, packInfo{
						ID:      m.ID,
						Name:    m.Name,
						Version: m.Version,
						Layer:   string(m.Layer),
						Chunks:  counts[m.ID],
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			ui.NewRenderer(cmd.OutOrStdout(), noColor).Packs(manifests, counts)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
