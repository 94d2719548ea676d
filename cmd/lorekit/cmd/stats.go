package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/ui"
	"github.com/fablekit/lorekit/internal/vector"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate index statistics",
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

			ix, err := a.indexer()
			if err != nil {
				return err
			}
			stats, err := ix.Stats(cmd.Context())
			if err != nil {
				return err
			}

			vectors := 0
			if hs, ok := a.vectors.(*vector.HNSWStore); ok {
				for _, collection := range hs.Collections() {
					vectors += hs.Count(collection)
				}
			}

			if format == "json" {
				out := struct {
					Packs     int `json:"packs"`
					Chunks    int `json:"chunks"`
					Documents int `json:"documents"`
					Vectors   int `json:"vectors"`
				}{stats.Packs, stats.Chunks, stats.Documents, vectors}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			ui.NewRenderer(cmd.OutOrStdout(), noColor).
				Stats(stats.Packs, stats.Chunks, stats.Documents, vectors)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}
