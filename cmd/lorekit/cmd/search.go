package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	packs     []string
	entities  []string
	maxTokens int
	maxChunks int
	format    string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed lore",
		Long: `Run the hybrid retrieval pipeline for a free-text query: entity
manifest lookup, keyword full-text search, entity references, and
semantic vector search, trimmed to the token budget.

Examples:
  lorekit search "viktor smuggling"
  lorekit search "the neon dragon" --pack neon_city
  lorekit search "dockside rumors" --entity viktor --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.packs, "pack", "p", nil, "Restrict search to these packs (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.entities, "entity", "e", nil, "Entity ids to look up directly (repeatable)")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Token budget for the result (default from config)")
	cmd.Flags().IntVarP(&opts.maxChunks, "max-chunks", "n", 0, "Maximum chunks to return (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.retriever()
	if err != nil {
		return err
	}
	if err := r.RefreshManifest(ctx); err != nil {
		return err
	}

	maxTokens := opts.maxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.Retrieval.MaxTokens
	}
	maxChunks := opts.maxChunks
	if maxChunks <= 0 {
		maxChunks = cfg.Retrieval.MaxChunks
	}

	result, err := r.Retrieve(ctx, lore.LoreQuery{
		Keywords:     strings.Fields(query),
		EntityIDs:    opts.entities,
		PackIDs:      opts.packs,
		SemanticText: query,
		MaxTokens:    maxTokens,
		MaxChunks:    maxChunks,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	ui.NewRenderer(cmd.OutOrStdout(), noColor).Result(result)
	return nil
}
