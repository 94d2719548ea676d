package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/chunk"
	"github.com/fablekit/lorekit/internal/index"
	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/pack"
	"github.com/fablekit/lorekit/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var packID string

	cmd := &cobra.Command{
		Use:   "index <packs-dir>",
		Short: "Index content packs into the lore store",
		Long: `Index every content pack under the given directory. Each pack is a
directory with a manifest.yaml and markdown content files.

Indexing upserts: existing chunk ids are overwritten, but chunks whose
source sections were deleted stay indexed until 'lorekit reindex'.

Examples:
  lorekit index ./packs
  lorekit index ./packs --pack neon_city`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args[0], packID)
		},
	}

	cmd.Flags().StringVar(&packID, "pack", "", "Index only the named pack directory")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, packsDir, packID string) error {
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

	loader := pack.NewLoader(a.logger)
	out := ui.NewRenderer(cmd.OutOrStdout(), noColor)

	var packs []*pack.Pack
	if packID != "" {
		p, err := loader.LoadPack(ctx, filepath.Join(packsDir, packID))
		if err != nil {
			return err
		}
		packs = []*pack.Pack{p}
	} else {
		packs, err = loader.LoadAll(ctx, packsDir)
		if err != nil {
			return err
		}
	}
	if len(packs) == 0 {
		out.Warnf("no packs found under %s", packsDir)
		return nil
	}

	chunker := chunk.New(a.logger)
	for _, p := range packs {
		stats, err := indexLoadedPack(ctx, ix, chunker, p)
		if err != nil {
			return fmt.Errorf("failed to index pack %s: %w", p.Manifest.ID, err)
		}
		out.Successf("indexed %s: %d files, %d chunks, %d vectors, ~%d tokens",
			stats.PackID, stats.Files, stats.Chunks, stats.Vectors, stats.TotalTokens)
	}
	return nil
}

// indexLoadedPack chunks a loaded pack's files and indexes the result.
func indexLoadedPack(ctx context.Context, ix *index.Indexer, chunker *chunk.Chunker, p *pack.Pack) (*index.PackStats, error) {
	var chunks []*lore.ContentChunk
	for _, f := range p.Files {
		chunks = append(chunks, chunker.ChunkFile(p.Manifest.ID, f)...)
	}
	return ix.IndexPack(ctx, p.Manifest, chunks)
}
