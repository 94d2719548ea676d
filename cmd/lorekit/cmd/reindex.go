package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/chunk"
	"github.com/fablekit/lorekit/internal/pack"
	"github.com/fablekit/lorekit/internal/ui"
)

func newReindexCmd() *cobra.Command {
	var packID string

	cmd := &cobra.Command{
		Use:   "reindex <packs-dir>",
		Short: "Clear and rebuild packs from their source files",
		Long: `Clear a pack's chunks from every storage surface, then re-chunk and
re-index it from disk. Unlike 'lorekit index', this removes chunks
whose source sections no longer exist.

The clear and the rebuild are separate steps; interrupting between
them leaves the pack empty until the next reindex.

Examples:
  lorekit reindex ./packs
  lorekit reindex ./packs --pack neon_city`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd, args[0], packID)
		},
	}

	cmd.Flags().StringVar(&packID, "pack", "", "Reindex only the named pack directory")
	return cmd
}

func runReindex(ctx context.Context, cmd *cobra.Command, packsDir, packID string) error {
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
		if _, err := ix.ReindexPack(ctx, p.Manifest.ID); err != nil {
			return fmt.Errorf("failed to clear pack %s: %w", p.Manifest.ID, err)
		}
		stats, err := indexLoadedPack(ctx, ix, chunker, p)
		if err != nil {
			return fmt.Errorf("failed to rebuild pack %s: %w", p.Manifest.ID, err)
		}
		out.Successf("reindexed %s: %d files, %d chunks, %d vectors",
			stats.PackID, stats.Files, stats.Chunks, stats.Vectors)
	}
	return nil
}
