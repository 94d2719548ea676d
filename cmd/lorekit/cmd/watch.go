package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fablekit/lorekit/internal/chunk"
	"github.com/fablekit/lorekit/internal/index"
	"github.com/fablekit/lorekit/internal/pack"
	"github.com/fablekit/lorekit/internal/ui"
	"github.com/fablekit/lorekit/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <packs-dir>",
		Short: "Watch a packs directory and reindex on change",
		Long: `Watch the packs directory for markdown and manifest changes and
reindex affected packs automatically. Bursts of writes are debounced
into one reindex per pack. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0])
		},
	}
}

func runWatch(cmd *cobra.Command, packsDir string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(watcher.DefaultDebounceWindow, a.logger)
	if err != nil {
		return err
	}
	go func() { _ = w.Start(ctx, packsDir) }()
	defer func() { _ = w.Stop() }()

	out := ui.NewRenderer(cmd.OutOrStdout(), noColor)
	out.Successf("watching %s (ctrl-c to stop)", packsDir)

	loader := pack.NewLoader(a.logger)
	chunker := chunk.New(a.logger)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			out.Warnf("watch error: %v", err)
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, packID := range watcher.PackIDs(batch) {
				if err := resyncPack(ctx, ix, loader, chunker, packsDir, packID, out); err != nil {
					out.Errorf("failed to resync %s: %v", packID, err)
				}
			}
		}
	}
}

// resyncPack rebuilds one pack from disk, or removes it when its
// directory is gone.
func resyncPack(ctx context.Context, ix *index.Indexer, loader *pack.Loader, chunker *chunk.Chunker, packsDir, packID string, out *ui.Renderer) error {
	dir := filepath.Join(packsDir, packID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		removed, err := ix.RemovePack(ctx, packID)
		if err != nil {
			return err
		}
		out.Successf("removed %s (%d chunks)", packID, removed)
		return nil
	}

	p, err := loader.LoadPack(ctx, dir)
	if err != nil {
		return err
	}
	if _, err := ix.ReindexPack(ctx, p.Manifest.ID); err != nil {
		return err
	}
	stats, err := indexLoadedPack(ctx, ix, chunker, p)
	if err != nil {
		return err
	}
	out.Successf("reindexed %s: %d chunks", stats.PackID, stats.Chunks)
	return nil
}
