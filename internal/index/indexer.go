// Package index coordinates writes across the three storage surfaces: the
// relational store, the full-text index, and the vector store.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/store"
	"github.com/fablekit/lorekit/internal/vector"
)

// Indexer registers packs and their chunks across the storage surfaces.
//
// IndexPack upserts: indexing the same pack twice overwrites manifest
// metadata and matching chunk ids but does not remove stale chunks from a
// previous run. ReindexPack is the explicit clear step; callers wanting a
// clean slate run ReindexPack then IndexPack. The two steps are not
// jointly atomic, so a crash in between leaves the pack transiently empty.
type Indexer struct {
	mu       sync.Mutex
	store    store.Store
	fulltext store.FullTextIndex
	vectors  vector.Store
	logger   *slog.Logger
}

// Config wires the Indexer's collaborators.
type Config struct {
	Store    store.Store
	FullText store.FullTextIndex
	Vectors  vector.Store
	Logger   *slog.Logger
}

// PackStats summarizes one pack's indexed size.
type PackStats struct {
	PackID      string `json:"pack_id"`
	Files       int    `json:"files"`
	Chunks      int    `json:"chunks"`
	Vectors     int    `json:"vectors"`
	TotalTokens int    `json:"total_tokens"`
}

// Stats summarizes the whole index.
type Stats struct {
	Packs     int `json:"packs"`
	Chunks    int `json:"chunks"`
	Documents int `json:"documents"`
}

// New creates an Indexer. Store, FullText, and Vectors are required.
func New(cfg Config) (*Indexer, error) {
	if cfg.Store == nil || cfg.FullText == nil || cfg.Vectors == nil {
		return nil, fmt.Errorf("store, fulltext, and vectors are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:    cfg.Store,
		fulltext: cfg.FullText,
		vectors:  cfg.Vectors,
		logger:   logger,
	}, nil
}

// IndexPack registers the manifest and indexes the chunks. The pack's
// vector collection is named after its id. Existing chunk ids are
// overwritten; stale chunks from an earlier run survive until
// ReindexPack clears them.
func (ix *Indexer) IndexPack(ctx context.Context, manifest *lore.PackManifest, chunks []*lore.ContentChunk) (*PackStats, error) {
	if manifest == nil || manifest.ID == "" {
		return nil, fmt.Errorf("pack manifest with id is required")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.store.SavePack(ctx, manifest); err != nil {
		return nil, fmt.Errorf("failed to save pack %s: %w", manifest.ID, err)
	}
	if err := ix.store.SaveChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to save chunks for %s: %w", manifest.ID, err)
	}
	if err := ix.fulltext.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index chunks for %s: %w", manifest.ID, err)
	}
	vectors, err := ix.vectors.AddChunks(ctx, chunks, manifest.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks for %s: %w", manifest.ID, err)
	}

	stats := &PackStats{
		PackID:  manifest.ID,
		Chunks:  len(chunks),
		Vectors: vectors,
	}
	files := make(map[string]struct{})
	for _, c := range chunks {
		stats.TotalTokens += c.TokenEstimate
		files[c.FilePath] = struct{}{}
	}
	stats.Files = len(files)

	ix.logger.Info("pack indexed",
		slog.String("pack_id", manifest.ID),
		slog.Int("files", stats.Files),
		slog.Int("chunks", stats.Chunks),
		slog.Int("vectors", stats.Vectors),
		slog.Int("total_tokens", stats.TotalTokens))

	return stats, nil
}

// ReindexPack clears a pack's chunks from the store, full-text index, and
// vector collection, returning a zero-count result. The manifest record
// stays; the caller repopulates with IndexPack. Clearing an unknown pack
// clears nothing.
func (ix *Indexer) ReindexPack(ctx context.Context, packID string) (*PackStats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed, err := ix.clearPack(ctx, packID)
	if err != nil {
		return nil, err
	}

	ix.logger.Info("pack cleared for reindex",
		slog.String("pack_id", packID),
		slog.Int("removed", removed))
	return &PackStats{PackID: packID}, nil
}

// RemovePack deletes a pack and its chunks from every surface, manifest
// included, returning the number of chunks removed.
func (ix *Indexer) RemovePack(ctx context.Context, packID string) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed, err := ix.clearPack(ctx, packID)
	if err != nil {
		return 0, err
	}
	if err := ix.store.DeletePack(ctx, packID); err != nil {
		return removed, fmt.Errorf("failed to delete pack %s: %w", packID, err)
	}

	ix.logger.Info("pack removed",
		slog.String("pack_id", packID),
		slog.Int("chunks", removed))
	return removed, nil
}

// clearPack removes a pack's chunks from all three surfaces. Caller holds
// the lock.
func (ix *Indexer) clearPack(ctx context.Context, packID string) (int, error) {
	removed, err := ix.store.DeleteChunksByPack(ctx, packID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chunks for %s: %w", packID, err)
	}
	if _, err := ix.fulltext.DeleteByPack(ctx, packID); err != nil {
		return removed, fmt.Errorf("failed to clear documents for %s: %w", packID, err)
	}
	if err := ix.vectors.DeleteCollection(ctx, packID); err != nil {
		return removed, fmt.Errorf("failed to clear vectors for %s: %w", packID, err)
	}
	return removed, nil
}

// PackStats reports the indexed size of one pack.
func (ix *Indexer) PackStats(ctx context.Context, packID string) (*PackStats, error) {
	chunks, err := ix.store.ChunksByPack(ctx, packID)
	if err != nil {
		return nil, err
	}
	stats := &PackStats{PackID: packID, Chunks: len(chunks)}
	files := make(map[string]struct{})
	for _, c := range chunks {
		stats.TotalTokens += c.TokenEstimate
		files[c.FilePath] = struct{}{}
	}
	stats.Files = len(files)
	return stats, nil
}

// Stats reports overall index size.
func (ix *Indexer) Stats(ctx context.Context) (*Stats, error) {
	packs, err := ix.store.ListPacks(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := ix.store.CountChunks(ctx, "")
	if err != nil {
		return nil, err
	}
	docs, err := ix.fulltext.DocCount()
	if err != nil {
		return nil, err
	}
	return &Stats{Packs: len(packs), Chunks: chunks, Documents: docs}, nil
}
