// Package retrieve implements the hybrid lore retrieval pipeline: a
// four-stage, accumulate-and-deduplicate sweep over the entity manifest,
// the full-text index, pack-scoped entity refs, and the vector store,
// followed by token-budget selection.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/store"
	"github.com/fablekit/lorekit/internal/vector"
)

// DefaultChunkCacheSize bounds the in-process chunk cache. Retrieval for a
// scene touches the same chunks repeatedly across stages and turns.
const DefaultChunkCacheSize = 512

// Retriever executes LoreQueries against the storage surfaces.
type Retriever struct {
	store    store.Store
	fulltext store.FullTextIndex
	vectors  vector.Store
	manifest *EntityManifest
	cache    *lru.Cache[string, *lore.ContentChunk]
	logger   *slog.Logger
}

// Config wires the Retriever's collaborators.
type Config struct {
	Store    store.Store
	FullText store.FullTextIndex
	Vectors  vector.Store

	// Manifest is the optional precomputed entity index. Nil disables the
	// manifest stage; RefreshManifest builds one from the store.
	Manifest *EntityManifest

	// CacheSize bounds the chunk cache. Zero applies the default.
	CacheSize int

	Logger *slog.Logger
}

// New creates a Retriever. Store, FullText, and Vectors are required.
func New(cfg Config) (*Retriever, error) {
	if cfg.Store == nil || cfg.FullText == nil || cfg.Vectors == nil {
		return nil, fmt.Errorf("store, fulltext, and vectors are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultChunkCacheSize
	}
	cache, err := lru.New[string, *lore.ContentChunk](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}

	return &Retriever{
		store:    cfg.Store,
		fulltext: cfg.FullText,
		vectors:  cfg.Vectors,
		manifest: cfg.Manifest,
		cache:    cache,
		logger:   logger,
	}, nil
}

// SetManifest replaces the entity manifest.
func (r *Retriever) SetManifest(m *EntityManifest) {
	r.manifest = m
}

// RefreshManifest rebuilds the entity manifest from every indexed pack.
// The chunk cache is dropped alongside since its contents may be stale
// for the same reason the manifest is.
func (r *Retriever) RefreshManifest(ctx context.Context) error {
	packs, err := r.store.ListPacks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list packs: %w", err)
	}

	m := NewEntityManifest()
	for _, pack := range packs {
		chunks, err := r.store.ChunksByPack(ctx, pack.ID)
		if err != nil {
			return fmt.Errorf("failed to load chunks for %s: %w", pack.ID, err)
		}
		m.AddChunks(chunks)
	}
	r.manifest = m
	r.cache.Purge()

	r.logger.Debug("entity manifest refreshed",
		slog.Int("packs", len(packs)),
		slog.Int("entities", m.Len()))
	return nil
}

// accumulator collects candidates in encounter order. A chunk already
// seen is never added twice; later stages cannot reorder earlier hits.
type accumulator struct {
	seen   map[string]struct{}
	chunks []*lore.ContentChunk
}

func newAccumulator() *accumulator {
	return &accumulator{seen: make(map[string]struct{})}
}

func (a *accumulator) add(c *lore.ContentChunk) {
	if c == nil {
		return
	}
	if _, ok := a.seen[c.ID]; ok {
		return
	}
	a.seen[c.ID] = struct{}{}
	a.chunks = append(a.chunks, c)
}

func (a *accumulator) has(id string) bool {
	_, ok := a.seen[id]
	return ok
}

// Retrieve runs the full pipeline. Partial-source failures (one pack's
// search, one vector collection) are logged and skipped; only storage
// connectivity failures propagate. An empty result is a valid terminal
// state, never an error.
func (r *Retriever) Retrieve(ctx context.Context, query lore.LoreQuery) (*lore.RetrievalResult, error) {
	q := query.Normalize()
	acc := newAccumulator()

	if err := r.manifestStage(ctx, q, acc); err != nil {
		return nil, err
	}
	if err := r.keywordStage(ctx, q, acc); err != nil {
		return nil, err
	}
	if err := r.entityRefStage(ctx, q, acc); err != nil {
		return nil, err
	}
	r.semanticStage(ctx, q, acc)

	result := selectWithinBudget(acc.chunks, q)
	r.logger.Debug("retrieval complete",
		slog.Int("candidates", len(acc.chunks)),
		slog.Int("selected", len(result.Chunks)),
		slog.Int("total_tokens", result.TotalTokens))
	return result, nil
}

// manifestStage resolves requested entities through the precomputed
// manifest and fetches their chunks by id.
func (r *Retriever) manifestStage(ctx context.Context, q lore.LoreQuery, acc *accumulator) error {
	if r.manifest == nil || r.manifest.Len() == 0 || len(q.EntityIDs) == 0 {
		return nil
	}

	ids := r.manifest.ChunkIDs(q.EntityIDs)
	if len(ids) == 0 {
		return nil
	}
	chunks, err := r.fetchChunks(ctx, ids)
	if err != nil {
		return fmt.Errorf("manifest lookup failed: %w", err)
	}
	for _, c := range chunks {
		acc.add(c)
	}
	return nil
}

// keywordStage runs a disjunctive full-text search, once per declared
// pack or once unscoped. Raw hits are over-fetched at twice the chunk cap
// to leave room for deduplication loss. A single pack's failure is logged
// and skipped.
func (r *Retriever) keywordStage(ctx context.Context, q lore.LoreQuery, acc *accumulator) error {
	if len(q.Keywords) == 0 {
		return nil
	}

	packIDs := q.PackIDs
	if len(packIDs) == 0 {
		packIDs = []string{""}
	}

	hitIDs := lore.NewOrderedSet()
	for _, packID := range packIDs {
		hits, err := r.fulltext.Search(ctx, store.FullTextQuery{
			Terms:      q.Keywords,
			PackID:     packID,
			ChunkTypes: q.ChunkTypes,
			Limit:      2 * q.MaxChunks,
		})
		if err != nil {
			r.logger.Warn("keyword search failed for pack, skipping",
				slog.String("pack_id", packID),
				slog.String("error", err.Error()))
			continue
		}
		for _, hit := range hits {
			if !acc.has(hit.ChunkID) {
				hitIDs.Add(hit.ChunkID)
			}
		}
	}

	if hitIDs.Len() == 0 {
		return nil
	}
	chunks, err := r.fetchChunks(ctx, hitIDs.Values())
	if err != nil {
		return fmt.Errorf("keyword hit fetch failed: %w", err)
	}
	for _, c := range chunks {
		acc.add(c)
	}
	return nil
}

// entityRefStage scans the declared packs for chunks whose entity refs
// intersect the requested entities. Without a pack scope the stage is
// skipped outright: a full-corpus scan is too expensive, and the manifest
// and keyword stages approximate the coverage.
func (r *Retriever) entityRefStage(ctx context.Context, q lore.LoreQuery, acc *accumulator) error {
	if len(q.EntityIDs) == 0 || len(q.PackIDs) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(q.EntityIDs))
	for _, id := range q.EntityIDs {
		wanted[id] = struct{}{}
	}

	for _, packID := range q.PackIDs {
		chunks, err := r.store.ChunksByPack(ctx, packID)
		if err != nil {
			r.logger.Warn("entity-ref scan failed for pack, skipping",
				slog.String("pack_id", packID),
				slog.String("error", err.Error()))
			continue
		}
		for _, c := range chunks {
			if acc.has(c.ID) {
				continue
			}
			for _, ref := range c.EntityRefs {
				if _, ok := wanted[ref]; ok {
					acc.add(c)
					r.cache.Add(c.ID, c)
					break
				}
			}
		}
	}
	return nil
}

// semanticStage queries the vector store per pack collection, falling
// back to the "default" collection when unscoped. Skipped entirely when
// the backend is the no-op implementation. Failures here never abort
// retrieval.
func (r *Retriever) semanticStage(ctx context.Context, q lore.LoreQuery, acc *accumulator) {
	if !r.vectors.Enabled() || q.SemanticText == "" {
		return
	}

	collections := q.PackIDs
	if len(collections) == 0 {
		collections = []string{vector.DefaultCollection}
	}

	for _, collection := range collections {
		hits, err := r.vectors.Query(ctx, q.SemanticText, collection, q.MaxChunks)
		if err != nil {
			r.logger.Warn("semantic search failed for collection, skipping",
				slog.String("collection", collection),
				slog.String("error", err.Error()))
			continue
		}

		ids := make([]string, 0, len(hits))
		for _, hit := range hits {
			if !acc.has(hit.ChunkID) {
				ids = append(ids, hit.ChunkID)
			}
		}
		chunks, err := r.fetchChunks(ctx, ids)
		if err != nil {
			r.logger.Warn("semantic hit fetch failed, skipping",
				slog.String("collection", collection),
				slog.String("error", err.Error()))
			continue
		}
		for _, c := range chunks {
			acc.add(c)
		}
	}
}

// selectWithinBudget truncates candidates to the chunk cap, then admits a
// prefix whose token estimates fit the budget. The first chunk is always
// admitted so a single oversized chunk can still produce a result.
func selectWithinBudget(candidates []*lore.ContentChunk, q lore.LoreQuery) *lore.RetrievalResult {
	if len(candidates) > q.MaxChunks {
		candidates = candidates[:q.MaxChunks]
	}

	result := &lore.RetrievalResult{Query: q}
	for _, c := range candidates {
		if len(result.Chunks) > 0 && result.TotalTokens+c.TokenEstimate > q.MaxTokens {
			break
		}
		result.Chunks = append(result.Chunks, c)
		result.TotalTokens += c.TokenEstimate
	}
	return result
}

// fetchChunks resolves ids to chunk records through the LRU cache,
// batch-fetching misses from the store. Order follows the requested ids;
// unknown ids are skipped.
func (r *Retriever) fetchChunks(ctx context.Context, ids []string) ([]*lore.ContentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[string]*lore.ContentChunk, len(ids))
	var misses []string
	for _, id := range ids {
		if c, ok := r.cache.Get(id); ok {
			found[id] = c
		} else {
			misses = append(misses, id)
		}
	}

	if len(misses) > 0 {
		fetched, err := r.store.GetChunks(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, c := range fetched {
			found[c.ID] = c
			r.cache.Add(c.ID, c)
		}
	}

	out := make([]*lore.ContentChunk, 0, len(found))
	for _, id := range ids {
		if c, ok := found[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}
