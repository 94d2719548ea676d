package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/lorekit/internal/chunk"
	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/store"
	"github.com/fablekit/lorekit/internal/vector"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()

	st, err := store.NewSQLiteStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ft, err := store.NewFullTextIndex("", store.DefaultFullTextConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ft.Close() })

	vs, err := vector.New(vector.Config{Backend: vector.BackendHNSW}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })

	ix, err := New(Config{Store: st, FullText: ft, Vectors: vs})
	require.NoError(t, err)
	return ix
}

func neonDragonPack() (*lore.PackManifest, []*lore.ContentChunk) {
	manifest := &lore.PackManifest{
		ID:      "test_pack",
		Name:    "Test Pack",
		Version: "1.0.0",
		Layer:   lore.LayerSourcebook,
	}
	files := []*lore.SourceFile{
		{
			Path:       "locations/neon_dragon.md",
			Type:       "location",
			Title:      "The Neon Dragon",
			EntityRefs: []string{"neon_dragon"},
			Tags:       []string{"bar", "undercity"},
			Body: "# The Neon Dragon\n\n" +
				"## Atmosphere\n\nSmoky and loud, neon reflections in every glass.\n\n" +
				"## Back Room\n\nViktor's office. Deals are made here.\n",
		},
		{
			Path:  "npcs/viktor.md",
			Type:  "npc",
			Title: "Viktor",
			Body:  "Viktor is a fixer who runs the back room of the Neon Dragon.\n",
		},
	}

	chunker := chunk.New(nil)
	var chunks []*lore.ContentChunk
	for _, f := range files {
		chunks = append(chunks, chunker.ChunkFile(manifest.ID, f)...)
	}
	return manifest, chunks
}

func TestIndexer_IndexPack(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	manifest, chunks := neonDragonPack()
	stats, err := ix.IndexPack(ctx, manifest, chunks)
	require.NoError(t, err)

	assert.Equal(t, "test_pack", stats.PackID)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 4, stats.Vectors)
	assert.Positive(t, stats.TotalTokens)

	// Chunks land in the relational store.
	got, ok, err := ix.store.GetChunk(ctx, "test_pack:the_neon_dragon:back_room")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Viktor's office. Deals are made here.", got.Content)

	// And in the full-text index.
	hits, err := ix.fulltext.Search(ctx, store.FullTextQuery{Terms: []string{"viktor"}, Limit: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestIndexer_IndexPackUpsertsWithoutClearing(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	manifest, chunks := neonDragonPack()
	_, err := ix.IndexPack(ctx, manifest, chunks)
	require.NoError(t, err)

	// Second run with a subset: stale chunks survive until ReindexPack.
	_, err = ix.IndexPack(ctx, manifest, chunks[:1])
	require.NoError(t, err)

	count, err := ix.store.CountChunks(ctx, "test_pack")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestIndexer_ReindexPackClearsEverySurface(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	manifest, chunks := neonDragonPack()
	_, err := ix.IndexPack(ctx, manifest, chunks)
	require.NoError(t, err)

	stats, err := ix.ReindexPack(ctx, "test_pack")
	require.NoError(t, err)
	assert.Equal(t, "test_pack", stats.PackID)
	assert.Zero(t, stats.Chunks)

	count, err := ix.store.CountChunks(ctx, "test_pack")
	require.NoError(t, err)
	assert.Zero(t, count)

	docs, err := ix.fulltext.DocCount()
	require.NoError(t, err)
	assert.Zero(t, docs)

	// The manifest record stays; the caller repopulates.
	_, ok, err := ix.store.GetPack(ctx, "test_pack")
	require.NoError(t, err)
	assert.True(t, ok)

	// Reindex then IndexPack is the clean-slate sequence.
	repop, err := ix.IndexPack(ctx, manifest, chunks[:1])
	require.NoError(t, err)
	assert.Equal(t, 3, repop.Chunks)

	count, err = ix.store.CountChunks(ctx, "test_pack")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIndexer_ReindexUnknownPack(t *testing.T) {
	ix := newTestIndexer(t)

	stats, err := ix.ReindexPack(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, "nope", stats.PackID)
	assert.Zero(t, stats.Chunks)
}

func TestIndexer_RemovePack(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	manifest, chunks := neonDragonPack()
	_, err := ix.IndexPack(ctx, manifest, chunks)
	require.NoError(t, err)

	removed, err := ix.RemovePack(ctx, "test_pack")
	require.NoError(t, err)
	assert.Equal(t, 4, removed)

	_, ok, err := ix.store.GetPack(ctx, "test_pack")
	require.NoError(t, err)
	assert.False(t, ok)

	docs, err := ix.fulltext.DocCount()
	require.NoError(t, err)
	assert.Zero(t, docs)
}

func TestIndexer_Stats(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	manifest, chunks := neonDragonPack()
	_, err := ix.IndexPack(ctx, manifest, chunks)
	require.NoError(t, err)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Packs)
	assert.Equal(t, 4, stats.Chunks)
	assert.Equal(t, 4, stats.Documents)

	packStats, err := ix.PackStats(ctx, "test_pack")
	require.NoError(t, err)
	assert.Equal(t, 2, packStats.Files)
	assert.Equal(t, 4, packStats.Chunks)
}

func TestIndexer_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
