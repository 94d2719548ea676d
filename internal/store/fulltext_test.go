package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/lorekit/internal/lore"
)

// fulltext behavior is backend-agnostic; run the suite against both.
func eachBackend(t *testing.T, fn func(t *testing.T, idx FullTextIndex)) {
	t.Helper()
	for _, backend := range []string{BackendSQLite, BackendBleve} {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultFullTextConfig()
			cfg.Backend = backend
			idx, err := NewFullTextIndex("", cfg, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = idx.Close() })
			fn(t, idx)
		})
	}
}

func ftChunk(id, packID, content string, chunkType lore.ChunkType) *lore.ContentChunk {
	return &lore.ContentChunk{
		ID:      id,
		PackID:  packID,
		Content: content,
		Type:    chunkType,
	}
}

func seedNeonDragon(t *testing.T, idx FullTextIndex) {
	t.Helper()
	require.NoError(t, idx.Index(context.Background(), []*lore.ContentChunk{
		ftChunk("test_pack:the_neon_dragon:atmosphere", "test_pack",
			"Smoky and loud, neon reflections in every glass.", lore.ChunkTypeLocation),
		ftChunk("test_pack:the_neon_dragon:back_room", "test_pack",
			"Viktor's office. Deals are made here.", lore.ChunkTypeLocation),
		ftChunk("other_pack:docks:overview", "other_pack",
			"Cargo cranes and smugglers at the docks.", lore.ChunkTypeLocation),
	}))
}

func TestFullText_KeywordSearch(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		seedNeonDragon(t, idx)

		hits, err := idx.Search(context.Background(), FullTextQuery{
			Terms: []string{"viktor"},
			Limit: 10,
		})
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "test_pack:the_neon_dragon:back_room", hits[0].ChunkID)
		assert.Greater(t, hits[0].Score, 0.0)
	})
}

func TestFullText_DisjunctiveTerms(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		seedNeonDragon(t, idx)

		hits, err := idx.Search(context.Background(), FullTextQuery{
			Terms: []string{"viktor", "smugglers"},
			Limit: 10,
		})
		require.NoError(t, err)

		ids := make([]string, 0, len(hits))
		for _, h := range hits {
			ids = append(ids, h.ChunkID)
		}
		assert.Contains(t, ids, "test_pack:the_neon_dragon:back_room")
		assert.Contains(t, ids, "other_pack:docks:overview")
	})
}

func TestFullText_PackScoping(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		seedNeonDragon(t, idx)

		hits, err := idx.Search(context.Background(), FullTextQuery{
			Terms:  []string{"viktor", "smugglers"},
			PackID: "test_pack",
			Limit:  10,
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "test_pack:the_neon_dragon:back_room", hits[0].ChunkID)
	})
}

func TestFullText_LimitRespected(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		seedNeonDragon(t, idx)

		hits, err := idx.Search(context.Background(), FullTextQuery{
			Terms: []string{"neon", "viktor", "docks"},
			Limit: 1,
		})
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})
}

func TestFullText_EmptyTermsReturnsNothing(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		seedNeonDragon(t, idx)

		hits, err := idx.Search(context.Background(), FullTextQuery{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestFullText_DeleteByPack(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		seedNeonDragon(t, idx)

		n, err := idx.DeleteByPack(context.Background(), "test_pack")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		count, err := idx.DocCount()
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		hits, err := idx.Search(context.Background(), FullTextQuery{
			Terms: []string{"viktor"},
			Limit: 10,
		})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestFullText_ReindexReplacesDocument(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []*lore.ContentChunk{
			ftChunk("p:a:one", "p", "Original text about dragons.", lore.ChunkTypeGeneral),
		}))
		require.NoError(t, idx.Index(ctx, []*lore.ContentChunk{
			ftChunk("p:a:one", "p", "Replacement text about wyverns.", lore.ChunkTypeGeneral),
		}))

		count, err := idx.DocCount()
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		hits, err := idx.Search(ctx, FullTextQuery{Terms: []string{"dragons"}, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = idx.Search(ctx, FullTextQuery{Terms: []string{"wyverns"}, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})
}

func TestFullText_ChunkTypeFilter(t *testing.T) {
	eachBackend(t, func(t *testing.T, idx FullTextIndex) {
		ctx := context.Background()
		require.NoError(t, idx.Index(ctx, []*lore.ContentChunk{
			ftChunk("p:viktor:overview", "p", "Viktor runs the bar.", lore.ChunkTypeNPC),
			ftChunk("p:bar:overview", "p", "Viktor's bar is smoky.", lore.ChunkTypeLocation),
		}))

		hits, err := idx.Search(ctx, FullTextQuery{
			Terms:      []string{"viktor"},
			ChunkTypes: []lore.ChunkType{lore.ChunkTypeNPC},
			Limit:      10,
		})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "p:viktor:overview", hits[0].ChunkID)
	})
}

func TestTokenizeProse(t *testing.T) {
	tokens := TokenizeProse("Viktor's office, smoky and loud!", 2)
	assert.Equal(t, []string{"viktor", "office", "smoky", "and", "loud"}, tokens)
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap(DefaultProseStopWords)
	tokens := FilterStopWords([]string{"the", "neon", "dragon", "and", "viktor"}, stop)
	assert.Equal(t, []string{"neon", "dragon", "viktor"}, tokens)
}

func TestNewFullTextIndex_UnknownBackend(t *testing.T) {
	cfg := DefaultFullTextConfig()
	cfg.Backend = "elasticsearch"
	_, err := NewFullTextIndex("", cfg, nil)
	assert.Error(t, err)
}
