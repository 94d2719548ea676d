package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/lorekit/internal/lore"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChunk(id, packID string) *lore.ContentChunk {
	return &lore.ContentChunk{
		ID:            id,
		PackID:        packID,
		FilePath:      "locations/neon_dragon.md",
		SectionTitle:  "Back Room",
		Content:       "Viktor's office.",
		Type:          lore.ChunkTypeLocation,
		EntityRefs:    []string{"neon_dragon"},
		Tags:          []string{"bar", "location"},
		Metadata:      map[string]string{"file_type": "location"},
		TokenEstimate: 3,
	}
}

func TestSQLiteStore_SaveGetPack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	manifest := &lore.PackManifest{
		ID:      "test_pack",
		Name:    "Test Pack",
		Version: "1.0.0",
		Layer:   lore.LayerSourcebook,
		Tags:    []string{"cyberpunk"},
	}
	require.NoError(t, s.SavePack(ctx, manifest))

	got, ok, err := s.GetPack(ctx, "test_pack")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Test Pack", got.Name)
	assert.Equal(t, lore.LayerSourcebook, got.Layer)
	assert.Equal(t, []string{"cyberpunk"}, got.Tags)
}

func TestSQLiteStore_GetPackAbsent(t *testing.T) {
	s := newTestStore(t)

	got, ok, err := s.GetPack(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSQLiteStore_SavePackOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePack(ctx, &lore.PackManifest{ID: "p", Name: "First", Version: "1"}))
	require.NoError(t, s.SavePack(ctx, &lore.PackManifest{ID: "p", Name: "Second", Version: "2"}))

	got, ok, err := s.GetPack(ctx, "p")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Second", got.Name)
	assert.Equal(t, "2", got.Version)

	packs, err := s.ListPacks(ctx)
	require.NoError(t, err)
	assert.Len(t, packs, 1)
}

func TestSQLiteStore_DeletePack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePack(ctx, &lore.PackManifest{ID: "p", Name: "Pack", Version: "1"}))
	require.NoError(t, s.DeletePack(ctx, "p"))

	_, ok, err := s.GetPack(ctx, "p")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent pack is not an error.
	require.NoError(t, s.DeletePack(ctx, "p"))
}

func TestSQLiteStore_ChunkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testChunk("test_pack:the_neon_dragon:back_room", "test_pack")
	require.NoError(t, s.SaveChunks(ctx, []*lore.ContentChunk{c}))

	got, ok, err := s.GetChunk(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.Content, got.Content)
	assert.Equal(t, c.EntityRefs, got.EntityRefs)
	assert.Equal(t, c.Tags, got.Tags)
	assert.Equal(t, c.Metadata, got.Metadata)
	assert.Equal(t, c.Type, got.Type)
	assert.Equal(t, c.TokenEstimate, got.TokenEstimate)
}

func TestSQLiteStore_GetChunksPreservesRequestOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChunks(ctx, []*lore.ContentChunk{
		testChunk("p:a:one", "p"),
		testChunk("p:a:two", "p"),
		testChunk("p:a:three", "p"),
	}))

	got, err := s.GetChunks(ctx, []string{"p:a:three", "p:a:one", "p:missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p:a:three", got[0].ID)
	assert.Equal(t, "p:a:one", got[1].ID)
}

func TestSQLiteStore_DeleteChunksByPack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChunks(ctx, []*lore.ContentChunk{
		testChunk("p1:a:one", "p1"),
		testChunk("p1:a:two", "p1"),
		testChunk("p2:b:one", "p2"),
	}))

	n, err := s.DeleteChunksByPack(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := s.CountChunks(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	remaining, err := s.ChunksByPack(ctx, "p2")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestSQLiteStore_SaveChunksUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testChunk("p:a:one", "p")
	require.NoError(t, s.SaveChunks(ctx, []*lore.ContentChunk{c}))

	c2 := testChunk("p:a:one", "p")
	c2.Content = "Updated."
	require.NoError(t, s.SaveChunks(ctx, []*lore.ContentChunk{c2}))

	got, ok, err := s.GetChunk(ctx, "p:a:one")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Updated.", got.Content)

	count, err := s.CountChunks(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_SceneLoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &SceneLoreRecord{
		CampaignID: "camp1",
		SceneID:    "scene1",
		SessionID:  "sess1",
		Lore: lore.SceneLore{
			Atmosphere: []lore.LoreEntry{{ChunkID: "p:a:one", Title: "Atmosphere", Content: "Smoky."}},
			NPCBriefings: map[string][]lore.LoreEntry{
				"viktor": {{ChunkID: "p:v:one", Title: "Viktor", Content: "Fixer."}},
			},
		},
		ChunkIDs: []string{"p:a:one", "p:v:one"},
	}
	require.NoError(t, s.SaveSceneLore(ctx, rec))

	got, ok, err := s.GetSceneLore(ctx, "camp1", "scene1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Lore, got.Lore)
	assert.Equal(t, rec.ChunkIDs, got.ChunkIDs)
	assert.Equal(t, "sess1", got.SessionID)
}

func TestSQLiteStore_SceneLoreAbsentAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSceneLore(ctx, "camp1", "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveSceneLore(ctx, &SceneLoreRecord{
		CampaignID: "camp1", SceneID: "scene1",
		Lore: lore.SceneLore{NPCBriefings: map[string][]lore.LoreEntry{}},
	}))
	require.NoError(t, s.DeleteSceneLore(ctx, "camp1", "scene1"))

	_, ok, err = s.GetSceneLore(ctx, "camp1", "scene1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent row is not an error.
	require.NoError(t, s.DeleteSceneLore(ctx, "camp1", "scene1"))
}

func TestSQLiteStore_CampaignsDoNotShareEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSceneLore(ctx, &SceneLoreRecord{
		CampaignID: "camp1", SceneID: "scene1",
		Lore: lore.SceneLore{Atmosphere: []lore.LoreEntry{{ChunkID: "x"}}},
	}))

	_, ok, err := s.GetSceneLore(ctx, "camp2", "scene1")
	require.NoError(t, err)
	assert.False(t, ok)
}
