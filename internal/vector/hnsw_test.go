package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/lorekit/internal/lore"
)

func newTestHNSW(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(NewStaticEmbedder(), DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func vecChunk(id, title, content string) *lore.ContentChunk {
	return &lore.ContentChunk{ID: id, SectionTitle: title, Content: content}
}

func seedVectors(t *testing.T, s *HNSWStore, collection string) {
	t.Helper()
	n, err := s.AddChunks(context.Background(), []*lore.ContentChunk{
		vecChunk("test_pack:the_neon_dragon:atmosphere", "Atmosphere",
			"Smoky and loud, neon reflections in every glass."),
		vecChunk("test_pack:the_neon_dragon:back_room", "Back Room",
			"Viktor's office. Deals are made here."),
		vecChunk("test_pack:docks:overview", "The Docks",
			"Cargo cranes and smugglers working the night shift."),
	}, collection)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestHNSWStore_QueryFindsNearestChunk(t *testing.T) {
	s := newTestHNSW(t)
	seedVectors(t, s, "test_pack")

	hits, err := s.Query(context.Background(),
		"Back Room\nViktor's office. Deals are made here.", "test_pack", 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "test_pack:the_neon_dragon:back_room", hits[0].ChunkID)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-4)
}

func TestHNSWStore_UnknownCollectionIsEmpty(t *testing.T) {
	s := newTestHNSW(t)
	seedVectors(t, s, "test_pack")

	hits, err := s.Query(context.Background(), "viktor", "other_pack", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHNSWStore_EmptyCollectionNameUsesDefault(t *testing.T) {
	s := newTestHNSW(t)

	n, err := s.AddChunks(context.Background(), []*lore.ContentChunk{
		vecChunk("p:a:one", "One", "Something about dragons."),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := s.Query(context.Background(), "dragons", DefaultCollection, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestHNSWStore_ReplaceExistingID(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()

	_, err := s.AddChunks(ctx, []*lore.ContentChunk{
		vecChunk("p:a:one", "One", "Original text about dragons."),
	}, "p")
	require.NoError(t, err)
	_, err = s.AddChunks(ctx, []*lore.ContentChunk{
		vecChunk("p:a:one", "One", "Replacement text about wyverns."),
	}, "p")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Count("p"))

	hits, err := s.Query(ctx, "One\nReplacement text about wyverns.", "p", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p:a:one", hits[0].ChunkID)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-4)
}

func TestHNSWStore_DeleteCollection(t *testing.T) {
	s := newTestHNSW(t)
	ctx := context.Background()
	seedVectors(t, s, "test_pack")

	require.NoError(t, s.DeleteCollection(ctx, "test_pack"))
	assert.Equal(t, 0, s.Count("test_pack"))

	hits, err := s.Query(ctx, "viktor", "test_pack", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHNSWStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newTestHNSW(t)
	seedVectors(t, s, "test_pack")
	require.NoError(t, s.Save(dir))

	restored := newTestHNSW(t)
	require.NoError(t, restored.Load(dir))
	assert.Equal(t, 3, restored.Count("test_pack"))

	hits, err := restored.Query(ctx,
		"Back Room\nViktor's office. Deals are made here.", "test_pack", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "test_pack:the_neon_dragon:back_room", hits[0].ChunkID)
}

func TestHNSWStore_LoadMissingDirIsFreshStart(t *testing.T) {
	s := newTestHNSW(t)
	require.NoError(t, s.Load(t.TempDir()))
	assert.Empty(t, s.Collections())
}

func TestNoopStore(t *testing.T) {
	s := NewNoopStore()
	ctx := context.Background()

	n, err := s.AddChunks(ctx, []*lore.ContentChunk{vecChunk("p:a:one", "One", "text")}, "p")
	require.NoError(t, err)
	assert.Zero(t, n)

	hits, err := s.Query(ctx, "text", "p", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.False(t, s.Enabled())
	assert.NoError(t, s.Close())
}

func TestNew_BackendSelection(t *testing.T) {
	s, err := New(Config{Backend: BackendNone}, nil)
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	s, err = New(Config{Backend: BackendHNSW}, nil)
	require.NoError(t, err)
	assert.True(t, s.Enabled())
	_ = s.Close()

	_, err = New(Config{Backend: "pinecone"}, nil)
	assert.Error(t, err)
}
