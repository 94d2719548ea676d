// Package scenecache turns flat retrieval results into the categorized
// scene-lore structure the narrative layer consumes, persisted per
// (campaign, scene). A cache entry moves absent -> materialized ->
// materialized (appends) -> absent (invalidation); there is no stale
// state, freshness is the caller's concern.
package scenecache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/store"
)

// category routes a chunk type into one of the four scene-lore buckets.
type category int

const (
	categoryAtmosphere category = iota
	categoryNPCBriefings
	categoryDiscoverable
	categoryThreadConnections
)

// categoryFor is the static chunk-type routing. Faction lore lands in
// thread connections even when no active thread involves the faction;
// consumers rely on that placement.
func categoryFor(t lore.ChunkType) category {
	switch t {
	case lore.ChunkTypeNPC:
		return categoryNPCBriefings
	case lore.ChunkTypeFaction:
		return categoryThreadConnections
	case lore.ChunkTypeItem:
		return categoryDiscoverable
	default:
		// location, culture, general
		return categoryAtmosphere
	}
}

// Cache materializes, reads, appends to, and invalidates scene lore.
type Cache struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a scene cache backed by the given store.
func New(st store.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: st, logger: logger}
}

// Materialize builds the categorized structure from a retrieval result
// and persists it, overwriting any prior entry for the (campaign, scene)
// key. An empty session id gets a generated one.
func (c *Cache) Materialize(ctx context.Context, result *lore.RetrievalResult, sceneID, sessionID, campaignID string) (*lore.SceneLore, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sceneLore := &lore.SceneLore{NPCBriefings: make(map[string][]lore.LoreEntry)}
	chunkIDs := lore.NewOrderedSet()
	for _, chunk := range result.Chunks {
		routeChunk(sceneLore, chunk)
		chunkIDs.Add(chunk.ID)
	}

	rec := &store.SceneLoreRecord{
		CampaignID: campaignID,
		SceneID:    sceneID,
		SessionID:  sessionID,
		Lore:       *sceneLore,
		ChunkIDs:   chunkIDs.Values(),
	}
	if err := c.store.SaveSceneLore(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist scene lore: %w", err)
	}

	c.logger.Debug("scene lore materialized",
		slog.String("campaign_id", campaignID),
		slog.String("scene_id", sceneID),
		slog.Int("chunks", chunkIDs.Len()))
	return sceneLore, nil
}

// AppendNPC merges an entity retrieval result into an existing entry's
// NPC briefings. Returns ok=false without creating anything when the
// scene was never materialized: appends require a prior Materialize.
func (c *Cache) AppendNPC(ctx context.Context, sceneID, campaignID string, npcResult *lore.RetrievalResult) (*lore.SceneLore, bool, error) {
	rec, ok, err := c.store.GetSceneLore(ctx, campaignID, sceneID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if rec.Lore.NPCBriefings == nil {
		rec.Lore.NPCBriefings = make(map[string][]lore.LoreEntry)
	}
	chunkIDs := lore.NewOrderedSet(rec.ChunkIDs...)
	for _, chunk := range npcResult.Chunks {
		key := briefingKey(chunk)
		rec.Lore.NPCBriefings[key] = append(rec.Lore.NPCBriefings[key], entryFor(chunk))
		chunkIDs.Add(chunk.ID)
	}
	rec.ChunkIDs = chunkIDs.Values()

	if err := c.store.SaveSceneLore(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("failed to persist scene lore: %w", err)
	}

	c.logger.Debug("npc lore appended",
		slog.String("campaign_id", campaignID),
		slog.String("scene_id", sceneID),
		slog.Int("chunks", len(npcResult.Chunks)))
	return &rec.Lore, true, nil
}

// Get reads the cached structure, or ok=false when absent.
func (c *Cache) Get(ctx context.Context, sceneID, campaignID string) (*lore.SceneLore, bool, error) {
	rec, ok, err := c.store.GetSceneLore(ctx, campaignID, sceneID)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rec.Lore, true, nil
}

// Invalidate hard-deletes the cache entry for the key. Invalidating an
// absent entry is not an error.
func (c *Cache) Invalidate(ctx context.Context, sceneID, campaignID string) error {
	if err := c.store.DeleteSceneLore(ctx, campaignID, sceneID); err != nil {
		return err
	}
	c.logger.Debug("scene lore invalidated",
		slog.String("campaign_id", campaignID),
		slog.String("scene_id", sceneID))
	return nil
}

// routeChunk places a chunk's entry into its category bucket.
func routeChunk(sceneLore *lore.SceneLore, chunk *lore.ContentChunk) {
	entry := entryFor(chunk)
	switch categoryFor(chunk.Type) {
	case categoryNPCBriefings:
		key := briefingKey(chunk)
		sceneLore.NPCBriefings[key] = append(sceneLore.NPCBriefings[key], entry)
	case categoryDiscoverable:
		sceneLore.Discoverable = append(sceneLore.Discoverable, entry)
	case categoryThreadConnections:
		sceneLore.ThreadConnections = append(sceneLore.ThreadConnections, entry)
	default:
		sceneLore.Atmosphere = append(sceneLore.Atmosphere, entry)
	}
}

// briefingKey picks the NPC-briefings map key: the chunk's first entity
// ref, falling back to its section title.
func briefingKey(chunk *lore.ContentChunk) string {
	if len(chunk.EntityRefs) > 0 {
		return chunk.EntityRefs[0]
	}
	return chunk.SectionTitle
}

func entryFor(chunk *lore.ContentChunk) lore.LoreEntry {
	return lore.LoreEntry{
		ChunkID:    chunk.ID,
		Title:      chunk.SectionTitle,
		Content:    chunk.Content,
		EntityRefs: chunk.EntityRefs,
	}
}
