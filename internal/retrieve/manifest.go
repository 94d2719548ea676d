package retrieve

import (
	"github.com/fablekit/lorekit/internal/lore"
)

// EntityManifest is a precomputed entity-id to chunk-ids index. It makes
// lookups for known, frequently-requested entities O(1) instead of paying
// full-text search cost every time. Built in memory from chunk entity
// refs; never persisted.
type EntityManifest struct {
	byEntity map[string]*lore.OrderedSet
}

// NewEntityManifest creates an empty manifest.
func NewEntityManifest() *EntityManifest {
	return &EntityManifest{byEntity: make(map[string]*lore.OrderedSet)}
}

// BuildEntityManifest indexes the given chunks by their entity refs.
func BuildEntityManifest(chunks []*lore.ContentChunk) *EntityManifest {
	m := NewEntityManifest()
	m.AddChunks(chunks)
	return m
}

// AddChunks records each chunk under every entity it references.
func (m *EntityManifest) AddChunks(chunks []*lore.ContentChunk) {
	for _, c := range chunks {
		for _, entityID := range c.EntityRefs {
			set, ok := m.byEntity[entityID]
			if !ok {
				set = lore.NewOrderedSet()
				m.byEntity[entityID] = set
			}
			set.Add(c.ID)
		}
	}
}

// ChunkIDs resolves the requested entities to chunk ids, deduplicated in
// first-seen order across all requested entities. Unknown entities
// contribute nothing.
func (m *EntityManifest) ChunkIDs(entityIDs []string) []string {
	out := lore.NewOrderedSet()
	for _, entityID := range entityIDs {
		if set, ok := m.byEntity[entityID]; ok {
			out.AddAll(set.Values())
		}
	}
	return out.Values()
}

// Len returns the number of indexed entities.
func (m *EntityManifest) Len() int {
	return len(m.byEntity)
}
