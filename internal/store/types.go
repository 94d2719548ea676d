// Package store is the persistence layer for lore content: pack manifests,
// chunk rows, scene-lore cache entries, and the full-text index over chunk
// content.
package store

import (
	"context"
	"time"

	"github.com/fablekit/lorekit/internal/lore"
)

// Store persists packs, chunks, and scene lore. "Not found" is an explicit
// absent return, never an error: these lookups miss routinely.
type Store interface {
	// Pack operations
	SavePack(ctx context.Context, manifest *lore.PackManifest) error
	GetPack(ctx context.Context, id string) (*lore.PackManifest, bool, error)
	ListPacks(ctx context.Context) ([]*lore.PackManifest, error)
	DeletePack(ctx context.Context, id string) error

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*lore.ContentChunk) error
	GetChunk(ctx context.Context, id string) (*lore.ContentChunk, bool, error)
	GetChunks(ctx context.Context, ids []string) ([]*lore.ContentChunk, error)
	ChunksByPack(ctx context.Context, packID string) ([]*lore.ContentChunk, error)
	DeleteChunksByPack(ctx context.Context, packID string) (int, error)
	CountChunks(ctx context.Context, packID string) (int, error)

	// Scene lore operations, keyed by (campaign_id, scene_id)
	SaveSceneLore(ctx context.Context, rec *SceneLoreRecord) error
	GetSceneLore(ctx context.Context, campaignID, sceneID string) (*SceneLoreRecord, bool, error)
	DeleteSceneLore(ctx context.Context, campaignID, sceneID string) error

	Close() error
}

// SceneLoreRecord is one persisted scene-cache entry. The categorized
// structure is stored as an opaque JSON blob; ChunkIDs is the flat list of
// contributing chunks kept for invalidation and audit.
type SceneLoreRecord struct {
	CampaignID string
	SceneID    string
	SessionID  string
	Lore       lore.SceneLore
	ChunkIDs   []string
	UpdatedAt  time.Time
}

// FullTextQuery is one scoped keyword search. Terms combine disjunctively.
type FullTextQuery struct {
	Terms      []string         // OR'd keywords
	PackID     string           // Optional pack scope; empty searches everything
	ChunkTypes []lore.ChunkType // Optional type filter
	Limit      int              // Max hits to return
}

// FullTextHit is a single scored full-text match.
type FullTextHit struct {
	ChunkID string
	Score   float64
}

// FullTextIndex provides keyword search over chunk content. Two backends
// exist (SQLite FTS5 and Bleve); both behave identically at this interface.
type FullTextIndex interface {
	// Index adds chunks to the index. Re-indexing an existing id replaces it.
	Index(ctx context.Context, chunks []*lore.ContentChunk) error

	// Search returns chunk ids matching the query, best score first.
	Search(ctx context.Context, q FullTextQuery) ([]*FullTextHit, error)

	// Delete removes documents by chunk id.
	Delete(ctx context.Context, ids []string) error

	// DeleteByPack removes every document belonging to a pack.
	DeleteByPack(ctx context.Context, packID string) (int, error)

	// DocCount returns the number of indexed documents.
	DocCount() (int, error)

	Close() error
}

// FullTextConfig configures the full-text backends.
type FullTextConfig struct {
	// Backend selects the implementation: "sqlite" (default) or "bleve".
	Backend string

	// StopWords are filtered out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultFullTextConfig returns the default full-text configuration.
func DefaultFullTextConfig() FullTextConfig {
	return FullTextConfig{
		Backend:        BackendSQLite,
		StopWords:      DefaultProseStopWords,
		MinTokenLength: 2,
	}
}

// Full-text backend names.
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
)

// DefaultProseStopWords contains high-frequency narrative English words that
// carry no retrieval signal.
var DefaultProseStopWords = []string{
	"the", "and", "of", "a", "an", "to", "in", "is", "it", "its",
	"with", "for", "on", "at", "by", "from", "as", "was", "were",
	"are", "be", "been", "has", "have", "had", "this", "that",
	"they", "them", "their", "his", "her", "she", "he", "you",
	"not", "but", "all", "into", "out", "who", "what", "when",
	"where", "there", "here", "will", "would", "can", "could",
}
