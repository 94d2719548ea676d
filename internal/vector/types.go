// Package vector provides semantic retrieval over lore chunks. Chunks are
// embedded into fixed-dimension vectors and grouped into per-pack
// collections so queries can be scoped the same way full-text search is.
package vector

import (
	"context"

	"github.com/fablekit/lorekit/internal/lore"
)

// Hit is a single semantic match.
type Hit struct {
	ChunkID string
	Score   float32
}

// Store indexes chunk embeddings and answers nearest-neighbor queries.
// A collection groups the vectors of one content pack; the reserved
// collection "default" holds chunks of packs indexed without their own
// collection.
type Store interface {
	// AddChunks embeds and indexes chunks into the named collection,
	// returning the number of vectors added. Existing chunk ids are
	// replaced.
	AddChunks(ctx context.Context, chunks []*lore.ContentChunk, collection string) (int, error)

	// Query embeds text and returns up to n nearest chunks from the
	// named collection, best first. An unknown collection yields no hits.
	Query(ctx context.Context, text string, collection string, n int) ([]*Hit, error)

	// DeleteCollection drops a collection and all its vectors.
	DeleteCollection(ctx context.Context, collection string) error

	// Enabled reports whether the store performs real semantic search.
	// Callers skip the semantic retrieval stage when false.
	Enabled() bool

	Close() error
}

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// DefaultCollection receives chunks indexed without a dedicated collection.
const DefaultCollection = "default"

// Backend names accepted by New.
const (
	BackendNone = "none"
	BackendHNSW = "hnsw"
)

// Config holds vector store settings.
type Config struct {
	// Backend selects the implementation: "none" or "hnsw".
	Backend string `yaml:"backend"`

	// Dimensions is the embedding width. Zero means the embedder's native
	// dimension.
	Dimensions int `yaml:"dimensions"`

	// M and EfSearch tune the HNSW graph. Zero applies the library
	// defaults.
	M        int `yaml:"m"`
	EfSearch int `yaml:"ef_search"`
}

// DefaultConfig returns the default vector settings.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendNone,
		M:        16,
		EfSearch: 20,
	}
}
