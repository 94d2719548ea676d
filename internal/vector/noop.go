package vector

import (
	"context"

	"github.com/fablekit/lorekit/internal/lore"
)

// NoopStore is the disabled vector backend. Indexing accepts everything
// and discards it; queries return nothing. Retrieval degrades to keyword
// and entity matching only.
type NoopStore struct{}

var _ Store = (*NoopStore)(nil)

// NewNoopStore creates a disabled vector store.
func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) AddChunks(ctx context.Context, chunks []*lore.ContentChunk, collection string) (int, error) {
	return 0, nil
}

func (n *NoopStore) Query(ctx context.Context, text string, collection string, limit int) ([]*Hit, error) {
	return []*Hit{}, nil
}

func (n *NoopStore) DeleteCollection(ctx context.Context, collection string) error { return nil }

func (n *NoopStore) Enabled() bool { return false }

func (n *NoopStore) Close() error { return nil }
