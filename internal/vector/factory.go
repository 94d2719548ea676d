package vector

import (
	"fmt"
	"log/slog"
)

// New creates the configured vector store. Backend "none" (or empty)
// disables semantic search entirely.
func New(config Config, logger *slog.Logger) (Store, error) {
	switch config.Backend {
	case BackendNone, "":
		return NewNoopStore(), nil

	case BackendHNSW:
		return NewHNSWStore(NewStaticEmbedder(), config, logger)

	default:
		return nil, fmt.Errorf("unknown vector backend: %s (valid options: none, hnsw)", config.Backend)
	}
}
