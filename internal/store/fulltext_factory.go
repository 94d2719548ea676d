package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

// NewFullTextIndex creates a FullTextIndex using the configured backend.
// basePath is the path without extension; the backend appends its own
// (.db for SQLite, .bleve for Bleve). An empty basePath creates an
// in-memory index for testing.
func NewFullTextIndex(basePath string, config FullTextConfig, logger *slog.Logger) (FullTextIndex, error) {
	switch config.Backend {
	case BackendSQLite, "":
		var path string
		if basePath != "" {
			path = basePath + ".db"
		}
		return NewSQLiteFullText(path, config, logger)

	case BackendBleve:
		var path string
		if basePath != "" {
			path = basePath + ".bleve"
		}
		return NewBleveFullText(path, config, logger)

	default:
		return nil, fmt.Errorf("unknown full-text backend: %s (valid options: sqlite, bleve)", config.Backend)
	}
}

// FullTextIndexPath returns the on-disk path the given backend will use
// under dataDir.
func FullTextIndexPath(dataDir, backend string) string {
	basePath := filepath.Join(dataDir, "fulltext")
	if backend == BackendBleve {
		return basePath + ".bleve"
	}
	return basePath + ".db"
}
