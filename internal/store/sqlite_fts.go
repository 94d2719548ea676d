package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/fablekit/lorekit/internal/lore"
)

// SQLiteFullText implements FullTextIndex on SQLite FTS5. WAL mode allows
// concurrent reader processes while one indexer writes.
type SQLiteFullText struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	config    FullTextConfig
	logger    *slog.Logger
	stopWords map[string]struct{}
	closed    bool
}

var _ FullTextIndex = (*SQLiteFullText)(nil)

// NewSQLiteFullText creates an FTS5-backed full-text index. An empty path
// creates an in-memory index for testing.
func NewSQLiteFullText(path string, config FullTextConfig, logger *slog.Logger) (*SQLiteFullText, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MinTokenLength <= 0 {
		config.MinTokenLength = 2
	}
	if config.StopWords == nil {
		config.StopWords = DefaultProseStopWords
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteFullText{
		db:        db,
		path:      path,
		config:    config,
		logger:    logger,
		stopWords: BuildStopWordMap(config.StopWords),
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteFullText) initSchema() error {
	schema := `
	-- chunk_id/pack_id/chunk_type are stored but not tokenized; content holds
	-- pre-tokenized text so stop-word behavior matches the Bleve backend.
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		chunk_id UNINDEXED,
		pack_id UNINDEXED,
		chunk_type UNINDEXED,
		content,
		tokenize='unicode61'
	);

	-- FTS5 does not expose reliable row membership; track ids separately.
	CREATE TABLE IF NOT EXISTS doc_ids (
		chunk_id TEXT PRIMARY KEY,
		pack_id  TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// prepareText tokenizes and stop-filters content for indexing and matching.
func (s *SQLiteFullText) prepareText(text string) []string {
	return FilterStopWords(TokenizeProse(text, s.config.MinTokenLength), s.stopWords)
}

// Index adds chunks; an existing chunk id is replaced.
func (s *SQLiteFullText) Index(ctx context.Context, chunks []*lore.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`, c.ID); err != nil {
			return fmt.Errorf("failed to clear chunk %s: %w", c.ID, err)
		}
		tokens := s.prepareText(c.SectionTitle + " " + c.Content)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fts_chunks (chunk_id, pack_id, chunk_type, content)
			VALUES (?, ?, ?, ?)`,
			c.ID, c.PackID, string(c.Type), strings.Join(tokens, " ")); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO doc_ids (chunk_id, pack_id) VALUES (?, ?)`,
			c.ID, c.PackID); err != nil {
			return fmt.Errorf("failed to track chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Search runs a disjunctive match, best score first. bm25() returns
// more-negative-is-better, so results are negated into a positive score.
func (s *SQLiteFullText) Search(ctx context.Context, q FullTextQuery) ([]*FullTextHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	match := s.buildMatchExpr(q.Terms)
	if match == "" {
		return []*FullTextHit{}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT chunk_id, bm25(fts_chunks) FROM fts_chunks WHERE fts_chunks MATCH ?`
	args := []any{match}
	if q.PackID != "" {
		query += ` AND pack_id = ?`
		args = append(args, q.PackID)
	}
	if len(q.ChunkTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.ChunkTypes)), ",")
		query += ` AND chunk_type IN (` + placeholders + `)`
		for _, ct := range q.ChunkTypes {
			args = append(args, string(ct))
		}
	}
	query += ` ORDER BY bm25(fts_chunks) LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var hits []*FullTextHit
	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hits = append(hits, &FullTextHit{ChunkID: id, Score: -score})
	}
	return hits, rows.Err()
}

// buildMatchExpr tokenizes terms and joins them into an FTS5 OR expression.
// Tokens are quoted so FTS5 operators in user input stay inert.
func (s *SQLiteFullText) buildMatchExpr(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		for _, tok := range s.prepareText(term) {
			parts = append(parts, `"`+tok+`"`)
		}
	}
	return strings.Join(lore.DedupeOrdered(parts), " OR ")
}

// Delete removes documents by chunk id.
func (s *SQLiteFullText) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete chunk %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM doc_ids WHERE chunk_id = ?`, id); err != nil {
			return fmt.Errorf("failed to untrack chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// DeleteByPack removes all of a pack's documents, returning the count removed.
func (s *SQLiteFullText) DeleteByPack(ctx context.Context, packID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_chunks WHERE pack_id = ?`, packID); err != nil {
		return 0, fmt.Errorf("failed to delete pack %s: %w", packID, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM doc_ids WHERE pack_id = ?`, packID)
	if err != nil {
		return 0, fmt.Errorf("failed to untrack pack %s: %w", packID, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// DocCount returns the number of indexed documents.
func (s *SQLiteFullText) DocCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("index is closed")
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM doc_ids`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Close closes the index.
func (s *SQLiteFullText) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
