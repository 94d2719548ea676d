package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/fablekit/lorekit/internal/lore"
)

// SQLiteStore implements Store on SQLite. WAL mode keeps concurrent readers
// working while a single writer indexes.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	logger *slog.Logger
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the store at path. An empty path creates
// an in-memory store for testing.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params are
	// ignored by the driver.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS packs (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		version      TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		layer        TEXT NOT NULL DEFAULT '',
		author       TEXT NOT NULL DEFAULT '',
		dependencies TEXT NOT NULL DEFAULT '[]',
		tags         TEXT NOT NULL DEFAULT '[]',
		metadata     TEXT NOT NULL DEFAULT '{}',
		indexed_at   TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id             TEXT PRIMARY KEY,
		pack_id        TEXT NOT NULL,
		file_path      TEXT NOT NULL DEFAULT '',
		section_title  TEXT NOT NULL DEFAULT '',
		content        TEXT NOT NULL DEFAULT '',
		chunk_type     TEXT NOT NULL DEFAULT 'general',
		entity_refs    TEXT NOT NULL DEFAULT '[]',
		tags           TEXT NOT NULL DEFAULT '[]',
		metadata       TEXT NOT NULL DEFAULT '{}',
		token_estimate INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_pack ON chunks(pack_id);

	CREATE TABLE IF NOT EXISTS scene_lore (
		campaign_id TEXT NOT NULL,
		scene_id    TEXT NOT NULL,
		session_id  TEXT NOT NULL DEFAULT '',
		lore        TEXT NOT NULL,
		chunk_ids   TEXT NOT NULL DEFAULT '[]',
		updated_at  TIMESTAMP,
		PRIMARY KEY (campaign_id, scene_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePack registers or overwrites a pack manifest.
func (s *SQLiteStore) SavePack(ctx context.Context, manifest *lore.PackManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	deps, _ := json.Marshal(emptyIfNil(manifest.Dependencies))
	tags, _ := json.Marshal(emptyIfNil(manifest.Tags))
	meta, _ := json.Marshal(emptyMapIfNil(manifest.Metadata))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packs (id, name, version, description, layer, author, dependencies, tags, metadata, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			description = excluded.description,
			layer = excluded.layer,
			author = excluded.author,
			dependencies = excluded.dependencies,
			tags = excluded.tags,
			metadata = excluded.metadata,
			indexed_at = excluded.indexed_at`,
		manifest.ID, manifest.Name, manifest.Version, manifest.Description,
		string(manifest.Layer), manifest.Author, string(deps), string(tags),
		string(meta), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save pack %s: %w", manifest.ID, err)
	}
	return nil
}

// GetPack returns a manifest, or ok=false when the pack is unknown.
func (s *SQLiteStore) GetPack(ctx context.Context, id string) (*lore.PackManifest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, version, description, layer, author, dependencies, tags, metadata
		FROM packs WHERE id = ?`, id)

	m, err := scanPack(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get pack %s: %w", id, err)
	}
	return m, true, nil
}

// ListPacks returns all registered manifests ordered by id.
func (s *SQLiteStore) ListPacks(ctx context.Context) ([]*lore.PackManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, version, description, layer, author, dependencies, tags, metadata
		FROM packs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	defer rows.Close()

	var packs []*lore.PackManifest
	for rows.Next() {
		m, err := scanPack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pack: %w", err)
		}
		packs = append(packs, m)
	}
	return packs, rows.Err()
}

// DeletePack removes a pack manifest. Chunks are deleted separately via
// DeleteChunksByPack. Deleting an unknown pack is not an error.
func (s *SQLiteStore) DeletePack(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM packs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete pack %s: %w", id, err)
	}
	return nil
}

// SaveChunks inserts or replaces chunk rows in a single transaction.
func (s *SQLiteStore) SaveChunks(ctx context.Context, chunks []*lore.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
		(id, pack_id, file_path, section_title, content, chunk_type, entity_refs, tags, metadata, token_estimate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		refs, _ := json.Marshal(emptyIfNil(c.EntityRefs))
		tags, _ := json.Marshal(emptyIfNil(c.Tags))
		meta, _ := json.Marshal(emptyMapIfNil(c.Metadata))
		if _, err := stmt.ExecContext(ctx, c.ID, c.PackID, c.FilePath,
			c.SectionTitle, c.Content, string(c.Type), string(refs),
			string(tags), string(meta), c.TokenEstimate); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk returns a chunk by id, or ok=false when absent.
func (s *SQLiteStore) GetChunk(ctx context.Context, id string) (*lore.ContentChunk, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get chunk %s: %w", id, err)
	}
	return c, true, nil
}

// GetChunks batch-fetches chunks, returned in the order of the requested ids.
// Missing ids are silently skipped.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []string) ([]*lore.ContentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*lore.ContentChunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve request order: callers rely on it for stage priority.
	out := make([]*lore.ContentChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ChunksByPack returns every chunk of a pack, ordered by id.
func (s *SQLiteStore) ChunksByPack(ctx context.Context, packID string) ([]*lore.ContentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE pack_id = ? ORDER BY id`, packID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks for pack %s: %w", packID, err)
	}
	defer rows.Close()

	var chunks []*lore.ContentChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteChunksByPack removes all chunk rows of a pack and reports how many
// were deleted.
func (s *SQLiteStore) DeleteChunksByPack(ctx context.Context, packID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE pack_id = ?`, packID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for pack %s: %w", packID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CountChunks counts chunks, optionally scoped to one pack.
func (s *SQLiteStore) CountChunks(ctx context.Context, packID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var (
		count int
		err   error
	)
	if packID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE pack_id = ?`, packID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// SaveSceneLore writes a scene-cache entry, overwriting any prior entry for
// the same (campaign, scene) key.
func (s *SQLiteStore) SaveSceneLore(ctx context.Context, rec *SceneLoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	loreBlob, err := json.Marshal(rec.Lore)
	if err != nil {
		return fmt.Errorf("failed to encode scene lore: %w", err)
	}
	chunkIDs, _ := json.Marshal(emptyIfNil(rec.ChunkIDs))

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scene_lore (campaign_id, scene_id, session_id, lore, chunk_ids, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(campaign_id, scene_id) DO UPDATE SET
			session_id = excluded.session_id,
			lore = excluded.lore,
			chunk_ids = excluded.chunk_ids,
			updated_at = excluded.updated_at`,
		rec.CampaignID, rec.SceneID, rec.SessionID, string(loreBlob),
		string(chunkIDs), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save scene lore %s/%s: %w", rec.CampaignID, rec.SceneID, err)
	}
	return nil
}

// GetSceneLore reads a scene-cache entry, or ok=false when absent.
func (s *SQLiteStore) GetSceneLore(ctx context.Context, campaignID, sceneID string) (*SceneLoreRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, fmt.Errorf("store is closed")
	}

	var (
		rec      SceneLoreRecord
		loreBlob string
		idsBlob  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT campaign_id, scene_id, session_id, lore, chunk_ids, updated_at
		FROM scene_lore WHERE campaign_id = ? AND scene_id = ?`,
		campaignID, sceneID).Scan(
		&rec.CampaignID, &rec.SceneID, &rec.SessionID, &loreBlob, &idsBlob, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get scene lore %s/%s: %w", campaignID, sceneID, err)
	}

	if err := json.Unmarshal([]byte(loreBlob), &rec.Lore); err != nil {
		return nil, false, fmt.Errorf("failed to decode scene lore %s/%s: %w", campaignID, sceneID, err)
	}
	if err := json.Unmarshal([]byte(idsBlob), &rec.ChunkIDs); err != nil {
		return nil, false, fmt.Errorf("failed to decode chunk ids %s/%s: %w", campaignID, sceneID, err)
	}
	return &rec, true, nil
}

// DeleteSceneLore hard-deletes a scene-cache row. Deleting an absent row is
// not an error.
func (s *SQLiteStore) DeleteSceneLore(ctx context.Context, campaignID, sceneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM scene_lore WHERE campaign_id = ? AND scene_id = ?`,
		campaignID, sceneID)
	if err != nil {
		return fmt.Errorf("failed to delete scene lore %s/%s: %w", campaignID, sceneID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

const chunkSelect = `
	SELECT id, pack_id, file_path, section_title, content, chunk_type,
	       entity_refs, tags, metadata, token_estimate
	FROM chunks`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanChunk normalizes a storage row into the same ContentChunk shape the
// chunker produces, so one record type flows through the whole pipeline.
func scanChunk(row rowScanner) (*lore.ContentChunk, error) {
	var (
		c         lore.ContentChunk
		chunkType string
		refs      string
		tags      string
		meta      string
	)
	if err := row.Scan(&c.ID, &c.PackID, &c.FilePath, &c.SectionTitle,
		&c.Content, &chunkType, &refs, &tags, &meta, &c.TokenEstimate); err != nil {
		return nil, err
	}
	c.Type = lore.ChunkType(chunkType)
	if err := json.Unmarshal([]byte(refs), &c.EntityRefs); err != nil {
		return nil, fmt.Errorf("decode entity_refs: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &c, nil
}

func scanPack(row rowScanner) (*lore.PackManifest, error) {
	var (
		m     lore.PackManifest
		layer string
		deps  string
		tags  string
		meta  string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Version, &m.Description, &layer,
		&m.Author, &deps, &tags, &meta); err != nil {
		return nil, err
	}
	m.Layer = lore.PackLayer(layer)
	if err := json.Unmarshal([]byte(deps), &m.Dependencies); err != nil {
		return nil, fmt.Errorf("decode dependencies: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &m, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyMapIfNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
