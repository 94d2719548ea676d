package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/fablekit/lorekit/internal/lore"
)

// HNSWStore implements Store with one coder/hnsw graph per collection.
// Pure Go, no CGO. Deletions are lazy: removing a chunk orphans its graph
// node rather than mutating the graph, which coder/hnsw handles badly when
// the last node goes away. Orphans disappear on the next full reindex of
// the collection.
type HNSWStore struct {
	mu          sync.RWMutex
	embedder    Embedder
	config      Config
	collections map[string]*collectionGraph
	logger      *slog.Logger
	closed      bool
}

var _ Store = (*HNSWStore)(nil)

// collectionGraph pairs an HNSW graph with its string id mappings.
// coder/hnsw keys nodes by uint64; chunk ids are strings.
type collectionGraph struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// hnswMetadata is the persisted shape of the id mappings.
type hnswMetadata struct {
	Collections map[string]collectionMetadata
	Config      Config
}

type collectionMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
}

// NewHNSWStore creates an HNSW-backed vector store fed by embedder.
func NewHNSWStore(embedder Embedder, config Config, logger *slog.Logger) (*HNSWStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Dimensions == 0 {
		config.Dimensions = embedder.Dimensions()
	}
	if config.Dimensions != embedder.Dimensions() {
		return nil, fmt.Errorf("dimension mismatch: config %d, embedder %d",
			config.Dimensions, embedder.Dimensions())
	}
	if config.M == 0 {
		config.M = 16
	}
	if config.EfSearch == 0 {
		config.EfSearch = 20
	}

	return &HNSWStore{
		embedder:    embedder,
		config:      config,
		collections: make(map[string]*collectionGraph),
		logger:      logger,
	}, nil
}

func (s *HNSWStore) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = s.config.M
	g.EfSearch = s.config.EfSearch
	g.Ml = 0.25
	return g
}

// collection returns the named collection, creating it when create is set.
// Caller must hold the write lock when create is true.
func (s *HNSWStore) collection(name string, create bool) *collectionGraph {
	if name == "" {
		name = DefaultCollection
	}
	c, ok := s.collections[name]
	if !ok && create {
		c = &collectionGraph{
			graph:  s.newGraph(),
			idMap:  make(map[string]uint64),
			keyMap: make(map[uint64]string),
		}
		s.collections[name] = c
	}
	return c
}

// AddChunks embeds section title plus content for each chunk and indexes
// the vectors. Returns the number of vectors added.
func (s *HNSWStore) AddChunks(ctx context.Context, chunks []*lore.ContentChunk, collection string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	c := s.collection(collection, true)
	added := 0
	for _, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk.SectionTitle+"\n"+chunk.Content)
		if err != nil {
			return added, fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
		}

		// Replace an existing id by orphaning its old node.
		if oldKey, exists := c.idMap[chunk.ID]; exists {
			delete(c.keyMap, oldKey)
			delete(c.idMap, chunk.ID)
		}

		key := c.nextKey
		c.nextKey++
		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idMap[chunk.ID] = key
		c.keyMap[key] = chunk.ID
		added++
	}

	return added, nil
}

// Query embeds text and returns the nearest chunks in the collection.
func (s *HNSWStore) Query(ctx context.Context, text string, collection string, limit int) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	c := s.collection(collection, false)
	if c == nil || c.graph.Len() == 0 || limit <= 0 {
		return []*Hit{}, nil
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Over-fetch to compensate for lazily deleted orphans in the results.
	orphans := c.graph.Len() - len(c.idMap)
	nodes := c.graph.Search(vec, limit+orphans)

	hits := make([]*Hit, 0, limit)
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := c.graph.Distance(vec, node.Value)
		hits = append(hits, &Hit{ChunkID: id, Score: cosineDistanceToScore(distance)})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// DeleteCollection drops the collection and its vectors.
func (s *HNSWStore) DeleteCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if collection == "" {
		collection = DefaultCollection
	}
	delete(s.collections, collection)
	return nil
}

// Enabled reports that real semantic search is available.
func (s *HNSWStore) Enabled() bool { return true }

// Count returns the number of live vectors in the collection.
func (s *HNSWStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.collection(collection, false); c != nil {
		return len(c.idMap)
	}
	return 0
}

// Collections returns the names of existing collections.
func (s *HNSWStore) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// Save persists all collections under dir: one graph file per collection
// plus a metadata file with the id mappings. Each file is written to a
// temp path and renamed.
func (s *HNSWStore) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	meta := hnswMetadata{
		Collections: make(map[string]collectionMetadata, len(s.collections)),
		Config:      s.config,
	}
	for name, c := range s.collections {
		if err := saveGraph(filepath.Join(dir, name+".hnsw"), c.graph); err != nil {
			return fmt.Errorf("failed to save collection %s: %w", name, err)
		}
		meta.Collections[name] = collectionMetadata{IDMap: c.idMap, NextKey: c.nextKey}
	}

	return saveMetadata(filepath.Join(dir, "vectors.meta"), meta)
}

// Load restores collections previously written by Save. A missing
// metadata file is a fresh start, not an error.
func (s *HNSWStore) Load(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	meta, err := loadMetadata(filepath.Join(dir, "vectors.meta"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	collections := make(map[string]*collectionGraph, len(meta.Collections))
	for name, cm := range meta.Collections {
		graph := s.newGraph()
		if err := loadGraph(filepath.Join(dir, name+".hnsw"), graph); err != nil {
			return fmt.Errorf("failed to load collection %s: %w", name, err)
		}
		c := &collectionGraph{
			graph:   graph,
			idMap:   cm.IDMap,
			keyMap:  make(map[uint64]string, len(cm.IDMap)),
			nextKey: cm.NextKey,
		}
		for id, key := range cm.IDMap {
			c.keyMap[key] = id
		}
		collections[name] = c
	}
	s.collections = collections
	return nil
}

// Close releases resources, including the embedder.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.collections = nil
	return s.embedder.Close()
}

func saveGraph(path string, graph *hnsw.Graph[uint64]) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close graph file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func loadGraph(path string, graph *hnsw.Graph[uint64]) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open graph file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func saveMetadata(path string, meta hnswMetadata) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func loadMetadata(path string) (hnswMetadata, error) {
	var meta hnswMetadata
	file, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

// cosineDistanceToScore maps cosine distance (0 identical, 2 opposite)
// to a similarity score in [0, 1].
func cosineDistanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
