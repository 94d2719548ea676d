package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/fablekit/lorekit/internal/lore"
)

// bleveQuery shortens the composed boolean query construction below.
type bleveQuery = query.Query

const (
	// ProseStopFilterName is the registered name of the prose stop filter.
	ProseStopFilterName = "prose_stop"

	// ProseAnalyzerName is the registered name of the prose analyzer.
	ProseAnalyzerName = "prose_analyzer"
)

func init() {
	_ = registry.RegisterTokenFilter(ProseStopFilterName, proseStopFilterConstructor)
}

// BleveFullText implements FullTextIndex on Bleve v2.
type BleveFullText struct {
	mu        sync.RWMutex
	index     bleve.Index
	path      string
	config    FullTextConfig
	logger    *slog.Logger
	stopWords map[string]struct{}
	closed    bool
}

var _ FullTextIndex = (*BleveFullText)(nil)

// bleveChunkDoc is the indexed document shape.
type bleveChunkDoc struct {
	Content   string `json:"content"`
	PackID    string `json:"pack_id"`
	ChunkType string `json:"chunk_type"`
}

// NewBleveFullText creates a Bleve-backed full-text index. An empty path
// creates an in-memory index for testing.
func NewBleveFullText(path string, config FullTextConfig, logger *slog.Logger) (*BleveFullText, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MinTokenLength <= 0 {
		config.MinTokenLength = 2
	}
	if config.StopWords == nil {
		config.StopWords = DefaultProseStopWords
	}

	indexMapping, err := createProseMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveFullText{
		index:     idx,
		path:      path,
		config:    config,
		logger:    logger,
		stopWords: BuildStopWordMap(config.StopWords),
	}, nil
}

// prepareText tokenizes and stop-filters text so both full-text backends
// normalize content the same way (possessives, punctuation, stop words).
func (b *BleveFullText) prepareText(text string) []string {
	return FilterStopWords(TokenizeProse(text, b.config.MinTokenLength), b.stopWords)
}

// createProseMapping builds the index mapping: content analyzed with the
// prose analyzer, pack_id and chunk_type as exact keywords for scoping.
func createProseMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(ProseAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			ProseStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = ProseAnalyzerName

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("pack_id", keywordField)
	docMapping.AddFieldMappingsAt("chunk_type", keywordField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = ProseAnalyzerName

	return indexMapping, nil
}

// Index adds chunks to the index; existing ids are replaced.
func (b *BleveFullText) Index(ctx context.Context, chunks []*lore.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := bleveChunkDoc{
			Content:   strings.Join(b.prepareText(c.SectionTitle+" "+c.Content), " "),
			PackID:    c.PackID,
			ChunkType: string(c.Type),
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search runs a disjunctive match over the query terms, conjoined with
// pack and chunk-type scoping when present.
func (b *BleveFullText) Search(ctx context.Context, q FullTextQuery) ([]*FullTextHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	terms := lore.DedupeOrdered(q.Terms)
	if len(terms) == 0 {
		return []*FullTextHit{}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	termQueries := make([]bleveQuery, 0, len(terms))
	for _, term := range terms {
		for _, tok := range b.prepareText(term) {
			mq := bleve.NewMatchQuery(tok)
			mq.SetField("content")
			termQueries = append(termQueries, mq)
		}
	}
	if len(termQueries) == 0 {
		return []*FullTextHit{}, nil
	}

	var full bleveQuery = bleve.NewDisjunctionQuery(termQueries...)

	var filters []bleveQuery
	if q.PackID != "" {
		tq := bleve.NewTermQuery(q.PackID)
		tq.SetField("pack_id")
		filters = append(filters, tq)
	}
	if len(q.ChunkTypes) > 0 {
		typeQueries := make([]bleveQuery, 0, len(q.ChunkTypes))
		for _, ct := range q.ChunkTypes {
			tq := bleve.NewTermQuery(string(ct))
			tq.SetField("chunk_type")
			typeQueries = append(typeQueries, tq)
		}
		filters = append(filters, bleve.NewDisjunctionQuery(typeQueries...))
	}
	if len(filters) > 0 {
		full = bleve.NewConjunctionQuery(append([]bleveQuery{full}, filters...)...)
	}

	req := bleve.NewSearchRequest(full)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]*FullTextHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, &FullTextHit{ChunkID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// Delete removes documents by chunk id.
func (b *BleveFullText) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// DeleteByPack removes all of a pack's documents, returning the count removed.
func (b *BleveFullText) DeleteByPack(ctx context.Context, packID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	tq := bleve.NewTermQuery(packID)
	tq.SetField("pack_id")

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(tq)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("failed to find pack documents: %w", err)
	}

	batch := b.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to delete pack documents: %w", err)
	}
	return len(result.Hits), nil
}

// DocCount returns the number of indexed documents.
func (b *BleveFullText) DocCount() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	n, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(n), nil
}

// Close closes the index.
func (b *BleveFullText) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// proseStopFilterConstructor builds the prose stop word filter for Bleve.
func proseStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &proseStopFilter{stopWords: BuildStopWordMap(DefaultProseStopWords)}, nil
}

// proseStopFilter drops narrative stop words from the token stream.
type proseStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *proseStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
