package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/fablekit/lorekit/internal/store"
)

// StaticDimensions is the embedding width of the hash-based embedder.
const StaticDimensions = 384

// Weights for vector generation. Word tokens carry most of the signal;
// character trigrams add fuzzy matching for names and invented words.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder generates embeddings by hashing word tokens and character
// n-grams into a fixed-dimension vector. Deterministic, offline, and fast;
// semantic quality is reduced compared to a learned model but it keeps
// related prose near each other through shared vocabulary.
type StaticEmbedder struct {
	mu        sync.RWMutex
	stopWords map[string]struct{}
	closed    bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a hash-based embedder for narrative prose.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{
		stopWords: store.BuildStopWordMap(store.DefaultProseStopWords),
	}
}

// Embed generates the embedding for a single text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	vector := make([]float32, StaticDimensions)

	tokens := store.FilterStopWords(store.TokenizeProse(trimmed, 2), e.stopWords)
	for _, token := range tokens {
		vector[hashToIndex(token, StaticDimensions)] += tokenWeight
	}

	for _, ngram := range extractNgrams(normalizeForNgrams(trimmed), ngramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += ngramWeight
	}

	return normalizeVector(vector), nil
}

// Dimensions returns the embedding width.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static" }

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// normalizeForNgrams strips everything but letters and digits.
func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// extractNgrams extracts n-character sliding windows.
func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to a vector index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// normalizeVector returns a unit-length copy of v. A zero vector is
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = val * inv
	}
	return out
}
