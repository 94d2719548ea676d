// Package lore defines the shared domain types for the retrieval pipeline:
// content chunks, pack manifests, queries, and results. It is the vocabulary
// every other package speaks.
package lore

import (
	"math"
	"regexp"
	"strings"
)

// Retrieval defaults.
const (
	DefaultMaxTokens = 2000 // Soft cap on cumulative token estimates per query
	DefaultMaxChunks = 15   // Hard cap on chunks per result
)

// ChunkType classifies what kind of lore a chunk describes.
type ChunkType string

const (
	ChunkTypeLocation ChunkType = "location"
	ChunkTypeNPC      ChunkType = "npc"
	ChunkTypeFaction  ChunkType = "faction"
	ChunkTypeCulture  ChunkType = "culture"
	ChunkTypeItem     ChunkType = "item"
	ChunkTypeGeneral  ChunkType = "general"
)

// ParseChunkType maps a free-form file type label to a ChunkType.
// Unknown labels fall back to ChunkTypeGeneral.
func ParseChunkType(s string) ChunkType {
	switch ChunkType(strings.ToLower(strings.TrimSpace(s))) {
	case ChunkTypeLocation, ChunkTypeNPC, ChunkTypeFaction, ChunkTypeCulture, ChunkTypeItem:
		return ChunkType(strings.ToLower(strings.TrimSpace(s)))
	default:
		return ChunkTypeGeneral
	}
}

// PackLayer identifies where a content pack sits in the layering order.
type PackLayer string

const (
	LayerSourcebook PackLayer = "sourcebook"
	LayerSupplement PackLayer = "supplement"
	LayerScenario   PackLayer = "scenario"
	LayerAdventure  PackLayer = "adventure"
	LayerSetting    PackLayer = "setting"
)

// ContentChunk is the smallest indexed unit of lore: one markdown section.
// Chunks are immutable once created; re-indexing a pack supersedes them
// wholesale.
type ContentChunk struct {
	ID            string            // {pack_id}:{file_slug}:{section_slug}
	PackID        string            // Owning pack
	FilePath      string            // Source file within the pack
	SectionTitle  string            // Heading text (or document title)
	Content       string            // Raw section text
	Type          ChunkType         // location, npc, faction, culture, item, general
	EntityRefs    []string          // Entity ids this chunk concerns, first-seen order
	Tags          []string          // File tags plus the chunk type, first-seen order
	Metadata      map[string]string // File frontmatter minus tags/entity_refs
	TokenEstimate int               // Deterministic estimate, see EstimateTokens
}

// PackManifest describes one content pack. One manifest maps to zero-or-more
// chunks via the shared pack id.
type PackManifest struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Description  string            `yaml:"description"`
	Layer        PackLayer         `yaml:"layer"`
	Author       string            `yaml:"author"`
	Dependencies []string          `yaml:"dependencies"`
	Tags         []string          `yaml:"tags"`
	Metadata     map[string]string `yaml:"metadata"`
}

// SourceFile is a parsed content file as supplied by the loading collaborator.
// The core consumes these records; it never parses markdown or frontmatter
// itself.
type SourceFile struct {
	Path        string            // Path within the pack
	Type        string            // File type label (location, npc, ...)
	Title       string            // Document title
	Body        string            // Markdown body, frontmatter stripped
	EntityID    string            // The file's own entity identifier, if any
	Tags        []string          // Frontmatter tags
	EntityRefs  []string          // Frontmatter entity_refs
	Frontmatter map[string]string // Remaining frontmatter key-values
}

// LoreQuery is an ephemeral retrieval request.
type LoreQuery struct {
	Keywords     []string    // Ordered, deduplicated
	EntityIDs    []string    // Ordered, deduplicated
	ChunkTypes   []ChunkType // Optional filter
	PackIDs      []string    // Search scope; empty means unscoped
	SemanticText string      // Free text for vector search
	MaxTokens    int         // Defaults to DefaultMaxTokens
	MaxChunks    int         // Defaults to DefaultMaxChunks
}

// Normalize dedups the ordered fields and applies budget defaults.
func (q LoreQuery) Normalize() LoreQuery {
	q.Keywords = DedupeOrdered(q.Keywords)
	q.EntityIDs = DedupeOrdered(q.EntityIDs)
	if q.MaxTokens <= 0 {
		q.MaxTokens = DefaultMaxTokens
	}
	if q.MaxChunks <= 0 {
		q.MaxChunks = DefaultMaxChunks
	}
	return q
}

// RetrievalResult is the outcome of one query. An empty result is a valid,
// non-error terminal state.
type RetrievalResult struct {
	Chunks      []*ContentChunk // Accumulation order, earlier stages first
	TotalTokens int             // Sum of included chunks' TokenEstimate
	Query       LoreQuery       // The query that produced this result
}

// EntityState is a present entity's identity as seen by query construction.
type EntityState struct {
	ID   string
	Name string
}

// ThreadState is an active narrative thread's retrieval-relevant fields.
type ThreadState struct {
	Title            string
	RelatedEntityIDs []string
}

// SceneState identifies the current scene for query construction. A scene is
// identified by a location id within a campaign.
type SceneState struct {
	LocationID  string
	PlayerInput string // Raw free-text player input, may be empty
}

// LoreEntry is one chunk's contribution to a categorized scene-lore section.
type LoreEntry struct {
	ChunkID    string   `json:"chunk_id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	EntityRefs []string `json:"entity_refs"`
}

// SceneLore is the categorized structure the narrative layer consumes.
type SceneLore struct {
	Atmosphere        []LoreEntry            `json:"atmosphere"`
	NPCBriefings      map[string][]LoreEntry `json:"npc_briefings"`
	Discoverable      []LoreEntry            `json:"discoverable"`
	ThreadConnections []LoreEntry            `json:"thread_connections"`
}

// tokensPerWord is a deliberately crude words-to-tokens ratio. The contract
// is determinism, not accuracy.
const tokensPerWord = 1.33

// EstimateTokens derives a token estimate from content: a whitespace split of
// the trimmed text, scaled and rounded. Stable across runs by construction.
func EstimateTokens(content string) int {
	words := strings.Fields(strings.TrimSpace(content))
	if len(words) == 0 {
		return 0
	}
	return int(math.Round(float64(len(words)) * tokensPerWord))
}

// slugStripRegex removes everything outside lowercase alphanumerics,
// whitespace, underscores, and hyphens.
var slugStripRegex = regexp.MustCompile(`[^a-z0-9\s_-]+`)

// slugCollapseRegex collapses whitespace/hyphen/underscore runs.
var slugCollapseRegex = regexp.MustCompile(`[\s_-]+`)

// Slug normalizes a title into an id segment: lowercase, strip punctuation,
// collapse separator runs to single underscores, trim. An empty result maps
// to the literal "untitled".
func Slug(s string) string {
	out := strings.ToLower(s)
	out = slugStripRegex.ReplaceAllString(out, "")
	out = slugCollapseRegex.ReplaceAllString(out, "_")
	out = strings.Trim(out, "_")
	if out == "" {
		return "untitled"
	}
	return out
}

// ChunkID builds a globally unique chunk id. It is a pure function of pack
// id, file identifier, and section title: re-chunking the same file yields
// the same ids unless a title changes.
func ChunkID(packID, fileIdent, sectionTitle string) string {
	sectionSlug := "overview"
	if strings.TrimSpace(sectionTitle) != "" {
		sectionSlug = Slug(sectionTitle)
	}
	return packID + ":" + Slug(fileIdent) + ":" + sectionSlug
}
