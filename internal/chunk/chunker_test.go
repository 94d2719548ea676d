package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/lorekit/internal/lore"
)

func testFile() *lore.SourceFile {
	return &lore.SourceFile{
		Path:     "locations/neon_dragon.md",
		Type:     "location",
		Title:    "The Neon Dragon",
		EntityID: "neon_dragon",
		Tags:     []string{"bar", "undercity"},
		Body:     "# The Neon Dragon\n\n## Atmosphere\n\nSmoky and loud.\n\n## Back Room\n\nViktor's office.",
	}
}

func TestChunkFile_NeonDragonScenario(t *testing.T) {
	chunks := New(nil).ChunkFile("test_pack", testFile())
	require.Len(t, chunks, 3)

	assert.Equal(t, "test_pack:the_neon_dragon:the_neon_dragon", chunks[0].ID)
	assert.Equal(t, "test_pack:the_neon_dragon:atmosphere", chunks[1].ID)
	assert.Equal(t, "test_pack:the_neon_dragon:back_room", chunks[2].ID)

	assert.Equal(t, "Smoky and loud.", chunks[1].Content)
	assert.Equal(t, "Viktor's office.", chunks[2].Content)

	for _, c := range chunks {
		assert.Equal(t, []string{"neon_dragon"}, c.EntityRefs)
		assert.Equal(t, []string{"bar", "undercity", "location"}, c.Tags)
		assert.Equal(t, lore.ChunkTypeLocation, c.Type)
		assert.Equal(t, "test_pack", c.PackID)
		assert.Equal(t, "locations/neon_dragon.md", c.FilePath)
	}
}

func TestChunkFile_AbsorbsDeepHeadings(t *testing.T) {
	file := &lore.SourceFile{
		Path:  "general/notes.md",
		Type:  "general",
		Title: "Notes",
		Body:  "## Main\n\nIntro.\n\n### Sub\n\nMore.\n\n## Another\n\nText.",
	}

	chunks := New(nil).ChunkFile("test_pack", file)
	require.Len(t, chunks, 2)

	assert.Equal(t, "Main", chunks[0].SectionTitle)
	assert.Contains(t, chunks[0].Content, "### Sub")
	assert.Contains(t, chunks[0].Content, "More.")
	assert.Equal(t, "Another", chunks[1].SectionTitle)
	assert.Equal(t, "Text.", chunks[1].Content)
}

func TestChunkFile_ElidesEmptySections(t *testing.T) {
	file := &lore.SourceFile{
		Path:  "general/sparse.md",
		Type:  "general",
		Title: "Sparse",
		Body:  "## Empty\n\n## Full\n\nSomething here.",
	}

	chunks := New(nil).ChunkFile("test_pack", file)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Full", chunks[0].SectionTitle)
}

func TestChunkFile_NoHeadingsProducesSingleChunk(t *testing.T) {
	file := &lore.SourceFile{
		Path:  "cultures/street_cant.md",
		Type:  "culture",
		Title: "Street Cant",
		Body:  "A pidgin of dock slang and corp jargon.\n\nSpoken quickly, signed slowly.",
	}

	chunks := New(nil).ChunkFile("test_pack", file)
	require.Len(t, chunks, 1)
	assert.Equal(t, "test_pack:street_cant:street_cant", chunks[0].ID)
	assert.Equal(t, "Street Cant", chunks[0].SectionTitle)
	assert.Contains(t, chunks[0].Content, "dock slang")
}

func TestChunkFile_LeadingRegionBecomesOverview(t *testing.T) {
	file := &lore.SourceFile{
		Path:  "npcs/viktor.md",
		Type:  "npc",
		Title: "Viktor",
		Body:  "Fixer with a ledger for a heart.\n\n## Debts\n\nEveryone owes him.",
	}

	chunks := New(nil).ChunkFile("test_pack", file)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Viktor", chunks[0].SectionTitle)
	assert.Contains(t, chunks[0].Content, "ledger for a heart")
	assert.Equal(t, "Debts", chunks[1].SectionTitle)
}

func TestChunkFile_UntitledLeadingRegionDropped(t *testing.T) {
	file := &lore.SourceFile{
		Path: "general/fragment.md",
		Type: "general",
		Body: "Stray text with no home.\n\n## Anchored\n\nThis stays.",
	}

	chunks := New(nil).ChunkFile("test_pack", file)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Anchored", chunks[0].SectionTitle)
}

func TestChunkFile_IDsStableAcrossRuns(t *testing.T) {
	c := New(nil)
	first := c.ChunkFile("test_pack", testFile())
	second := c.ChunkFile("test_pack", testFile())
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestChunkFile_MetadataInjection(t *testing.T) {
	file := testFile()
	file.Frontmatter = map[string]string{"region": "undercity", "tags": "ignored"}

	chunks := New(nil).ChunkFile("test_pack", file)
	require.NotEmpty(t, chunks)

	meta := chunks[0].Metadata
	assert.Equal(t, "undercity", meta["region"])
	assert.Equal(t, "location", meta["file_type"])
	assert.Equal(t, "locations/neon_dragon.md", meta["source_file"])
	assert.NotContains(t, meta, "tags")
}

func TestChunkFile_TokenEstimates(t *testing.T) {
	chunks := New(nil).ChunkFile("test_pack", testFile())
	require.Len(t, chunks, 3)
	// "Smoky and loud." is 3 words: round(3*1.33) = 4.
	assert.Equal(t, 4, chunks[1].TokenEstimate)
	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.TokenEstimate, 0)
	}
}
