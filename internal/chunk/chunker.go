// Package chunk splits parsed content files into section-level lore chunks
// using the markdown heading hierarchy.
package chunk

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/fablekit/lorekit/internal/lore"
)

// headingPattern matches markdown headings of any level.
var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Chunker deterministically splits one content file's markdown body into
// one-or-more chunks. Level-1/2 headings start new chunks; level-3+ headings
// stay inline in the enclosing chunk, markup included. Chunking never fails
// for well-formed input; malformed files are the loader's concern.
type Chunker struct {
	logger *slog.Logger
}

// New creates a chunker. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{logger: logger}
}

// section is an intermediate region of the body between chunk-level headings.
type section struct {
	title   string
	content strings.Builder
}

// ChunkFile splits a file's body into chunks for the given pack.
func (c *Chunker) ChunkFile(packID string, file *lore.SourceFile) []*lore.ContentChunk {
	lines := strings.Split(file.Body, "\n")

	sections := []*section{{}}
	sawHeading := false

	for _, line := range lines {
		if match := headingPattern.FindStringSubmatch(line); match != nil && len(match[1]) <= 2 {
			sawHeading = true
			sections = append(sections, &section{title: strings.TrimSpace(match[2])})
			continue
		}
		cur := sections[len(sections)-1]
		cur.content.WriteString(line)
		cur.content.WriteString("\n")
	}

	if !sawHeading {
		// No chunk-level headings: the entire body is one chunk titled from
		// the file's own title.
		return c.buildChunks(packID, file, []*section{{
			title:   file.Title,
			content: sections[0].content,
		}}, false)
	}

	return c.buildChunks(packID, file, sections, true)
}

// buildChunks turns sections into chunks, eliding empty ones. The untitled
// leading region becomes an overview chunk only if the file gives it a title
// to carry; a title-only heading section matching the document title is kept
// as the overview even with no body.
func (c *Chunker) buildChunks(packID string, file *lore.SourceFile, sections []*section, headed bool) []*lore.ContentChunk {
	fileIdent := fileIdentifier(file)
	chunks := make([]*lore.ContentChunk, 0, len(sections))

	for i, sec := range sections {
		title := sec.title
		content := strings.TrimSpace(sec.content.String())

		if headed && i == 0 {
			if content == "" {
				continue
			}
			if file.Title == "" {
				c.logger.Debug("dropping untitled leading region",
					slog.String("pack_id", packID),
					slog.String("file", file.Path))
				continue
			}
			title = file.Title
		}

		if content == "" {
			if title == "" || !strings.EqualFold(title, strings.TrimSpace(file.Title)) {
				continue
			}
			// Title-only section: the document title itself is the overview.
			content = title
		}

		chunks = append(chunks, c.buildChunk(packID, fileIdent, title, content, file))
	}

	return chunks
}

// buildChunk assembles a single chunk record from a section.
func (c *Chunker) buildChunk(packID, fileIdent, title, content string, file *lore.SourceFile) *lore.ContentChunk {
	chunkType := lore.ParseChunkType(file.Type)

	tags := lore.NewOrderedSet(file.Tags...)
	tags.Add(string(chunkType))

	refs := lore.NewOrderedSet(file.EntityRefs...)
	refs.Add(file.EntityID)

	metadata := make(map[string]string, len(file.Frontmatter)+2)
	for k, v := range file.Frontmatter {
		if k == "tags" || k == "entity_refs" {
			continue
		}
		metadata[k] = v
	}
	metadata["file_type"] = file.Type
	metadata["source_file"] = file.Path

	return &lore.ContentChunk{
		ID:            lore.ChunkID(packID, fileIdent, title),
		PackID:        packID,
		FilePath:      file.Path,
		SectionTitle:  title,
		Content:       content,
		Type:          chunkType,
		EntityRefs:    refs.Values(),
		Tags:          tags.Values(),
		Metadata:      metadata,
		TokenEstimate: lore.EstimateTokens(content),
	}
}

// fileIdentifier picks the stable identity the file slug derives from:
// the document title, falling back to the entity id, then the file path
// stem. Chunk ids stay stable as long as this identity does.
func fileIdentifier(file *lore.SourceFile) string {
	if strings.TrimSpace(file.Title) != "" {
		return file.Title
	}
	if file.EntityID != "" {
		return file.EntityID
	}
	base := file.Path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".md")
}
