package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fablekit/lorekit/internal/lore"
)

// previewLen caps how much chunk content the search listing shows.
const previewLen = 160

// Renderer writes formatted command output.
type Renderer struct {
	w      io.Writer
	styles Styles
}

// NewRenderer creates a renderer for w, choosing styles from the color
// decision for that writer.
func NewRenderer(w io.Writer, noColor bool) *Renderer {
	return &Renderer{
		w:      w,
		styles: GetStyles(!ShouldColor(noColor, w)),
	}
}

// Result prints a retrieval result as a chunk listing.
func (r *Renderer) Result(result *lore.RetrievalResult) {
	s := r.styles
	fmt.Fprintln(r.w, s.Header.Render(fmt.Sprintf("%d chunks, ~%d tokens",
		len(result.Chunks), result.TotalTokens)))

	for i, c := range result.Chunks {
		fmt.Fprintf(r.w, "\n%s %s\n",
			s.Dim.Render(fmt.Sprintf("%d.", i+1)),
			s.Title.Render(c.SectionTitle))
		fmt.Fprintf(r.w, "   %s %s  %s %s  %s %s\n",
			s.Label.Render("pack:"), s.Value.Render(c.PackID),
			s.Label.Render("type:"), s.Value.Render(string(c.Type)),
			s.Label.Render("tokens:"), s.Value.Render(fmt.Sprintf("%d", c.TokenEstimate)))
		if len(c.EntityRefs) > 0 {
			fmt.Fprintf(r.w, "   %s %s\n",
				s.Label.Render("entities:"), s.Value.Render(strings.Join(c.EntityRefs, ", ")))
		}
		fmt.Fprintf(r.w, "   %s\n", preview(c.Content))
	}
}

// Packs prints the installed pack listing with per-pack chunk counts.
func (r *Renderer) Packs(manifests []*lore.PackManifest, chunkCounts map[string]int) {
	s := r.styles
	if len(manifests) == 0 {
		fmt.Fprintln(r.w, s.Dim.Render("no packs indexed"))
		return
	}
	for _, m := range manifests {
		fmt.Fprintf(r.w, "%s %s\n",
			s.Title.Render(m.ID),
			s.Dim.Render(fmt.Sprintf("(%s, v%s)", m.Layer, m.Version)))
		fmt.Fprintf(r.w, "  %s %s  %s %d\n",
			s.Label.Render("name:"), s.Value.Render(m.Name),
			s.Label.Render("chunks:"), chunkCounts[m.ID])
	}
}

// Stats prints the aggregate index statistics.
func (r *Renderer) Stats(packs, chunks, documents, vectors int) {
	s := r.styles
	fmt.Fprintln(r.w, s.Header.Render("index statistics"))
	fmt.Fprintf(r.w, "  %s %d\n", s.Label.Render("packs:"), packs)
	fmt.Fprintf(r.w, "  %s %d\n", s.Label.Render("chunks:"), chunks)
	fmt.Fprintf(r.w, "  %s %d\n", s.Label.Render("fulltext docs:"), documents)
	fmt.Fprintf(r.w, "  %s %d\n", s.Label.Render("vectors:"), vectors)
}

// Successf prints a success line.
func (r *Renderer) Successf(format string, args ...any) {
	fmt.Fprintln(r.w, r.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warnf prints a warning line.
func (r *Renderer) Warnf(format string, args ...any) {
	fmt.Fprintln(r.w, r.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf prints an error line.
func (r *Renderer) Errorf(format string, args ...any) {
	fmt.Fprintln(r.w, r.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// preview flattens content to a single line capped at previewLen runes.
func preview(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= previewLen {
		return flat
	}
	return string(runes[:previewLen]) + "..."
}
