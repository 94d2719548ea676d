package retrieve

import (
	"context"
	"strings"

	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/store"
)

// Entity-scoped retrieval budgets, used for on-demand NPC introductions.
const (
	EntityMaxTokens = 800
	EntityMaxChunks = 5
)

// maxInputKeywords caps how many player-input tokens feed the keyword list.
const maxInputKeywords = 5

// semanticEntityNames caps how many entity names feed the semantic text.
const semanticEntityNames = 3

var inputStopWords = store.BuildStopWordMap(store.DefaultProseStopWords)

// BuildQuery derives a LoreQuery from game-state signals: the scene's
// location, the present entities, the active threads, and free-text
// player input.
func BuildQuery(scene lore.SceneState, entities []lore.EntityState, threads []lore.ThreadState, packIDs []string) lore.LoreQuery {
	keywords := lore.NewOrderedSet()
	entityIDs := lore.NewOrderedSet()

	if scene.LocationID != "" {
		keywords.Add(HumanizeID(scene.LocationID))
		entityIDs.Add(scene.LocationID)
	}
	for _, e := range entities {
		keywords.Add(e.Name)
		entityIDs.Add(e.ID)
	}
	for _, t := range threads {
		keywords.Add(t.Title)
		entityIDs.AddAll(t.RelatedEntityIDs)
	}
	keywords.AddAll(inputKeywords(scene.PlayerInput))

	return lore.LoreQuery{
		Keywords:     keywords.Values(),
		EntityIDs:    entityIDs.Values(),
		PackIDs:      packIDs,
		SemanticText: buildSemanticText(scene, entities),
	}.Normalize()
}

// RetrieveForScene builds a query from the scene state and executes it.
func (r *Retriever) RetrieveForScene(ctx context.Context, scene lore.SceneState, entities []lore.EntityState, threads []lore.ThreadState, packIDs []string) (*lore.RetrievalResult, error) {
	return r.Retrieve(ctx, BuildQuery(scene, entities, threads, packIDs))
}

// RetrieveForEntity runs a narrow, low-budget query for one entity, used
// for on-demand NPC introductions. Pack scope is optional; without one
// the entity-ref stage is skipped and the manifest and keyword stages
// carry the lookup.
func (r *Retriever) RetrieveForEntity(ctx context.Context, entityID string, packIDs ...string) (*lore.RetrievalResult, error) {
	return r.Retrieve(ctx, lore.LoreQuery{
		Keywords:  []string{HumanizeID(entityID)},
		EntityIDs: []string{entityID},
		PackIDs:   packIDs,
		MaxTokens: EntityMaxTokens,
		MaxChunks: EntityMaxChunks,
	})
}

// HumanizeID turns an entity id into its human-readable form:
// "neon_dragon" becomes "neon dragon".
func HumanizeID(id string) string {
	out := strings.ReplaceAll(id, "_", " ")
	out = strings.ReplaceAll(out, "-", " ")
	return strings.TrimSpace(out)
}

// inputKeywords extracts up to maxInputKeywords retrieval-worthy tokens
// from free-text player input: lowercased, longer than two characters,
// and not stop words.
func inputKeywords(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	tokens := store.TokenizeProse(input, 3)
	out := make([]string, 0, maxInputKeywords)
	seen := make(map[string]struct{}, maxInputKeywords)
	for _, tok := range tokens {
		if _, stop := inputStopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == maxInputKeywords {
			break
		}
	}
	return out
}

// buildSemanticText assembles the vector-search text from the location,
// the first few entity names, and the raw player input.
func buildSemanticText(scene lore.SceneState, entities []lore.EntityState) string {
	var parts []string
	if scene.LocationID != "" {
		parts = append(parts, HumanizeID(scene.LocationID))
	}
	for i, e := range entities {
		if i == semanticEntityNames {
			break
		}
		if e.Name != "" {
			parts = append(parts, e.Name)
		}
	}
	if scene.PlayerInput != "" {
		parts = append(parts, scene.PlayerInput)
	}
	return strings.Join(parts, " ")
}
