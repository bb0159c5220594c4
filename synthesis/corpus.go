package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

// keyActor is one entry of Tier 1's key_actors output.
type keyActor struct {
	Name       string `json:"name"`
	Importance int    `json:"importance"`
}

type corpusResponse struct {
	Summary       string     `json:"summary"`
	KeyActors     []keyActor `json:"key_actors"`
	Themes        []string   `json:"themes"`
	NarrativeArcs []string   `json:"narrative_arcs"`
}

// CorpusIntelligence runs Tier 1: one database-wide record synthesized
// from the entity census (type -> top N nodes by importance/mention,
// flattened with aliases).
func CorpusIntelligence(ctx context.Context, s *store.Store, p ai.Provider, opts Options) (*store.CorpusIntelligence, error) {
	census, err := s.EntityCensus(ctx, opts.censusTopN())
	if err != nil {
		return nil, fmt.Errorf("synthesis: load entity census: %w", err)
	}
	if len(census) == 0 {
		return nil, nil
	}

	var lines []string
	for _, c := range census {
		entry := fmt.Sprintf("- [%s] %s", c.EntityType, c.CanonicalName)
		if len(c.Aliases) > 0 {
			entry += fmt.Sprintf(" (aka %s)", strings.Join(c.Aliases, ", "))
		}
		lines = append(lines, entry)
	}

	prompt := fmt.Sprintf(`Given the following entity census from a document corpus, produce a JSON object with:
- "summary": a 2-3 sentence overview of the corpus
- "key_actors": up to 20 entries {"name": <canonical_name>, "importance": <1-20, 20 highest>}
- "themes": 3-8 short theme strings
- "narrative_arcs": 1-5 short narrative arc strings

Reference entities by their exact canonical name as listed. Respond with JSON only.

Entity census:
%s`, strings.Join(lines, "\n"))

	resp, err := p.Chat(ctx, ai.ChatRequest{
		Messages:       []ai.Message{{Role: "user", Content: prompt}},
		Temperature:    0.2,
		ResponseFormat: "json_object",
	})
	if err != nil {
		slog.Warn("synthesis: corpus intelligence call failed", "error", err)
		return nil, fmt.Errorf("synthesis: corpus intelligence: %w", err)
	}

	var parsed corpusResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("synthesis: parse corpus intelligence response: %w", err)
	}

	keyActorsJSON, _ := json.Marshal(parsed.KeyActors)
	themesJSON, _ := json.Marshal(parsed.Themes)
	arcsJSON, _ := json.Marshal(parsed.NarrativeArcs)

	recID := hashid.NewID()
	prov := &store.Provenance{
		ID: recID, Kind: store.KindCorpusIntel, RootDocumentID: recID,
		ContentHash: hashid.HashText(parsed.Summary), Processor: "synthesis.corpus_intelligence",
	}
	rec := &store.CorpusIntelligence{
		ID: recID, Summary: parsed.Summary,
		KeyActors: string(keyActorsJSON), Themes: string(themesJSON), NarrativeArcs: string(arcsJSON),
	}
	if err := s.InsertCorpusIntelligence(ctx, rec, prov); err != nil {
		return nil, fmt.Errorf("synthesis: persist corpus intelligence: %w", err)
	}

	slog.Info("synthesis: corpus intelligence complete", "entities_considered", len(census), "key_actors", len(parsed.KeyActors))
	return rec, nil
}
