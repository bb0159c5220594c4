package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/store"
)

// CrossDocumentSynthesis runs the relationship-inference step over every
// multi-document node and the concatenation of their documents'
// narratives. Returns the number of edges created.
func CrossDocumentSynthesis(ctx context.Context, s *store.Store, p ai.Provider) (int, error) {
	nodes, err := s.ListMultiDocumentNodes(ctx)
	if err != nil {
		return 0, fmt.Errorf("synthesis: list multi-document nodes: %w", err)
	}
	if len(nodes) == 0 {
		return 0, nil
	}

	var rosterLines []string
	var docIDs []string
	seenDocs := make(map[string]bool)
	for _, n := range nodes {
		rosterLines = append(rosterLines, fmt.Sprintf("- %s (%s)", n.CanonicalName, n.EntityType))
		docs, err := s.NodeDocumentIDs(ctx, n.ID)
		if err != nil {
			return 0, fmt.Errorf("synthesis: node document ids: %w", err)
		}
		for _, d := range docs {
			if !seenDocs[d] {
				seenDocs[d] = true
				docIDs = append(docIDs, d)
			}
		}
	}

	narratives, err := s.ListDocumentNarratives(ctx, docIDs)
	if err != nil {
		return 0, fmt.Errorf("synthesis: load narratives for cross-document synthesis: %w", err)
	}
	var narrativeText []string
	for _, n := range narratives {
		narrativeText = append(narrativeText, n.Narrative)
	}

	prompt := fmt.Sprintf(`Given the concatenation of document narratives below and the list of entities that appear in
more than one document, list the typed relationships between those entities that span documents (excluding
co-mention or co-location). Respond with a JSON array of objects:
{"source": <entity name>, "target": <entity name>, "type": <relationship type>, "confidence": <0.0-1.0>,
"evidence": <1-2 sentence justification>}

Document narratives:
%s

Multi-document entities:
%s

Respond with JSON only.`, strings.Join(narrativeText, "\n\n"), strings.Join(rosterLines, "\n"))

	resp, err := p.Chat(ctx, ai.ChatRequest{
		Messages:       []ai.Message{{Role: "user", Content: prompt}},
		Temperature:    0.2,
		ResponseFormat: "json_object",
	})
	if err != nil {
		slog.Warn("synthesis: cross-document synthesis call failed", "error", err)
		return 0, fmt.Errorf("synthesis: cross-document synthesis: %w", err)
	}

	var rels []inferredRelationship
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &rels); err != nil {
		return 0, fmt.Errorf("synthesis: parse cross-document synthesis response: %w", err)
	}

	created, err := persistInferredRelationships(ctx, s, docIDs, rels, "cross_document")
	if err != nil {
		return created, err
	}
	slog.Info("synthesis: cross-document synthesis complete", "nodes_considered", len(nodes), "edges_created", created)
	return created, nil
}
