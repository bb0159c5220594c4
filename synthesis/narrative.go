package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/errs"
	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

type rosterEntry struct {
	entity  *store.Entity
	mentions int
}

func buildRoster(s *store.Store, ctx context.Context, documentID string, limit int) ([]rosterEntry, error) {
	entities, err := s.ListEntitiesByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("synthesis: list entities for roster: %w", err)
	}
	counts, err := s.EntityMentionCounts(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("synthesis: mention counts for roster: %w", err)
	}
	roster := make([]rosterEntry, 0, len(entities))
	for _, e := range entities {
		roster = append(roster, rosterEntry{entity: e, mentions: counts[e.ID]})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].mentions > roster[j].mentions })
	if len(roster) > limit {
		roster = roster[:limit]
	}
	return roster, nil
}

// DocumentNarrative runs the first half of Tier 2: a 2-4 paragraph
// narrative (capped at 2000 characters) synthesized from the document's
// OCR text, its entity roster, and Tier-1 context if present.
func DocumentNarrative(ctx context.Context, s *store.Store, p ai.Provider, documentID string, opts Options) (*store.DocumentNarrative, error) {
	ocr, err := s.GetOCRResultByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("synthesis: load ocr text for %s: %w", documentID, err)
	}
	roster, err := buildRoster(s, ctx, documentID, opts.rosterLimit())
	if err != nil {
		return nil, err
	}

	var rosterLines []string
	for _, r := range roster {
		rosterLines = append(rosterLines, fmt.Sprintf("- %s (%s, mentioned %d times)", r.entity.RawText, r.entity.EntityType, r.mentions))
	}

	var corpusContext string
	if ci, err := s.LatestCorpusIntelligence(ctx); err == nil {
		corpusContext = "\n\nCorpus context: " + ci.Summary
	} else if !errs.Is(err, errs.CategoryNotFound) {
		return nil, fmt.Errorf("synthesis: load corpus context: %w", err)
	}

	text := truncateRunes(ocr.ExtractedText, opts.narrativeCharLimit())
	prompt := fmt.Sprintf(`Write a 2-4 paragraph narrative (under 2000 characters) summarizing this document.

Document text:
%s

Entity roster:
%s%s

Respond with plain text only, no JSON, no markdown.`, text, strings.Join(rosterLines, "\n"), corpusContext)

	resp, err := p.Chat(ctx, ai.ChatRequest{
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	})
	if err != nil {
		slog.Warn("synthesis: document narrative call failed", "document_id", documentID, "error", err)
		return nil, fmt.Errorf("synthesis: document narrative: %w", err)
	}

	narrative := truncateRunes(strings.TrimSpace(resp.Content), 2000)

	recID := hashid.NewIDFromSeed("narrative", documentID)
	prov := &store.Provenance{
		ID: recID, Kind: store.KindCorpusIntel, RootDocumentID: documentID,
		ContentHash: hashid.HashText(narrative), Processor: "synthesis.document_narrative",
	}
	rec := &store.DocumentNarrative{ID: recID, DocumentID: documentID, Narrative: narrative}
	if err := s.InsertDocumentNarrative(ctx, rec, prov); err != nil {
		return nil, fmt.Errorf("synthesis: persist document narrative: %w", err)
	}

	slog.Info("synthesis: document narrative complete", "document_id", documentID, "roster_size", len(roster))
	return rec, nil
}

// inferredRelationship is one entry of the relationship-inference
// response.
type inferredRelationship struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// InferRelationships runs the second half of Tier 2: a typed-relationship
// prompt over the document's narrative and roster, excluding
// co_mentioned/co_located. Each resolved triple becomes a knowledge edge
// with metadata.source=ai_synthesis, metadata.synthesis_level=document.
// Returns the number of edges created.
func InferRelationships(ctx context.Context, s *store.Store, p ai.Provider, documentID string, opts Options) (int, error) {
	roster, err := buildRoster(s, ctx, documentID, opts.rosterLimit())
	if err != nil {
		return 0, err
	}
	narrative, err := s.GetDocumentNarrative(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("synthesis: load narrative before relationship inference: %w", err)
	}

	var rosterLines []string
	for _, r := range roster {
		rosterLines = append(rosterLines, fmt.Sprintf("- %s (%s)", r.entity.RawText, r.entity.EntityType))
	}

	prompt := fmt.Sprintf(`Given this document narrative and entity roster, list the typed relationships between entities
(excluding simple co-mention or co-location). Respond with a JSON array of objects:
{"source": <entity name>, "target": <entity name>, "type": <relationship type, e.g. works_at, represents, located_in,
filed_in, cites, references, party_to, related_to, precedes, occurred_at, diagnosed_with, treated_with, supervised_by>,
"confidence": <0.0-1.0>, "evidence": <1-2 sentence justification>}

Narrative:
%s

Entity roster:
%s

Respond with JSON only.`, narrative.Narrative, strings.Join(rosterLines, "\n"))

	resp, err := p.Chat(ctx, ai.ChatRequest{
		Messages:       []ai.Message{{Role: "user", Content: prompt}},
		Temperature:    0.2,
		ResponseFormat: "json_object",
	})
	if err != nil {
		slog.Warn("synthesis: relationship inference call failed", "document_id", documentID, "error", err)
		return 0, fmt.Errorf("synthesis: relationship inference: %w", err)
	}

	var rels []inferredRelationship
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &rels); err != nil {
		return 0, fmt.Errorf("synthesis: parse relationship inference response: %w", err)
	}

	return persistInferredRelationships(ctx, s, []string{documentID}, rels, "document")
}

// persistInferredRelationships resolves each triple's entity names to
// nodes, drops the triple if the (src, tgt, type) edge or its reverse
// already exists, and otherwise stores a new ai_synthesis edge.
func persistInferredRelationships(ctx context.Context, s *store.Store, documentIDs []string, rels []inferredRelationship, level string) (int, error) {
	created := 0
	for _, rel := range rels {
		srcNode, err := s.FindNodeByNameOrAlias(ctx, normalizeNodeName(rel.Source))
		if err != nil {
			slog.Warn("synthesis: unresolved relationship source", "name", rel.Source, "error", err)
			continue
		}
		tgtNode, err := s.FindNodeByNameOrAlias(ctx, normalizeNodeName(rel.Target))
		if err != nil {
			slog.Warn("synthesis: unresolved relationship target", "name", rel.Target, "error", err)
			continue
		}
		relType := store.RelationshipType(rel.Type)

		exists, err := s.EdgeExists(ctx, srcNode.ID, tgtNode.ID, relType)
		if err != nil {
			return created, fmt.Errorf("synthesis: check edge existence: %w", err)
		}
		if exists {
			continue
		}

		metadata, err := json.Marshal(map[string]any{
			"source":          "ai_synthesis",
			"synthesis_level": level,
			"evidence":        rel.Evidence,
		})
		if err != nil {
			return created, err
		}

		rootDocID := ""
		if len(documentIDs) > 0 {
			rootDocID = documentIDs[0]
		}
		edgeID := hashid.NewIDFromSeed(append([]string{"ai_edge", srcNode.ID, tgtNode.ID, rel.Type}, documentIDs...)...)
		prov := &store.Provenance{
			ID: edgeID, Kind: store.KindKnowledgeGraph, RootDocumentID: rootDocID,
			ContentHash: hashid.CompositeHashStrings(srcNode.ID, tgtNode.ID, rel.Type),
			Processor:   "synthesis.relationship_inference",
		}
		edge := &store.KnowledgeEdge{
			ID: edgeID, SourceNodeID: srcNode.ID, TargetNodeID: tgtNode.ID,
			RelationshipType: relType, Weight: clampConfidence(rel.Confidence),
			EvidenceCount: 1, DocumentIDs: documentIDs, Metadata: string(metadata),
		}
		if err := s.UpsertKnowledgeEdge(ctx, edge, prov); err != nil {
			return created, fmt.Errorf("synthesis: persist inferred edge: %w", err)
		}
		created++
	}
	return created, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
