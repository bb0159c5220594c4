package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/resolver"
	"github.com/danvers-labs/provkg/similarity"
	"github.com/danvers-labs/provkg/store"
)

// MaxExistingNodes hard-caps how many existing nodes of a type are loaded
// for matching in an incremental build.
const MaxExistingNodes = 10000

// incrementalThreshold is the minimum type-aware similarity for an
// incremental match against an existing node.
const incrementalThreshold = 0.85

// IncrementalBuild links the entities of documents not yet present in the
// graph into existing nodes where possible, falling back to the resolver
// for anything unmatched, then synthesizes edges over the touched node
// universe. Documents already linked are rejected individually; the build
// proceeds over the remainder.
func IncrementalBuild(ctx context.Context, s *store.Store, documentIDs []string, opts Options) (*Result, error) {
	result := &Result{}

	var accepted []string
	for _, docID := range documentIDs {
		linked, err := s.DocumentLinked(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("graph: check document linked %s: %w", docID, err)
		}
		if linked {
			result.RejectedDocuments = append(result.RejectedDocuments, docID)
			continue
		}
		accepted = append(accepted, docID)
	}
	if len(accepted) == 0 {
		return result, nil
	}

	var newEntities []*store.Entity
	for _, docID := range accepted {
		rows, err := s.ListEntitiesByDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("graph: list entities for %s: %w", docID, err)
		}
		newEntities = append(newEntities, rows...)
	}
	if len(newEntities) == 0 {
		return result, nil
	}

	byType := make(map[store.EntityType][]*store.Entity)
	for _, e := range newEntities {
		byType[e.EntityType] = append(byType[e.EntityType], e)
	}

	runID := hashid.NewID()
	runProv := &store.Provenance{
		ID: runID, Kind: store.KindKnowledgeGraph, RootDocumentID: accepted[0],
		ContentHash: hashid.CompositeHashStrings(accepted...), Processor: "graph.incremental_build",
		ChainDepth: 0,
	}
	if err := s.InsertProvenance(ctx, runProv); err != nil {
		return nil, fmt.Errorf("graph: insert run provenance: %w", err)
	}

	touched := make(map[string]bool)
	var unmatched []resolver.Entity

	for entityType, group := range byType {
		existing, err := s.ListKnowledgeNodesByType(ctx, entityType, MaxExistingNodes)
		if err != nil {
			return nil, fmt.Errorf("graph: list existing nodes for %s: %w", entityType, err)
		}

		for _, e := range group {
			match := matchExisting(existing, e, opts.Mode)
			if match == nil {
				unmatched = append(unmatched, resolver.Entity{
					ID: e.ID, DocumentID: e.DocumentID, EntityType: similarity.EntityType(e.EntityType),
					RawText: e.RawText, NormalizedText: e.NormalizedText, Confidence: e.Confidence,
				})
				continue
			}

			method := "exact"
			sim := 1.0
			if e.NormalizedText != match.NormalizedName {
				method = "fuzzy"
				sim = similarity.TypeAware(similarity.EntityType(entityType), e.RawText, match.CanonicalName)
			}
			link := &store.NodeEntityLink{
				ID: hashid.NewID(), NodeID: match.ID, EntityID: e.ID, DocumentID: e.DocumentID,
				SimilarityScore: sim, ResolutionMethod: method,
			}
			if err := s.InsertNodeEntityLink(ctx, link); err != nil {
				return nil, fmt.Errorf("graph: insert incremental link for %s: %w", e.ID, err)
			}
			if err := s.UpdateNodeAggregates(ctx, match.ID, e.RawText); err != nil {
				return nil, fmt.Errorf("graph: update aggregates for %s: %w", match.ID, err)
			}
			touched[match.ID] = true
			if method == "exact" {
				result.ExactMatches++
			} else {
				result.FuzzyMatches++
			}
		}
	}

	if len(unmatched) > 0 {
		res, err := resolver.Resolve(ctx, unmatched, opts.Mode, opts.Classifier, opts.ClusterContext)
		if err != nil {
			return nil, fmt.Errorf("graph: resolve unmatched entities: %w", err)
		}
		result.ExactMatches += res.ExactMatches
		result.FuzzyMatches += res.FuzzyMatches
		result.AIMatches += res.AIMatches

		nodeIDs, err := persistNodesAndLinks(ctx, s, runID, res)
		if err != nil {
			return nil, err
		}
		result.NodesCreated = len(nodeIDs)
		for _, id := range nodeIDs {
			touched[id] = true
		}
	}

	// A touched node's existing, untouched graph neighbors must be
	// re-paired too: their shared docs/chunks with the touched node may
	// have just grown, so their edge weight/evidence_count is stale
	// until they're run back through buildEdges alongside it.
	universeSet := make(map[string]bool, len(touched))
	for id := range touched {
		universeSet[id] = true
	}
	for id := range touched {
		neighbors, err := s.ListEdgesByNode(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("graph: list edges for %s: %w", id, err)
		}
		for _, edge := range neighbors {
			universeSet[edge.SourceNodeID] = true
			universeSet[edge.TargetNodeID] = true
		}
	}

	universe := make([]string, 0, len(universeSet))
	for id := range universeSet {
		universe = append(universe, id)
	}

	edgeRes, err := buildEdges(ctx, s, runID, universe)
	if err != nil {
		return nil, err
	}
	result.EdgesCreated = edgeRes.edgesCreated
	result.SkippedCooccurrence = edgeRes.skipped
	result.SingleDocumentGraph = edgeRes.singleDocumentGraph

	slog.Info("graph: incremental build complete",
		"accepted_documents", len(accepted), "rejected_documents", len(result.RejectedDocuments),
		"new_entities", len(newEntities), "nodes_created", result.NodesCreated,
		"edges_created", result.EdgesCreated)
	return result, nil
}

// matchExisting finds the best existing node matching e: exact normalized-
// text match first; else (unless mode=exact) the highest type-aware
// similarity at or above incrementalThreshold.
func matchExisting(existing []*store.KnowledgeNode, e *store.Entity, mode resolver.Mode) *store.KnowledgeNode {
	for _, n := range existing {
		if n.EntityType == e.EntityType && n.NormalizedName == e.NormalizedText {
			return n
		}
	}
	if mode == resolver.ModeExact {
		return nil
	}

	var best *store.KnowledgeNode
	bestScore := 0.0
	for _, n := range existing {
		if n.EntityType != e.EntityType {
			continue
		}
		sim := similarity.TypeAware(similarity.EntityType(e.EntityType), e.RawText, n.CanonicalName)
		if sim >= incrementalThreshold && sim > bestScore {
			best = n
			bestScore = sim
		}
	}
	return best
}
