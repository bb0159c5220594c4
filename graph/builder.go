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

// FullBuild collects every entity extracted from documentIDs, resolves them
// into knowledge nodes, persists nodes and links, then synthesizes
// co_mentioned/co_located edges over the resulting node universe. It
// creates one KNOWLEDGE_GRAPH provenance record for the run; every node
// carries its own provenance linked to it.
func FullBuild(ctx context.Context, s *store.Store, documentIDs []string, opts Options) (*Result, error) {
	if len(documentIDs) == 0 {
		return &Result{}, nil
	}

	runID := hashid.NewID()
	runProv := &store.Provenance{
		ID: runID, Kind: store.KindKnowledgeGraph, RootDocumentID: documentIDs[0],
		ContentHash: hashid.CompositeHashStrings(documentIDs...), Processor: "graph.full_build",
		ChainDepth: 0,
	}
	if err := s.InsertProvenance(ctx, runProv); err != nil {
		return nil, fmt.Errorf("graph: insert run provenance: %w", err)
	}

	var entities []resolver.Entity
	for _, docID := range documentIDs {
		rows, err := s.ListEntitiesByDocument(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("graph: list entities for %s: %w", docID, err)
		}
		for _, e := range rows {
			entities = append(entities, resolver.Entity{
				ID: e.ID, DocumentID: e.DocumentID, EntityType: similarity.EntityType(e.EntityType),
				RawText: e.RawText, NormalizedText: e.NormalizedText, Confidence: e.Confidence,
			})
		}
	}

	result := &Result{}
	if len(entities) == 0 {
		slog.Info("graph: full build found no entities", "documents", len(documentIDs))
		return result, nil
	}

	res, err := resolver.Resolve(ctx, entities, opts.Mode, opts.Classifier, opts.ClusterContext)
	if err != nil {
		return nil, fmt.Errorf("graph: resolve: %w", err)
	}
	result.ExactMatches = res.ExactMatches
	result.FuzzyMatches = res.FuzzyMatches
	result.AIMatches = res.AIMatches

	nodeIDs, err := persistNodesAndLinks(ctx, s, runID, res)
	if err != nil {
		return nil, err
	}
	result.NodesCreated = len(nodeIDs)

	edgeRes, err := buildEdges(ctx, s, runID, nodeIDs)
	if err != nil {
		return nil, err
	}
	result.EdgesCreated = edgeRes.edgesCreated
	result.SkippedCooccurrence = edgeRes.skipped
	result.SingleDocumentGraph = edgeRes.singleDocumentGraph

	slog.Info("graph: full build complete",
		"documents", len(documentIDs), "entities", len(entities),
		"nodes", result.NodesCreated, "edges", result.EdgesCreated,
		"single_document", result.SingleDocumentGraph)
	return result, nil
}

// persistNodesAndLinks writes every resolver.Node as a knowledge_node (with
// its own provenance parented to the run) and every resolver.Link as a
// node_entity_link. Returns the persisted node ids in resolver.Node order.
func persistNodesAndLinks(ctx context.Context, s *store.Store, runID string, res resolver.Result) ([]string, error) {
	nodeIDs := make([]string, len(res.Nodes))
	for i, n := range res.Nodes {
		nodeID := hashid.NewIDFromSeed(string(n.EntityType), n.NormalizedName, runID)
		nodeProv := &store.Provenance{
			ID: hashid.NewID(), Kind: store.KindKnowledgeGraph, SourceKind: store.KindEntityExtraction,
			RootDocumentID: firstDocumentID(n), ParentID: &runID, ParentIDs: []string{runID},
			ContentHash: hashid.HashText(n.NormalizedName), Processor: "graph.full_build", ChainDepth: 1,
		}
		node := &store.KnowledgeNode{
			ID: nodeID, EntityType: store.EntityType(n.EntityType), CanonicalName: n.CanonicalName,
			NormalizedName: n.NormalizedName, Aliases: n.Aliases, DocumentCount: n.DocumentCount,
			MentionCount: n.MentionCount, AvgConfidence: n.AvgConfidence,
		}
		if err := s.InsertKnowledgeNode(ctx, node, nodeProv); err != nil {
			return nil, fmt.Errorf("graph: insert node %s: %w", n.CanonicalName, err)
		}
		nodeIDs[i] = nodeID
	}

	for _, l := range res.Links {
		link := &store.NodeEntityLink{
			ID: hashid.NewID(), NodeID: nodeIDs[l.NodeIndex], EntityID: l.EntityID,
			DocumentID: l.DocumentID, SimilarityScore: l.SimilarityScore, ResolutionMethod: l.ResolutionMethod,
		}
		if err := s.InsertNodeEntityLink(ctx, link); err != nil {
			return nil, fmt.Errorf("graph: insert link for entity %s: %w", l.EntityID, err)
		}
	}
	return nodeIDs, nil
}

func firstDocumentID(n resolver.Node) string {
	if len(n.Members) == 0 {
		return ""
	}
	return n.Members[0].DocumentID
}
