package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

// MaxCooccurrenceEntities bounds how many nodes from the touched universe U
// are expanded into pairwise co-occurrence checks per run.
const MaxCooccurrenceEntities = 200

type edgeStats struct {
	edgesCreated        int
	skipped             int
	singleDocumentGraph bool
}

// buildEdges computes co_mentioned/co_located edges over the universe of
// touched nodes. nodeIDs need not be deduplicated; duplicates are harmless
// since the pairwise loop is over indices.
func buildEdges(ctx context.Context, s *store.Store, runID string, nodeIDs []string) (edgeStats, error) {
	var stats edgeStats
	if len(nodeIDs) < 2 {
		return stats, nil
	}

	universe := nodeIDs
	if len(universe) > MaxCooccurrenceEntities {
		stats.skipped = len(universe) - MaxCooccurrenceEntities
		universe = universe[:MaxCooccurrenceEntities]
	}

	docSets := make(map[string]map[string]bool, len(universe))
	chunkSets := make(map[string]map[string]bool, len(universe))
	allDocs := make(map[string]bool)
	for _, id := range universe {
		if _, ok := docSets[id]; ok {
			continue
		}
		docs, err := s.NodeDocumentIDs(ctx, id)
		if err != nil {
			return stats, fmt.Errorf("graph: node document ids for %s: %w", id, err)
		}
		docSets[id] = toSet(docs)
		for _, d := range docs {
			allDocs[d] = true
		}

		chunks, err := s.NodeChunkIDs(ctx, id)
		if err != nil {
			return stats, fmt.Errorf("graph: node chunk ids for %s: %w", id, err)
		}
		chunkSets[id] = toSet(chunks)
	}

	stats.singleDocumentGraph = len(allDocs) <= 1

	for i := 0; i < len(universe); i++ {
		for j := i + 1; j < len(universe); j++ {
			a, b := universe[i], universe[j]
			if a == b {
				continue
			}
			source, target := a, b
			if target < source {
				source, target = target, source
			}

			sharedDocs := intersectSorted(docSets[a], docSets[b])
			sharedChunks := intersectSorted(chunkSets[a], chunkSets[b])

			// coMentionedWeight feeds the co_located weight formula below
			// even when the co_mentioned edge itself is suppressed for a
			// single-document graph.
			var coMentionedWeight float64
			if len(sharedDocs) > 0 {
				maxDocs := len(docSets[a])
				if len(docSets[b]) > maxDocs {
					maxDocs = len(docSets[b])
				}
				coMentionedWeight = round4(float64(len(sharedDocs)) / float64(maxDocs))

				if !stats.singleDocumentGraph {
					prov := &store.Provenance{
						ID: hashid.NewID(), Kind: store.KindKnowledgeGraph,
						RootDocumentID: sharedDocs[0], ParentID: &runID, ParentIDs: []string{runID},
						ContentHash: hashid.HashText(source + "|" + target + "|co_mentioned"),
						Processor:   "graph.edges", ChainDepth: 1,
					}
					edge := &store.KnowledgeEdge{
						ID: hashid.NewID(), SourceNodeID: source, TargetNodeID: target,
						RelationshipType: store.RelCoMentioned, Weight: coMentionedWeight,
						EvidenceCount: len(sharedDocs), DocumentIDs: sharedDocs,
						Metadata: `{"source":"cooccurrence"}`,
					}
					if err := s.UpsertKnowledgeEdge(ctx, edge, prov); err != nil {
						return stats, fmt.Errorf("graph: upsert co_mentioned edge: %w", err)
					}
					stats.edgesCreated++
				}
			}

			if len(sharedChunks) > 0 {
				weight := coMentionedWeight * 1.5
				if weight > 1.0 {
					weight = 1.0
				}
				weight = round4(weight)

				metaBytes, err := json.Marshal(map[string]any{
					"source":           "cooccurrence",
					"shared_chunk_ids": sharedChunks,
				})
				if err != nil {
					return stats, fmt.Errorf("graph: marshal co_located metadata: %w", err)
				}

				rootDoc := firstSorted(docSets[a])
				if rootDoc == "" {
					rootDoc = firstSorted(docSets[b])
				}
				prov := &store.Provenance{
					ID: hashid.NewID(), Kind: store.KindKnowledgeGraph,
					RootDocumentID: rootDoc, ParentID: &runID, ParentIDs: []string{runID},
					ContentHash: hashid.HashText(source + "|" + target + "|co_located"),
					Processor:   "graph.edges", ChainDepth: 1,
				}
				edge := &store.KnowledgeEdge{
					ID: hashid.NewID(), SourceNodeID: source, TargetNodeID: target,
					RelationshipType: store.RelCoLocated, Weight: weight,
					EvidenceCount: len(sharedChunks), DocumentIDs: sharedDocs,
					Metadata: string(metaBytes),
				}
				if err := s.UpsertKnowledgeEdge(ctx, edge, prov); err != nil {
					return stats, fmt.Errorf("graph: upsert co_located edge: %w", err)
				}
				stats.edgesCreated++
			}
		}
	}

	for _, id := range universe {
		if err := s.UpdateNodeEdgeCount(ctx, id); err != nil {
			return stats, fmt.Errorf("graph: update edge count for %s: %w", id, err)
		}
	}

	return stats, nil
}
