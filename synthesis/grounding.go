package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/danvers-labs/provkg/store"
)

const maxGroundingChunks = 5

// GroundEvidence runs Tier 3: for each ai_synthesis edge, fetch up to 5
// chunks where both endpoints co-occur, annotate the edge's metadata with
// the chunk ids, and raise its weight by +0.1 (capped at 1.0). Returns the
// number of edges grounded.
func GroundEvidence(ctx context.Context, s *store.Store) (int, error) {
	edges, err := s.ListEdgesByMetadataSource(ctx, "ai_synthesis")
	if err != nil {
		return 0, fmt.Errorf("synthesis: list ai_synthesis edges: %w", err)
	}

	grounded := 0
	for _, e := range edges {
		chunks, err := s.CooccurringChunks(ctx, e.SourceNodeID, e.TargetNodeID, maxGroundingChunks)
		if err != nil {
			slog.Warn("synthesis: cooccurring chunks lookup failed", "edge_id", e.ID, "error", err)
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		var metadata map[string]any
		if err := json.Unmarshal([]byte(e.Metadata), &metadata); err != nil {
			metadata = map[string]any{}
		}
		metadata["evidence_chunk_ids"] = chunks
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return grounded, err
		}

		newWeight := clampConfidence(e.Weight + 0.1)
		if err := s.UpdateEdgeWeightAndMetadata(ctx, e.ID, newWeight, string(metadataJSON)); err != nil {
			return grounded, fmt.Errorf("synthesis: update edge grounding: %w", err)
		}
		grounded++
	}

	slog.Info("synthesis: evidence grounding complete", "edges_considered", len(edges), "edges_grounded", grounded)
	return grounded, nil
}
