package retrieval

import (
	"context"
	"log/slog"

	"github.com/danvers-labs/provkg/errs"
	"github.com/danvers-labs/provkg/store"
)

// graphSearch resolves query entity names to knowledge nodes (exact match
// then substring match, merged and deduplicated), then returns the chunks
// any of their mentions occur in. Contributes the graph arm of the hybrid
// search's three-way RRF fusion.
func (e *Engine) graphSearch(ctx context.Context, entities []string, limit int) ([]Result, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var nodes []*store.KnowledgeNode

	for _, name := range entities {
		n, err := e.store.FindNodeByNameOrAlias(ctx, name)
		if err != nil {
			if !errs.Is(err, errs.CategoryNotFound) {
				return nil, err
			}
			continue
		}
		if !seen[n.ID] {
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}

	fuzzy, err := e.store.SearchNodesByTerms(ctx, entities, 50)
	if err != nil {
		slog.Warn("retrieval: fuzzy node search failed", "error", err)
	}
	for _, n := range fuzzy {
		if !seen[n.ID] {
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}

	if len(nodes) == 0 {
		return nil, nil
	}

	slog.Debug("retrieval: graph entity lookup", "nodes_matched", len(nodes))

	var chunkIDs []string
	chunkSeen := make(map[string]bool)
	for _, n := range nodes {
		ids, err := e.store.NodeChunkIDs(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !chunkSeen[id] {
				chunkSeen[id] = true
				chunkIDs = append(chunkIDs, id)
			}
		}
		if len(chunkIDs) >= limit {
			break
		}
	}

	out := make([]Result, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if len(out) >= limit {
			break
		}
		c, err := e.store.GetChunk(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, Result{ChunkID: c.ID, DocumentID: c.DocumentID, Text: c.Text})
	}
	return out, nil
}
