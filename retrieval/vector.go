package retrieval

import (
	"context"
	"fmt"
)

// vectorSearch embeds the query (task_type=search_query is the embedding
// collaborator's concern, not this engine's) and runs cosine nearest-
// neighbor search over the vector index.
func (e *Engine) vectorSearch(ctx context.Context, query string, k int, documentFilter []string) ([]Result, error) {
	if e.embedder == nil {
		return nil, nil
	}
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("retrieval: empty query embedding")
	}

	hits, err := e.store.VectorSearch(ctx, vecs[0], k, documentFilter)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.ChunkID == nil {
			continue // image/extraction embeddings carry no chunk text to fuse on
		}
		chunk, err := e.store.GetChunk(ctx, *h.ChunkID)
		if err != nil {
			continue
		}
		// sqlite-vec's distance is lower-is-better; invert so higher
		// means more relevant, matching the rest of the engine.
		out = append(out, Result{ChunkID: chunk.ID, DocumentID: chunk.DocumentID, Text: chunk.Text, Score: -h.Distance})
	}
	return out, nil
}
