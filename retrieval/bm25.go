package retrieval

import "context"

// bm25Search runs the BM25 arm over chunks_fts, the chunk-text index.
func (e *Engine) bm25Search(ctx context.Context, query string, phrase bool, limit int, documentFilter []string) ([]Result, error) {
	hits, err := e.store.FTSSearch(ctx, query, phrase, limit, documentFilter)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{ChunkID: h.ChunkID, DocumentID: h.DocumentID, Text: h.Text, Score: h.Score}
	}
	return out, nil
}

// SearchExtractions runs BM25 over extractions_fts, the structured
// extraction/VLM description index analogous to chunks_fts. It is not
// fused into Search's hybrid score, since extractions have no chunk_id
// of their own to key a fused result on; callers that need cross-arm
// fusion over extractions would need their own ExtractionID-keyed
// fuseRRF pass.
func (e *Engine) SearchExtractions(ctx context.Context, query string, phrase bool, limit int) ([]Result, error) {
	hits, err := e.store.ExtractionsFTSSearch(ctx, query, phrase, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{ChunkID: h.ExtractionID, DocumentID: h.DocumentID, Text: h.Data, Score: h.Score}
	}
	return out, nil
}
