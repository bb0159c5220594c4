package retrieval

import (
	"context"

	"github.com/danvers-labs/provkg/store"
)

// RebuildFTS drops and repopulates the chunk text index, refreshing its
// bookkeeping row (last_rebuild_at, rows_indexed, content_hash).
func (e *Engine) RebuildFTS(ctx context.Context) error {
	return e.store.RebuildFTS(ctx)
}

// FTSStatus reports the chunk text index's current bookkeeping state,
// including whether it has drifted stale relative to the live chunks
// table. The extractions_fts index (wired via SearchExtractions) carries
// no bookkeeping row of its own — structured extractions are a much
// smaller, append-mostly table, and only the chunk index needs staleness
// tracking.
func (e *Engine) FTSStatus(ctx context.Context) (*store.FTSStatus, error) {
	return e.store.GetFTSStatus(ctx, "chunks_fts")
}
