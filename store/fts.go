package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/danvers-labs/provkg/hashid"
)

// FTSResult is one BM25 hit.
type FTSResult struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64 // higher is better; SQLite's bm25() returns lower-is-better, inverted here
	Rank       int
}

// FTSSearch runs a BM25 query over chunks_fts. phrase selects exact
// multi-word phrase matching; otherwise a bag-of-words OR query is used.
// documentFilter restricts to a document id set when non-empty.
func (s *Store) FTSSearch(ctx context.Context, query string, phrase bool, limit int, documentFilter []string) ([]FTSResult, error) {
	ftsQuery := query
	if phrase {
		ftsQuery = `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	}

	sqlQuery := `
		SELECT c.id, c.document_id, c.text, bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
	`
	args := []any{ftsQuery}
	if len(documentFilter) > 0 {
		sqlQuery += ` AND c.document_id IN (` + repeatPlaceholders(len(documentFilter)) + `)`
		args = append(args, stringsToArgs(documentFilter)...)
	}
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("store: fts search: %w", err)
	}
	defer rows.Close()

	var out []FTSResult
	rank := 1
	for rows.Next() {
		var r FTSResult
		var bm25Rank float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Text, &bm25Rank); err != nil {
			return nil, fmt.Errorf("store: scan fts result: %w", err)
		}
		// bm25() returns a negative-is-better score in SQLite's convention;
		// invert so higher means more relevant, matching the rest of the
		// retrieval engine's score direction.
		r.Score = -bm25Rank
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExtractionFTSResult is one BM25 hit over structured extraction data
// (form fills, VLM descriptions), the index analogous to chunks_fts.
type ExtractionFTSResult struct {
	ExtractionID string
	DocumentID   string
	Data         string
	Score        float64
	Rank         int
}

// ExtractionsFTSSearch runs a BM25 query over extractions_fts, the
// structured-extraction analog of FTSSearch.
func (s *Store) ExtractionsFTSSearch(ctx context.Context, query string, phrase bool, limit int) ([]ExtractionFTSResult, error) {
	ftsQuery := query
	if phrase {
		ftsQuery = `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT x.id, x.document_id, x.data, bm25(extractions_fts) AS rank
		FROM extractions_fts
		JOIN extractions x ON x.rowid = extractions_fts.rowid
		WHERE extractions_fts MATCH ?
		ORDER BY rank LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("store: extractions fts search: %w", err)
	}
	defer rows.Close()

	var out []ExtractionFTSResult
	rank := 1
	for rows.Next() {
		var r ExtractionFTSResult
		var bm25Rank float64
		if err := rows.Scan(&r.ExtractionID, &r.DocumentID, &r.Data, &bm25Rank); err != nil {
			return nil, fmt.Errorf("store: scan extraction fts result: %w", err)
		}
		r.Score = -bm25Rank
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}

// RebuildFTS drops and repopulates chunks_fts from the chunks table and
// refreshes its metadata row (last_rebuild_at, rows_indexed, content_hash
// over the indexed row ids).
func (s *Store) RebuildFTS(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO chunks_fts(chunks_fts) VALUES ('rebuild')`); err != nil {
			return fmt.Errorf("store: rebuild chunks_fts: %w", err)
		}

		rows, err := tx.Query(`SELECT id FROM chunks ORDER BY id`)
		if err != nil {
			return fmt.Errorf("store: list chunk ids for fts hash: %w", err)
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()

		hashParts := make([][]byte, len(ids))
		for i, id := range ids {
			hashParts[i] = []byte(id)
		}
		contentHash := hashid.CompositeHash(hashParts...)

		_, err = tx.Exec(`
			INSERT INTO fts_metadata (index_name, last_rebuild_at, rows_indexed, tokenizer, schema_version, content_hash)
			VALUES ('chunks_fts', ?, ?, 'porter unicode61', 1, ?)
			ON CONFLICT(index_name) DO UPDATE SET
				last_rebuild_at = excluded.last_rebuild_at,
				rows_indexed = excluded.rows_indexed,
				content_hash = excluded.content_hash
		`, time.Now().UTC().Format("2006-01-02 15:04:05"), len(ids), contentHash)
		return err
	})
}

// FTSStatus is the current bookkeeping state of one FTS index.
type FTSStatus struct {
	IndexName     string
	LastRebuildAt *time.Time
	RowsIndexed   int
	Tokenizer     string
	SchemaVersion int
	ContentHash   *string
	Stale         bool
}

// GetFTSStatus reports an index's bookkeeping row plus whether it is stale
// relative to the live chunks table (by row count and composite hash).
func (s *Store) GetFTSStatus(ctx context.Context, indexName string) (*FTSStatus, error) {
	var st FTSStatus
	var lastRebuild, contentHash sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT index_name, last_rebuild_at, rows_indexed, tokenizer, schema_version, content_hash
		FROM fts_metadata WHERE index_name = ?
	`, indexName).Scan(&st.IndexName, &lastRebuild, &st.RowsIndexed, &st.Tokenizer, &st.SchemaVersion, &contentHash)
	if err != nil {
		return nil, fmt.Errorf("store: fts status: %w", err)
	}
	if lastRebuild.Valid {
		if t, err := time.Parse("2006-01-02 15:04:05", lastRebuild.String); err == nil {
			st.LastRebuildAt = &t
		}
	}
	if contentHash.Valid {
		st.ContentHash = &contentHash.String
	}

	var liveCount int
	var ids []string
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: fts status live count: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
		liveCount++
	}
	rows.Close()

	hashParts := make([][]byte, len(ids))
	for i, id := range ids {
		hashParts[i] = []byte(id)
	}
	liveHash := hashid.CompositeHash(hashParts...)
	st.Stale = st.ContentHash == nil || *st.ContentHash != liveHash || st.RowsIndexed != liveCount
	return &st, nil
}
