package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// InsertChunk creates a chunk row and its provenance record. Enforces
// character_end >= character_start and chunk_index >= 0, and that prov's
// source is the OCR_RESULT the chunk was split from.
func (s *Store) InsertChunk(ctx context.Context, c *Chunk, prov *Provenance) error {
	if c.CharacterEnd < c.CharacterStart {
		return errs.Validation("chunk character_end (%d) must be >= character_start (%d)", c.CharacterEnd, c.CharacterStart)
	}
	if c.ChunkIndex < 0 {
		return errs.Validation("chunk_index must be >= 0, got %d", c.ChunkIndex)
	}
	if prov.Kind != KindChunk || prov.SourceKind != KindOCRResult {
		return errs.Validation("chunk provenance must have kind CHUNK with source_kind OCR_RESULT")
	}
	c.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO chunks (
				id, document_id, ocr_result_id, text, text_hash, chunk_index,
				character_start, character_end, page_number, overlap_previous,
				overlap_next, provenance_id, embedding_status
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		`, c.ID, c.DocumentID, c.OCRResultID, c.Text, c.TextHash, c.ChunkIndex,
			c.CharacterStart, c.CharacterEnd, c.PageNumber, c.OverlapPrevious,
			c.OverlapNext, c.ProvenanceID, c.EmbeddingStatus)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(c.ID, err)
			}
			return fmt.Errorf("store: insert chunk %s: %w", c.ID, err)
		}
		return nil
	})
}

// GetChunk fetches a chunk by id.
func (s *Store) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("chunk %s not found", id)
	}
	return c, err
}

// ListChunksByDocument returns every chunk for a document in chunk_index
// order.
func (s *Store) ListChunksByDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE document_id = ? ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: list chunks: %w", err)
	}
	defer rows.Close()
	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateChunkEmbeddingStatus transitions a chunk's embedding_status.
func (s *Store) UpdateChunkEmbeddingStatus(ctx context.Context, chunkID string, status EmbeddingStatus) error {
	switch status {
	case EmbeddingPending, EmbeddingComplete, EmbeddingFailed:
	default:
		return errs.Validation("invalid embedding status %q", status)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE chunks SET embedding_status = ? WHERE id = ?`, status, chunkID)
		if err != nil {
			return fmt.Errorf("store: update chunk embedding status: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return errs.NotFound("chunk %s not found", chunkID)
		}
		return nil
	})
}

const chunkSelect = `
	SELECT id, document_id, ocr_result_id, text, text_hash, chunk_index,
		character_start, character_end, page_number, overlap_previous,
		overlap_next, provenance_id, embedding_status
	FROM chunks
`

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var pageNumber sql.NullInt64
	err := row.Scan(&c.ID, &c.DocumentID, &c.OCRResultID, &c.Text, &c.TextHash, &c.ChunkIndex,
		&c.CharacterStart, &c.CharacterEnd, &pageNumber, &c.OverlapPrevious,
		&c.OverlapNext, &c.ProvenanceID, &c.EmbeddingStatus)
	if err != nil {
		return nil, err
	}
	if pageNumber.Valid {
		v := int(pageNumber.Int64)
		c.PageNumber = &v
	}
	return &c, nil
}
