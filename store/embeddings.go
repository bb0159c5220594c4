package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// EmbeddingTarget names exactly one of {chunk_id, image_id, extraction_id}
// an embedding belongs to.
type EmbeddingTarget struct {
	ChunkID      *string
	ImageID      *string
	ExtractionID *string
}

func (t EmbeddingTarget) validate() error {
	set := 0
	if t.ChunkID != nil {
		set++
	}
	if t.ImageID != nil {
		set++
	}
	if t.ExtractionID != nil {
		set++
	}
	if set != 1 {
		return errs.Validation("embedding must reference exactly one of {chunk_id, image_id, extraction_id}, got %d", set)
	}
	return nil
}

// InsertEmbedding writes an embedding's vector into vec_embeddings and its
// row + provenance record transactionally.
func (s *Store) InsertEmbedding(ctx context.Context, id string, target EmbeddingTarget, vector []float32, prov *Provenance) error {
	if err := target.validate(); err != nil {
		return err
	}
	if len(vector) != s.embeddingDim {
		return errs.Validation("embedding vector has dimension %d, want %d", len(vector), s.embeddingDim)
	}
	if prov.Kind != KindEmbedding {
		return errs.Validation("embedding provenance must have kind EMBEDDING, got %s", prov.Kind)
	}
	prov.ID = id
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO embeddings (id, chunk_id, image_id, extraction_id, provenance_id)
			VALUES (?,?,?,?,?)
		`, id, target.ChunkID, target.ImageID, target.ExtractionID, prov.ID)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(id, err)
			}
			return fmt.Errorf("store: insert embedding %s: %w", id, err)
		}
		_, err = tx.Exec(`INSERT INTO vec_embeddings (embedding_id, embedding) VALUES (?, ?)`, id, serializeFloat32(vector))
		if err != nil {
			return fmt.Errorf("store: insert vector row %s: %w", id, err)
		}
		return nil
	})
}

// VectorResult is one hit from VectorSearch.
type VectorResult struct {
	EmbeddingID string
	ChunkID     *string
	ImageID     *string
	Distance    float64
}

// VectorSearch runs cosine nearest-neighbor search over vec_embeddings,
// optionally restricted to a document set (joined through chunks).
func (s *Store) VectorSearch(ctx context.Context, query []float32, k int, documentFilter []string) ([]VectorResult, error) {
	if len(query) != s.embeddingDim {
		return nil, errs.Validation("query vector has dimension %d, want %d", len(query), s.embeddingDim)
	}

	sqlQuery := `
		SELECT v.embedding_id, e.chunk_id, e.image_id, v.distance
		FROM vec_embeddings v
		JOIN embeddings e ON e.id = v.embedding_id
	`
	args := []any{}
	if len(documentFilter) > 0 {
		sqlQuery += `
			LEFT JOIN chunks c ON c.id = e.chunk_id
			WHERE v.embedding MATCH ? AND k = ? AND c.document_id IN (` + repeatPlaceholders(len(documentFilter)) + `)
		`
		args = append(args, serializeFloat32(query), k)
		args = append(args, stringsToArgs(documentFilter)...)
	} else {
		sqlQuery += ` WHERE v.embedding MATCH ? AND k = ?`
		args = append(args, serializeFloat32(query), k)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("store: vector search: %w", err)
	}
	defer rows.Close()

	var out []VectorResult
	for rows.Next() {
		var r VectorResult
		var chunkID, imageID sql.NullString
		if err := rows.Scan(&r.EmbeddingID, &chunkID, &imageID, &r.Distance); err != nil {
			return nil, fmt.Errorf("store: scan vector result: %w", err)
		}
		if chunkID.Valid {
			r.ChunkID = &chunkID.String
		}
		if imageID.Valid {
			r.ImageID = &imageID.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
