package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danvers-labs/provkg/errs"
)

// InsertDocument creates a document row and its DOCUMENT provenance record
// in a single transaction. prov.RootDocumentID must equal prov.ID (a
// document is always its own provenance root) and prov.Kind must be
// KindDocument.
func (s *Store) InsertDocument(ctx context.Context, d *Document, prov *Provenance) error {
	if prov.Kind != KindDocument {
		return errs.Validation("document provenance must have kind DOCUMENT, got %s", prov.Kind)
	}
	if prov.RootDocumentID != prov.ID {
		return errs.Validation("document provenance root_document_id must equal its own id")
	}
	d.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO documents (
				id, file_path, file_name, file_hash, file_size, file_type,
				status, provenance_id, title, author, subject, page_count
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		`, d.ID, d.FilePath, d.FileName, d.FileHash, d.FileSize, d.FileType,
			d.Status, d.ProvenanceID, d.Title, d.Author, d.Subject, d.PageCount)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(d.ID, err)
			}
			return fmt.Errorf("store: insert document %s: %w", d.ID, err)
		}
		return nil
	})
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelect+` WHERE id = ?`, id)
	return scanDocument(row, id)
}

// GetDocumentByPath fetches a document by its absolute file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelect+` WHERE file_path = ?`, path)
	return scanDocument(row, path)
}

// ListDocuments returns documents optionally filtered by status.
func (s *Store) ListDocuments(ctx context.Context, status *DocumentStatus) ([]*Document, error) {
	query := documentSelect
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDocumentStatus transitions a document's status, validating the enum
// and stamping updated_at / ocr_completed_at / error_message as applicable.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status DocumentStatus, errMsg *string) error {
	switch status {
	case StatusPending, StatusProcessing, StatusComplete, StatusFailed:
	default:
		return errs.Validation("invalid document status %q", status)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var completedAt any
		if status == StatusComplete {
			completedAt = time.Now().UTC().Format("2006-01-02 15:04:05")
		}
		res, err := tx.Exec(`
			UPDATE documents SET status = ?, error_message = ?,
				ocr_completed_at = COALESCE(?, ocr_completed_at),
				updated_at = datetime('now')
			WHERE id = ?
		`, status, errMsg, completedAt, id)
		if err != nil {
			return fmt.Errorf("store: update document status: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return errs.NotFound("document %s not found", id)
		}
		return nil
	})
}

// DeleteDocument cascades the full lifecycle deletion: mentions, entities,
// chunks, OCR rows, embeddings, vectors, images, extractions,
// node-entity-links; decrements node document_counts, and removes
// nodes/edges whose count falls to zero.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.deleteDocumentDataTx(tx, documentID)
	})
}

func (s *Store) deleteDocumentDataTx(tx *sql.Tx, documentID string) error {
	// Collect affected node ids before the cascading deletes remove the
	// links that would otherwise let us find them.
	rows, err := tx.Query(`
		SELECT DISTINCT node_id FROM node_entity_links WHERE document_id = ?
	`, documentID)
	if err != nil {
		return fmt.Errorf("store: collect affected nodes: %w", err)
	}
	var nodeIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		nodeIDs = append(nodeIDs, id)
	}
	rows.Close()

	// Embeddings reference chunks/images/extractions with ON DELETE CASCADE,
	// and chunks/images/extractions/entities/ocr_results reference documents
	// with ON DELETE CASCADE, so a single document delete cascades through
	// the whole content tree, including vec_embeddings rows via the
	// application-level cleanup below (vec0 tables do not support FK
	// cascade).
	embeddingRows, err := tx.Query(`
		SELECT e.id FROM embeddings e
		LEFT JOIN chunks c ON e.chunk_id = c.id
		LEFT JOIN images i ON e.image_id = i.id
		LEFT JOIN extractions x ON e.extraction_id = x.id
		WHERE c.document_id = ? OR i.document_id = ? OR x.document_id = ?
	`, documentID, documentID, documentID)
	if err != nil {
		return fmt.Errorf("store: collect embeddings: %w", err)
	}
	var embeddingIDs []string
	for embeddingRows.Next() {
		var id string
		if err := embeddingRows.Scan(&id); err != nil {
			embeddingRows.Close()
			return err
		}
		embeddingIDs = append(embeddingIDs, id)
	}
	embeddingRows.Close()

	for _, id := range embeddingIDs {
		if _, err := tx.Exec(`DELETE FROM vec_embeddings WHERE embedding_id = ?`, id); err != nil {
			return fmt.Errorf("store: delete vector row %s: %w", id, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return fmt.Errorf("store: delete document %s: %w", documentID, err)
	}

	for _, nodeID := range nodeIDs {
		if err := s.recountNodeTx(tx, nodeID); err != nil {
			return err
		}
	}
	return nil
}

// recountNodeTx recomputes a node's aggregate counts from its remaining
// links, removing the node (and its edges) entirely if no links remain.
func (s *Store) recountNodeTx(tx *sql.Tx, nodeID string) error {
	var linkCount, docCount int
	err := tx.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT document_id) FROM node_entity_links WHERE node_id = ?
	`, nodeID).Scan(&linkCount, &docCount)
	if err != nil {
		return fmt.Errorf("store: recount node %s: %w", nodeID, err)
	}
	if linkCount == 0 {
		_, err := tx.Exec(`DELETE FROM knowledge_edges WHERE source_node_id = ? OR target_node_id = ?`, nodeID, nodeID)
		if err != nil {
			return fmt.Errorf("store: delete edges for empty node %s: %w", nodeID, err)
		}
		_, err = tx.Exec(`DELETE FROM knowledge_nodes WHERE id = ?`, nodeID)
		if err != nil {
			return fmt.Errorf("store: delete empty node %s: %w", nodeID, err)
		}
		return nil
	}
	_, err = tx.Exec(`
		UPDATE knowledge_nodes SET document_count = ?, mention_count = ?, updated_at = datetime('now')
		WHERE id = ?
	`, docCount, linkCount, nodeID)
	if err != nil {
		return fmt.Errorf("store: update node counts %s: %w", nodeID, err)
	}
	return nil
}

const documentSelect = `
	SELECT id, file_path, file_name, file_hash, file_size, file_type, status,
		provenance_id, title, author, subject, page_count, error_message,
		ocr_completed_at, created_at, updated_at
	FROM documents
`

func scanDocument(row rowScanner, ref string) (*Document, error) {
	d, err := scanDocumentRow(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("document %s not found", ref)
	}
	return d, err
}

func scanDocumentRow(row rowScanner) (*Document, error) {
	var d Document
	var title, author, subject, errMsg, ocrCompleted sql.NullString
	var pageCount sql.NullInt64
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.FilePath, &d.FileName, &d.FileHash, &d.FileSize, &d.FileType,
		&d.Status, &d.ProvenanceID, &title, &author, &subject, &pageCount, &errMsg,
		&ocrCompleted, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if title.Valid {
		d.Title = &title.String
	}
	if author.Valid {
		d.Author = &author.String
	}
	if subject.Valid {
		d.Subject = &subject.String
	}
	if errMsg.Valid {
		d.ErrorMessage = &errMsg.String
	}
	if pageCount.Valid {
		v := int(pageCount.Int64)
		d.PageCount = &v
	}
	if ocrCompleted.Valid {
		if t, err := time.Parse("2006-01-02 15:04:05", ocrCompleted.String); err == nil {
			d.OCRCompletedAt = &t
		}
	}
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		d.CreatedAt = t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		d.UpdatedAt = t
	}
	return &d, nil
}
