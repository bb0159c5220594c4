package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// InsertOCRResult creates the OCR result row and its provenance record
// (parent = the document's DOCUMENT provenance) in one transaction.
func (s *Store) InsertOCRResult(ctx context.Context, o *OCRResult, prov *Provenance) error {
	if prov.Kind != KindOCRResult {
		return errs.Validation("ocr result provenance must have kind OCR_RESULT, got %s", prov.Kind)
	}
	o.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO ocr_results (
				id, provenance_id, document_id, extracted_text, text_length,
				mode, page_count, processing_duration_ms, block_layout, extras
			) VALUES (?,?,?,?,?,?,?,?,?,?)
		`, o.ID, o.ProvenanceID, o.DocumentID, o.ExtractedText, len([]rune(o.ExtractedText)),
			o.Mode, o.PageCount, o.ProcessingDurationMS, o.BlockLayout, o.Extras)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(o.ID, err)
			}
			return fmt.Errorf("store: insert ocr_result %s: %w", o.ID, err)
		}
		return nil
	})
}

// GetOCRResult fetches an OCR result by id.
func (s *Store) GetOCRResult(ctx context.Context, id string) (*OCRResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provenance_id, document_id, extracted_text, text_length,
			mode, page_count, processing_duration_ms, block_layout, extras, created_at
		FROM ocr_results WHERE id = ?
	`, id)
	var o OCRResult
	var blockLayout, extras sql.NullString
	var createdAt string
	err := row.Scan(&o.ID, &o.ProvenanceID, &o.DocumentID, &o.ExtractedText, &o.TextLength,
		&o.Mode, &o.PageCount, &o.ProcessingDurationMS, &blockLayout, &extras, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("ocr_result %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get ocr_result %s: %w", id, err)
	}
	if blockLayout.Valid {
		o.BlockLayout = &blockLayout.String
	}
	if extras.Valid {
		o.Extras = &extras.String
	}
	return &o, nil
}

// GetOCRResultByDocument returns the OCR result for a document, if any.
func (s *Store) GetOCRResultByDocument(ctx context.Context, documentID string) (*OCRResult, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM ocr_results WHERE document_id = ? LIMIT 1`, documentID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("no ocr_result for document %s", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get ocr_result by document: %w", err)
	}
	return s.GetOCRResult(ctx, id)
}
