package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// InsertExtraction creates a structured-extraction (e.g. form fill) row
// and its provenance record.
func (s *Store) InsertExtraction(ctx context.Context, x *Extraction, prov *Provenance) error {
	if prov.Kind != KindExtraction && prov.Kind != KindFormFill {
		return errs.Validation("extraction provenance must have kind EXTRACTION or FORM_FILL, got %s", prov.Kind)
	}
	x.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO extractions (id, document_id, provenance_id, extractor_name, data)
			VALUES (?,?,?,?,?)
		`, x.ID, x.DocumentID, x.ProvenanceID, x.ExtractorName, x.Data)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(x.ID, err)
			}
			return fmt.Errorf("store: insert extraction %s: %w", x.ID, err)
		}
		return nil
	})
}

// GetExtraction fetches an extraction by id.
func (s *Store) GetExtraction(ctx context.Context, id string) (*Extraction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, provenance_id, extractor_name, data
		FROM extractions WHERE id = ?
	`, id)
	var x Extraction
	err := row.Scan(&x.ID, &x.DocumentID, &x.ProvenanceID, &x.ExtractorName, &x.Data)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("extraction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get extraction %s: %w", id, err)
	}
	return &x, nil
}
