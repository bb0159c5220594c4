package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// InsertImage creates an image row and its provenance record.
func (s *Store) InsertImage(ctx context.Context, img *Image, prov *Provenance) error {
	if prov.Kind != KindImage {
		return errs.Validation("image provenance must have kind IMAGE, got %s", prov.Kind)
	}
	img.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO images (id, document_id, provenance_id, page_number, file_path, bounding_box)
			VALUES (?,?,?,?,?,?)
		`, img.ID, img.DocumentID, img.ProvenanceID, img.PageNumber, img.FilePath, img.BoundingBox)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(img.ID, err)
			}
			return fmt.Errorf("store: insert image %s: %w", img.ID, err)
		}
		return nil
	})
}

// GetImage fetches an image row by id.
func (s *Store) GetImage(ctx context.Context, id string) (*Image, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, provenance_id, page_number, file_path, bounding_box
		FROM images WHERE id = ?
	`, id)
	var img Image
	var pageNumber sql.NullInt64
	var boundingBox sql.NullString
	err := row.Scan(&img.ID, &img.DocumentID, &img.ProvenanceID, &pageNumber, &img.FilePath, &boundingBox)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("image %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get image %s: %w", id, err)
	}
	if pageNumber.Valid {
		v := int(pageNumber.Int64)
		img.PageNumber = &v
	}
	if boundingBox.Valid {
		img.BoundingBox = &boundingBox.String
	}
	return &img, nil
}

// ListImagesByDocument returns every image row for a document.
func (s *Store) ListImagesByDocument(ctx context.Context, documentID string) ([]*Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, provenance_id, page_number, file_path, bounding_box
		FROM images WHERE document_id = ?
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: list images: %w", err)
	}
	defer rows.Close()
	var out []*Image
	for rows.Next() {
		var img Image
		var pageNumber sql.NullInt64
		var boundingBox sql.NullString
		if err := rows.Scan(&img.ID, &img.DocumentID, &img.ProvenanceID, &pageNumber, &img.FilePath, &boundingBox); err != nil {
			return nil, err
		}
		if pageNumber.Valid {
			v := int(pageNumber.Int64)
			img.PageNumber = &v
		}
		if boundingBox.Valid {
			img.BoundingBox = &boundingBox.String
		}
		out = append(out, &img)
	}
	return out, rows.Err()
}
