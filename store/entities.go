package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// InsertEntity creates an entity row and its provenance record.
func (s *Store) InsertEntity(ctx context.Context, e *Entity, prov *Provenance) error {
	if prov.Kind != KindEntityExtraction && prov.Kind != KindExtraction {
		return errs.Validation("entity provenance must have kind ENTITY_EXTRACTION, got %s", prov.Kind)
	}
	e.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		return s.insertEntityTx(tx, e)
	})
}

func (s *Store) insertEntityTx(tx *sql.Tx, e *Entity) error {
	_, err := tx.Exec(`
		INSERT INTO entities (id, document_id, entity_type, raw_text, normalized_text, confidence, metadata, provenance_id)
		VALUES (?,?,?,?,?,?,?,?)
	`, e.ID, e.DocumentID, e.EntityType, e.RawText, e.NormalizedText, e.Confidence, e.Metadata, e.ProvenanceID)
	if err != nil {
		if isConstraintViolation(err) {
			return errs.Integrity(e.ID, err)
		}
		return fmt.Errorf("store: insert entity %s: %w", e.ID, err)
	}
	return nil
}

// GetEntity fetches an entity by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, entitySelect+` WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("entity %s not found", id)
	}
	return e, err
}

// ListEntitiesByDocument returns every entity extracted from a document.
func (s *Store) ListEntitiesByDocument(ctx context.Context, documentID string) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx, entitySelect+` WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: list entities: %w", err)
	}
	defer rows.Close()
	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertEntityMention creates an entity-mention row and its provenance
// record.
func (s *Store) InsertEntityMention(ctx context.Context, m *EntityMention, prov *Provenance) error {
	m.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO entity_mentions (
				id, entity_id, document_id, chunk_id, page_number,
				character_start, character_end, context_text, provenance_id
			) VALUES (?,?,?,?,?,?,?,?,?)
		`, m.ID, m.EntityID, m.DocumentID, m.ChunkID, m.PageNumber,
			m.CharacterStart, m.CharacterEnd, m.ContextText, m.ProvenanceID)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(m.ID, err)
			}
			return fmt.Errorf("store: insert entity_mention %s: %w", m.ID, err)
		}
		return nil
	})
}

// ListMentionsByEntity returns every mention of an entity.
func (s *Store) ListMentionsByEntity(ctx context.Context, entityID string) ([]*EntityMention, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, document_id, chunk_id, page_number,
			character_start, character_end, context_text, provenance_id
		FROM entity_mentions WHERE entity_id = ?
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("store: list mentions: %w", err)
	}
	defer rows.Close()
	var out []*EntityMention
	for rows.Next() {
		var m EntityMention
		var chunkID sql.NullString
		var pageNumber, charStart, charEnd sql.NullInt64
		if err := rows.Scan(&m.ID, &m.EntityID, &m.DocumentID, &chunkID, &pageNumber,
			&charStart, &charEnd, &m.ContextText, &m.ProvenanceID); err != nil {
			return nil, err
		}
		if chunkID.Valid {
			m.ChunkID = &chunkID.String
		}
		if pageNumber.Valid {
			v := int(pageNumber.Int64)
			m.PageNumber = &v
		}
		if charStart.Valid {
			v := int(charStart.Int64)
			m.CharacterStart = &v
		}
		if charEnd.Valid {
			v := int(charEnd.Int64)
			m.CharacterEnd = &v
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// EntityMentionCounts returns, for a document, how many times each entity
// was mentioned, used to build the Tier-2 synthesis roster.
func (s *Store) EntityMentionCounts(ctx context.Context, documentID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, COUNT(*) FROM entity_mentions WHERE document_id = ? GROUP BY entity_id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: entity mention counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		out[id] = count
	}
	return out, rows.Err()
}

const entitySelect = `
	SELECT id, document_id, entity_type, raw_text, normalized_text, confidence, metadata, provenance_id
	FROM entities
`

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var metadata sql.NullString
	err := row.Scan(&e.ID, &e.DocumentID, &e.EntityType, &e.RawText, &e.NormalizedText, &e.Confidence, &metadata, &e.ProvenanceID)
	if err != nil {
		return nil, err
	}
	if metadata.Valid {
		e.Metadata = &metadata.String
	}
	return &e, nil
}
