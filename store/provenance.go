package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danvers-labs/provkg/errs"
)

// InsertProvenance writes a new provenance record in its own
// transaction. p.ChainDepth and p.RootDocumentID must
// already be set by the caller (the graph builder and the ingest pipeline compute
// them before calling in).
func (s *Store) InsertProvenance(ctx context.Context, p *Provenance) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertProvenanceTx(tx, p)
	})
}

func (s *Store) insertProvenanceTx(tx *sql.Tx, p *Provenance) error {
	parentIDs, err := json.Marshal(p.ParentIDs)
	if err != nil {
		return fmt.Errorf("store: marshal parent_ids: %w", err)
	}
	if p.ProcessingParams == "" {
		p.ProcessingParams = "{}"
	}
	_, err = tx.Exec(`
		INSERT INTO provenance (
			id, kind, source_kind, source_path, source_id, root_document_id,
			content_hash, input_hash, file_hash, processor, processor_version,
			processing_params, parent_id, parent_ids, chain_depth
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, p.ID, p.Kind, p.SourceKind, p.SourcePath, p.SourceID, p.RootDocumentID,
		p.ContentHash, p.InputHash, p.FileHash, p.Processor, p.ProcessorVersion,
		p.ProcessingParams, p.ParentID, string(parentIDs), p.ChainDepth)
	if err != nil {
		if isConstraintViolation(err) {
			return errs.Integrity(p.ID, err)
		}
		return fmt.Errorf("store: insert provenance %s: %w", p.ID, err)
	}
	return nil
}

// GetProvenance fetches a single provenance record by id.
func (s *Store) GetProvenance(ctx context.Context, id string) (*Provenance, error) {
	row := s.db.QueryRowContext(ctx, provenanceSelect+` WHERE id = ?`, id)
	p, err := scanProvenance(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("provenance %s not found", id)
	}
	return p, err
}

// Chain walks parent_id from the leaf identified by id back to its root,
// terminating at a record whose parent_id is null. Returned in leaf-to-root
// order.
func (s *Store) Chain(ctx context.Context, id string) ([]*Provenance, error) {
	var chain []*Provenance
	current := id
	for current != "" {
		p, err := s.GetProvenance(ctx, current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
		if p.ParentID == nil {
			break
		}
		current = *p.ParentID
	}
	return chain, nil
}

// ByRoot returns every provenance record sharing root_document_id, ordered
// by chain_depth.
func (s *Store) ByRoot(ctx context.Context, rootDocumentID string) ([]*Provenance, error) {
	rows, err := s.db.QueryContext(ctx, provenanceSelect+` WHERE root_document_id = ? ORDER BY chain_depth ASC`, rootDocumentID)
	if err != nil {
		return nil, fmt.Errorf("store: query by_root: %w", err)
	}
	defer rows.Close()
	return scanProvenanceRows(rows)
}

// DistinctProvenanceRoots returns every distinct root_document_id in the
// provenance ledger, used by the provenance-export "all" scope to find
// roots that are not one of the store's documents (graph-build and
// database-wide synthesis runs mint their own root).
func (s *Store) DistinctProvenanceRoots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT root_document_id FROM provenance`)
	if err != nil {
		return nil, fmt.Errorf("store: distinct provenance roots: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// Children returns every provenance record whose parent_id is parentID.
func (s *Store) Children(ctx context.Context, parentID string) ([]*Provenance, error) {
	rows, err := s.db.QueryContext(ctx, provenanceSelect+` WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, fmt.Errorf("store: query children: %w", err)
	}
	defer rows.Close()
	return scanProvenanceRows(rows)
}

const provenanceSelect = `
	SELECT id, kind, source_kind, source_path, source_id, root_document_id,
		content_hash, input_hash, file_hash, processor, processor_version,
		processing_params, parent_id, parent_ids, chain_depth, created_at
	FROM provenance
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvenance(row rowScanner) (*Provenance, error) {
	var p Provenance
	var sourceKind, sourcePath, sourceID, inputHash, fileHash, parentID sql.NullString
	var parentIDsJSON string
	var createdAt string
	err := row.Scan(&p.ID, &p.Kind, &sourceKind, &sourcePath, &sourceID, &p.RootDocumentID,
		&p.ContentHash, &inputHash, &fileHash, &p.Processor, &p.ProcessorVersion,
		&p.ProcessingParams, &parentID, &parentIDsJSON, &p.ChainDepth, &createdAt)
	if err != nil {
		return nil, err
	}
	if sourceKind.Valid {
		k := ProvenanceKind(sourceKind.String)
		p.SourceKind = k
	}
	if sourcePath.Valid {
		p.SourcePath = &sourcePath.String
	}
	if sourceID.Valid {
		p.SourceID = &sourceID.String
	}
	if inputHash.Valid {
		p.InputHash = &inputHash.String
	}
	if fileHash.Valid {
		p.FileHash = &fileHash.String
	}
	if parentID.Valid {
		p.ParentID = &parentID.String
	}
	if parentIDsJSON != "" {
		_ = json.Unmarshal([]byte(parentIDsJSON), &p.ParentIDs)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		p.CreatedAt = t
	}
	return &p, nil
}

func scanProvenanceRows(rows *sql.Rows) ([]*Provenance, error) {
	var out []*Provenance
	for rows.Next() {
		p, err := scanProvenance(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan provenance row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY") ||
		strings.Contains(msg, "UNIQUE") ||
		strings.Contains(msg, "CHECK")
}
