package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danvers-labs/provkg/errs"
)

// InsertCorpusIntelligence writes the database-wide Tier-1 synthesis
// record and its provenance. There is at most one live record per
// database; a new record replaces the previous one wholesale (earlier
// provenance records are kept).
func (s *Store) InsertCorpusIntelligence(ctx context.Context, c *CorpusIntelligence, prov *Provenance) error {
	if prov.Kind != KindCorpusIntel {
		return errs.Validation("corpus intelligence provenance must have kind CORPUS_INTELLIGENCE, got %s", prov.Kind)
	}
	c.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM corpus_intelligence`); err != nil {
			return fmt.Errorf("store: replace corpus_intelligence: %w", err)
		}
		_, err := tx.Exec(`
			INSERT INTO corpus_intelligence (id, summary, key_actors, themes, narrative_arcs, provenance_id)
			VALUES (?,?,?,?,?,?)
		`, c.ID, c.Summary, c.KeyActors, c.Themes, c.NarrativeArcs, c.ProvenanceID)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(c.ID, err)
			}
			return fmt.Errorf("store: insert corpus_intelligence %s: %w", c.ID, err)
		}
		return nil
	})
}

// LatestCorpusIntelligence returns the most recently created corpus
// intelligence record, if any.
func (s *Store) LatestCorpusIntelligence(ctx context.Context) (*CorpusIntelligence, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, summary, key_actors, themes, narrative_arcs, provenance_id, created_at
		FROM corpus_intelligence ORDER BY created_at DESC LIMIT 1
	`)
	var c CorpusIntelligence
	var createdAt string
	err := row.Scan(&c.ID, &c.Summary, &c.KeyActors, &c.Themes, &c.NarrativeArcs, &c.ProvenanceID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("no corpus_intelligence record present")
	}
	if err != nil {
		return nil, fmt.Errorf("store: get corpus_intelligence: %w", err)
	}
	return &c, nil
}

// InsertDocumentNarrative writes a per-document Tier-2 narrative and its
// provenance.
func (s *Store) InsertDocumentNarrative(ctx context.Context, n *DocumentNarrative, prov *Provenance) error {
	n.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO document_narratives (id, document_id, narrative, provenance_id)
			VALUES (?,?,?,?)
		`, n.ID, n.DocumentID, n.Narrative, n.ProvenanceID)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(n.ID, err)
			}
			return fmt.Errorf("store: insert document_narrative %s: %w", n.ID, err)
		}
		return nil
	})
}

// GetDocumentNarrative returns the narrative for a document, if any.
func (s *Store) GetDocumentNarrative(ctx context.Context, documentID string) (*DocumentNarrative, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, narrative, provenance_id, created_at
		FROM document_narratives WHERE document_id = ?
	`, documentID)
	var n DocumentNarrative
	var createdAt string
	err := row.Scan(&n.ID, &n.DocumentID, &n.Narrative, &n.ProvenanceID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("no document_narrative for document %s", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get document_narrative: %w", err)
	}
	return &n, nil
}

// ListDocumentNarratives returns the narratives for a set of documents, in
// the order they were requested; documents without a narrative are
// skipped. Used by cross-document synthesis to concatenate context.
func (s *Store) ListDocumentNarratives(ctx context.Context, documentIDs []string) ([]*DocumentNarrative, error) {
	out := make([]*DocumentNarrative, 0, len(documentIDs))
	for _, id := range documentIDs {
		n, err := s.GetDocumentNarrative(ctx, id)
		if err != nil {
			if errs.Is(err, errs.CategoryNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// InsertEntityRole writes one role classification and its provenance.
func (s *Store) InsertEntityRole(ctx context.Context, r *EntityRole, prov *Provenance) error {
	r.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO entity_roles (
				id, node_id, scope, document_id, role, theme, importance_rank, context_summary, provenance_id
			) VALUES (?,?,?,?,?,?,?,?,?)
		`, r.ID, r.NodeID, r.Scope, r.DocumentID, r.Role, r.Theme, r.ImportanceRank, r.ContextSummary, r.ProvenanceID)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(r.ID, err)
			}
			return fmt.Errorf("store: insert entity_role %s: %w", r.ID, err)
		}
		return nil
	})
}

// ListEntityRoles returns every role classification for the given scope,
// and (for ScopeDocument) a specific document.
func (s *Store) ListEntityRoles(ctx context.Context, scope RoleScope, documentID string) ([]*EntityRole, error) {
	var rows *sql.Rows
	var err error
	if scope == ScopeDocument {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, node_id, scope, document_id, role, theme, importance_rank, context_summary, provenance_id
			FROM entity_roles WHERE scope = ? AND document_id = ?
		`, scope, documentID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, node_id, scope, document_id, role, theme, importance_rank, context_summary, provenance_id
			FROM entity_roles WHERE scope = ?
		`, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("store: list entity_roles: %w", err)
	}
	defer rows.Close()
	var out []*EntityRole
	for rows.Next() {
		var r EntityRole
		var documentID, theme sql.NullString
		var importanceRank sql.NullInt64
		if err := rows.Scan(&r.ID, &r.NodeID, &r.Scope, &documentID, &r.Role, &theme, &importanceRank, &r.ContextSummary, &r.ProvenanceID); err != nil {
			return nil, err
		}
		if documentID.Valid {
			r.DocumentID = &documentID.String
		}
		if theme.Valid {
			r.Theme = &theme.String
		}
		if importanceRank.Valid {
			v := int(importanceRank.Int64)
			r.ImportanceRank = &v
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// EntityCensus returns, per entity type, the topN nodes by importance_score
// (falling back to mention_count when importance is unset), flattened with
// their aliases, for the Tier-1 corpus intelligence prompt.
func (s *Store) EntityCensus(ctx context.Context, topN int) ([]CensusEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, canonical_name, aliases, importance, mention_count FROM (
			SELECT entity_type, canonical_name, aliases,
				COALESCE(importance_score, 0.0) AS importance, mention_count,
				ROW_NUMBER() OVER (
					PARTITION BY entity_type
					ORDER BY COALESCE(importance_score, 0.0) DESC, mention_count DESC
				) AS rank
			FROM knowledge_nodes
		)
		WHERE rank <= ?
		ORDER BY entity_type, rank
	`, topN)
	if err != nil {
		return nil, fmt.Errorf("store: entity census: %w", err)
	}
	defer rows.Close()
	var out []CensusEntry
	for rows.Next() {
		var c CensusEntry
		var aliasesJSON string
		if err := rows.Scan(&c.EntityType, &c.CanonicalName, &aliasesJSON, &c.ImportanceScore, &c.MentionCount); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(aliasesJSON), &c.Aliases)
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindNodeByNameOrAlias resolves an AI-mentioned entity name to a node:
// exact (case-insensitive) canonical_name match first, then a scan of
// aliases. Returns errs.NotFound if nothing matches.
func (s *Store) FindNodeByNameOrAlias(ctx context.Context, name string) (*KnowledgeNode, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	row := s.db.QueryRowContext(ctx, nodeSelect+` WHERE lower(canonical_name) = ?`, lower)
	n, err := scanNode(row)
	if err == nil {
		return n, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	rows, qerr := s.db.QueryContext(ctx, nodeSelect)
	if qerr != nil {
		return nil, fmt.Errorf("store: scan nodes for alias match: %w", qerr)
	}
	defer rows.Close()
	for rows.Next() {
		candidate, serr := scanNode(rows)
		if serr != nil {
			return nil, serr
		}
		for _, alias := range candidate.Aliases {
			if strings.ToLower(alias) == lower {
				return candidate, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, errs.NotFound("no node matches name or alias %q", name)
}

// EdgeExists reports whether an edge of relType already connects a and b
// in either direction, used by the Tier-2 relationship-inference
// deduplication rule.
func (s *Store) EdgeExists(ctx context.Context, a, b string, relType RelationshipType) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM knowledge_edges
			WHERE relationship_type = ?
			AND ((source_node_id = ? AND target_node_id = ?) OR (source_node_id = ? AND target_node_id = ?))
		)
	`, relType, a, b, b, a).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: check edge exists: %w", err)
	}
	return exists == 1, nil
}

// ListEdgesByMetadataSource returns every knowledge edge whose metadata JSON
// names the given synthesis source (e.g. "ai_synthesis"), used by Tier-3
// evidence grounding and by the contradiction detector's semantic-edge scan.
func (s *Store) ListEdgesByMetadataSource(ctx context.Context, source string) ([]*KnowledgeEdge, error) {
	rows, err := s.db.QueryContext(ctx, edgeSelect+` WHERE metadata LIKE ?`, `%"source":"`+source+`"%`)
	if err != nil {
		return nil, fmt.Errorf("store: list edges by metadata source: %w", err)
	}
	defer rows.Close()
	var out []*KnowledgeEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListMultiDocumentNodes returns every node whose document_count exceeds 1,
// the candidate set for cross-document synthesis.
func (s *Store) ListMultiDocumentNodes(ctx context.Context) ([]*KnowledgeNode, error) {
	rows, err := s.db.QueryContext(ctx, nodeSelect+` WHERE document_count > 1`)
	if err != nil {
		return nil, fmt.Errorf("store: list multi-document nodes: %w", err)
	}
	defer rows.Close()
	var out []*KnowledgeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CooccurringChunks returns up to limit chunk ids where entities linked to
// both nodeA and nodeB are mentioned, for Tier-3 evidence grounding.
func (s *Store) CooccurringChunks(ctx context.Context, nodeA, nodeB string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT m1.chunk_id
		FROM node_entity_links l1
		JOIN entity_mentions m1 ON m1.entity_id = l1.entity_id
		JOIN node_entity_links l2 ON l2.node_id = ?
		JOIN entity_mentions m2 ON m2.entity_id = l2.entity_id AND m2.chunk_id = m1.chunk_id
		WHERE l1.node_id = ? AND m1.chunk_id IS NOT NULL
		LIMIT ?
	`, nodeB, nodeA, limit)
	if err != nil {
		return nil, fmt.Errorf("store: cooccurring chunks: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// UpdateEdgeWeightAndMetadata overwrites an edge's weight and metadata in
// place, used by Tier-3 evidence grounding's +0.1 confidence bump.
func (s *Store) UpdateEdgeWeightAndMetadata(ctx context.Context, edgeID string, weight float64, metadata string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE knowledge_edges SET weight = ?, metadata = ? WHERE id = ?`, weight, metadata, edgeID)
	if err != nil {
		return fmt.Errorf("store: update edge weight/metadata: %w", err)
	}
	return nil
}
