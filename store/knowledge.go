package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// InsertKnowledgeNode creates a new node and its provenance record.
func (s *Store) InsertKnowledgeNode(ctx context.Context, n *KnowledgeNode, prov *Provenance) error {
	if prov.Kind != KindKnowledgeGraph {
		return errs.Validation("knowledge node provenance must have kind KNOWLEDGE_GRAPH, got %s", prov.Kind)
	}
	n.ProvenanceID = prov.ID
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		return s.insertNodeTx(tx, n)
	})
}

func (s *Store) insertNodeTx(tx *sql.Tx, n *KnowledgeNode) error {
	aliases, err := json.Marshal(n.Aliases)
	if err != nil {
		return fmt.Errorf("store: marshal aliases: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO knowledge_nodes (
			id, entity_type, canonical_name, normalized_name, aliases,
			document_count, mention_count, edge_count, avg_confidence,
			importance_score, resolution_type, provenance_id
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`, n.ID, n.EntityType, n.CanonicalName, n.NormalizedName, string(aliases),
		n.DocumentCount, n.MentionCount, n.EdgeCount, n.AvgConfidence,
		n.ImportanceScore, n.ResolutionType, n.ProvenanceID)
	if err != nil {
		if isConstraintViolation(err) {
			return errs.Integrity(n.ID, err)
		}
		return fmt.Errorf("store: insert knowledge_node %s: %w", n.ID, err)
	}
	return nil
}

// GetKnowledgeNode fetches a node by id.
func (s *Store) GetKnowledgeNode(ctx context.Context, id string) (*KnowledgeNode, error) {
	row := s.db.QueryRowContext(ctx, nodeSelect+` WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("knowledge_node %s not found", id)
	}
	return n, err
}

// FindNodeByNormalizedName exact-matches a node within an entity type.
func (s *Store) FindNodeByNormalizedName(ctx context.Context, entityType EntityType, normalizedName string) (*KnowledgeNode, error) {
	row := s.db.QueryRowContext(ctx, nodeSelect+` WHERE entity_type = ? AND normalized_name = ?`, entityType, normalizedName)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("no node for %s/%s", entityType, normalizedName)
	}
	return n, err
}

// ListKnowledgeNodesByType returns up to limit existing nodes of a type,
// used by the incremental build's match-against-existing pass (hard cap
// 10,000).
func (s *Store) ListKnowledgeNodesByType(ctx context.Context, entityType EntityType, limit int) ([]*KnowledgeNode, error) {
	rows, err := s.db.QueryContext(ctx, nodeSelect+` WHERE entity_type = ? LIMIT ?`, entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list nodes by type: %w", err)
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

// SearchNodesByTerms does a substring (LIKE) match of each term against
// canonical_name, returning up to limit distinct nodes. Broader than
// FindNodeByNameOrAlias's exact match; used by the retrieval engine's
// graph arm to find multi-word node names containing a query term.
func (s *Store) SearchNodesByTerms(ctx context.Context, terms []string, limit int) ([]*KnowledgeNode, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool)
	var out []*KnowledgeNode
	for _, term := range terms {
		if len(out) >= limit {
			break
		}
		rows, err := s.db.QueryContext(ctx, nodeSelect+` WHERE lower(canonical_name) LIKE ? LIMIT ?`,
			"%"+term+"%", limit-len(out))
		if err != nil {
			return nil, fmt.Errorf("store: search nodes by term %q: %w", term, err)
		}
		for rows.Next() {
			n, err := scanNode(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if !seen[n.ID] {
				seen[n.ID] = true
				out = append(out, n)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// UpdateNodeAggregates recomputes and writes document_count, mention_count,
// avg_confidence, aliases, and updated_at for a node from its current
// links. Used by the incremental build after adding a new link.
func (s *Store) UpdateNodeAggregates(ctx context.Context, nodeID string, newAlias string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var existingAliasesJSON, canonical string
		if err := tx.QueryRow(`SELECT aliases, canonical_name FROM knowledge_nodes WHERE id = ?`, nodeID).Scan(&existingAliasesJSON, &canonical); err != nil {
			if err == sql.ErrNoRows {
				return errs.NotFound("knowledge_node %s not found", nodeID)
			}
			return fmt.Errorf("store: read node for aggregate update: %w", err)
		}
		var aliases []string
		_ = json.Unmarshal([]byte(existingAliasesJSON), &aliases)
		if newAlias != "" && newAlias != canonical {
			found := false
			for _, a := range aliases {
				if a == newAlias {
					found = true
					break
				}
			}
			if !found {
				aliases = append(aliases, newAlias)
			}
		}
		aliasesJSON, err := json.Marshal(aliases)
		if err != nil {
			return err
		}

		var docCount, mentionCount int
		var avgConfidence float64
		err = tx.QueryRow(`
			SELECT COUNT(DISTINCT l.document_id), COUNT(*), AVG(e.confidence)
			FROM node_entity_links l JOIN entities e ON e.id = l.entity_id
			WHERE l.node_id = ?
		`, nodeID).Scan(&docCount, &mentionCount, &avgConfidence)
		if err != nil {
			return fmt.Errorf("store: recompute node aggregates: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE knowledge_nodes
			SET document_count = ?, mention_count = ?, avg_confidence = ?, aliases = ?, updated_at = datetime('now')
			WHERE id = ?
		`, docCount, mentionCount, round4(avgConfidence), string(aliasesJSON), nodeID)
		return err
	})
}

// InsertNodeEntityLink creates a node-entity link. entity_id is globally
// UNIQUE: each entity resolves to at most one node.
func (s *Store) InsertNodeEntityLink(ctx context.Context, l *NodeEntityLink) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertLinkTx(tx, l)
	})
}

func (s *Store) insertLinkTx(tx *sql.Tx, l *NodeEntityLink) error {
	_, err := tx.Exec(`
		INSERT INTO node_entity_links (id, node_id, entity_id, document_id, similarity_score, resolution_method)
		VALUES (?,?,?,?,?,?)
	`, l.ID, l.NodeID, l.EntityID, l.DocumentID, l.SimilarityScore, l.ResolutionMethod)
	if err != nil {
		if isConstraintViolation(err) {
			return errs.Integrity(l.ID, err)
		}
		return fmt.Errorf("store: insert node_entity_link %s: %w", l.ID, err)
	}
	return nil
}

// DocumentLinked reports whether any knowledge-graph link already exists
// for a document, used by the incremental build to reject documents that
// have already been run through graph construction.
func (s *Store) DocumentLinked(ctx context.Context, documentID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM node_entity_links WHERE document_id = ?)`, documentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: check document linked: %w", err)
	}
	return exists == 1, nil
}

// NodeIDForEntity returns the node an entity resolved to, if any.
func (s *Store) NodeIDForEntity(ctx context.Context, entityID string) (string, error) {
	var nodeID string
	err := s.db.QueryRowContext(ctx, `SELECT node_id FROM node_entity_links WHERE entity_id = ?`, entityID).Scan(&nodeID)
	if err == sql.ErrNoRows {
		return "", errs.NotFound("entity %s is not linked to a node", entityID)
	}
	if err != nil {
		return "", fmt.Errorf("store: node id for entity: %w", err)
	}
	return nodeID, nil
}

// NodeDocumentIDs returns the distinct document ids linked to a node.
func (s *Store) NodeDocumentIDs(ctx context.Context, nodeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT document_id FROM node_entity_links WHERE node_id = ?`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: node document ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// NodeChunkIDs returns the distinct chunk ids mentioned by a node's linked
// entities.
func (s *Store) NodeChunkIDs(ctx context.Context, nodeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT m.chunk_id FROM node_entity_links l
		JOIN entity_mentions m ON m.entity_id = l.entity_id
		WHERE l.node_id = ? AND m.chunk_id IS NOT NULL
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: node chunk ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// UpsertKnowledgeEdge creates an edge, or if one already exists for
// (source, target, relationship_type), merges document_ids (set union)
// and overwrites weight and evidence_count.
func (s *Store) UpsertKnowledgeEdge(ctx context.Context, e *KnowledgeEdge, prov *Provenance) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var existingID, existingDocsJSON string
		err := tx.QueryRow(`
			SELECT id, document_ids FROM knowledge_edges
			WHERE source_node_id = ? AND target_node_id = ? AND relationship_type = ?
		`, e.SourceNodeID, e.TargetNodeID, e.RelationshipType).Scan(&existingID, &existingDocsJSON)
		if err == nil {
			var existingDocs []string
			_ = json.Unmarshal([]byte(existingDocsJSON), &existingDocs)
			merged := unionStrings(existingDocs, e.DocumentIDs)
			mergedJSON, merr := json.Marshal(merged)
			if merr != nil {
				return merr
			}
			_, err = tx.Exec(`
				UPDATE knowledge_edges SET weight = ?, evidence_count = ?, document_ids = ?, metadata = ?
				WHERE id = ?
			`, e.Weight, e.EvidenceCount, string(mergedJSON), e.Metadata, existingID)
			if err != nil {
				return fmt.Errorf("store: merge knowledge_edge: %w", err)
			}
			e.ID = existingID
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("store: lookup existing edge: %w", err)
		}

		if prov == nil {
			return errs.Internal("new edge requires a provenance record")
		}
		e.ProvenanceID = prov.ID
		if err := s.insertProvenanceTx(tx, prov); err != nil {
			return err
		}
		docsJSON, merr := json.Marshal(e.DocumentIDs)
		if merr != nil {
			return merr
		}
		_, err = tx.Exec(`
			INSERT INTO knowledge_edges (
				id, source_node_id, target_node_id, relationship_type, weight,
				evidence_count, document_ids, metadata, provenance_id
			) VALUES (?,?,?,?,?,?,?,?,?)
		`, e.ID, e.SourceNodeID, e.TargetNodeID, e.RelationshipType, e.Weight,
			e.EvidenceCount, string(docsJSON), e.Metadata, e.ProvenanceID)
		if err != nil {
			if isConstraintViolation(err) {
				return errs.Integrity(e.ID, err)
			}
			return fmt.Errorf("store: insert knowledge_edge %s: %w", e.ID, err)
		}
		return nil
	})
}

// ListEdgesByNode returns every edge where node is the source or target.
func (s *Store) ListEdgesByNode(ctx context.Context, nodeID string) ([]*KnowledgeEdge, error) {
	rows, err := s.db.QueryContext(ctx, edgeSelect+` WHERE source_node_id = ? OR target_node_id = ?`, nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: list edges: %w", err)
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

// AllKnowledgeNodeIDs returns every node id in the graph, used by the
// cluster package's initial clustering build to seed connected
// components over the full node universe.
func (s *Store) AllKnowledgeNodeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM knowledge_nodes`)
	if err != nil {
		return nil, fmt.Errorf("store: all knowledge node ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// AllKnowledgeEdges returns every edge in the graph.
func (s *Store) AllKnowledgeEdges(ctx context.Context) ([]*KnowledgeEdge, error) {
	rows, err := s.db.QueryContext(ctx, edgeSelect)
	if err != nil {
		return nil, fmt.Errorf("store: all knowledge edges: %w", err)
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

// UpdateNodeEdgeCount recomputes and stores edge_count for a node.
func (s *Store) UpdateNodeEdgeCount(ctx context.Context, nodeID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`
			SELECT COUNT(*) FROM knowledge_edges WHERE source_node_id = ? OR target_node_id = ?
		`, nodeID, nodeID).Scan(&count); err != nil {
			return fmt.Errorf("store: count edges: %w", err)
		}
		_, err := tx.Exec(`UPDATE knowledge_nodes SET edge_count = ? WHERE id = ?`, count, nodeID)
		return err
	})
}

// DeleteAllGraphData deletes all graph rows in dependency order: links,
// then edges, then nodes.
func (s *Store) DeleteAllGraphData(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"node_entity_links", "knowledge_edges", "knowledge_nodes"} {
			if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
				return fmt.Errorf("store: delete all from %s: %w", table, err)
			}
		}
		return nil
	})
}

const nodeSelect = `
	SELECT id, entity_type, canonical_name, normalized_name, aliases,
		document_count, mention_count, edge_count, avg_confidence,
		importance_score, resolution_type, provenance_id, created_at, updated_at
	FROM knowledge_nodes
`

func scanNode(row rowScanner) (*KnowledgeNode, error) {
	var n KnowledgeNode
	var aliasesJSON string
	var importance sql.NullFloat64
	var resolutionType sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&n.ID, &n.EntityType, &n.CanonicalName, &n.NormalizedName, &aliasesJSON,
		&n.DocumentCount, &n.MentionCount, &n.EdgeCount, &n.AvgConfidence,
		&importance, &resolutionType, &n.ProvenanceID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(aliasesJSON), &n.Aliases)
	if importance.Valid {
		n.ImportanceScore = &importance.Float64
	}
	if resolutionType.Valid {
		n.ResolutionType = &resolutionType.String
	}
	return &n, nil
}

const edgeSelect = `
	SELECT id, source_node_id, target_node_id, relationship_type, weight,
		evidence_count, document_ids, metadata, provenance_id
	FROM knowledge_edges
`

func scanEdge(row rowScanner) (*KnowledgeEdge, error) {
	var e KnowledgeEdge
	var docsJSON string
	err := row.Scan(&e.ID, &e.SourceNodeID, &e.TargetNodeID, &e.RelationshipType, &e.Weight,
		&e.EvidenceCount, &docsJSON, &e.Metadata, &e.ProvenanceID)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(docsJSON), &e.DocumentIDs)
	return &e, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func round4(f float64) float64 {
	return float64(int64(f*10000+0.5)) / 10000
}
