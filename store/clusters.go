package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danvers-labs/provkg/errs"
)

// InsertCluster creates a cluster row for a clustering run.
func (s *Store) InsertCluster(ctx context.Context, c *Cluster) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO clusters (id, run_id, cluster_index, centroid, label, coherence)
			VALUES (?,?,?,?,?,?)
		`, c.ID, c.RunID, c.ClusterIndex, c.Centroid, c.Label, c.Coherence)
		if err != nil {
			return fmt.Errorf("store: insert cluster %s: %w", c.ID, err)
		}
		return nil
	})
}

// ListClustersByRun returns every cluster in a run, ordered by index.
func (s *Store) ListClustersByRun(ctx context.Context, runID string) ([]*Cluster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, cluster_index, centroid, label, coherence
		FROM clusters WHERE run_id = ? ORDER BY cluster_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list clusters: %w", err)
	}
	defer rows.Close()
	var out []*Cluster
	for rows.Next() {
		var c Cluster
		var centroid, label sql.NullString
		var coherence sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.RunID, &c.ClusterIndex, &centroid, &label, &coherence); err != nil {
			return nil, err
		}
		if centroid.Valid {
			c.Centroid = &centroid.String
		}
		if label.Valid {
			c.Label = &label.String
		}
		if coherence.Valid {
			c.Coherence = &coherence.Float64
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpsertDocumentCluster assigns (or reassigns) a document to a cluster
// within a run.
func (s *Store) UpsertDocumentCluster(ctx context.Context, dc *DocumentCluster) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO document_clusters (id, run_id, cluster_id, document_id, overlap)
			VALUES (?,?,?,?,?)
			ON CONFLICT(run_id, document_id) DO UPDATE SET cluster_id = excluded.cluster_id, overlap = excluded.overlap
		`, dc.ID, dc.RunID, dc.ClusterID, dc.DocumentID, dc.Overlap)
		if err != nil {
			return fmt.Errorf("store: upsert document_cluster: %w", err)
		}
		return nil
	})
}

// DocumentClusterNodes returns the distinct knowledge-node ids linked to a
// document, used by the cluster reassignment algorithm to compute
// Jaccard overlap.
func (s *Store) DocumentClusterNodes(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT node_id FROM node_entity_links WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: document cluster nodes: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// LatestClusterRunID returns the most recently created clustering run id,
// used by the reassignment algorithm to scope its comparison to the most
// recent run.
func (s *Store) LatestClusterRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM clusters ORDER BY created_at DESC, run_id DESC LIMIT 1
	`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", errs.NotFound("no clustering runs exist yet")
	}
	if err != nil {
		return "", fmt.Errorf("store: latest cluster run: %w", err)
	}
	return runID, nil
}

// DocumentClusterAssignment returns a document's current cluster
// assignment within a run, or errs.NotFound if it has none.
func (s *Store) DocumentClusterAssignment(ctx context.Context, runID, documentID string) (*DocumentCluster, error) {
	var dc DocumentCluster
	var overlap sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, cluster_id, document_id, overlap
		FROM document_clusters WHERE run_id = ? AND document_id = ?
	`, runID, documentID).Scan(&dc.ID, &dc.RunID, &dc.ClusterID, &dc.DocumentID, &overlap)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("document %s has no cluster assignment in run %s", documentID, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: document cluster assignment: %w", err)
	}
	if overlap.Valid {
		dc.Overlap = &overlap.Float64
	}
	return &dc, nil
}

// ClusterMemberNodes returns the union of knowledge-node ids linked to any
// document currently assigned to a cluster within a run.
func (s *Store) ClusterMemberNodes(ctx context.Context, runID, clusterID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT l.node_id
		FROM document_clusters dc
		JOIN node_entity_links l ON l.document_id = dc.document_id
		WHERE dc.run_id = ? AND dc.cluster_id = ?
	`, runID, clusterID)
	if err != nil {
		return nil, fmt.Errorf("store: cluster member nodes: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}
