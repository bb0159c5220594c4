// Package cluster implements cluster assignment and reassignment: given a
// document, compare its linked knowledge-node set against every other
// cluster in the most recent run by Jaccard overlap, and reassign it to
// the best-overlapping cluster when that overlap clears the threshold.
package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/danvers-labs/provkg/errs"
	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

// overlapThreshold is the minimum Jaccard overlap required to reassign a
// document into a new cluster.
const overlapThreshold = 0.05

// Decision is the outcome of a single reassignment check.
type Decision struct {
	DocumentID      string
	RunID           string
	PreviousClusterID string // "" if the document had no prior assignment
	AssignedClusterID string
	BestOverlap     float64
	Reassigned      bool
}

// Reassign runs the algorithm against the most recent clustering run.
// Returns errs.NotFound if no clustering run exists yet.
func Reassign(ctx context.Context, s *store.Store, documentID string) (*Decision, error) {
	runID, err := s.LatestClusterRunID(ctx)
	if err != nil {
		return nil, err
	}

	docNodes, err := s.DocumentClusterNodes(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("cluster: document nodes for %s: %w", documentID, err)
	}
	docNodeSet := toSet(docNodes)

	clusters, err := s.ListClustersByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("cluster: list clusters for run %s: %w", runID, err)
	}
	if len(clusters) == 0 {
		return nil, errs.NotFound("clustering run %s has no clusters", runID)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ClusterIndex < clusters[j].ClusterIndex })

	var previousClusterID string
	if assignment, err := s.DocumentClusterAssignment(ctx, runID, documentID); err == nil {
		previousClusterID = assignment.ClusterID
	} else if !errs.Is(err, errs.CategoryNotFound) {
		return nil, err
	}

	var bestClusterID string
	bestOverlap := -1.0
	for _, c := range clusters {
		if c.ID == previousClusterID {
			continue // compare against every other cluster, never the current one
		}
		members, err := s.ClusterMemberNodes(ctx, runID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("cluster: member nodes for cluster %s: %w", c.ID, err)
		}
		overlap := jaccard(docNodeSet, toSet(members))
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestClusterID = c.ID
		}
	}
	if bestOverlap < 0 {
		bestOverlap = 0
	}

	decision := &Decision{
		DocumentID:        documentID,
		RunID:             runID,
		PreviousClusterID: previousClusterID,
		AssignedClusterID: previousClusterID,
		BestOverlap:       bestOverlap,
	}

	if bestClusterID != "" && bestOverlap > overlapThreshold {
		decision.AssignedClusterID = bestClusterID
		decision.Reassigned = bestClusterID != previousClusterID
		overlapCopy := bestOverlap
		dc := &store.DocumentCluster{
			ID: hashid.NewIDFromSeed("doc_cluster", runID, documentID), RunID: runID,
			ClusterID: bestClusterID, DocumentID: documentID, Overlap: &overlapCopy,
		}
		if err := s.UpsertDocumentCluster(ctx, dc); err != nil {
			return nil, fmt.Errorf("cluster: persist reassignment: %w", err)
		}
	}

	return decision, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// jaccard computes |A∩B| / |A∪B|, defined as 0 when both sets are empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	union := make(map[string]bool, len(a)+len(b))
	for k := range a {
		union[k] = true
		if b[k] {
			intersection++
		}
	}
	for k := range b {
		union[k] = true
	}
	return float64(intersection) / float64(len(union))
}
