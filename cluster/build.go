package cluster

import (
	"context"
	"fmt"

	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

// BuildResult reports what an initial clustering run did.
type BuildResult struct {
	RunID           string
	ClustersCreated int
	DocumentsPlaced int
}

// Build computes a fresh clustering run over the whole knowledge graph via
// connected components of the node-adjacency graph (an edge between two
// nodes joins their components regardless of relation type), then assigns
// every linked document to the cluster holding the plurality of its nodes.
// Adapted from the graph package's BFS connected-components pass; the
// modularity-based sub-split is not carried forward since nothing calls
// for splitting a cluster once found — Reassign is the only refinement
// applied after an initial Build.
func Build(ctx context.Context, s *store.Store) (*BuildResult, error) {
	nodeIDs, err := s.AllKnowledgeNodeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("cluster: loading nodes: %w", err)
	}
	if len(nodeIDs) == 0 {
		return &BuildResult{}, nil
	}

	edges, err := s.AllKnowledgeEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("cluster: loading edges: %w", err)
	}

	index := make(map[string]int, len(nodeIDs))
	for i, id := range nodeIDs {
		index[id] = i
	}
	adj := make([][]int, len(nodeIDs))
	for _, e := range edges {
		si, okS := index[e.SourceNodeID]
		ti, okT := index[e.TargetNodeID]
		if !okS || !okT || si == ti {
			continue
		}
		adj[si] = append(adj[si], ti)
		adj[ti] = append(adj[ti], si)
	}

	visited := make([]bool, len(nodeIDs))
	var components [][]string
	for i := range nodeIDs {
		if visited[i] {
			continue
		}
		var comp []string
		queue := []int{i}
		visited[i] = true
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			comp = append(comp, nodeIDs[n])
			for _, next := range adj[n] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		components = append(components, comp)
	}

	runID := hashid.NewID()
	nodeToCluster := make(map[string]string, len(nodeIDs))
	for idx, comp := range components {
		clusterID := hashid.NewIDFromSeed("cluster", runID, fmt.Sprint(idx))
		c := &store.Cluster{ID: clusterID, RunID: runID, ClusterIndex: idx}
		if err := s.InsertCluster(ctx, c); err != nil {
			return nil, fmt.Errorf("cluster: inserting cluster %d: %w", idx, err)
		}
		for _, nodeID := range comp {
			nodeToCluster[nodeID] = clusterID
		}
	}

	documents, err := s.ListDocuments(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cluster: listing documents: %w", err)
	}

	placed := 0
	for _, doc := range documents {
		docNodes, err := s.DocumentClusterNodes(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("cluster: document nodes for %s: %w", doc.ID, err)
		}
		if len(docNodes) == 0 {
			continue
		}
		votes := make(map[string]int)
		for _, nodeID := range docNodes {
			if clusterID, ok := nodeToCluster[nodeID]; ok {
				votes[clusterID]++
			}
		}
		bestCluster, bestVotes := "", 0
		for clusterID, v := range votes {
			if v > bestVotes {
				bestVotes, bestCluster = v, clusterID
			}
		}
		if bestCluster == "" {
			continue
		}
		overlap := float64(bestVotes) / float64(len(docNodes))
		dc := &store.DocumentCluster{
			ID: hashid.NewIDFromSeed("doc_cluster", runID, doc.ID), RunID: runID,
			ClusterID: bestCluster, DocumentID: doc.ID, Overlap: &overlap,
		}
		if err := s.UpsertDocumentCluster(ctx, dc); err != nil {
			return nil, fmt.Errorf("cluster: placing document %s: %w", doc.ID, err)
		}
		placed++
	}

	return &BuildResult{RunID: runID, ClustersCreated: len(components), DocumentsPlaced: placed}, nil
}
