//go:build cgo

package cluster

import (
	"context"
	"testing"

	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

func TestBuildGroupsConnectedNodesIntoOneCluster(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedDocument(t, s, "doc-1")
	seedDocument(t, s, "doc-2")
	seedEntity(t, s, "e1", "doc-1")
	seedEntity(t, s, "e2", "doc-2")
	seedNode(t, s, "n1")
	seedNode(t, s, "n2")
	link(t, s, "n1", "e1", "doc-1")
	link(t, s, "n2", "e2", "doc-2")

	e := &store.KnowledgeEdge{
		ID: "edge-1", SourceNodeID: "n1", TargetNodeID: "n2", RelationshipType: store.RelCoMentioned,
		Weight: 1.0, EvidenceCount: 1, DocumentIDs: []string{"doc-1", "doc-2"}, Metadata: "{}",
	}
	prov := &store.Provenance{ID: "edge-1", Kind: store.KindKnowledgeGraph, RootDocumentID: "doc-1", ContentHash: hashid.HashText("edge-1"), Processor: "test"}
	if err := s.UpsertKnowledgeEdge(ctx, e, prov); err != nil {
		t.Fatalf("seed edge: %v", err)
	}

	result, err := Build(ctx, s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.ClustersCreated != 1 {
		t.Errorf("expected 1 cluster (n1 and n2 are connected), got %d", result.ClustersCreated)
	}
	if result.DocumentsPlaced != 2 {
		t.Errorf("expected both documents placed, got %d", result.DocumentsPlaced)
	}
}

func TestBuildSeparatesDisconnectedNodesIntoDistinctClusters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedDocument(t, s, "doc-1")
	seedDocument(t, s, "doc-2")
	seedEntity(t, s, "e1", "doc-1")
	seedEntity(t, s, "e2", "doc-2")
	seedNode(t, s, "n1")
	seedNode(t, s, "n2")
	link(t, s, "n1", "e1", "doc-1")
	link(t, s, "n2", "e2", "doc-2")

	result, err := Build(ctx, s)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.ClustersCreated != 2 {
		t.Errorf("expected 2 disjoint clusters, got %d", result.ClustersCreated)
	}
}
