//go:build cgo

package contradiction

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocument(t *testing.T, s *store.Store, id string) {
	t.Helper()
	doc := &store.Document{
		ID: id, FilePath: "/tmp/" + id, FileName: id,
		FileHash: hashid.HashText(id), FileSize: 1, FileType: "text/plain", Status: store.StatusPending,
	}
	prov := &store.Provenance{
		ID: id, Kind: store.KindDocument, RootDocumentID: id,
		ContentHash: hashid.HashText("doc-" + id), Processor: "test",
	}
	if err := s.InsertDocument(context.Background(), doc, prov); err != nil {
		t.Fatalf("seed document %s: %v", id, err)
	}
}

func seedEntity(t *testing.T, s *store.Store, id, documentID string) {
	t.Helper()
	e := &store.Entity{
		ID: id, DocumentID: documentID, EntityType: store.EntityPerson,
		RawText: id, NormalizedText: id, Confidence: 0.9,
	}
	prov := &store.Provenance{
		ID: id, Kind: store.KindEntityExtraction, RootDocumentID: documentID,
		ContentHash: hashid.HashText(id), Processor: "test",
	}
	if err := s.InsertEntity(context.Background(), e, prov); err != nil {
		t.Fatalf("seed entity %s: %v", id, err)
	}
}

func seedNode(t *testing.T, s *store.Store, id string) {
	t.Helper()
	n := &store.KnowledgeNode{
		ID: id, EntityType: store.EntityPerson, CanonicalName: id, NormalizedName: id,
	}
	prov := &store.Provenance{
		ID: id, Kind: store.KindKnowledgeGraph, RootDocumentID: "",
		ContentHash: hashid.HashText(id), Processor: "test",
	}
	if err := s.InsertKnowledgeNode(context.Background(), n, prov); err != nil {
		t.Fatalf("seed node %s: %v", id, err)
	}
}

func link(t *testing.T, s *store.Store, nodeID, entityID, documentID string) {
	t.Helper()
	l := &store.NodeEntityLink{
		ID: nodeID + "-" + entityID, NodeID: nodeID, EntityID: entityID,
		DocumentID: documentID, SimilarityScore: 1.0, ResolutionMethod: "exact",
	}
	if err := s.InsertNodeEntityLink(context.Background(), l); err != nil {
		t.Fatalf("link %s/%s: %v", nodeID, entityID, err)
	}
}

func edge(t *testing.T, s *store.Store, id, src, tgt string, rel store.RelationshipType, docs []string) {
	t.Helper()
	e := &store.KnowledgeEdge{
		ID: id, SourceNodeID: src, TargetNodeID: tgt, RelationshipType: rel,
		Weight: 1.0, EvidenceCount: 1, DocumentIDs: docs, Metadata: "{}",
	}
	prov := &store.Provenance{
		ID: id, Kind: store.KindKnowledgeGraph, RootDocumentID: docs[0],
		ContentHash: hashid.HashText(id), Processor: "test",
	}
	if err := s.UpsertKnowledgeEdge(context.Background(), e, prov); err != nil {
		t.Fatalf("seed edge %s: %v", id, err)
	}
}

func TestDetectFindsHighSeverityContradiction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedDocument(t, s, "doc-1")
	seedDocument(t, s, "doc-2")
	seedEntity(t, s, "e-smith-1", "doc-1")
	seedEntity(t, s, "e-smith-2", "doc-2")
	seedNode(t, s, "n-smith")
	seedNode(t, s, "n-acme")
	seedNode(t, s, "n-globex")
	link(t, s, "n-smith", "e-smith-1", "doc-1")
	link(t, s, "n-smith", "e-smith-2", "doc-2")

	edge(t, s, "edge-1", "n-smith", "n-acme", store.RelWorksAt, []string{"doc-1"})
	edge(t, s, "edge-2", "n-smith", "n-globex", store.RelWorksAt, []string{"doc-2"})

	report, err := Detect(ctx, s,
		EntitySet{EntityIDs: []string{"e-smith-1"}, DocumentIDs: []string{"doc-1"}},
		EntitySet{EntityIDs: []string{"e-smith-2"}, DocumentIDs: []string{"doc-2"}},
	)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(report.Contradictions) != 1 {
		t.Fatalf("expected 1 contradiction, got %d: %+v", len(report.Contradictions), report.Contradictions)
	}
	c := report.Contradictions[0]
	if c.Severity != SeverityHigh {
		t.Errorf("expected high severity, got %s", c.Severity)
	}
	if c.NodeID != "n-smith" || c.Relation != store.RelWorksAt {
		t.Errorf("unexpected contradiction key: %+v", c)
	}
	if report.KGEdgesAnalyzed != 2 {
		t.Errorf("expected 2 edges analyzed, got %d", report.KGEdgesAnalyzed)
	}
}

func TestDetectFindsLowSeverityOneSidedEdge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedDocument(t, s, "doc-1")
	seedDocument(t, s, "doc-2")
	seedEntity(t, s, "e-smith-1", "doc-1")
	seedEntity(t, s, "e-smith-2", "doc-2")
	seedNode(t, s, "n-smith")
	seedNode(t, s, "n-acme")
	link(t, s, "n-smith", "e-smith-1", "doc-1")
	link(t, s, "n-smith", "e-smith-2", "doc-2")

	edge(t, s, "edge-1", "n-smith", "n-acme", store.RelWorksAt, []string{"doc-1"})

	report, err := Detect(ctx, s,
		EntitySet{EntityIDs: []string{"e-smith-1"}, DocumentIDs: []string{"doc-1"}},
		EntitySet{EntityIDs: []string{"e-smith-2"}, DocumentIDs: []string{"doc-2"}},
	)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(report.Contradictions) != 1 || report.Contradictions[0].Severity != SeverityLow {
		t.Fatalf("expected 1 low-severity contradiction, got %+v", report.Contradictions)
	}
}

func TestDetectIgnoresCoMentionedEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seedDocument(t, s, "doc-1")
	seedDocument(t, s, "doc-2")
	seedEntity(t, s, "e-smith-1", "doc-1")
	seedEntity(t, s, "e-smith-2", "doc-2")
	seedNode(t, s, "n-smith")
	seedNode(t, s, "n-acme")
	seedNode(t, s, "n-globex")
	link(t, s, "n-smith", "e-smith-1", "doc-1")
	link(t, s, "n-smith", "e-smith-2", "doc-2")

	edge(t, s, "edge-1", "n-smith", "n-acme", store.RelCoMentioned, []string{"doc-1"})
	edge(t, s, "edge-2", "n-smith", "n-globex", store.RelCoMentioned, []string{"doc-2"})

	report, err := Detect(ctx, s,
		EntitySet{EntityIDs: []string{"e-smith-1"}, DocumentIDs: []string{"doc-1"}},
		EntitySet{EntityIDs: []string{"e-smith-2"}, DocumentIDs: []string{"doc-2"}},
	)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(report.Contradictions) != 0 {
		t.Fatalf("expected no contradictions from co_mentioned edges, got %+v", report.Contradictions)
	}
}
