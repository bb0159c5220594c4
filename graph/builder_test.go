//go:build cgo

package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/resolver"
	"github.com/danvers-labs/provkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocument(t *testing.T, s *store.Store, id string) {
	t.Helper()
	doc := &store.Document{
		ID: id, FilePath: "/tmp/" + id + ".txt", FileName: id + ".txt",
		FileHash: hashid.HashText(id), FileSize: 10, FileType: "text/plain", Status: store.StatusPending,
	}
	prov := &store.Provenance{
		ID: id, Kind: store.KindDocument, RootDocumentID: id,
		ContentHash: hashid.HashText("doc-" + id), Processor: "test",
	}
	if err := s.InsertDocument(context.Background(), doc, prov); err != nil {
		t.Fatalf("seed document %s: %v", id, err)
	}
}

func seedEntity(t *testing.T, s *store.Store, id, docID string, entityType store.EntityType, raw, normalized string) {
	t.Helper()
	prov := &store.Provenance{
		ID: "prov-" + id, Kind: store.KindEntityExtraction, SourceKind: store.KindDocument,
		RootDocumentID: docID, ContentHash: hashid.HashText(id), Processor: "test",
	}
	e := &store.Entity{
		ID: id, DocumentID: docID, EntityType: entityType, RawText: raw,
		NormalizedText: normalized, Confidence: 0.9,
	}
	if err := s.InsertEntity(context.Background(), e, prov); err != nil {
		t.Fatalf("seed entity %s: %v", id, err)
	}
}

func TestFullBuildCreatesNodesAndCrossDocumentEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	seedDocument(t, s, "doc-2")

	seedEntity(t, s, "e1", "doc-1", store.EntityPerson, "John Smith", "john smith")
	seedEntity(t, s, "e2", "doc-1", store.EntityOrganization, "Acme Corp", "acme corp")
	seedEntity(t, s, "e3", "doc-2", store.EntityPerson, "John Smith", "john smith")
	seedEntity(t, s, "e4", "doc-2", store.EntityOrganization, "Acme Corp", "acme corp")

	result, err := FullBuild(ctx, s, []string{"doc-1", "doc-2"}, Options{Mode: resolver.ModeExact})
	if err != nil {
		t.Fatalf("full build: %v", err)
	}
	if result.NodesCreated != 2 {
		t.Fatalf("expected 2 nodes (person, org), got %d", result.NodesCreated)
	}
	if result.SingleDocumentGraph {
		t.Fatal("expected a multi-document graph, not suppressed")
	}
	if result.EdgesCreated == 0 {
		t.Fatal("expected co_mentioned/co_located edges across the two shared documents")
	}
}

func TestFullBuildSingleDocumentSuppressesCooccurrence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-solo")
	seedEntity(t, s, "e1", "doc-solo", store.EntityPerson, "Jane Doe", "jane doe")
	seedEntity(t, s, "e2", "doc-solo", store.EntityOrganization, "Acme Corp", "acme corp")

	result, err := FullBuild(ctx, s, []string{"doc-solo"}, Options{Mode: resolver.ModeExact})
	if err != nil {
		t.Fatalf("full build: %v", err)
	}
	if !result.SingleDocumentGraph {
		t.Fatal("expected single-document graph suppression to be reported")
	}
	if result.EdgesCreated != 0 {
		t.Fatalf("expected zero co-occurrence edges for a single document, got %d", result.EdgesCreated)
	}
}

func TestIncrementalBuildRejectsAlreadyLinkedDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	seedEntity(t, s, "e1", "doc-1", store.EntityPerson, "John Smith", "john smith")
	if _, err := FullBuild(ctx, s, []string{"doc-1"}, Options{Mode: resolver.ModeExact}); err != nil {
		t.Fatalf("initial full build: %v", err)
	}

	result, err := IncrementalBuild(ctx, s, []string{"doc-1"}, Options{Mode: resolver.ModeExact})
	if err != nil {
		t.Fatalf("incremental build: %v", err)
	}
	if len(result.RejectedDocuments) != 1 {
		t.Fatalf("expected doc-1 to be rejected as already linked, got %v", result.RejectedDocuments)
	}
}

func TestIncrementalBuildMatchesExistingNode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	seedEntity(t, s, "e1", "doc-1", store.EntityOrganization, "Acme Corp", "acme corp")
	if _, err := FullBuild(ctx, s, []string{"doc-1"}, Options{Mode: resolver.ModeExact}); err != nil {
		t.Fatalf("initial full build: %v", err)
	}

	seedDocument(t, s, "doc-2")
	seedEntity(t, s, "e2", "doc-2", store.EntityOrganization, "ACME CORPORATION", "acme corporation")

	result, err := IncrementalBuild(ctx, s, []string{"doc-2"}, Options{Mode: resolver.ModeFuzzy})
	if err != nil {
		t.Fatalf("incremental build: %v", err)
	}
	if result.FuzzyMatches != 1 {
		t.Fatalf("expected the incremental match to merge via abbreviation expansion, got fuzzy_matches=%d", result.FuzzyMatches)
	}
	if result.NodesCreated != 0 {
		t.Fatalf("expected no new node since the entity matched an existing one, got %d", result.NodesCreated)
	}

	node, err := s.FindNodeByNormalizedName(ctx, store.EntityOrganization, "acme corp")
	if err != nil {
		t.Fatalf("find node: %v", err)
	}
	if node.DocumentCount != 2 {
		t.Errorf("expected node document_count to be 2 after incremental match, got %d", node.DocumentCount)
	}
}
