//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danvers-labs/provkg/hashid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in new dir: %v", err)
	}
	defer s.Close()
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate call failed: %v", err)
	}
	current, err := s.currentVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if current != len(migrations) {
		t.Fatalf("expected version %d after idempotent migrate, got %d", len(migrations), current)
	}
}

func sampleDocumentProv(id string) *Provenance {
	return &Provenance{
		ID:               id,
		Kind:             KindDocument,
		RootDocumentID:   id,
		ContentHash:      hashid.HashText("content-" + id),
		Processor:        "test-ingest",
		ProcessorVersion: "v1",
		ChainDepth:       0,
	}
}

func insertSampleDocument(t *testing.T, s *Store, id, path string) *Document {
	t.Helper()
	doc := &Document{
		ID:       id,
		FilePath: path,
		FileName: filepath.Base(path),
		FileHash: hashid.HashText(path),
		FileSize: 100,
		FileType: "text/plain",
		Status:   StatusPending,
	}
	if err := s.InsertDocument(context.Background(), doc, sampleDocumentProv(id)); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	return doc
}

func TestInsertAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	doc := insertSampleDocument(t, s, "doc-1", "/tmp/a.txt")

	got, err := s.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.FilePath != doc.FilePath {
		t.Errorf("got file_path %q, want %q", got.FilePath, doc.FilePath)
	}

	byPath, err := s.GetDocumentByPath(context.Background(), doc.FilePath)
	if err != nil {
		t.Fatalf("get document by path: %v", err)
	}
	if byPath.ID != doc.ID {
		t.Errorf("got id %q by path, want %q", byPath.ID, doc.ID)
	}
}

func TestGetDocumentByPathNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetDocumentByPath(context.Background(), "/nope"); err == nil {
		t.Fatal("expected error for missing document")
	}
}

func TestDocumentStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	doc := insertSampleDocument(t, s, "doc-2", "/tmp/b.txt")

	if err := s.UpdateDocumentStatus(context.Background(), doc.ID, StatusProcessing, nil); err != nil {
		t.Fatalf("transition to processing: %v", err)
	}
	if err := s.UpdateDocumentStatus(context.Background(), doc.ID, StatusComplete, nil); err != nil {
		t.Fatalf("transition to complete: %v", err)
	}

	got, err := s.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusComplete {
		t.Errorf("expected status complete, got %s", got.Status)
	}
	if got.OCRCompletedAt == nil {
		t.Error("expected ocr_completed_at to be stamped on transition to complete")
	}
}

func TestInsertChunkRejectsInvalidRange(t *testing.T) {
	s := newTestStore(t)
	doc := insertSampleDocument(t, s, "doc-3", "/tmp/c.txt")
	ocrProv := &Provenance{
		ID: "ocr-1", Kind: KindOCRResult, SourceKind: KindDocument, SourceID: &doc.ProvenanceID,
		ParentID: &doc.ProvenanceID, ParentIDs: []string{doc.ProvenanceID},
		RootDocumentID: doc.ID, ContentHash: hashid.HashText("ocr"), Processor: "test", ChainDepth: 1,
	}
	ocr := &OCRResult{ID: "ocr-1", DocumentID: doc.ID, ExtractedText: "hello world", Mode: OCRBalanced}
	if err := s.InsertOCRResult(context.Background(), ocr, ocrProv); err != nil {
		t.Fatalf("insert ocr result: %v", err)
	}

	chunkProv := &Provenance{
		ID: "chunk-1", Kind: KindChunk, SourceKind: KindOCRResult, SourceID: &ocrProv.ID,
		ParentID: &ocrProv.ID, ParentIDs: []string{doc.ProvenanceID, ocrProv.ID},
		RootDocumentID: doc.ID, ContentHash: hashid.HashText("chunk"), Processor: "test", ChainDepth: 2,
	}
	badChunk := &Chunk{
		ID: "chunk-1", DocumentID: doc.ID, OCRResultID: ocr.ID, Text: "hello",
		TextHash: hashid.HashText("hello"), ChunkIndex: 0, CharacterStart: 10, CharacterEnd: 5,
	}
	if err := s.InsertChunk(context.Background(), badChunk, chunkProv); err == nil {
		t.Fatal("expected validation error for character_end < character_start")
	}
}

func TestEmbeddingRequiresExactlyOneTarget(t *testing.T) {
	s := newTestStore(t)
	chunkID := "chunk-x"
	prov := &Provenance{ID: "emb-1", Kind: KindEmbedding, RootDocumentID: "doc-x", ContentHash: hashid.HashText("emb"), Processor: "test"}
	target := EmbeddingTarget{ChunkID: &chunkID, ImageID: &chunkID}
	err := s.InsertEmbedding(context.Background(), "emb-1", target, []float32{1, 2, 3, 4}, prov)
	if err == nil {
		t.Fatal("expected validation error for multiple embedding targets")
	}
}

func TestDeleteDocumentNotFoundIsNoError(t *testing.T) {
	s := newTestStore(t)
	// Deleting a document that doesn't exist should not error; it's just a
	// no-op cascade over empty result sets.
	if err := s.DeleteDocument(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error deleting missing document: %v", err)
	}
}

func TestProvenanceChainWalksToRoot(t *testing.T) {
	s := newTestStore(t)
	doc := insertSampleDocument(t, s, "doc-4", "/tmp/d.txt")

	childID := "prov-child"
	child := &Provenance{
		ID: childID, Kind: KindOCRResult, SourceKind: KindDocument, SourceID: &doc.ProvenanceID,
		ParentID: &doc.ProvenanceID, ParentIDs: []string{doc.ProvenanceID},
		RootDocumentID: doc.ID, ContentHash: hashid.HashText("child"), Processor: "test", ChainDepth: 1,
	}
	if err := s.InsertProvenance(context.Background(), child); err != nil {
		t.Fatalf("insert child provenance: %v", err)
	}

	chain, err := s.Chain(context.Background(), childID)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("expected chain of length 2, got %d", len(chain))
	}
	if chain[len(chain)-1].ID != doc.ProvenanceID {
		t.Errorf("expected chain to terminate at document provenance root")
	}
}

func TestKnowledgeEdgeUpsertMergesDocumentIDs(t *testing.T) {
	s := newTestStore(t)
	n1 := &KnowledgeNode{ID: "node-1", EntityType: EntityPerson, CanonicalName: "A", NormalizedName: "a"}
	n2 := &KnowledgeNode{ID: "node-2", EntityType: EntityPerson, CanonicalName: "B", NormalizedName: "b"}
	for _, n := range []*KnowledgeNode{n1, n2} {
		prov := &Provenance{ID: "prov-" + n.ID, Kind: KindKnowledgeGraph, RootDocumentID: "doc-kg", ContentHash: hashid.HashText(n.ID), Processor: "test"}
		if err := s.InsertKnowledgeNode(context.Background(), n, prov); err != nil {
			t.Fatalf("insert node: %v", err)
		}
	}

	edgeProv := &Provenance{ID: "prov-edge", Kind: KindKnowledgeGraph, RootDocumentID: "doc-kg", ContentHash: hashid.HashText("edge"), Processor: "test"}
	edge := &KnowledgeEdge{
		ID: "edge-1", SourceNodeID: n1.ID, TargetNodeID: n2.ID, RelationshipType: RelCoMentioned,
		Weight: 0.5, EvidenceCount: 1, DocumentIDs: []string{"doc-a"}, Metadata: "{}",
	}
	if err := s.UpsertKnowledgeEdge(context.Background(), edge, edgeProv); err != nil {
		t.Fatalf("insert edge: %v", err)
	}

	edge2 := &KnowledgeEdge{
		ID: "edge-2", SourceNodeID: n1.ID, TargetNodeID: n2.ID, RelationshipType: RelCoMentioned,
		Weight: 0.8, EvidenceCount: 2, DocumentIDs: []string{"doc-b"}, Metadata: "{}",
	}
	if err := s.UpsertKnowledgeEdge(context.Background(), edge2, nil); err != nil {
		t.Fatalf("merge edge: %v", err)
	}

	edges, err := s.ListEdgesByNode(context.Background(), n1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected edges to merge into one row, got %d", len(edges))
	}
	if len(edges[0].DocumentIDs) != 2 {
		t.Errorf("expected merged document_ids of length 2, got %v", edges[0].DocumentIDs)
	}
	if edges[0].Weight != 0.8 {
		t.Errorf("expected weight overwritten to 0.8, got %v", edges[0].Weight)
	}
}

func TestDeleteAllGraphDataOrder(t *testing.T) {
	s := newTestStore(t)
	n := &KnowledgeNode{ID: "node-z", EntityType: EntityPerson, CanonicalName: "Z", NormalizedName: "z"}
	prov := &Provenance{ID: "prov-node-z", Kind: KindKnowledgeGraph, RootDocumentID: "doc-z", ContentHash: hashid.HashText("z"), Processor: "test"}
	if err := s.InsertKnowledgeNode(context.Background(), n, prov); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteAllGraphData(context.Background()); err != nil {
		t.Fatalf("delete all graph data: %v", err)
	}
	if _, err := s.GetKnowledgeNode(context.Background(), n.ID); err == nil {
		t.Fatal("expected node to be gone after DeleteAllGraphData")
	}
}
