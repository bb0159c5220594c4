//go:build cgo

package synthesis

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/graph"
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

func seedOCR(t *testing.T, s *store.Store, docID, text string) {
	t.Helper()
	id := "ocr-" + docID
	prov := &store.Provenance{
		ID: id, Kind: store.KindOCRResult, SourceKind: store.KindDocument,
		RootDocumentID: docID, ContentHash: hashid.HashText(text), Processor: "test",
	}
	o := &store.OCRResult{ID: id, DocumentID: docID, ExtractedText: text, Mode: store.OCRBalanced}
	if err := s.InsertOCRResult(context.Background(), o, prov); err != nil {
		t.Fatalf("seed ocr for %s: %v", docID, err)
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

func seedMention(t *testing.T, s *store.Store, id, entityID, docID string) {
	t.Helper()
	seedMentionInChunk(t, s, id, entityID, docID, nil)
}

func seedMentionInChunk(t *testing.T, s *store.Store, id, entityID, docID string, chunkID *string) {
	t.Helper()
	prov := &store.Provenance{
		ID: "prov-" + id, Kind: store.KindEntityExtraction, SourceKind: store.KindDocument,
		RootDocumentID: docID, ContentHash: hashid.HashText(id), Processor: "test",
	}
	m := &store.EntityMention{ID: id, EntityID: entityID, DocumentID: docID, ChunkID: chunkID, ContextText: "context"}
	if err := s.InsertEntityMention(context.Background(), m, prov); err != nil {
		t.Fatalf("seed mention %s: %v", id, err)
	}
}

// scriptedProvider returns canned Chat responses, one per call, in order.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req ai.ChatRequest) (ai.ChatResponse, error) {
	if p.calls >= len(p.responses) {
		return ai.ChatResponse{}, fmt.Errorf("scriptedProvider: no more responses (call %d)", p.calls+1)
	}
	resp := p.responses[p.calls]
	p.calls++
	return ai.ChatResponse{Content: resp}, nil
}

func (p *scriptedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (p *scriptedProvider) Classify(ctx context.Context, pairs []ai.ClassifyPair) ([]ai.ClassifyVerdict, error) {
	return nil, nil
}

func TestCorpusIntelligenceEmptyCensusReturnsNil(t *testing.T) {
	s := newTestStore(t)
	p := &scriptedProvider{}
	rec, err := CorpusIntelligence(context.Background(), s, p, Options{})
	if err != nil {
		t.Fatalf("corpus intelligence: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for an empty census, got %+v", rec)
	}
}

func TestCorpusIntelligencePersistsRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDocument(t, s, "doc-1")
	seedEntity(t, s, "e1", "doc-1", store.EntityPerson, "John Smith", "john smith")
	if _, err := graph.FullBuild(ctx, s, []string{"doc-1"}, graph.Options{Mode: resolver.ModeExact}); err != nil {
		t.Fatalf("full build: %v", err)
	}

	p := &scriptedProvider{responses: []string{
		"```json\n{\"summary\":\"A single-person case file.\",\"key_actors\":[{\"name\":\"John Smith\",\"importance\":20}],\"themes\":[\"litigation\"],\"narrative_arcs\":[\"filing\"]}\n```",
	}}

	rec, err := CorpusIntelligence(ctx, s, p, Options{})
	if err != nil {
		t.Fatalf("corpus intelligence: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a persisted record")
	}
	if rec.Summary != "A single-person case file." {
		t.Errorf("unexpected summary: %q", rec.Summary)
	}

	latest, err := s.LatestCorpusIntelligence(ctx)
	if err != nil {
		t.Fatalf("latest corpus intelligence: %v", err)
	}
	if latest.ID != rec.ID {
		t.Errorf("expected latest record to match persisted record")
	}
}

func TestDocumentNarrativeAndRelationshipInference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	seedOCR(t, s, "doc-1", "John Smith works at Acme Corp as lead counsel.")
	seedEntity(t, s, "e1", "doc-1", store.EntityPerson, "John Smith", "john smith")
	seedEntity(t, s, "e2", "doc-1", store.EntityOrganization, "Acme Corp", "acme corp")
	seedMention(t, s, "m1", "e1", "doc-1")
	seedMention(t, s, "m2", "e2", "doc-1")

	if _, err := graph.FullBuild(ctx, s, []string{"doc-1"}, graph.Options{Mode: resolver.ModeExact}); err != nil {
		t.Fatalf("full build: %v", err)
	}

	narrativeProvider := &scriptedProvider{responses: []string{
		"John Smith is lead counsel for Acme Corp in this filing.",
	}}
	narrative, err := DocumentNarrative(ctx, s, narrativeProvider, "doc-1", Options{})
	if err != nil {
		t.Fatalf("document narrative: %v", err)
	}
	if narrative.Narrative == "" {
		t.Fatal("expected a non-empty narrative")
	}

	relProvider := &scriptedProvider{responses: []string{
		`[{"source":"John Smith","target":"Acme Corp","type":"works_at","confidence":0.9,"evidence":"stated directly"}]`,
	}}
	created, err := InferRelationships(ctx, s, relProvider, "doc-1", Options{})
	if err != nil {
		t.Fatalf("infer relationships: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 inferred edge, got %d", created)
	}

	edges, err := s.ListEdgesByMetadataSource(ctx, "ai_synthesis")
	if err != nil {
		t.Fatalf("list ai_synthesis edges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 ai_synthesis edge, got %d", len(edges))
	}
	if edges[0].RelationshipType != store.RelWorksAt {
		t.Errorf("expected works_at, got %s", edges[0].RelationshipType)
	}

	// A second identical inference call must not duplicate the edge.
	relProvider2 := &scriptedProvider{responses: []string{
		`[{"source":"John Smith","target":"Acme Corp","type":"works_at","confidence":0.95,"evidence":"restated"}]`,
	}}
	created2, err := InferRelationships(ctx, s, relProvider2, "doc-1", Options{})
	if err != nil {
		t.Fatalf("second infer relationships: %v", err)
	}
	if created2 != 0 {
		t.Fatalf("expected the duplicate triple to be dropped, got %d new edges", created2)
	}
}

func TestGroundEvidenceBumpsWeightAndAnnotatesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	seedEntity(t, s, "e1", "doc-1", store.EntityPerson, "John Smith", "john smith")
	seedEntity(t, s, "e2", "doc-1", store.EntityOrganization, "Acme Corp", "acme corp")

	chunkID := "chunk-1"
	prov := &store.Provenance{ID: "prov-ocr1", Kind: store.KindOCRResult, RootDocumentID: "doc-1", ContentHash: hashid.HashText("t"), Processor: "test"}
	ocr := &store.OCRResult{ID: "ocr-1", DocumentID: "doc-1", ExtractedText: "John Smith works at Acme Corp.", Mode: store.OCRBalanced}
	if err := s.InsertOCRResult(ctx, ocr, prov); err != nil {
		t.Fatalf("seed ocr: %v", err)
	}
	chunkProv := &store.Provenance{ID: "prov-" + chunkID, Kind: store.KindChunk, SourceKind: store.KindOCRResult, RootDocumentID: "doc-1", ContentHash: hashid.HashText(chunkID), Processor: "test"}
	chunk := &store.Chunk{ID: chunkID, DocumentID: "doc-1", OCRResultID: "ocr-1", Text: "John Smith works at Acme Corp.", TextHash: hashid.HashText("t"), CharacterStart: 0, CharacterEnd: 10}
	if err := s.InsertChunk(ctx, chunk, chunkProv); err != nil {
		t.Fatalf("seed chunk: %v", err)
	}
	seedMentionInChunk(t, s, "m1", "e1", "doc-1", &chunkID)
	seedMentionInChunk(t, s, "m2", "e2", "doc-1", &chunkID)

	if _, err := graph.FullBuild(ctx, s, []string{"doc-1"}, graph.Options{Mode: resolver.ModeExact}); err != nil {
		t.Fatalf("full build: %v", err)
	}

	narrativeProvider := &scriptedProvider{responses: []string{"John Smith works at Acme Corp."}}
	if _, err := DocumentNarrative(ctx, s, narrativeProvider, "doc-1", Options{}); err != nil {
		t.Fatalf("document narrative: %v", err)
	}

	relProvider := &scriptedProvider{responses: []string{
		`[{"source":"John Smith","target":"Acme Corp","type":"works_at","confidence":0.8,"evidence":"stated"}]`,
	}}
	if _, err := InferRelationships(ctx, s, relProvider, "doc-1", Options{}); err != nil {
		t.Fatalf("infer relationships: %v", err)
	}

	grounded, err := GroundEvidence(ctx, s)
	if err != nil {
		t.Fatalf("ground evidence: %v", err)
	}
	if grounded != 1 {
		t.Fatalf("expected 1 edge grounded, got %d", grounded)
	}

	edges, err := s.ListEdgesByMetadataSource(ctx, "ai_synthesis")
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if edges[0].Weight <= 0.8 {
		t.Errorf("expected weight bumped above 0.8, got %f", edges[0].Weight)
	}
}

func TestClassifyDatabaseRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedDocument(t, s, "doc-1")
	seedEntity(t, s, "e1", "doc-1", store.EntityPerson, "John Smith", "john smith")
	if _, err := graph.FullBuild(ctx, s, []string{"doc-1"}, graph.Options{Mode: resolver.ModeExact}); err != nil {
		t.Fatalf("full build: %v", err)
	}

	p := &scriptedProvider{responses: []string{
		`[{"entity_name":"John Smith","role":"lead counsel","theme":"litigation","importance_rank":1,"context_summary":"represents the plaintiff"}]`,
	}}
	created, err := ClassifyDatabaseRoles(ctx, s, p, Options{})
	if err != nil {
		t.Fatalf("classify database roles: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 role created, got %d", created)
	}

	roles, err := s.ListEntityRoles(ctx, store.ScopeDatabase, "")
	if err != nil {
		t.Fatalf("list entity roles: %v", err)
	}
	if len(roles) != 1 || roles[0].Role != "lead counsel" {
		t.Fatalf("unexpected roles: %+v", roles)
	}
}
