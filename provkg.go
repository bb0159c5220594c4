// Package provkg is a provenance-tracked knowledge graph and hybrid
// retrieval engine: every derived row traces back to its source document
// through a content-addressed provenance chain, entities extracted from
// documents resolve into a deduplicated knowledge graph, and retrieval
// fuses BM25, vector, and graph search behind a single query surface.
package provkg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/cluster"
	"github.com/danvers-labs/provkg/contradiction"
	"github.com/danvers-labs/provkg/graph"
	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/resolver"
	"github.com/danvers-labs/provkg/retrieval"
	"github.com/danvers-labs/provkg/store"
	"github.com/danvers-labs/provkg/synthesis"
)

// Engine is the main entry point for the provenance knowledge-graph engine.
type Engine interface {
	// Ingest stores a document's pre-extracted chunks and entities,
	// embeds the chunks, and links the document's entities into the
	// knowledge graph (full build if this is the first linked document
	// touching the graph, incremental otherwise). Returns the document ID.
	Ingest(ctx context.Context, doc IngestDocument, opts ...IngestOption) (string, error)

	// BuildGraphCluster recomputes the initial cluster & reassignment
	// state over the whole graph.
	BuildGraphCluster(ctx context.Context) (*cluster.BuildResult, error)

	// Reassign re-checks a single document's cluster assignment against
	// the most recent clustering run.
	Reassign(ctx context.Context, documentID string) (*cluster.Decision, error)

	// Search runs hybrid retrieval for a query.
	Search(ctx context.Context, query string, opts retrieval.SearchOptions) ([]retrieval.Result, *retrieval.SearchTrace, error)

	// Contradictions compares two entity sets for conflicting knowledge
	// graph attestations.
	Contradictions(ctx context.Context, set1, set2 contradiction.EntitySet) (*contradiction.Report, error)

	// Synthesize runs the AI synthesis layer over a document: a
	// narrative, inferred relationships, and evidence grounding.
	Synthesize(ctx context.Context, documentID string, opts synthesis.Options) (*store.DocumentNarrative, error)

	// CorpusIntelligence runs the corpus-wide synthesis tier.
	CorpusIntelligence(ctx context.Context, opts synthesis.Options) (*store.CorpusIntelligence, error)

	// ExportProvenance builds a JSON provenance export at the given scope.
	// documentID is required for ExportDocument and ignored otherwise.
	ExportProvenance(ctx context.Context, scope ExportScope, documentID string) (*ProvenanceExport, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// IngestDocument is the caller-supplied view of a document ready to be
// stored: OCR/VLM extraction and chunk/entity extraction happen upstream
// of this boundary, so the engine takes their output directly rather than
// running them itself.
type IngestDocument struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	FileHash string `json:"file_hash"` // sha256:... ; computed by the caller from the source bytes
	FileType string `json:"file_type"`
	// ExtractedText is the OCR/VLM pass's full extracted text, stored as
	// the document's ocr_result before chunking.
	ExtractedText string        `json:"extracted_text"`
	OCRMode       store.OCRMode `json:"ocr_mode,omitempty"` // defaults to store.OCRBalanced when empty
	PageCount     int           `json:"page_count,omitempty"`
	Chunks        []IngestChunk `json:"chunks"`
	Entities      []IngestEntity `json:"entities"`
}

// IngestChunk is one pre-segmented unit of document text.
type IngestChunk struct {
	Text           string `json:"text"`
	ChunkIndex     int    `json:"chunk_index"`
	CharacterStart int    `json:"character_start"`
	CharacterEnd   int    `json:"character_end"`
	PageNumber     *int   `json:"page_number,omitempty"`
}

// IngestEntity is one pre-extracted entity surface form.
type IngestEntity struct {
	EntityType     store.EntityType `json:"entity_type"`
	RawText        string           `json:"raw_text"`
	NormalizedText string           `json:"normalized_text"`
	Confidence     float64          `json:"confidence"`
}

// IngestOption configures a single Ingest call.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	resolverMode   resolver.Mode
	classifier     resolver.Classifier
	clusterContext resolver.ClusterContext
}

// WithResolverMode overrides the resolver tier used when linking this
// document's entities into the graph. Defaults to resolver.ModeFuzzy.
func WithResolverMode(mode resolver.Mode) IngestOption {
	return func(o *ingestOptions) { o.resolverMode = mode }
}

// WithClassifier supplies the AI classifier the resolver's mode=ai tier
// calls through. Required when WithResolverMode(resolver.ModeAI) is used.
func WithClassifier(c resolver.Classifier) IngestOption {
	return func(o *ingestOptions) { o.classifier = c }
}

// WithClusterContext supplies per-entity cluster hints for the resolver's
// similarity boost.
func WithClusterContext(cc resolver.ClusterContext) IngestOption {
	return func(o *ingestOptions) { o.clusterContext = cc }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	store    *store.Store
	embedder ai.Provider
	chat     ai.Provider
	retr     *retrieval.Engine
}

// New creates a new Engine with the given configuration and AI provider.
// embedder backs chunk embeddings and retrieval's vector arm; chat backs
// the synthesis layer. Either may be nil when the corresponding tier is
// never invoked (AI-tier calls then return ErrAIProviderRequired).
func New(cfg Config, embedder, chat ai.Provider) (Engine, error) {
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}
	s, err := store.New(cfg.DatabasePath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("provkg: opening store: %w", err)
	}

	retr := retrieval.New(s, embedder, retrieval.Config{
		WeightVector: cfg.WeightVector,
		WeightFTS:    cfg.WeightFTS,
		WeightGraph:  cfg.WeightGraph,
	})

	return &engine{cfg: cfg, store: s, embedder: embedder, chat: chat, retr: retr}, nil
}

// Ingest stores a document's chunks and entities and links the entities
// into the knowledge graph.
func (e *engine) Ingest(ctx context.Context, doc IngestDocument, opts ...IngestOption) (string, error) {
	options := &ingestOptions{resolverMode: resolver.ModeFuzzy}
	for _, o := range opts {
		o(options)
	}

	if doc.FileHash == "" {
		return "", ErrInvalidConfig
	}

	docID := hashid.NewIDFromSeed("document", doc.FileHash)
	docProv := &store.Provenance{
		ID: docID, Kind: store.KindDocument,
		RootDocumentID: docID, ContentHash: doc.FileHash, Processor: "provkg.ingest",
	}
	document := &store.Document{
		ID: docID, FilePath: doc.FilePath, FileName: doc.FileName,
		FileHash: doc.FileHash, FileType: doc.FileType, Status: store.StatusProcessing,
	}
	if err := e.store.InsertDocument(ctx, document, docProv); err != nil {
		return "", fmt.Errorf("provkg: storing document: %w", err)
	}

	ocrMode := doc.OCRMode
	if ocrMode == "" {
		ocrMode = store.OCRBalanced
	}
	ocrID := hashid.NewIDFromSeed("ocr_result", docID)
	ocrProv := &store.Provenance{
		ID: hashid.NewIDFromSeed("prov_ocr", ocrID), Kind: store.KindOCRResult,
		SourceKind: store.KindDocument, SourceID: &docProv.ID,
		RootDocumentID: docID, ContentHash: hashid.HashText(doc.ExtractedText), Processor: "provkg.ingest",
		ParentID: &docProv.ID, ChainDepth: 1,
	}
	ocrResult := &store.OCRResult{
		ID: ocrID, DocumentID: docID, ExtractedText: doc.ExtractedText,
		Mode: ocrMode, PageCount: doc.PageCount,
	}
	if err := e.store.InsertOCRResult(ctx, ocrResult, ocrProv); err != nil {
		return "", fmt.Errorf("provkg: storing ocr result: %w", err)
	}

	slog.Info("ingest: storing chunks", "document_id", docID, "chunks", len(doc.Chunks))
	chunkIDs := make([]string, len(doc.Chunks))
	for i, c := range doc.Chunks {
		chunkID := hashid.NewIDFromSeed("chunk", docID, fmt.Sprint(c.ChunkIndex))
		chunkIDs[i] = chunkID
		chunk := &store.Chunk{
			ID: chunkID, DocumentID: docID, OCRResultID: ocrID, Text: c.Text, TextHash: hashid.HashText(c.Text),
			ChunkIndex: c.ChunkIndex, CharacterStart: c.CharacterStart, CharacterEnd: c.CharacterEnd,
			PageNumber: c.PageNumber, EmbeddingStatus: store.EmbeddingPending,
		}
		chunkProv := &store.Provenance{
			ID: hashid.NewIDFromSeed("prov_chunk", chunkID), Kind: store.KindChunk,
			SourceKind: store.KindOCRResult, SourceID: &ocrProv.ID,
			RootDocumentID: docID, ContentHash: chunk.TextHash, Processor: "provkg.ingest",
			ParentID: &ocrProv.ID, ChainDepth: 2,
		}
		if err := e.store.InsertChunk(ctx, chunk, chunkProv); err != nil {
			e.markFailed(ctx, docID, "storing chunk")
			return "", fmt.Errorf("provkg: storing chunk %d: %w", c.ChunkIndex, err)
		}
	}

	if e.embedder != nil && len(doc.Chunks) > 0 {
		if err := e.embedChunks(ctx, docID, doc.Chunks, chunkIDs); err != nil {
			e.markFailed(ctx, docID, "embedding")
			return "", fmt.Errorf("provkg: embedding chunks: %w", err)
		}
	}

	slog.Info("ingest: storing entities", "document_id", docID, "entities", len(doc.Entities))
	for i, ent := range doc.Entities {
		entID := hashid.NewIDFromSeed("entity", docID, fmt.Sprint(i))
		e2 := &store.Entity{
			ID: entID, DocumentID: docID, EntityType: ent.EntityType,
			RawText: ent.RawText, NormalizedText: ent.NormalizedText, Confidence: ent.Confidence,
		}
		entProv := &store.Provenance{
			ID: hashid.NewIDFromSeed("prov_entity", entID), Kind: store.KindEntityExtraction,
			RootDocumentID: docID, ContentHash: hashid.HashText(ent.RawText), Processor: "provkg.ingest",
			ParentID: &docProv.ID, ChainDepth: 1,
		}
		if err := e.store.InsertEntity(ctx, e2, entProv); err != nil {
			e.markFailed(ctx, docID, "storing entity")
			return "", fmt.Errorf("provkg: storing entity %d: %w", i, err)
		}
	}

	if len(doc.Entities) > 0 {
		if err := e.linkIntoGraph(ctx, docID, options); err != nil {
			slog.Warn("ingest: graph linking had errors (non-fatal)", "document_id", docID, "error", err)
		}
	}

	if err := e.store.UpdateDocumentStatus(ctx, docID, store.StatusComplete, nil); err != nil {
		return "", fmt.Errorf("provkg: marking document complete: %w", err)
	}
	return docID, nil
}

// linkIntoGraph runs a full graph build if no document has been linked
// yet, or an incremental build otherwise, preserving the ordering
// guarantee that entities resolve into nodes before edges are drawn.
func (e *engine) linkIntoGraph(ctx context.Context, docID string, options *ingestOptions) error {
	linked, err := e.store.DocumentLinked(ctx, docID)
	if err != nil {
		return fmt.Errorf("checking graph linkage: %w", err)
	}
	if linked {
		return nil
	}

	buildOpts := graph.Options{
		Mode: options.resolverMode, Classifier: options.classifier, ClusterContext: options.clusterContext,
	}

	nodeIDs, err := e.store.AllKnowledgeNodeIDs(ctx)
	if err != nil {
		return fmt.Errorf("checking existing graph: %w", err)
	}
	if len(nodeIDs) == 0 {
		_, err = graph.FullBuild(ctx, e.store, []string{docID}, buildOpts)
	} else {
		_, err = graph.IncrementalBuild(ctx, e.store, []string{docID}, buildOpts)
	}
	return err
}

func (e *engine) markFailed(ctx context.Context, docID, stage string) {
	msg := stage + " failed"
	if err := e.store.UpdateDocumentStatus(ctx, docID, store.StatusFailed, &msg); err != nil {
		slog.Warn("ingest: failed to mark document failed", "document_id", docID, "error", err)
	}
}

// embedChunks generates and stores embeddings for a document's chunks.
func (e *engine) embedChunks(ctx context.Context, docID string, chunks []IngestChunk, chunkIDs []string) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAIProviderRequired, err)
	}
	for i, vec := range vectors {
		chunkID := chunkIDs[i]
		embID := hashid.NewIDFromSeed("embedding", chunkID)
		prov := &store.Provenance{
			ID: hashid.NewIDFromSeed("prov_embedding", embID), Kind: store.KindEmbedding,
			RootDocumentID: docID, ContentHash: hashid.CompositeHashStrings(chunkID), Processor: "provkg.ingest",
			ChainDepth: 2,
		}
		target := store.EmbeddingTarget{ChunkID: &chunkID}
		if err := e.store.InsertEmbedding(ctx, embID, target, vec, prov); err != nil {
			return fmt.Errorf("storing embedding for chunk %s: %w", chunkID, err)
		}
		if err := e.store.UpdateChunkEmbeddingStatus(ctx, chunkID, store.EmbeddingComplete); err != nil {
			slog.Warn("ingest: updating embedding status failed", "chunk_id", chunkID, "error", err)
		}
	}
	return nil
}

// BuildGraphCluster recomputes the clustering run over the whole graph.
func (e *engine) BuildGraphCluster(ctx context.Context) (*cluster.BuildResult, error) {
	return cluster.Build(ctx, e.store)
}

// Reassign re-checks a document's cluster assignment.
func (e *engine) Reassign(ctx context.Context, documentID string) (*cluster.Decision, error) {
	return cluster.Reassign(ctx, e.store, documentID)
}

// Search runs hybrid retrieval for a query.
func (e *engine) Search(ctx context.Context, query string, opts retrieval.SearchOptions) ([]retrieval.Result, *retrieval.SearchTrace, error) {
	return e.retr.Search(ctx, query, opts)
}

// Contradictions compares two entity sets for conflicting attestations.
func (e *engine) Contradictions(ctx context.Context, set1, set2 contradiction.EntitySet) (*contradiction.Report, error) {
	return contradiction.Detect(ctx, e.store, set1, set2)
}

// Synthesize runs the document narrative tier.
func (e *engine) Synthesize(ctx context.Context, documentID string, opts synthesis.Options) (*store.DocumentNarrative, error) {
	if e.chat == nil {
		return nil, ErrAIProviderRequired
	}
	return synthesis.DocumentNarrative(ctx, e.store, e.chat, documentID, opts)
}

// CorpusIntelligence runs the corpus-wide synthesis tier.
func (e *engine) CorpusIntelligence(ctx context.Context, opts synthesis.Options) (*store.CorpusIntelligence, error) {
	if e.chat == nil {
		return nil, ErrAIProviderRequired
	}
	return synthesis.CorpusIntelligence(ctx, e.store, e.chat, opts)
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}
