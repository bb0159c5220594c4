package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/danvers-labs/provkg"
	"github.com/danvers-labs/provkg/contradiction"
	"github.com/danvers-labs/provkg/hashid"
	"github.com/danvers-labs/provkg/resolver"
	"github.com/danvers-labs/provkg/retrieval"
	"github.com/danvers-labs/provkg/store"
	"github.com/danvers-labs/provkg/synthesis"
)

type handler struct {
	engine     provkg.Engine
	classifier resolver.Classifier
}

func newHandler(e provkg.Engine, classifier resolver.Classifier) *handler {
	return &handler{engine: e, classifier: classifier}
}

// POST /ingest
// Body is a JSON IngestDocument: a document's pre-extracted chunks and
// entities plus the OCR/VLM text they were split from. Raw file bytes
// never reach this boundary; OCR/VLM and chunk/entity extraction are the
// caller's responsibility upstream of it.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		provkg.IngestDocument
		ResolverMode   resolver.Mode          `json:"resolver_mode,omitempty"`
		ClusterContext resolver.ClusterContext `json:"cluster_context,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FileHash == "" {
		writeValidationError(w, "file_hash is required")
		return
	}

	var opts []provkg.IngestOption
	if req.ResolverMode != "" {
		opts = append(opts, provkg.WithResolverMode(req.ResolverMode))
	}
	if req.ResolverMode == resolver.ModeAI {
		if h.classifier == nil {
			writeValidationError(w, "resolver_mode=ai requires an AI classifier, none configured")
			return
		}
		opts = append(opts, provkg.WithClassifier(h.classifier))
	}
	if req.ClusterContext != nil {
		opts = append(opts, provkg.WithClusterContext(req.ClusterContext))
	}

	docID, err := h.engine.Ingest(ctx, req.IngestDocument, opts...)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"document_id": docID})
}

// POST /search
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Query   string                  `json:"query"`
		Options retrieval.SearchOptions `json:"options"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeValidationError(w, "query is required")
		return
	}

	results, trace, err := h.engine.Search(ctx, req.Query, req.Options)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"results": results, "trace": trace})
}

// POST /synthesize/{id}
func (h *handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	docID := r.PathValue("id")
	if !hashid.IsValidID(docID) {
		writeValidationError(w, "invalid document id")
		return
	}

	var opts synthesis.Options
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &opts) {
			return
		}
	}

	narrative, err := h.engine.Synthesize(ctx, docID, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, narrative)
}

// POST /corpus-intelligence
func (h *handler) handleCorpusIntelligence(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var opts synthesis.Options
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &opts) {
			return
		}
	}

	ci, err := h.engine.CorpusIntelligence(ctx, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, ci)
}

// POST /contradictions
func (h *handler) handleContradictions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Set1 contradiction.EntitySet `json:"set1"`
		Set2 contradiction.EntitySet `json:"set2"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	report, err := h.engine.Contradictions(ctx, req.Set1, req.Set2)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

// POST /cluster/build
func (h *handler) handleClusterBuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	result, err := h.engine.BuildGraphCluster(ctx)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// POST /cluster/reassign/{id}
func (h *handler) handleClusterReassign(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	docID := r.PathValue("id")
	if !hashid.IsValidID(docID) {
		writeValidationError(w, "invalid document id")
		return
	}

	decision, err := h.engine.Reassign(ctx, docID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, decision)
}

// GET /provenance/export?scope=document|database|all&document_id=...&format=json|prov
func (h *handler) handleProvenanceExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Minute)
	defer cancel()

	scope := provkg.ExportScope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = provkg.ExportDatabase
	}
	docID := r.URL.Query().Get("document_id")
	if scope == provkg.ExportDocument && !hashid.IsValidID(docID) {
		writeValidationError(w, "document_id is required and must be a valid id for scope=document")
		return
	}

	export, err := h.engine.ExportProvenance(ctx, scope, docID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "prov" {
		writeData(w, http.StatusOK, export.ToPROV())
		return
	}
	writeData(w, http.StatusOK, export)
}

// GET /documents?status=processing|complete|failed
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var status *store.DocumentStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := store.DocumentStatus(v)
		status = &s
	}

	docs, err := h.engine.Store().ListDocuments(r.Context(), status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"documents": docs})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeValidationError(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// envelope is the {ok, data} / {ok: false, error: {category, message}}
// shape every response takes.
type envelope struct {
	OK    bool        `json:"ok"`
	Data  any         `json:"data,omitempty"`
	Error *envelopeErr `json:"error,omitempty"`
}

type envelopeErr struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{OK: false, Error: &envelopeErr{
		Category: string(provkg.CategoryValidation), Message: message,
	}})
}

// writeEngineError maps an Engine error to its category and the matching
// HTTP status, falling back to internal/500 for anything uncategorized.
func writeEngineError(w http.ResponseWriter, err error) {
	status, category := http.StatusInternalServerError, provkg.CategoryInternal
	switch {
	case provkg.IsCategory(err, provkg.CategoryValidation):
		status, category = http.StatusBadRequest, provkg.CategoryValidation
	case provkg.IsCategory(err, provkg.CategoryNotFound):
		status, category = http.StatusNotFound, provkg.CategoryNotFound
	case provkg.IsCategory(err, provkg.CategoryIntegrity):
		status, category = http.StatusConflict, provkg.CategoryIntegrity
	case provkg.IsCategory(err, provkg.CategoryExternal):
		status, category = http.StatusBadGateway, provkg.CategoryExternal
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, envelope{OK: false, Error: &envelopeErr{
		Category: string(category), Message: err.Error(),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
