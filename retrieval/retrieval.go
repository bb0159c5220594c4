// Package retrieval implements the hybrid retrieval engine: BM25 full-text
// search, vector similarity search, and an optional graph-traversal arm,
// fused by Reciprocal Rank Fusion
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/store"
)

// Config holds default retrieval engine weights, mirroring the root
// package's Config knobs for RRF fusion.
type Config struct {
	WeightVector float64
	WeightFTS    float64
	WeightGraph  float64
}

// SearchOptions configures a single search operation. Zero values fall
// back to the Engine's Config defaults.
type SearchOptions struct {
	MaxResults     int
	WeightVec      float64
	WeightFTS      float64
	WeightGraph    float64
	DocumentFilter []string
	Phrase         bool // exact multi-word phrase matching on the BM25 arm
	ExpandSynonyms bool // apply the legal/medical synonym map to the BM25 arm
	Reranker       Reranker
}

// SearchTrace records the breakdown of a hybrid search operation, for
// diagnostics and for the request-handler envelope.
type SearchTrace struct {
	VecResults      int                        `json:"vec_results"`
	FTSResults      int                        `json:"fts_results"`
	GraphResults    int                        `json:"graph_results"`
	FusedResults    int                        `json:"fused_results"`
	VecWeight       float64                    `json:"vec_weight"`
	FTSWeight       float64                    `json:"fts_weight"`
	GraphWeight     float64                    `json:"graph_weight"`
	SynonymsApplied bool                       `json:"synonyms_applied"`
	FTSQuery        string                     `json:"fts_query"`
	GraphEntities   []string                   `json:"graph_entities"`
	Reranked        bool                       `json:"reranked"`
	ElapsedMs       int64                      `json:"elapsed_ms"`
	PerResult       map[string]FusedResultInfo `json:"per_result,omitempty"`
}

// Result is one fused or single-arm retrieval hit.
type Result struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64
}

// Engine performs hybrid retrieval combining BM25, vector, and graph search.
type Engine struct {
	store    *store.Store
	embedder ai.Provider
	cfg      Config
}

// New creates a retrieval Engine. embedder backs the vector arm; pass nil
// to disable it (the engine then fuses BM25 and graph only).
func New(s *store.Store, embedder ai.Provider, cfg Config) *Engine {
	return &Engine{store: s, embedder: embedder, cfg: cfg}
}

// Search performs hybrid retrieval: BM25 and vector are fetched 2N deep
// before RRF fusion; the graph arm is included whenever the query yields
// extractable entity names, contributing a third ranked signal.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, *SearchTrace, error) {
	if opts.MaxResults == 0 {
		opts.MaxResults = 20
	}
	if opts.WeightVec == 0 {
		opts.WeightVec = e.cfg.WeightVector
	}
	if opts.WeightFTS == 0 {
		opts.WeightFTS = e.cfg.WeightFTS
	}
	if opts.WeightGraph == 0 {
		opts.WeightGraph = e.cfg.WeightGraph
	}
	fetchN := opts.MaxResults * 2

	trace := &SearchTrace{VecWeight: opts.WeightVec, FTSWeight: opts.WeightFTS, GraphWeight: opts.WeightGraph}

	ftsQuery := query
	if opts.ExpandSynonyms {
		ftsQuery = expandSynonyms(query)
		trace.SynonymsApplied = ftsQuery != query
	}
	trace.FTSQuery = ftsQuery

	graphEntities := extractQueryEntities(query)
	trace.GraphEntities = graphEntities

	slog.Debug("retrieval: starting hybrid search",
		"query_len", len(query), "max_results", opts.MaxResults,
		"weights", fmt.Sprintf("vec=%.1f fts=%.1f graph=%.1f", opts.WeightVec, opts.WeightFTS, opts.WeightGraph))
	start := time.Now()

	type armResult struct {
		results []Result
		err     error
	}
	vecCh := make(chan armResult, 1)
	ftsCh := make(chan armResult, 1)
	graphCh := make(chan armResult, 1)

	go func() {
		r, err := e.vectorSearch(ctx, query, fetchN, opts.DocumentFilter)
		vecCh <- armResult{r, err}
	}()
	go func() {
		r, err := e.bm25Search(ctx, ftsQuery, opts.Phrase, fetchN, opts.DocumentFilter)
		ftsCh <- armResult{r, err}
	}()
	go func() {
		r, err := e.graphSearch(ctx, graphEntities, fetchN)
		graphCh <- armResult{r, err}
	}()

	vecRes, ftsRes, graphRes := <-vecCh, <-ftsCh, <-graphCh

	if vecRes.err != nil {
		slog.Warn("retrieval: vector search failed", "error", vecRes.err)
	}
	if ftsRes.err != nil {
		slog.Warn("retrieval: bm25 search failed", "error", ftsRes.err)
	}
	if graphRes.err != nil {
		slog.Warn("retrieval: graph search failed", "error", graphRes.err)
	}
	trace.VecResults = len(vecRes.results)
	trace.FTSResults = len(ftsRes.results)
	trace.GraphResults = len(graphRes.results)

	fused, infoMap := fuseRRF([]Arm{
		{Name: "vector", Results: vecRes.results, Weight: opts.WeightVec},
		{Name: "fts", Results: ftsRes.results, Weight: opts.WeightFTS},
		{Name: "graph", Results: graphRes.results, Weight: opts.WeightGraph},
	}, opts.MaxResults)
	trace.FusedResults = len(fused)
	trace.PerResult = infoMap

	if len(fused) == 0 {
		if vecRes.err != nil {
			return nil, trace, fmt.Errorf("vector search: %w", vecRes.err)
		}
		if ftsRes.err != nil {
			return nil, trace, fmt.Errorf("bm25 search: %w", ftsRes.err)
		}
		if graphRes.err != nil {
			return nil, trace, fmt.Errorf("graph search: %w", graphRes.err)
		}
	}

	if opts.Reranker != nil && len(fused) > 0 {
		reranked, err := applyRerank(ctx, opts.Reranker, query, fused)
		if err != nil {
			slog.Warn("retrieval: rerank failed, keeping RRF order", "error", err)
		} else {
			fused = reranked
			trace.Reranked = true
		}
	}

	trace.ElapsedMs = time.Since(start).Milliseconds()
	return fused, trace, nil
}
