package retrieval

import (
	"context"
	"sort"
)

// RerankVerdict is one reranker judgment over a candidate result, keyed
// by its index in the list passed to Rerank.
type RerankVerdict struct {
	Index          int
	RelevanceScore float64
	Reasoning      string
}

// Reranker re-scores the top-K hybrid results against the original query.
// Implementations typically wrap an ai.Provider chat call. This stage is
// optional: empty results short-circuit before Reranker is ever invoked.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []Result) ([]RerankVerdict, error)
}

// applyRerank runs the reranker hook and reorders results by its
// relevance scores, descending. Any result index missing from the
// verdict list keeps its RRF score and sorts after the scored ones.
func applyRerank(ctx context.Context, r Reranker, query string, results []Result) ([]Result, error) {
	verdicts, err := r.Rerank(ctx, query, results)
	if err != nil {
		return nil, err
	}

	scored := make(map[int]float64, len(verdicts))
	for _, v := range verdicts {
		if v.Index >= 0 && v.Index < len(results) {
			scored[v.Index] = v.RelevanceScore
		}
	}

	type indexed struct {
		result Result
		score  float64
		hasRR  bool
	}
	out := make([]indexed, len(results))
	for i, res := range results {
		s, ok := scored[i]
		out[i] = indexed{result: res, score: s, hasRR: ok}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].hasRR != out[j].hasRR {
			return out[i].hasRR
		}
		if out[i].hasRR {
			return out[i].score > out[j].score
		}
		return false
	})

	final := make([]Result, len(out))
	for i, o := range out {
		final[i] = o.result
	}
	return final, nil
}
