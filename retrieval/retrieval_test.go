package retrieval

import "testing"

func TestFuseRRF(t *testing.T) {
	vec := []Result{{ChunkID: "c1", Text: "a"}, {ChunkID: "c2", Text: "b"}}
	fts := []Result{{ChunkID: "c2", Text: "b"}, {ChunkID: "c3", Text: "c"}}
	graph := []Result{{ChunkID: "c1", Text: "a"}}

	results, infoMap := fuseRRF([]Arm{
		{Name: "vector", Results: vec, Weight: 1.0},
		{Name: "fts", Results: fts, Weight: 1.0},
		{Name: "graph", Results: graph, Weight: 0.5},
	}, 10)

	if len(results) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(results))
	}

	if info, ok := infoMap["c1"]; !ok || len(info.Methods) != 2 {
		t.Errorf("chunk c1 should have 2 methods (vec+graph), got %v", infoMap["c1"])
	}
	if info, ok := infoMap["c2"]; !ok || len(info.Methods) != 2 {
		t.Errorf("chunk c2 should have 2 methods (vec+fts), got %v", infoMap["c2"])
	}

	// c1: vec rank1 1/61, graph rank1 0.5/61 = 1.5/61
	// c2: vec rank2 1/62, fts rank1 1/61 = 1/62 + 1/61
	// c3: fts rank2 1/62
	wantC1 := 1.0/61 + 0.5/61
	wantC2 := 1.0/62 + 1.0/61
	wantC3 := 1.0 / 62

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.ChunkID] = r.Score
	}
	const eps = 1e-9
	if diff := scores["c1"] - wantC1; diff > eps || diff < -eps {
		t.Errorf("c1 score = %v, want %v", scores["c1"], wantC1)
	}
	if diff := scores["c2"] - wantC2; diff > eps || diff < -eps {
		t.Errorf("c2 score = %v, want %v", scores["c2"], wantC2)
	}
	if diff := scores["c3"] - wantC3; diff > eps || diff < -eps {
		t.Errorf("c3 score = %v, want %v", scores["c3"], wantC3)
	}

	// Highest combined score sorts first: c2 (1/62+1/61) beats c1 (1.5/61).
	if results[0].ChunkID != "c2" {
		t.Errorf("expected c2 to rank first, got %s", results[0].ChunkID)
	}
}

func TestFuseRRFRespectsMaxResults(t *testing.T) {
	vec := []Result{{ChunkID: "c1"}, {ChunkID: "c2"}, {ChunkID: "c3"}}
	results, _ := fuseRRF([]Arm{{Name: "vector", Results: vec, Weight: 1.0}}, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results after truncation, got %d", len(results))
	}
}

func TestExpandSynonymsExpandsKnownLegalTerm(t *testing.T) {
	got := expandSynonyms("plaintiff filed a motion")
	if got == "plaintiff filed a motion" {
		t.Fatalf("expected synonym expansion to change the query, got unchanged: %q", got)
	}
	if !contains(got, "claimant") {
		t.Errorf("expected expansion to include a plaintiff synonym, got %q", got)
	}
}

func TestExpandSynonymsLeavesUnknownWordsAlone(t *testing.T) {
	got := expandSynonyms("blue widget")
	if got != "blue OR widget" {
		t.Errorf("expected passthrough OR-join for unknown words, got %q", got)
	}
}

func TestExtractQueryEntitiesFindsQuotedAndCapitalizedTerms(t *testing.T) {
	entities := extractQueryEntities(`What did "Acme Corp" say about John Smith?`)
	if !contains(entities, "acme corp") {
		t.Errorf("expected quoted term acme corp, got %v", entities)
	}
	if !contains(entities, "john smith") {
		t.Errorf("expected capitalized phrase john smith, got %v", entities)
	}
}

func contains(haystack any, needle string) bool {
	switch v := haystack.(type) {
	case string:
		return len(v) >= len(needle) && indexOf(v, needle) >= 0
	case []string:
		for _, s := range v {
			if s == needle {
				return true
			}
		}
	}
	return false
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
