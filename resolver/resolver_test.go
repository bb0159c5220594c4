package resolver

import (
	"context"
	"testing"

	"github.com/danvers-labs/provkg/similarity"
)

func mkEntity(id, doc, raw string, conf float64) Entity {
	return Entity{
		ID:             id,
		DocumentID:     doc,
		EntityType:     similarity.Person,
		RawText:        raw,
		NormalizedText: similarity.NormalizedText(raw),
		Confidence:     conf,
	}
}

func TestResolveEmptyInput(t *testing.T) {
	res, err := Resolve(context.Background(), nil, ModeExact, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Nodes) != 0 || len(res.Links) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestResolveFuzzyScenario(t *testing.T) {
	entities := []Entity{
		mkEntity("1", "doc1", "John Smith", 0.9),
		mkEntity("2", "doc2", "J. Smith", 0.9),
		mkEntity("3", "doc3", "Bob", 0.9),
	}
	res, err := Resolve(context.Background(), entities, ModeFuzzy, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d: %+v", len(res.Nodes), res.Nodes)
	}

	var smithNode, bobNode *Node
	for i := range res.Nodes {
		if res.Nodes[i].MentionCount == 2 {
			smithNode = &res.Nodes[i]
		} else {
			bobNode = &res.Nodes[i]
		}
	}
	if smithNode == nil || bobNode == nil {
		t.Fatalf("expected one merged node and one solo node, got %+v", res.Nodes)
	}
	if smithNode.DocumentCount != 2 {
		t.Errorf("expected merged node document_count=2, got %d", smithNode.DocumentCount)
	}
}

func TestResolveExactModeNoFuzzyMerge(t *testing.T) {
	entities := []Entity{
		mkEntity("1", "doc1", "John Smith", 0.9),
		mkEntity("2", "doc2", "J. Smith", 0.9),
	}
	res, err := Resolve(context.Background(), entities, ModeExact, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Nodes) != 2 {
		t.Fatalf("expected exact mode to leave distinct normalized forms unmerged, got %d nodes", len(res.Nodes))
	}
}

func TestResolveAIModeClassifierAdjudicates(t *testing.T) {
	// Token-sort Dice is 22/26 (about 0.846), inside the 0.70-0.85 band sent
	// to the classifier; initials SJ and JS differ and the Jaro-Winkler
	// score of the raw strings is lower, so neither lifts the score.
	entities := []Entity{
		mkEntity("1", "doc1", "Smith Jonathan", 0.8),
		mkEntity("2", "doc2", "Jonathon Smith", 0.8),
	}
	classifier := func(ctx context.Context, pairs []Pair) ([]Verdict, error) {
		out := make([]Verdict, len(pairs))
		for i := range pairs {
			out[i] = Verdict{SameEntity: true, Confidence: 0.9}
		}
		return out, nil
	}
	res, err := Resolve(context.Background(), entities, ModeAI, classifier, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Nodes) != 1 {
		t.Fatalf("expected AI adjudication to merge the pair, got %d nodes", len(res.Nodes))
	}
	if res.AIMatches != 1 {
		t.Errorf("expected AIMatches=1, got %d", res.AIMatches)
	}
}

func TestResolveMaxFuzzyGroupSizeFailsFast(t *testing.T) {
	entities := make([]Entity, MaxFuzzyGroupSize+1)
	for i := range entities {
		raw := randomName(i)
		entities[i] = mkEntity(randomName(i), "doc", raw, 0.9)
	}
	_, err := Resolve(context.Background(), entities, ModeFuzzy, nil, nil)
	if err == nil {
		t.Fatal("expected error for oversized fuzzy group")
	}
}

func randomName(i int) string {
	// Distinct normalized forms so every entity is its own bucket.
	b := make([]byte, 0, 8)
	for i > 0 || len(b) == 0 {
		b = append(b, byte('a'+i%26))
		i /= 26
	}
	return string(b)
}

func TestResolveLinkSimilarityExactOne(t *testing.T) {
	entities := []Entity{mkEntity("1", "doc1", "Acme", 0.9)}
	res, err := Resolve(context.Background(), entities, ModeExact, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Links) != 1 || res.Links[0].SimilarityScore != 1.0 {
		t.Fatalf("expected single self-link with score 1.0, got %+v", res.Links)
	}
}
