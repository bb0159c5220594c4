// Package resolver implements three-tier entity resolution (exact / fuzzy /
// ai) with Union-Find merging of normalized-text buckets.
package resolver

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/danvers-labs/provkg/similarity"
)

// MaxFuzzyGroupSize bounds the number of distinct normalized-text buckets
// considered in fuzzy/ai mode before the tier hard-fails rather than pay
// for an all-pairs comparison over an unbounded bucket.
const MaxFuzzyGroupSize = 1000

// fuzzyThreshold is the union threshold for tiers 2 and 3.
const fuzzyThreshold = 0.85

// aiCandidateLow is the lower bound of the "send to AI for adjudication"
// band; pairs scoring below it are never escalated.
const aiCandidateLow = 0.70

// Mode selects which tiers of the resolver run.
type Mode string

const (
	ModeExact Mode = "exact"
	ModeFuzzy Mode = "fuzzy"
	ModeAI    Mode = "ai"
)

// Entity is the resolver's view of an extracted entity. It is independent
// of the store package's row type so this package stays dependency-light.
type Entity struct {
	ID             string
	DocumentID     string
	EntityType     similarity.EntityType
	RawText        string
	NormalizedText string
	Confidence     float64
}

// Pair is a candidate match sent to the AI classifier for adjudication.
type Pair struct {
	A, B Entity
}

// Verdict is the classifier's answer for one Pair, aligned by index with
// the input slice.
type Verdict struct {
	SameEntity bool
	Confidence float64
}

// Classifier adjudicates a batch of candidate pairs in one call. Modeled
// as a function type so callers can swap in any AI provider without the
// resolver depending on one.
type Classifier func(ctx context.Context, pairs []Pair) ([]Verdict, error)

// Node is a materialized knowledge-node candidate: one per resolved
// entity cluster.
type Node struct {
	EntityType     similarity.EntityType
	CanonicalName  string
	NormalizedName string
	Aliases        []string
	DocumentCount  int
	MentionCount   int
	AvgConfidence  float64
	Members        []Entity
}

// Link is one entity's resolution into a Node, indexed into Result.Nodes.
type Link struct {
	NodeIndex        int
	EntityID         string
	DocumentID       string
	SimilarityScore  float64
	ResolutionMethod string
}

// Result is the full output of Resolve.
type Result struct {
	Nodes        []Node
	Links        []Link
	ExactMatches int
	FuzzyMatches int
	AIMatches    int
}

// ClusterContext maps a document id to its current cluster id, used only
// for the optional similarity boost between same-cluster entities.
type ClusterContext map[string]string

// Resolve runs the three-tier algorithm over entities and returns the
// resulting nodes and links. classifier is required (and invoked) only
// when mode is ModeAI; clusterCtx may be nil.
func Resolve(ctx context.Context, entities []Entity, mode Mode, classifier Classifier, clusterCtx ClusterContext) (Result, error) {
	var result Result
	if len(entities) == 0 {
		return result, nil
	}

	byType := make(map[similarity.EntityType][]Entity)
	for _, e := range entities {
		byType[e.EntityType] = append(byType[e.EntityType], e)
	}

	// Stable type iteration order for determinism.
	types := make([]similarity.EntityType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, t := range types {
		groupResult, err := resolveType(ctx, t, byType[t], mode, classifier, clusterCtx)
		if err != nil {
			return Result{}, err
		}
		offset := len(result.Nodes)
		result.Nodes = append(result.Nodes, groupResult.Nodes...)
		for _, l := range groupResult.Links {
			l.NodeIndex += offset
			result.Links = append(result.Links, l)
		}
		result.ExactMatches += groupResult.ExactMatches
		result.FuzzyMatches += groupResult.FuzzyMatches
		result.AIMatches += groupResult.AIMatches
	}
	return result, nil
}

// bucket holds every entity sharing one normalized_text within a type
// group.
type bucket struct {
	normalizedText string
	members        []Entity
}

func resolveType(ctx context.Context, entityType similarity.EntityType, entities []Entity, mode Mode, classifier Classifier, clusterCtx ClusterContext) (Result, error) {
	// Tier 1: bucket by normalized_text.
	bucketIndex := make(map[string]int)
	var buckets []bucket
	exactMatches := 0
	for _, e := range entities {
		if idx, ok := bucketIndex[e.NormalizedText]; ok {
			buckets[idx].members = append(buckets[idx].members, e)
			exactMatches++
			continue
		}
		bucketIndex[e.NormalizedText] = len(buckets)
		buckets = append(buckets, bucket{normalizedText: e.NormalizedText, members: []Entity{e}})
	}

	if (mode == ModeFuzzy || mode == ModeAI) && len(buckets) > MaxFuzzyGroupSize {
		return Result{}, fmt.Errorf("resolver: type %q has %d distinct normalized forms, exceeding MAX_FUZZY_GROUP_SIZE=%d", entityType, len(buckets), MaxFuzzyGroupSize)
	}

	uf := newUnionFind(len(buckets))
	fuzzyMatches := 0
	aiMatches := 0
	var pendingPairs []Pair
	var pendingIdx [][2]int

	if mode == ModeFuzzy || mode == ModeAI {
		for i := 0; i < len(buckets); i++ {
			for j := i + 1; j < len(buckets); j++ {
				if uf.connected(i, j) {
					continue
				}
				rep1, rep2 := buckets[i].members[0], buckets[j].members[0]
				sim := similarity.TypeAware(entityType, rep1.RawText, rep2.RawText)
				sim = applyClusterBoost(sim, rep1, rep2, clusterCtx)
				switch {
				case sim >= fuzzyThreshold:
					uf.union(i, j)
					fuzzyMatches++
				case mode == ModeAI && sim >= aiCandidateLow:
					pendingPairs = append(pendingPairs, Pair{A: rep1, B: rep2})
					pendingIdx = append(pendingIdx, [2]int{i, j})
				}
			}
		}
	}

	if mode == ModeAI && len(pendingPairs) > 0 {
		if classifier == nil {
			return Result{}, fmt.Errorf("resolver: mode=ai requires a classifier")
		}
		verdicts, err := classifier(ctx, pendingPairs)
		if err != nil {
			return Result{}, fmt.Errorf("resolver: classifier call failed: %w", err)
		}
		if len(verdicts) != len(pendingPairs) {
			return Result{}, fmt.Errorf("resolver: classifier returned %d verdicts for %d pairs", len(verdicts), len(pendingPairs))
		}
		for k, v := range verdicts {
			if v.SameEntity && v.Confidence >= aiCandidateLow {
				i, j := pendingIdx[k][0], pendingIdx[k][1]
				if !uf.connected(i, j) {
					uf.union(i, j)
					aiMatches++
				}
			}
		}
	}

	groups := uf.groups()
	rootOrder := make([]int, 0, len(groups))
	for r := range groups {
		rootOrder = append(rootOrder, r)
	}
	sort.Ints(rootOrder)

	var result Result
	for _, root := range rootOrder {
		bucketIdxs := groups[root]
		var members []Entity
		for _, bi := range bucketIdxs {
			members = append(members, buckets[bi].members...)
		}
		node, links := materializeNode(entityType, members)
		nodeIdx := len(result.Nodes)
		result.Nodes = append(result.Nodes, node)
		for _, l := range links {
			l.NodeIndex = nodeIdx
			result.Links = append(result.Links, l)
		}
	}
	result.ExactMatches = exactMatches
	result.FuzzyMatches = fuzzyMatches
	result.AIMatches = aiMatches
	return result, nil
}

func applyClusterBoost(score float64, a, b Entity, clusterCtx ClusterContext) float64 {
	if clusterCtx == nil {
		return score
	}
	ca, okA := clusterCtx[a.DocumentID]
	cb, okB := clusterCtx[b.DocumentID]
	sameCluster := okA && okB && ca == cb
	return similarity.WithClusterBoost(score, sameCluster)
}

func materializeNode(entityType similarity.EntityType, members []Entity) (Node, []Link) {
	canonical := members[0]
	for _, m := range members[1:] {
		if m.Confidence > canonical.Confidence {
			canonical = m
		}
	}

	docs := make(map[string]bool)
	aliasSeen := map[string]bool{canonical.RawText: true}
	var aliases []string
	confidenceSum := 0.0
	for _, m := range members {
		docs[m.DocumentID] = true
		confidenceSum += m.Confidence
		if !aliasSeen[m.RawText] {
			aliasSeen[m.RawText] = true
			aliases = append(aliases, m.RawText)
		}
	}

	avgConfidence := roundTo4(confidenceSum / float64(len(members)))

	node := Node{
		EntityType:     entityType,
		CanonicalName:  canonical.RawText,
		NormalizedName: canonical.NormalizedText,
		Aliases:        aliases,
		DocumentCount:  len(docs),
		MentionCount:   len(members),
		AvgConfidence:  avgConfidence,
		Members:        members,
	}

	links := make([]Link, 0, len(members))
	for _, m := range members {
		var sim float64
		method := "exact"
		if m.NormalizedText == canonical.NormalizedText {
			sim = 1.0
		} else {
			sim = similarity.TypeAware(entityType, m.RawText, canonical.RawText)
			method = "fuzzy"
		}
		links = append(links, Link{
			EntityID:         m.ID,
			DocumentID:       m.DocumentID,
			SimilarityScore:  sim,
			ResolutionMethod: method,
		})
	}
	return node, links
}

func roundTo4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
