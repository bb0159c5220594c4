// Package contradiction implements the read-only cross-document
// contradiction detector: given two entity sets (each tied to the
// documents they were drawn from), it surfaces knowledge-graph edges
// that disagree about the same relationship. It never mutates the graph.
package contradiction

import (
	"context"
	"fmt"
	"sort"

	"github.com/danvers-labs/provkg/store"
)

// EntitySet is one side of a contradiction check: the entity ids to seed
// from and the document ids they were extracted from (typically one
// document, but a set to allow checking a document group against another).
type EntitySet struct {
	EntityIDs   []string
	DocumentIDs []string
}

// Severity is the contradiction detector's two-level severity scale.
type Severity string

const (
	SeverityHigh Severity = "high"
	SeverityLow  Severity = "low"
)

// Contradiction is one detected disagreement, keyed by (node, relation).
type Contradiction struct {
	NodeID       string
	Relation     store.RelationshipType
	Severity     Severity
	Doc1Targets  []string // other_node ids attested from set 1's documents
	Doc2Targets  []string // other_node ids attested from set 2's documents
}

// Report is the detector's output.
type Report struct {
	Contradictions   []Contradiction `json:"contradictions"`
	EntitiesChecked  int             `json:"entities_checked"`
	KGEdgesAnalyzed  int             `json:"kg_edges_analyzed"`
}

type bucket struct {
	doc1 map[string]bool
	doc2 map[string]bool
}

// Detect runs the contradiction-detection algorithm over two entity sets.
func Detect(ctx context.Context, s *store.Store, set1, set2 EntitySet) (*Report, error) {
	entityIDs := make(map[string]bool)
	for _, id := range set1.EntityIDs {
		entityIDs[id] = true
	}
	for _, id := range set2.EntityIDs {
		entityIDs[id] = true
	}

	nodeIDs := make(map[string]bool)
	for id := range entityIDs {
		nodeID, err := s.NodeIDForEntity(ctx, id)
		if err != nil {
			continue // entity not yet linked into the graph; nothing to compare
		}
		nodeIDs[nodeID] = true
	}

	buckets := make(map[string]*bucket) // key: nodeID + "\x00" + relation
	edgesAnalyzed := 0
	seenEdges := make(map[string]bool)

	for nodeID := range nodeIDs {
		edges, err := s.ListEdgesByNode(ctx, nodeID)
		if err != nil {
			return nil, fmt.Errorf("contradiction: list edges for node %s: %w", nodeID, err)
		}
		for _, e := range edges {
			if e.SourceNodeID != nodeID {
				continue // only count edges where this node is the source
			}
			if e.RelationshipType == store.RelCoMentioned || e.RelationshipType == store.RelCoLocated {
				continue
			}
			in1 := overlaps(e.DocumentIDs, set1.DocumentIDs)
			in2 := overlaps(e.DocumentIDs, set2.DocumentIDs)
			if !in1 && !in2 {
				continue
			}
			if !seenEdges[e.ID] {
				seenEdges[e.ID] = true
				edgesAnalyzed++
			}

			key := nodeID + "\x00" + string(e.RelationshipType)
			b, ok := buckets[key]
			if !ok {
				b = &bucket{doc1: make(map[string]bool), doc2: make(map[string]bool)}
				buckets[key] = b
			}
			if in1 {
				b.doc1[e.TargetNodeID] = true
			}
			if in2 {
				b.doc2[e.TargetNodeID] = true
			}
		}
	}

	var contradictions []Contradiction
	for key, b := range buckets {
		nodeID, relation := splitBucketKey(key)
		switch {
		case len(b.doc1) > 0 && len(b.doc2) > 0:
			if !sameTargetSet(b.doc1, b.doc2) {
				contradictions = append(contradictions, Contradiction{
					NodeID: nodeID, Relation: store.RelationshipType(relation), Severity: SeverityHigh,
					Doc1Targets: sortedKeys(b.doc1), Doc2Targets: sortedKeys(b.doc2),
				})
			}
		case len(b.doc1) > 0 || len(b.doc2) > 0:
			contradictions = append(contradictions, Contradiction{
				NodeID: nodeID, Relation: store.RelationshipType(relation), Severity: SeverityLow,
				Doc1Targets: sortedKeys(b.doc1), Doc2Targets: sortedKeys(b.doc2),
			})
		}
	}

	sort.SliceStable(contradictions, func(i, j int) bool {
		if contradictions[i].Severity != contradictions[j].Severity {
			return contradictions[i].Severity == SeverityHigh
		}
		if contradictions[i].NodeID != contradictions[j].NodeID {
			return contradictions[i].NodeID < contradictions[j].NodeID
		}
		return contradictions[i].Relation < contradictions[j].Relation
	})

	return &Report{
		Contradictions:  contradictions,
		EntitiesChecked: len(entityIDs),
		KGEdgesAnalyzed: edgesAnalyzed,
	}, nil
}

func overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	for _, s := range a {
		if set[s] {
			return true
		}
	}
	return false
}

func sameTargetSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func splitBucketKey(key string) (nodeID, relation string) {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
