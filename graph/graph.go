// Package graph constructs and incrementally extends the knowledge graph:
// resolving a document set's entities into nodes, linking them, and
// synthesizing co_mentioned/co_located edges over the touched node
// universe.
package graph

import (
	"sort"

	"github.com/danvers-labs/provkg/resolver"
)

// Options configures a build. Mode and Classifier are threaded straight
// through to the resolver; ClusterContext enables its similarity boost.
type Options struct {
	Mode            resolver.Mode
	Classifier      resolver.Classifier
	ClusterContext  resolver.ClusterContext
}

// Result reports what a build did, for logging and test assertions.
type Result struct {
	NodesCreated        int
	EdgesCreated        int
	ExactMatches        int
	FuzzyMatches        int
	AIMatches           int
	SkippedCooccurrence int
	SingleDocumentGraph bool
	RejectedDocuments   []string
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func intersectSorted(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func firstSorted(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func round4(f float64) float64 {
	return float64(int64(f*10000+0.5)) / 10000
}
