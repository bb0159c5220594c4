// Package synthesis runs the AI synthesis layer over a resolved knowledge
// graph: corpus-wide intelligence, per-document narratives and inferred
// relationships, evidence grounding, cross-document synthesis, and entity
// role classification. Every tier calls through an ai.Provider and
// produces durable store records; a single call's failure is logged and
// aborts only that call.
package synthesis

import (
	"context"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/store"
)

// Options configures a synthesis run.
type Options struct {
	// CensusTopN caps how many nodes per entity type feed the Tier-1
	// corpus-intelligence prompt. Defaults to 20 when zero.
	CensusTopN int
	// RosterLimit caps how many entities feed a document's Tier-2 roster.
	// Defaults to 100 when zero.
	RosterLimit int
	// NarrativeCharLimit truncates OCR text fed to Tier 2. Defaults to
	// 4000 when zero.
	NarrativeCharLimit int
}

func (o Options) censusTopN() int {
	if o.CensusTopN <= 0 {
		return 20
	}
	return o.CensusTopN
}

func (o Options) rosterLimit() int {
	if o.RosterLimit <= 0 {
		return 100
	}
	return o.RosterLimit
}

func (o Options) narrativeCharLimit() int {
	if o.NarrativeCharLimit <= 0 {
		return 4000
	}
	return o.NarrativeCharLimit
}

// Tier runs a single named synthesis call against a provider, used by
// callers that want to compose their own pipeline instead of the package
// convenience functions.
type Tier func(ctx context.Context, s *store.Store, p ai.Provider, opts Options) error

// truncateRunes cuts s to at most n runes without splitting a multi-byte
// rune in half.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
