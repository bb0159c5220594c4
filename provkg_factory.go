package provkg

import (
	"context"
	"fmt"
	"time"

	"github.com/danvers-labs/provkg/ai"
	"github.com/danvers-labs/provkg/resolver"
)

// NewFromConfig builds the chat and embedding ai.Provider stack from cfg
// (vendor selection, rate limiting, retry, circuit breaking) and wires it
// into a new Engine. Use New directly when the caller wants to supply its
// own Provider implementations instead (tests, a provider not in the ai
// package's vendor list).
func NewFromConfig(cfg Config) (Engine, error) {
	chat, err := buildProvider(cfg.Chat, cfg.ChatRPS, cfg)
	if err != nil {
		return nil, fmt.Errorf("provkg: building chat provider: %w", err)
	}
	embedder, err := buildProvider(cfg.Embedding, cfg.EmbeddingRPS, cfg)
	if err != nil {
		return nil, fmt.Errorf("provkg: building embedding provider: %w", err)
	}
	return New(cfg, embedder, chat)
}

// ResolverClassifier builds the resolver.Classifier backing mode=ai
// resolution from cfg.Resolver, falling back to cfg.Chat when Resolver is
// left unset. Callers pass the result to WithClassifier.
func ResolverClassifier(cfg Config) (resolver.Classifier, error) {
	vc := cfg.Resolver
	rps := cfg.ResolverRPS
	if vc.Vendor == "" {
		vc = cfg.Chat
		rps = cfg.ChatRPS
	}
	p, err := buildProvider(vc, rps, cfg)
	if err != nil {
		return nil, fmt.Errorf("provkg: building resolver classifier: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	return classifierFromProvider(p), nil
}

// classifierFromProvider adapts an ai.Provider's Classify into the
// resolver package's Classifier func type, translating Pair/Verdict to
// and from ClassifyPair/ClassifyVerdict on the entities' normalized text.
func classifierFromProvider(p ai.Provider) resolver.Classifier {
	return func(ctx context.Context, pairs []resolver.Pair) ([]resolver.Verdict, error) {
		aiPairs := make([]ai.ClassifyPair, len(pairs))
		for i, pair := range pairs {
			aiPairs[i] = ai.ClassifyPair{A: pair.A.NormalizedText, B: pair.B.NormalizedText}
		}
		verdicts, err := p.Classify(ctx, aiPairs)
		if err != nil {
			return nil, err
		}
		out := make([]resolver.Verdict, len(verdicts))
		for i, v := range verdicts {
			out[i] = resolver.Verdict{SameEntity: v.SameEntity, Confidence: v.Confidence}
		}
		return out, nil
	}
}

// buildProvider constructs a vendor provider and wraps it with the
// resilience stack every AI-backed call in the engine goes through:
// breaker (fails fast while the vendor is down) wrapping retry (absorbs
// transient ExternalErrors) wrapping a rate limiter (keeps the vendor's
// requests-per-second budget).
func buildProvider(vc ai.VendorConfig, rps float64, cfg Config) (ai.Provider, error) {
	if vc.Vendor == "" {
		return nil, nil
	}
	p, err := ai.NewVendorProvider(vc)
	if err != nil {
		return nil, err
	}

	if rps <= 0 {
		rps = 2
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	var wrapped ai.Provider = ai.NewRateLimited(p, rps, burst)

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	wrapped = ai.NewRetryProvider(wrapped, maxRetries)

	threshold := cfg.BreakerFailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	openSeconds := cfg.BreakerOpenSeconds
	if openSeconds <= 0 {
		openSeconds = 30
	}
	breaker := ai.NewCircuitBreaker(threshold, time.Duration(openSeconds)*time.Second)
	return ai.NewBreakerProvider(wrapped, breaker), nil
}
