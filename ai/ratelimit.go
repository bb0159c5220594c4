package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a token-bucket limiter so a
// burst of synthesis or resolution calls never exceeds the configured
// requests-per-second budget for the underlying model endpoint.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a token bucket allowing rps requests per
// second and a burst of burst.
func NewRateLimited(inner Provider, rps float64, burst int) *RateLimitedProvider {
	return &RateLimitedProvider{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *RateLimitedProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return ChatResponse{}, fmt.Errorf("ai: rate limit wait: %w", err)
	}
	return p.inner.Chat(ctx, req)
}

func (p *RateLimitedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ai: rate limit wait: %w", err)
	}
	return p.inner.Embed(ctx, texts)
}

func (p *RateLimitedProvider) Classify(ctx context.Context, pairs []ClassifyPair) ([]ClassifyVerdict, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ai: rate limit wait: %w", err)
	}
	return p.inner.Classify(ctx, pairs)
}
