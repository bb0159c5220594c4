package ai

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/danvers-labs/provkg/errs"
)

// RetryProvider wraps a Provider, retrying a call with exponential backoff
// when it fails with an ExternalError (transient transport/rate-limit
// failures); any other error category is returned immediately.
type RetryProvider struct {
	inner      Provider
	maxRetries uint64
}

// NewRetryProvider wraps inner, retrying up to maxRetries times.
func NewRetryProvider(inner Provider, maxRetries uint64) *RetryProvider {
	return &RetryProvider{inner: inner, maxRetries: maxRetries}
}

func (p *RetryProvider) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	return backoff.WithContext(backoff.WithMaxRetries(b, p.maxRetries), ctx)
}

func retryable(err error) bool {
	return err != nil && errs.Is(err, errs.CategoryExternal)
}

func (p *RetryProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	op := func() error {
		var err error
		resp, err = p.inner.Chat(ctx, req)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, p.backoff(ctx)); err != nil {
		return ChatResponse{}, err
	}
	return resp, nil
}

func (p *RetryProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	op := func() error {
		var err error
		out, err = p.inner.Embed(ctx, texts)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, p.backoff(ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *RetryProvider) Classify(ctx context.Context, pairs []ClassifyPair) ([]ClassifyVerdict, error) {
	var out []ClassifyVerdict
	op := func() error {
		var err error
		out, err = p.inner.Classify(ctx, pairs)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, p.backoff(ctx)); err != nil {
		return nil, err
	}
	return out, nil
}
