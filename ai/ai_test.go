package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danvers-labs/provkg/errs"
)

// fakeProvider returns failUntil external errors, then succeeds.
type fakeProvider struct {
	calls     int
	failUntil int
	permanent bool
}

func (p *fakeProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	p.calls++
	if p.calls <= p.failUntil {
		if p.permanent {
			return ChatResponse{}, errs.Validation("bad request")
		}
		return ChatResponse{}, errs.External("transient failure")
	}
	return ChatResponse{Content: "ok"}, nil
}

func (p *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}

func (p *fakeProvider) Classify(ctx context.Context, pairs []ClassifyPair) ([]ClassifyVerdict, error) {
	return nil, nil
}

func TestRetryProviderRetriesExternalErrors(t *testing.T) {
	fake := &fakeProvider{failUntil: 2}
	p := NewRetryProvider(fake, 5)
	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected content ok, got %q", resp.Content)
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", fake.calls)
	}
}

func TestRetryProviderDoesNotRetryValidationErrors(t *testing.T) {
	fake := &fakeProvider{failUntil: 1, permanent: true}
	p := NewRetryProvider(fake, 5)
	_, err := p.Chat(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected validation error to propagate")
	}
	if fake.calls != 1 {
		t.Errorf("expected exactly 1 call for a non-retryable error, got %d", fake.calls)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, 50*time.Millisecond)
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("breaker should allow call %d before threshold", i)
		}
		b.RecordFailure()
	}
	if b.Allow() {
		t.Fatal("breaker should be open after reaching the failure threshold")
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)
	b.Allow()
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should be open immediately after tripping")
	}
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should allow a half-open probe after openDuration elapses")
	}
	b.RecordSuccess()
	if !b.Allow() {
		t.Fatal("breaker should be closed after a successful probe")
	}
}

func TestBreakerProviderRefusesCallsWhileOpen(t *testing.T) {
	fake := &fakeProvider{}
	breaker := NewCircuitBreaker(1, time.Hour)
	p := NewBreakerProvider(fake, breaker)
	breaker.RecordFailure()
	breaker.RecordFailure()

	_, err := p.Chat(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("expected external error while breaker is open")
	}
	var e *errs.Error
	if !errors.As(err, &e) || e.Category != errs.CategoryExternal {
		t.Errorf("expected ExternalError, got %v", err)
	}
	if fake.calls != 0 {
		t.Errorf("expected the inner provider to never be called while open, got %d calls", fake.calls)
	}
}
