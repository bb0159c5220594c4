package ai

import (
	"context"
	"sync"
	"time"

	"github.com/danvers-labs/provkg/errs"
)

// breakerState is the circuit breaker's CLOSED/OPEN/HALF_OPEN state machine.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker trips to OPEN after failureThreshold consecutive failures,
// refuses calls for openDuration, then allows a single HALF_OPEN probe; a
// successful probe closes the breaker, a failed one reopens it.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	failureThreshold int
	openDuration     time.Duration
	consecutiveFails int
	openedAt         time.Time
}

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and stays open for openDuration before probing.
func NewCircuitBreaker(failureThreshold int, openDuration time.Duration) *CircuitBreaker {
	return &CircuitBreaker{failureThreshold: failureThreshold, openDuration: openDuration}
}

// Allow reports whether a call may proceed, transitioning OPEN to HALF_OPEN
// once openDuration has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) >= b.openDuration {
			b.state = breakerHalfOpen
			return true
		}
		return false
	case breakerHalfOpen:
		// The single probe was admitted on the OPEN -> HALF_OPEN
		// transition; further calls are refused until it is recorded.
		return false
	}
	return false
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.consecutiveFails = 0
}

// RecordFailure counts a failure, opening the breaker once the threshold is
// reached (from CLOSED) or immediately (from HALF_OPEN, where a single
// failed probe reopens it).
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}
	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

// BreakerProvider wraps a Provider with a CircuitBreaker, refusing calls
// with an External error while the breaker is open.
type BreakerProvider struct {
	inner   Provider
	breaker *CircuitBreaker
}

// NewBreakerProvider wraps inner with breaker.
func NewBreakerProvider(inner Provider, breaker *CircuitBreaker) *BreakerProvider {
	return &BreakerProvider{inner: inner, breaker: breaker}
}

var errBreakerOpen = errs.External("ai provider circuit breaker is open")

func (p *BreakerProvider) guard() error {
	if !p.breaker.Allow() {
		return errBreakerOpen
	}
	return nil
}

func (p *BreakerProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := p.guard(); err != nil {
		return ChatResponse{}, err
	}
	resp, err := p.inner.Chat(ctx, req)
	if err != nil {
		p.breaker.RecordFailure()
		return ChatResponse{}, err
	}
	p.breaker.RecordSuccess()
	return resp, nil
}

func (p *BreakerProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	out, err := p.inner.Embed(ctx, texts)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}
	p.breaker.RecordSuccess()
	return out, nil
}

func (p *BreakerProvider) Classify(ctx context.Context, pairs []ClassifyPair) ([]ClassifyVerdict, error) {
	if err := p.guard(); err != nil {
		return nil, err
	}
	out, err := p.inner.Classify(ctx, pairs)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}
	p.breaker.RecordSuccess()
	return out, nil
}
