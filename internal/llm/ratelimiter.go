package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitedProvider throttles an underlying Provider to a fixed number of
// requests per minute. The audit stage can issue two judge calls plus a
// rewrite for a single turn, so a shared limiter keeps the whole pipeline
// inside the vendor quota.
type RateLimitedProvider struct {
	inner Provider
	rpm   int

	mu     sync.Mutex
	budget int
	refill time.Time
}

// NewRateLimitedProvider wraps provider with a token bucket of rpm
// requests per minute. The bucket starts full.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		inner:  provider,
		rpm:    rpm,
		budget: rpm,
		refill: time.Now(),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.inner.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, req)
}

func (r *RateLimitedProvider) acquire(ctx context.Context) error {
	for {
		if r.take() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (r *RateLimitedProvider) take() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	earned := int(now.Sub(r.refill).Seconds() * float64(r.rpm) / 60.0)
	if earned > 0 {
		r.budget += earned
		if r.budget > r.rpm {
			r.budget = r.rpm
		}
		r.refill = now
	}
	if r.budget == 0 {
		return false
	}
	r.budget--
	return true
}
