package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a requests-per-minute limiter.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps the given provider with a limiter that
// allows at most rpm requests per minute, with a burst of rpm.
func NewRateLimitedProvider(provider Provider, rpm int) Provider {
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}
