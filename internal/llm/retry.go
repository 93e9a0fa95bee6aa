package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryProvider retries transient provider failures with exponential backoff.
type RetryProvider struct {
	provider Provider
	attempts uint
	delay    time.Duration
}

// NewRetryProvider wraps provider so that rate-limit and overload errors
// are retried up to attempts times in total.
func NewRetryProvider(provider Provider, attempts uint, delay time.Duration) Provider {
	if attempts == 0 {
		attempts = 1
	}
	return &RetryProvider{provider: provider, attempts: attempts, delay: delay}
}

func (r *RetryProvider) Name() string {
	return r.provider.Name()
}

func (r *RetryProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := retry.Do(
		func() error {
			var err error
			resp, err = r.provider.Complete(ctx, req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// IsTransient reports whether err looks like a rate limit or an
// overloaded upstream.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate_limit", "rate limit", "429", "overloaded", "resource_exhausted"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
