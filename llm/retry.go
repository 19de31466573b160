package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultRetryInitialInterval is the default first delay between attempts.
	DefaultRetryInitialInterval = 1 * time.Second
	// DefaultRetryMaxInterval caps the delay between attempts.
	DefaultRetryMaxInterval = 30 * time.Second
	// retryMultiplier is the growth factor between attempts
	retryMultiplier = 2.0
	// retryRandomizationFactor jitters each delay
	retryRandomizationFactor = 0.2
)

// RetryPolicy configures WithRetry. MaxAttempts counts the first call, so
// a value of 1 or less disables retrying.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Enabled reports whether the policy performs any retries.
func (p RetryPolicy) Enabled() bool {
	return p.MaxAttempts > 1
}

// WithRetry wraps client so retryable *Error failures are retried with
// exponential backoff. Non-retryable errors return immediately. A
// provider-supplied retry-after delay is honoured as the first interval.
func WithRetry(client Client, policy RetryPolicy, logger zerolog.Logger) Client {
	if !policy.Enabled() {
		return client
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = DefaultRetryInitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = DefaultRetryMaxInterval
	}
	return &retryingClient{
		client: client,
		policy: policy,
		logger: logger.With().Str("component", "llmRetry").Logger(),
	}
}

type retryingClient struct {
	client Client
	policy RetryPolicy
	logger zerolog.Logger
}

func (c *retryingClient) newBackoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.policy.InitialInterval
	eb.MaxInterval = c.policy.MaxInterval
	eb.Multiplier = retryMultiplier
	eb.RandomizationFactor = retryRandomizationFactor
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.policy.MaxAttempts-1)), ctx)
}

// Synchronous implements Client.
func (c *retryingClient) Synchronous(ctx context.Context, req *Request) (*Response, error) {
	var resp *Response
	attempt := 0
	op := func() error {
		attempt++
		var err error
		resp, err = c.client.Synchronous(ctx, req)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		if after := ExtractRetryAfter(err); after != nil && *after > 0 {
			if waitErr := sleepContext(ctx, *after); waitErr != nil {
				return backoff.Permanent(err)
			}
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn().
			Err(err).
			Str("model", req.Model).
			Int("attempt", attempt).
			Int("max_attempts", c.policy.MaxAttempts).
			Dur("next_delay", next).
			Msg("Retrying provider call after delay")
	}
	if err := backoff.RetryNotify(op, c.newBackoff(ctx), notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// sleepContext waits for d, respecting context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
