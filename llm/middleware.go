package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Decorators wrap a Client without touching the transport. The engine
// stacks them as retry(timing(logging(transport))), so each attempt is
// logged separately.

// WithLogging logs every call at debug level and every failure at warn
// level. Message content is never logged.
func WithLogging(client Client, logger zerolog.Logger) Client {
	return ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
		logger.Debug().
			Str("model", req.Model).
			Int("messages", len(req.Messages)).
			Bool("structured", req.Schema != nil).
			Msg("provider request")

		resp, err := client.Synchronous(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Str("model", req.Model).Bool("retryable", IsRetryableError(err)).Msg("provider call failed")
			return nil, err
		}

		evt := logger.Debug().Str("model", req.Model).Str("stop_reason", resp.StopReason)
		if resp.Usage != nil {
			evt = evt.Int64("input_tokens", resp.Usage.InputTokens).Int64("output_tokens", resp.Usage.OutputTokens)
		}
		evt.Msg("provider response")
		return resp, nil
	})
}

// WithTiming logs the wall-clock duration of every call.
func WithTiming(client Client, logger zerolog.Logger) Client {
	return ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
		start := time.Now()
		resp, err := client.Synchronous(ctx, req)
		logger.Debug().Str("model", req.Model).Dur("duration", time.Since(start)).Bool("ok", err == nil).Msg("provider call finished")
		return resp, err
	})
}
