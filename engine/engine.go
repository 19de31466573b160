// Package engine resolves a model id into a Handle and runs the three
// memory operations against it: analysis, question answering and
// relationship-graph construction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/lifelog/graph"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

const (
	// DefaultAnalysisDelay is the simulated latency of a generic analysis.
	DefaultAnalysisDelay = 1500 * time.Millisecond
	// DefaultChatDelay is the simulated latency of a generic answer.
	DefaultChatDelay = 1 * time.Second
)

// Options tunes an Engine. Zero delays mean no simulated latency; use
// DefaultOptions for the stock values.
type Options struct {
	AnalysisDelay time.Duration
	ChatDelay     time.Duration
	Retry         llm.RetryPolicy
}

// DefaultOptions returns the stock simulation delays and no retries.
func DefaultOptions() Options {
	return Options{
		AnalysisDelay: DefaultAnalysisDelay,
		ChatDelay:     DefaultChatDelay,
	}
}

// Engine routes memory operations to resolved models. It holds no mutable
// state, so one Engine serves concurrent callers.
type Engine struct {
	registry *llm.ProviderRegistry
	factory  llm.ClientFactory
	opts     Options
	logger   zerolog.Logger
}

// New creates an Engine. factory builds transports for native models and
// may be nil when only generic models are expected.
func New(registry *llm.ProviderRegistry, factory llm.ClientFactory, opts Options, logger zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		factory:  factory,
		opts:     opts,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Registry returns the provider registry used for resolution.
func (e *Engine) Registry() *llm.ProviderRegistry {
	return e.registry
}

// Resolve turns a model id and the user's model configs into a Handle.
// It fails with llm.ErrMissingCredential when no key is available.
func (e *Engine) Resolve(modelID string, configs []llm.UserModelConfig) (Handle, error) {
	res, err := e.registry.Resolve(modelID, configs)
	if err != nil {
		return nil, err
	}

	if res.Class == llm.ClassGeneric {
		e.logger.Debug().Str("model", modelID).Bool("known", res.Known).Msg("resolved generic model")
		return &genericHandle{
			res:           res,
			analysisDelay: e.opts.AnalysisDelay,
			chatDelay:     e.opts.ChatDelay,
		}, nil
	}

	if e.factory == nil {
		return nil, fmt.Errorf("no client factory configured for native model %s", modelID)
	}
	client, err := e.factory(res)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client for %s: %w", res.Descriptor.Backend, modelID, err)
	}

	logger := e.logger.With().Str("model", modelID).Str("backend", res.Descriptor.Backend).Logger()
	client = llm.WithTiming(llm.WithLogging(client, logger), logger)
	client = llm.WithRetry(client, e.opts.Retry, logger)

	logger.Debug().Msg("resolved native model")
	return &nativeHandle{res: res, client: client, logger: logger}, nil
}

// Analyze runs h.Analyze with call logging.
func (e *Engine) Analyze(ctx context.Context, m memory.Memory, h Handle, loc locale.Locale) (memory.AIAnalysis, error) {
	start := time.Now()
	analysis, err := h.Analyze(ctx, m, loc)
	e.logCall("analyze", h, start, err).Str("memory_id", m.ID).Str("mood", analysis.Mood).Msg("analysis finished")
	return analysis, err
}

// Ask runs h.Ask with call logging.
func (e *Engine) Ask(ctx context.Context, query string, memories []memory.Memory, h Handle) (string, error) {
	start := time.Now()
	answer, err := h.Ask(ctx, query, memories)
	e.logCall("ask", h, start, err).Int("memories", len(memories)).Int("answer_len", len(answer)).Msg("chat finished")
	return answer, err
}

// BuildGraph runs h.BuildGraph with call logging.
func (e *Engine) BuildGraph(ctx context.Context, memories []memory.Memory, h Handle) (graph.Data, error) {
	start := time.Now()
	data, err := h.BuildGraph(ctx, memories)
	e.logCall("graph", h, start, err).Int("nodes", len(data.Nodes)).Int("links", len(data.Links)).Msg("graph finished")
	return data, err
}

func (e *Engine) logCall(op string, h Handle, start time.Time, err error) *zerolog.Event {
	var evt *zerolog.Event
	switch {
	case err == nil:
		evt = e.logger.Debug()
	case errors.Is(err, ErrEmptyInput), errors.Is(err, context.Canceled):
		evt = e.logger.Info().Err(err)
	default:
		evt = e.logger.Error().Err(err)
	}
	return evt.
		Str("op", op).
		Str("model", h.ModelID()).
		Str("class", string(h.Class())).
		Dur("duration", time.Since(start))
}
