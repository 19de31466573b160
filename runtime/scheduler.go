// Package runtime runs background jobs for the daemon.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

const (
	defaultBatchSize = 10
	// sweepTimeout bounds one pass over a batch.
	sweepTimeout = 5 * time.Minute
)

// MemoryStore is the slice of memory.Store the analyzer needs.
type MemoryStore interface {
	ListUnanalyzed(ctx context.Context, limit int) ([]memory.Memory, error)
	Get(ctx context.Context, id string) (memory.Memory, error)
	UpdateAnalysis(ctx context.Context, id string, analysis memory.AIAnalysis) error
	ListModelConfigs(ctx context.Context) ([]llm.UserModelConfig, error)
}

// AutoAnalyzerOptions configures an AutoAnalyzer.
type AutoAnalyzerOptions struct {
	Schedule  Schedule
	Model     string
	Locale    locale.Locale
	BatchSize int
}

// AutoAnalyzer periodically analyzes memories that have no analysis yet.
type AutoAnalyzer struct {
	store  MemoryStore
	engine *engine.Engine
	opts   AutoAnalyzerOptions
	logger zerolog.Logger

	mu sync.Mutex
	// skipped holds ids with nothing to analyze, so they stop occupying
	// batch slots on later sweeps.
	skipped map[string]struct{}
}

// NewAutoAnalyzer creates an AutoAnalyzer.
func NewAutoAnalyzer(store MemoryStore, eng *engine.Engine, opts AutoAnalyzerOptions, logger zerolog.Logger) (*AutoAnalyzer, error) {
	if store == nil || eng == nil {
		return nil, fmt.Errorf("store and engine are required")
	}
	if opts.Schedule == nil {
		return nil, fmt.Errorf("schedule is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &AutoAnalyzer{
		store:   store,
		engine:  eng,
		opts:    opts,
		logger:  logger.With().Str("component", "autoAnalyzer").Logger(),
		skipped: make(map[string]struct{}),
	}, nil
}

// Start runs sweeps on the schedule until ctx is cancelled.
func (a *AutoAnalyzer) Start(ctx context.Context) {
	a.logger.Info().Str("model", a.opts.Model).Int("batchSize", a.opts.BatchSize).Msg("Starting auto-analyzer")

	for {
		now := time.Now()
		next := a.opts.Schedule.Next(now)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info().Msg("Auto-analyzer stopped: context cancelled")
			return
		case <-timer.C:
		}

		sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		n, err := a.RunOnce(sweepCtx)
		cancel()
		if err != nil {
			a.logger.Error().Err(err).Int("analyzed", n).Msg("Auto-analysis sweep failed")
			continue
		}
		if n > 0 {
			a.logger.Info().Int("analyzed", n).Msg("Auto-analysis sweep finished")
		}
	}
}

// RunOnce analyzes up to one batch and returns how many memories were
// updated. A transport failure ends the sweep early.
func (a *AutoAnalyzer) RunOnce(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	listed, err := a.store.ListUnanalyzed(ctx, a.opts.BatchSize+len(a.skipped))
	if err != nil {
		return 0, fmt.Errorf("list unanalyzed memories: %w", err)
	}
	pending := lo.Filter(listed, func(m memory.Memory, _ int) bool {
		_, skip := a.skipped[m.ID]
		return !skip
	})
	if len(pending) > a.opts.BatchSize {
		pending = pending[:a.opts.BatchSize]
	}
	if len(pending) == 0 {
		return 0, nil
	}

	configs, err := a.store.ListModelConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list model configs: %w", err)
	}
	handle, err := a.engine.Resolve(a.opts.Model, configs)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", a.opts.Model, err)
	}

	analyzed := 0
	for _, summary := range pending {
		m, err := a.store.Get(ctx, summary.ID)
		if err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				continue // deleted since listing
			}
			return analyzed, fmt.Errorf("load memory %s: %w", summary.ID, err)
		}

		analysis, err := a.engine.Analyze(ctx, m, handle, a.opts.Locale)
		switch {
		case errors.Is(err, engine.ErrEmptyInput):
			a.logger.Debug().Str("memoryID", m.ID).Msg("Skipping memory with nothing to analyze")
			a.skipped[m.ID] = struct{}{}
			continue
		case err != nil:
			return analyzed, err
		}

		if err := a.store.UpdateAnalysis(ctx, m.ID, analysis); err != nil {
			if errors.Is(err, memory.ErrNotFound) {
				continue
			}
			return analyzed, fmt.Errorf("save analysis for %s: %w", m.ID, err)
		}
		analyzed++
	}
	return analyzed, nil
}
