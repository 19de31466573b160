// Package service composes the engine and the stores into the operations
// the daemon exposes. Both the HTTP server and the MCP server call it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/lifelog/citation"
	"github.com/aschepis/backscratcher/lifelog/conversations"
	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/graph"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

// Options holds the service defaults.
type Options struct {
	DefaultModel string
	Locale       locale.Locale
	Layout       graph.Options
}

// Service runs LifeLog operations end to end.
type Service struct {
	engine    *engine.Engine
	store     *memory.Store
	exchanges *conversations.Store
	opts      Options
	startedAt time.Time
	logger    zerolog.Logger
}

// New creates a Service.
func New(eng *engine.Engine, store *memory.Store, exchanges *conversations.Store, opts Options, logger zerolog.Logger) *Service {
	if opts.Locale == "" {
		opts.Locale = locale.Default
	}
	return &Service{
		engine:    eng,
		store:     store,
		exchanges: exchanges,
		opts:      opts,
		startedAt: time.Now(),
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Model returns requested, or the default model when it is blank.
func (s *Service) Model(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	return s.opts.DefaultModel
}

// Locale parses requested, or returns the default locale when it is blank.
func (s *Service) Locale(requested string) (locale.Locale, error) {
	if strings.TrimSpace(requested) == "" {
		return s.opts.Locale, nil
	}
	return locale.Parse(requested)
}

// resolve loads the stored model configs and resolves model against them.
func (s *Service) resolve(ctx context.Context, model string) (engine.Handle, error) {
	configs, err := s.store.ListModelConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model configs: %w", err)
	}
	return s.engine.Resolve(s.Model(model), configs)
}

// AddMemory persists a new memory.
func (s *Service) AddMemory(ctx context.Context, m memory.Memory) (memory.Memory, error) {
	return s.store.Save(ctx, m)
}

// ListMemories returns memories newest first. A non-blank query filters by
// content, summary, mood and tags.
func (s *Service) ListMemories(ctx context.Context, query string, limit int) ([]memory.Memory, error) {
	if strings.TrimSpace(query) != "" {
		return s.store.Search(ctx, query, limit)
	}
	mems, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(mems) > limit {
		mems = mems[:limit]
	}
	return mems, nil
}

// GetMemory returns one memory including its media bytes.
func (s *Service) GetMemory(ctx context.Context, id string) (memory.Memory, error) {
	return s.store.Get(ctx, id)
}

// OpenMedia returns a handle over a memory's media. The caller closes it.
func (s *Service) OpenMedia(ctx context.Context, id string) (*memory.MediaHandle, error) {
	return s.store.OpenMedia(ctx, id)
}

// DeleteMemory removes a memory and its media.
func (s *Service) DeleteMemory(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// AnalyzeMemory analyzes a stored memory with model and saves the result.
// Re-running it regenerates the analysis.
func (s *Service) AnalyzeMemory(ctx context.Context, id, model string, loc locale.Locale) (memory.AIAnalysis, error) {
	handle, err := s.resolve(ctx, model)
	if err != nil {
		return memory.AIAnalysis{}, err
	}
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return memory.AIAnalysis{}, err
	}
	analysis, err := s.engine.Analyze(ctx, m, handle, loc)
	if err != nil {
		return memory.AIAnalysis{}, err
	}
	if err := s.store.UpdateAnalysis(ctx, id, analysis); err != nil {
		return memory.AIAnalysis{}, fmt.Errorf("save analysis: %w", err)
	}
	return analysis, nil
}

// EditSummary replaces the summary of an existing analysis.
func (s *Service) EditSummary(ctx context.Context, id, summary string) (memory.AIAnalysis, error) {
	return s.store.UpdateSummary(ctx, id, summary)
}

// Answer is a chat reply decoded for display.
type Answer struct {
	Model      string             `json:"model"`
	Text       string             `json:"text"`
	Segments   []citation.Segment `json:"segments"`
	CitedIDs   []string           `json:"cited_ids"`
	Unresolved []string           `json:"unresolved_ids,omitempty"`
	ExchangeID int64              `json:"exchange_id,omitempty"`
}

// Ask answers query from every stored memory and records the exchange.
// Citations to ids that do not exist are kept inert and reported in
// Unresolved.
func (s *Service) Ask(ctx context.Context, query, model string) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, engine.ErrEmptyInput
	}
	handle, err := s.resolve(ctx, model)
	if err != nil {
		return nil, err
	}
	mems, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	text, err := s.engine.Ask(ctx, query, mems, handle)
	if err != nil {
		return nil, err
	}

	known := lo.SliceToMap(mems, func(m memory.Memory) (string, struct{}) { return m.ID, struct{}{} })
	segments := citation.Decode(text)
	answer := &Answer{
		Model:    handle.ModelID(),
		Text:     text,
		Segments: segments,
		CitedIDs: lo.Uniq(citation.IDs(text)),
		Unresolved: citation.Unresolved(segments, func(id string) bool {
			_, ok := known[id]
			return ok
		}),
	}
	if answer.CitedIDs == nil {
		answer.CitedIDs = []string{}
	}
	if len(answer.Unresolved) > 0 {
		s.logger.Debug().Strs("ids", answer.Unresolved).Str("model", answer.Model).Msg("answer cites unknown memories")
	}

	if s.exchanges != nil {
		ex, err := s.exchanges.Append(ctx, conversations.Exchange{
			ModelID:  answer.Model,
			Query:    query,
			Answer:   text,
			CitedIDs: answer.CitedIDs,
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to record exchange")
		} else {
			answer.ExchangeID = ex.ID
		}
	}
	return answer, nil
}

// Exchanges returns recent chat turns, newest first.
func (s *Service) Exchanges(ctx context.Context, limit int) ([]conversations.Exchange, error) {
	if s.exchanges == nil {
		return []conversations.Exchange{}, nil
	}
	return s.exchanges.List(ctx, limit)
}

// ClearExchanges deletes the recorded chat history.
func (s *Service) ClearExchanges(ctx context.Context) error {
	if s.exchanges == nil {
		return nil
	}
	s.logger.Info().Msg("clearing chat history")
	return s.exchanges.Clear(ctx)
}

// GraphView is a laid-out relationship graph.
type GraphView struct {
	Model            string                 `json:"model"`
	Nodes            []graph.PositionedNode `json:"nodes"`
	Links            []graph.Link           `json:"links"`
	InsufficientData bool                   `json:"insufficient_data"`
}

// Graph builds and lays out the relationship graph of every memory.
func (s *Service) Graph(ctx context.Context, model string) (*GraphView, error) {
	handle, err := s.resolve(ctx, model)
	if err != nil {
		return nil, err
	}
	mems, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.engine.BuildGraph(ctx, mems, handle)
	if err != nil {
		return nil, err
	}
	return &GraphView{
		Model:            handle.ModelID(),
		Nodes:            graph.Layout(data, s.opts.Layout),
		Links:            data.Links,
		InsufficientData: data.IsEmpty(),
	}, nil
}

// ModelInfo describes a catalogued model for display.
type ModelInfo struct {
	llm.ModelDescriptor
	Class      llm.ProviderClass `json:"class"`
	Configured bool              `json:"configured"`
	Default    bool              `json:"default"`
}

// Models lists the catalog with routing class and whether the user has
// stored a key for each model. Stored configs for unknown ids are listed
// after the catalog with the generic profile.
func (s *Service) Models(ctx context.Context) ([]ModelInfo, error) {
	configs, err := s.store.ListModelConfigs(ctx)
	if err != nil {
		return nil, err
	}
	registry := s.engine.Registry()
	catalog := registry.Catalog()

	describe := func(desc llm.ModelDescriptor, known bool) ModelInfo {
		cfg, ok := llm.FindModelConfig(configs, desc.ID)
		class := llm.ClassGeneric
		if known && desc.Backend != "" && registry.IsBackendEnabled(desc.Backend) {
			class = llm.ClassNative
		}
		return ModelInfo{
			ModelDescriptor: desc,
			Class:           class,
			Configured:      ok && cfg.APIKey != "",
			Default:         desc.ID == s.opts.DefaultModel,
		}
	}

	out := lo.Map(catalog.Models(), func(d llm.ModelDescriptor, _ int) ModelInfo { return describe(d, true) })
	for _, cfg := range lo.UniqBy(configs, func(c llm.UserModelConfig) string { return c.ModelID }) {
		if _, known := catalog.Lookup(cfg.ModelID); !known {
			out = append(out, describe(llm.GenericProfile(cfg.ModelID), false))
		}
	}
	return out, nil
}

// SetModelConfig stores the user's key and base URL for a model.
func (s *Service) SetModelConfig(ctx context.Context, cfg llm.UserModelConfig) error {
	if strings.TrimSpace(cfg.ModelID) == "" {
		return errors.New("model id is required")
	}
	return s.store.SaveModelConfig(ctx, cfg)
}

// DeleteModelConfig removes a stored model config.
func (s *Service) DeleteModelConfig(ctx context.Context, modelID string) error {
	return s.store.DeleteModelConfig(ctx, modelID)
}

// Info is daemon status.
type Info struct {
	Status          string    `json:"status"`
	Version         string    `json:"version"`
	StartedAt       time.Time `json:"started_at"`
	DefaultModel    string    `json:"default_model"`
	Locale          string    `json:"locale"`
	EnabledBackends []string  `json:"enabled_backends"`
	Memories        int       `json:"memories"`
}

// Version is reported by Status.
var Version = "0.1.0"

// Status reports daemon state.
func (s *Service) Status(ctx context.Context) (*Info, error) {
	mems, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return &Info{
		Status:          "running",
		Version:         Version,
		StartedAt:       s.startedAt,
		DefaultModel:    s.opts.DefaultModel,
		Locale:          s.opts.Locale.String(),
		EnabledBackends: s.engine.Registry().EnabledBackends(),
		Memories:        len(mems),
	}, nil
}
