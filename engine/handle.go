package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/lifelog/graph"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

const (
	simulatedMood  = "Simulated"
	simulatedTag   = "Simulation"
	simulatedColor = "#888888"
)

// Handle is a resolved model. Native handles call a provider; generic
// handles simulate locally and never touch the network.
type Handle interface {
	ModelID() string
	Class() llm.ProviderClass
	Descriptor() llm.ModelDescriptor

	// Analyze produces a structured reading of one memory. The memory must
	// carry its media bytes when it has media.
	Analyze(ctx context.Context, m memory.Memory, loc locale.Locale) (memory.AIAnalysis, error)
	// Ask answers query from memories. Native answers may contain
	// [[ID:x]] citations.
	Ask(ctx context.Context, query string, memories []memory.Memory) (string, error)
	// BuildGraph proposes relationships between memories.
	BuildGraph(ctx context.Context, memories []memory.Memory) (graph.Data, error)
}

func checkAnalyzable(m memory.Memory) error {
	if !m.HasText() && !m.HasMediaData() {
		return ErrEmptyInput
	}
	return nil
}

func checkQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyInput
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nativeHandle struct {
	res    *llm.Resolution
	client llm.Client
	logger zerolog.Logger
}

var _ Handle = (*nativeHandle)(nil)

func (h *nativeHandle) ModelID() string                 { return h.res.ModelID() }
func (h *nativeHandle) Class() llm.ProviderClass        { return llm.ClassNative }
func (h *nativeHandle) Descriptor() llm.ModelDescriptor { return h.res.Descriptor }

func (h *nativeHandle) transportError(op string, err error) error {
	return &TransportError{Model: h.ModelID(), Op: op, Err: err}
}

func (h *nativeHandle) Analyze(ctx context.Context, m memory.Memory, loc locale.Locale) (memory.AIAnalysis, error) {
	if err := checkAnalyzable(m); err != nil {
		return memory.AIAnalysis{}, err
	}
	req := &llm.Request{
		Model:    h.ModelID(),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: analysisParts(m, h.res.Descriptor, loc)}},
		Schema:   analysisSchema,
	}
	resp, err := h.client.Synchronous(ctx, req)
	if err != nil {
		return memory.AIAnalysis{}, h.transportError("analysis", err)
	}

	analysis, err := parseAnalysis(resp.Text())
	if err != nil {
		h.logger.Warn().Err(err).Str("memory_id", m.ID).Msg("unusable analysis output, using fallback")
		return fallbackAnalysis(h.ModelID(), loc), nil
	}
	analysis.AnalyzedByModel = h.ModelID()
	return analysis, nil
}

func (h *nativeHandle) Ask(ctx context.Context, query string, memories []memory.Memory) (string, error) {
	if err := checkQuery(query); err != nil {
		return "", err
	}
	req := &llm.Request{
		Model:    h.ModelID(),
		System:   SystemPrompt(BuildContext(memories)),
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, query)},
	}
	resp, err := h.client.Synchronous(ctx, req)
	if err != nil {
		return "", h.transportError("chat", err)
	}
	answer := resp.Text()
	if strings.TrimSpace(answer) == "" {
		return emptyAnswer, nil
	}
	return answer, nil
}

func (h *nativeHandle) BuildGraph(ctx context.Context, memories []memory.Memory) (graph.Data, error) {
	if len(memories) == 0 {
		return graph.Empty(), nil
	}
	prompt, err := graphPrompt(memories)
	if err != nil {
		return graph.Empty(), err
	}
	req := &llm.Request{
		Model:    h.ModelID(),
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
		Schema:   graphSchema,
	}
	resp, err := h.client.Synchronous(ctx, req)
	if err != nil {
		return graph.Empty(), h.transportError("graph", err)
	}

	data, err := parseGraph(resp.Text())
	if err != nil {
		h.logger.Warn().Err(err).Int("memories", len(memories)).Msg("unusable graph output, returning empty graph")
		return graph.Empty(), nil
	}
	return data, nil
}

type genericHandle struct {
	res           *llm.Resolution
	analysisDelay time.Duration
	chatDelay     time.Duration
}

var _ Handle = (*genericHandle)(nil)

func (h *genericHandle) ModelID() string                 { return h.res.ModelID() }
func (h *genericHandle) Class() llm.ProviderClass        { return llm.ClassGeneric }
func (h *genericHandle) Descriptor() llm.ModelDescriptor { return h.res.Descriptor }

func (h *genericHandle) Analyze(ctx context.Context, m memory.Memory, loc locale.Locale) (memory.AIAnalysis, error) {
	if err := checkAnalyzable(m); err != nil {
		return memory.AIAnalysis{}, err
	}
	if err := sleepContext(ctx, h.analysisDelay); err != nil {
		return memory.AIAnalysis{}, err
	}
	model := h.ModelID()
	return memory.AIAnalysis{
		Mood:    simulatedMood,
		Summary: fmt.Sprintf("(By %s) Analysis simulation. Language: %s", model, loc),
		Tags:    []string{simulatedTag, model, loc.String()},
		Color:   simulatedColor,
	}, nil
}

func (h *genericHandle) Ask(ctx context.Context, query string, _ []memory.Memory) (string, error) {
	if err := checkQuery(query); err != nil {
		return "", err
	}
	if err := sleepContext(ctx, h.chatDelay); err != nil {
		return "", err
	}
	return fmt.Sprintf("[Simulation] (%s) I am processing your request about \"%s\". To enable real responses for this model, please integrate the provider's SDK.", h.ModelID(), query), nil
}

func (h *genericHandle) BuildGraph(context.Context, []memory.Memory) (graph.Data, error) {
	return graph.Empty(), nil
}
