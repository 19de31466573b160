package engine

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/lifelog/graph"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

const (
	fallbackMood  = "Reflective"
	fallbackTag   = "Life"
	fallbackColor = "#E5E7EB"
)

var errMalformed = errors.New("malformed provider output")

// stripFence removes surrounding whitespace and a Markdown code fence,
// with or without a language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

type rawAnalysis struct {
	Mood    *string   `json:"mood"`
	Summary *string   `json:"summary"`
	Tags    *[]string `json:"tags"`
	Color   *string   `json:"color"`
}

// parseAnalysis decodes a structured analysis. Every field must be present.
func parseAnalysis(text string) (memory.AIAnalysis, error) {
	body := stripFence(text)
	if body == "" {
		return memory.AIAnalysis{}, errMalformed
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return memory.AIAnalysis{}, errors.Join(errMalformed, err)
	}
	if raw.Mood == nil || raw.Summary == nil || raw.Tags == nil || raw.Color == nil {
		return memory.AIAnalysis{}, errMalformed
	}
	return memory.AIAnalysis{
		Mood:    *raw.Mood,
		Summary: *raw.Summary,
		Tags:    cleanTags(*raw.Tags),
		Color:   *raw.Color,
	}, nil
}

// cleanTags trims tags and drops blanks and repeats, keeping order.
func cleanTags(tags []string) []string {
	trimmed := lo.Map(tags, func(t string, _ int) string { return strings.TrimSpace(t) })
	return lo.Uniq(lo.Compact(trimmed))
}

func fallbackAnalysis(modelID string, loc locale.Locale) memory.AIAnalysis {
	return memory.AIAnalysis{
		Mood:            fallbackMood,
		Summary:         loc.FallbackSummary(),
		Tags:            []string{fallbackTag},
		Color:           fallbackColor,
		AnalyzedByModel: modelID,
	}
}

// parseGraph decodes and sanitizes a graph payload.
func parseGraph(text string) (graph.Data, error) {
	body := stripFence(text)
	if body == "" {
		return graph.Empty(), errMalformed
	}
	var d graph.Data
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return graph.Empty(), errors.Join(errMalformed, err)
	}
	return graph.Sanitize(d), nil
}
