package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/aschepis/backscratcher/lifelog/citation"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
)

const (
	contextDateLayout = "2006-01-02"
	emptyAnswer       = "..."
)

var analysisSchema = &llm.Schema{
	Type: llm.SchemaTypeObject,
	Properties: map[string]*llm.Schema{
		"mood":    {Type: llm.SchemaTypeString},
		"summary": {Type: llm.SchemaTypeString},
		"tags":    {Type: llm.SchemaTypeArray, Items: &llm.Schema{Type: llm.SchemaTypeString}},
		"color":   {Type: llm.SchemaTypeString, Description: "hex colour such as #A7F3D0"},
	},
	Required: []string{"mood", "summary", "tags", "color"},
}

var graphSchema = &llm.Schema{
	Type: llm.SchemaTypeObject,
	Properties: map[string]*llm.Schema{
		"nodes": {
			Type: llm.SchemaTypeArray,
			Items: &llm.Schema{
				Type: llm.SchemaTypeObject,
				Properties: map[string]*llm.Schema{
					"id":    {Type: llm.SchemaTypeString},
					"label": {Type: llm.SchemaTypeString},
					"group": {Type: llm.SchemaTypeString},
					"val":   {Type: llm.SchemaTypeNumber},
				},
			},
		},
		"links": {
			Type: llm.SchemaTypeArray,
			Items: &llm.Schema{
				Type: llm.SchemaTypeObject,
				Properties: map[string]*llm.Schema{
					"source": {Type: llm.SchemaTypeString},
					"target": {Type: llm.SchemaTypeString},
					"reason": {Type: llm.SchemaTypeString},
				},
			},
		},
	},
}

func analysisInstruction(loc locale.Locale) string {
	return fmt.Sprintf("Analyze this memory. %s Keep it philosophical and concise. Output pure JSON.", loc.Instruction())
}

// analysisParts builds the ordered request parts for one memory. Media the
// model cannot read is replaced with a short note.
func analysisParts(m memory.Memory, desc llm.ModelDescriptor, loc locale.Locale) []llm.ContentBlock {
	var parts []llm.ContentBlock
	if m.HasMediaData() {
		kind := m.MediaType.Kind()
		if desc.Supports(llm.Capability(kind)) {
			parts = append(parts, llm.NewMediaBlock(m.Media.MIMEType, m.Media.Data))
		} else {
			parts = append(parts, llm.NewTextBlock(fmt.Sprintf("(An attached %s was omitted because this model cannot read %s input.)", kind, kind)))
		}
	}

	switch {
	case m.HasText():
		parts = append(parts, llm.NewTextBlock("User Note: "+m.Content))
	case m.MediaType == memory.MediaTypeAudio:
		parts = append(parts, llm.NewTextBlock("Analyze this audio content."))
	}

	return append(parts, llm.NewTextBlock(analysisInstruction(loc)))
}

// ContextLine renders one memory for the chat context, or "" when the
// memory has neither content nor analysis.
func ContextLine(m memory.Memory) string {
	if m.Content == "" && m.Analysis == nil {
		return ""
	}
	content := "[Media]"
	if m.Content != "" {
		content = fmt.Sprintf("%q", m.Content)
	}
	line := fmt.Sprintf("[ID:%s] - %s: %s", m.ID, m.CreatedAt.Format(contextDateLayout), content)
	if m.Analysis != nil {
		line += fmt.Sprintf(" [Summary: %s, Tags: %s]", m.Analysis.Summary, strings.Join(m.Analysis.Tags, ","))
	}
	return line
}

// BuildContext renders the chat context block, one line per eligible memory
// in input order.
func BuildContext(memories []memory.Memory) string {
	lines := lo.FilterMap(memories, func(m memory.Memory, _ int) (string, bool) {
		line := ContextLine(m)
		return line, line != ""
	})
	return strings.Join(lines, "\n")
}

// SystemPrompt is the LifeLog persona instruction wrapped around the
// memory context.
func SystemPrompt(memoryContext string) string {
	var sb strings.Builder
	sb.WriteString("You are \"LifeLog\". Answer based on the user's memories and nothing else.\n")
	sb.WriteString("Cite memories using ")
	sb.WriteString(citation.Encode("memory-id"))
	sb.WriteString(".\n")
	sb.WriteString("Language: Detect from user query (Chinese or English).\n")
	sb.WriteString("Context:\n")
	sb.WriteString(memoryContext)
	return sb.String()
}

type graphInput struct {
	ID      string   `json:"id"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// graphPrompt renders the relationship request. Each memory is reduced to
// id, a summary (analysis summary, content, or "Media") and tags.
func graphPrompt(memories []memory.Memory) (string, error) {
	input := lo.Map(memories, func(m memory.Memory, _ int) graphInput {
		gi := graphInput{ID: m.ID, Summary: m.Content, Tags: []string{}}
		if m.Analysis != nil {
			if m.Analysis.Summary != "" {
				gi.Summary = m.Analysis.Summary
			}
			if m.Analysis.Tags != nil {
				gi.Tags = m.Analysis.Tags
			}
		}
		if gi.Summary == "" {
			gi.Summary = "Media"
		}
		return gi
	})
	data, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal graph input: %w", err)
	}
	return "Analyze the relationships between these memory nodes.\n" +
		"Return a JSON object with 'nodes' (use original IDs) and 'links'.\n" +
		"Nodes should have a 'group' (a theme name) and 'val' (importance 1-5).\n" +
		"Links should connect related memories and have a short 'reason'.\n" +
		"Input Data: " + string(data), nil
}
