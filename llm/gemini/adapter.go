package gemini

import (
	"strings"

	"github.com/aschepis/backscratcher/lifelog/llm"
	"google.golang.org/genai"
)

// ToContents converts llm.Messages to genai contents. Media blocks become
// inline blobs and keep their position relative to text.
func ToContents(msgs []llm.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		role := genai.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				parts = append(parts, &genai.Part{Text: block.Text})
			case llm.ContentBlockTypeMedia:
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: block.MediaType, Data: block.Data},
				})
			}
		}
		out = append(out, &genai.Content{Role: string(role), Parts: parts})
	}
	return out
}

// BuildConfig maps request options onto a GenerateContentConfig.
func BuildConfig(req *llm.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = ToSchema(req.Schema)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	return config
}

// ToSchema converts an llm.Schema into the genai representation.
func ToSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Items:       ToSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = ToSchema(prop)
		}
	}
	return out
}

func toType(t llm.SchemaType) genai.Type {
	switch t {
	case llm.SchemaTypeObject:
		return genai.TypeObject
	case llm.SchemaTypeArray:
		return genai.TypeArray
	case llm.SchemaTypeNumber:
		return genai.TypeNumber
	case llm.SchemaTypeInteger:
		return genai.TypeInteger
	case llm.SchemaTypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// FromResponse converts the first candidate into an llm.Response. Thought
// parts are skipped.
func FromResponse(resp *genai.GenerateContentResponse) *llm.Response {
	out := &llm.Response{Content: []llm.ContentBlock{}}
	if resp == nil {
		return out
	}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			var sb strings.Builder
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				sb.WriteString(part.Text)
			}
			if sb.Len() > 0 {
				out.Content = append(out.Content, llm.NewTextBlock(sb.String()))
			}
		}
		out.StopReason = string(cand.FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = &llm.Usage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out
}
