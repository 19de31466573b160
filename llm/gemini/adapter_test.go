package gemini

import (
	"testing"

	"github.com/aschepis/backscratcher/lifelog/llm"
	"google.golang.org/genai"
)

func TestToContents_InlineMedia(t *testing.T) {
	msgs := []llm.Message{{Role: llm.RoleUser, Content: []llm.ContentBlock{
		llm.NewMediaBlock("audio/webm", []byte("voice")),
		llm.NewTextBlock("Analyze this audio content."),
	}}}
	contents := ToContents(msgs)
	if len(contents) != 1 {
		t.Fatalf("Expected 1 content, got %d", len(contents))
	}
	if contents[0].Role != string(genai.RoleUser) {
		t.Errorf("Expected user role, got %q", contents[0].Role)
	}
	parts := contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "audio/webm" || string(parts[0].InlineData.Data) != "voice" {
		t.Errorf("Expected inline audio blob, got %+v", parts[0])
	}
	if parts[1].Text != "Analyze this audio content." {
		t.Errorf("Expected text part, got %+v", parts[1])
	}
}

func TestBuildConfig_Schema(t *testing.T) {
	req := &llm.Request{
		System: "persona",
		Schema: &llm.Schema{
			Type: llm.SchemaTypeObject,
			Properties: map[string]*llm.Schema{
				"tags": {Type: llm.SchemaTypeArray, Items: &llm.Schema{Type: llm.SchemaTypeString}},
				"val":  {Type: llm.SchemaTypeNumber},
			},
			Required: []string{"tags"},
		},
	}
	config := BuildConfig(req)
	if config.ResponseMIMEType != "application/json" {
		t.Errorf("Expected JSON MIME type, got %q", config.ResponseMIMEType)
	}
	if config.SystemInstruction == nil || config.SystemInstruction.Parts[0].Text != "persona" {
		t.Error("Expected system instruction to be set")
	}
	schema := config.ResponseSchema
	if schema == nil || schema.Type != genai.TypeObject {
		t.Fatalf("Expected object schema, got %+v", schema)
	}
	tags := schema.Properties["tags"]
	if tags == nil || tags.Type != genai.TypeArray || tags.Items == nil || tags.Items.Type != genai.TypeString {
		t.Errorf("Expected array of strings for tags, got %+v", tags)
	}
	if schema.Properties["val"].Type != genai.TypeNumber {
		t.Errorf("Expected number for val, got %v", schema.Properties["val"].Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "tags" {
		t.Errorf("Expected required [tags], got %v", schema.Required)
	}
}

func TestBuildConfig_PlainText(t *testing.T) {
	config := BuildConfig(&llm.Request{})
	if config.ResponseSchema != nil || config.ResponseMIMEType != "" || config.SystemInstruction != nil {
		t.Errorf("Expected empty config, got %+v", config)
	}
}

func TestFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: `{"mood":`},
				{Text: `"Calm"}`},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 4},
	}
	out := FromResponse(resp)
	if out.Text() != `{"mood":"Calm"}` {
		t.Errorf("Unexpected text %q", out.Text())
	}
	if out.Usage == nil || out.Usage.InputTokens != 10 || out.Usage.OutputTokens != 4 {
		t.Errorf("Unexpected usage %+v", out.Usage)
	}
	if out.StopReason != string(genai.FinishReasonStop) {
		t.Errorf("Unexpected stop reason %q", out.StopReason)
	}
}

func TestFromResponse_Empty(t *testing.T) {
	if got := FromResponse(&genai.GenerateContentResponse{}).Text(); got != "" {
		t.Errorf("Expected empty text, got %q", got)
	}
	if got := FromResponse(nil).Text(); got != "" {
		t.Errorf("Expected empty text for nil, got %q", got)
	}
}
