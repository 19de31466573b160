package llm

import (
	"encoding/json"
	"strings"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole
	Content []ContentBlock
}

// ContentBlock is one ordered part of a message: text or an inline binary
// payload tagged with its MIME type.
type ContentBlock struct {
	Type      ContentBlockType
	Text      string // For text blocks
	MediaType string `json:",omitempty"` // MIME type for media blocks, e.g. "image/png"
	Data      []byte `json:"-"`          // Raw media bytes; never logged
}

// ContentBlockType represents the type of content block.
type ContentBlockType string

const (
	ContentBlockTypeText  ContentBlockType = "text"
	ContentBlockTypeMedia ContentBlockType = "media"
)

// MediaKind returns the top-level MIME family of a media block ("image",
// "audio", "video"), or "" for text blocks.
func (b ContentBlock) MediaKind() string {
	if b.Type != ContentBlockTypeMedia {
		return ""
	}
	kind, _, _ := strings.Cut(b.MediaType, "/")
	return kind
}

// Schema is the subset of JSON Schema used to ask a provider for strictly
// structured output. Each transport converts it to its own representation.
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// SchemaType is a JSON Schema primitive type name.
type SchemaType string

const (
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
)

// JSON returns the schema encoded as a JSON Schema document.
func (s *Schema) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// Request represents a complete LLM API request.
type Request struct {
	Model       string
	Messages    []Message
	System      string
	Schema      *Schema // When set, the response text must be JSON matching it
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
}

// Response represents a complete LLM API response.
type Response struct {
	Content    []ContentBlock
	Usage      *Usage
	StopReason string
}

// Text concatenates every text block of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range r.Content {
		if block.Type == ContentBlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// Usage represents token usage information from an LLM response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// NewTextMessage creates a new message with text content.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			NewTextBlock(text),
		},
	}
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentBlockTypeText, Text: text}
}

// NewMediaBlock creates an inline media content block.
func NewMediaBlock(mimeType string, data []byte) ContentBlock {
	return ContentBlock{Type: ContentBlockTypeMedia, MediaType: mimeType, Data: data}
}

// SchemaInstruction renders schema as a prompt suffix for transports whose
// API cannot enforce a schema natively.
func SchemaInstruction(schema *Schema) string {
	if schema == nil {
		return ""
	}
	data, err := schema.JSON()
	if err != nil {
		return "Respond with a single JSON value and nothing else."
	}
	return "Respond with a single JSON value and nothing else. It must match this JSON Schema: " + string(data)
}

// SystemWithSchema returns req.System with the schema instruction appended.
func SystemWithSchema(req *Request) string {
	instr := SchemaInstruction(req.Schema)
	switch {
	case instr == "":
		return req.System
	case req.System == "":
		return instr
	default:
		return req.System + "\n\n" + instr
	}
}
