package openai

import (
	"encoding/base64"
	"fmt"

	"github.com/aschepis/backscratcher/lifelog/llm"
	openai "github.com/sashabaranov/go-openai"
)

// ToOpenAIMessages converts llm.Messages to OpenAI chat message format.
func ToOpenAIMessages(msgs []llm.Message) ([]openai.ChatCompletionMessage, error) {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		openaiMsg, err := ToOpenAIMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to convert message: %w", err)
		}
		result = append(result, openaiMsg)
	}
	return result, nil
}

// ToOpenAIMessage converts a single llm.Message to OpenAI format.
// Text-only messages use plain Content; messages carrying images use
// MultiContent with data URLs.
func ToOpenAIMessage(msg llm.Message) (openai.ChatCompletionMessage, error) {
	role := openai.ChatMessageRoleUser
	if msg.Role == llm.RoleAssistant {
		role = openai.ChatMessageRoleAssistant
	}

	hasMedia := false
	for _, block := range msg.Content {
		if block.Type == llm.ContentBlockTypeMedia {
			hasMedia = true
			break
		}
	}

	if !hasMedia {
		var content string
		for _, block := range msg.Content {
			if content != "" {
				content += "\n"
			}
			content += block.Text
		}
		return openai.ChatCompletionMessage{Role: role, Content: content}, nil
	}

	parts := make([]openai.ChatMessagePart, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: block.Text,
			})
		case llm.ContentBlockTypeMedia:
			if block.MediaKind() != "image" {
				return openai.ChatCompletionMessage{}, fmt.Errorf("unsupported media type %q", block.MediaType)
			}
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    DataURL(block.MediaType, block.Data),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}, nil
}

// DataURL encodes data as an RFC 2397 base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
