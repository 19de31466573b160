package anthropic

import (
	"encoding/base64"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/aschepis/backscratcher/lifelog/llm"
)

// ToMessageParam converts an llm.Message to an anthropic.MessageParam.
// Only image media is accepted by the Messages API.
func ToMessageParam(msg llm.Message) (anthropic.MessageParam, error) {
	contentBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			contentBlocks = append(contentBlocks, anthropic.NewTextBlock(block.Text))
		case llm.ContentBlockTypeMedia:
			if block.MediaKind() != "image" {
				return anthropic.MessageParam{}, fmt.Errorf("unsupported media type %q", block.MediaType)
			}
			contentBlocks = append(contentBlocks, anthropic.NewImageBlockBase64(
				block.MediaType,
				base64.StdEncoding.EncodeToString(block.Data),
			))
		}
	}

	if msg.Role == llm.RoleAssistant {
		return anthropic.NewAssistantMessage(contentBlocks...), nil
	}
	return anthropic.NewUserMessage(contentBlocks...), nil
}

// ToMessageParams converts a slice of llm.Messages.
func ToMessageParams(msgs []llm.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	for i, msg := range msgs {
		param, err := ToMessageParam(msg)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		result = append(result, param)
	}
	return result, nil
}
