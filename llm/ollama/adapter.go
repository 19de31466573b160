package ollama

import (
	"fmt"
	"strings"

	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/ollama/ollama/api"
)

// ToOllamaMessages converts llm.Messages to Ollama's chat format. Text
// blocks are joined; image blocks become raw image attachments.
func ToOllamaMessages(msgs []llm.Message) ([]api.Message, error) {
	result := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "assistant"
		}

		var texts []string
		var images []api.ImageData
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				texts = append(texts, block.Text)
			case llm.ContentBlockTypeMedia:
				if block.MediaKind() != "image" {
					return nil, fmt.Errorf("unsupported media type %q", block.MediaType)
				}
				images = append(images, api.ImageData(block.Data))
			}
		}

		result = append(result, api.Message{
			Role:    role,
			Content: strings.Join(texts, "\n"),
			Images:  images,
		})
	}
	return result, nil
}
