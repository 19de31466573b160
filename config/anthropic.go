package config

import (
	llmanthropic "github.com/aschepis/backscratcher/lifelog/llm/anthropic"
	"github.com/rs/zerolog"
)

// NewAnthropicClient creates a new Anthropic LLM client.
func NewAnthropicClient(cfg *ServerConfig, apiKey string, logger zerolog.Logger) (*llmanthropic.AnthropicClient, error) {
	var maxTokens int64
	if cfg != nil {
		maxTokens = cfg.Anthropic.MaxTokens
	}
	return llmanthropic.NewAnthropicClient(apiKey, maxTokens, logger)
}
