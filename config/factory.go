package config

import (
	"context"
	"fmt"

	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/rs/zerolog"
)

// NewClientFactory returns an llm.ClientFactory that builds the transport
// matching a resolution's backend.
func NewClientFactory(cfg *ServerConfig, logger zerolog.Logger) llm.ClientFactory {
	return func(res *llm.Resolution) (llm.Client, error) {
		desc := res.Descriptor
		switch desc.Backend {
		case llm.BackendGemini:
			baseURL := res.BaseURL
			if baseURL == "" && cfg != nil {
				baseURL = cfg.Gemini.BaseURL
			}
			return NewGeminiClient(context.Background(), res.APIKey, baseURL, desc.ID)
		case llm.BackendOpenAI:
			return NewOpenAIClient(cfg, res.APIKey, res.BaseURL, desc.ID)
		case llm.BackendAnthropic:
			return NewAnthropicClient(cfg, res.APIKey, logger.With().Str("component", "anthropicClient").Logger())
		case llm.BackendOllama:
			return NewOllamaClient(LoadOllamaHost(cfg, res.BaseURL, desc.DefaultBaseURL), desc.ID)
		default:
			return nil, fmt.Errorf("no transport for backend %q (model %s)", desc.Backend, desc.ID)
		}
	}
}

// NewProviderRegistry builds the registry from server config.
func NewProviderRegistry(cfg *ServerConfig) *llm.ProviderRegistry {
	return llm.NewProviderRegistry(
		llm.DefaultCatalog(),
		llm.ProviderConfig{DefaultCredential: cfg.Gemini.APIKey},
		cfg.LLMBackends,
	)
}
