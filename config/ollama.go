package config

import (
	"os"

	llmollama "github.com/aschepis/backscratcher/lifelog/llm/ollama"
)

// LoadOllamaHost picks the Ollama host: a per-model base URL wins, then the
// server config (which already includes OLLAMA_HOST), then the catalog default.
func LoadOllamaHost(cfg *ServerConfig, resolvedBaseURL, catalogDefault string) string {
	if resolvedBaseURL != "" && resolvedBaseURL != catalogDefault {
		return resolvedBaseURL
	}
	if cfg != nil && cfg.Ollama.Host != "" {
		return cfg.Ollama.Host
	}
	return catalogDefault
}

// NewOllamaClient creates a new Ollama LLM client.
func NewOllamaClient(host, model string) (*llmollama.OllamaClient, error) {
	return llmollama.NewOllamaClient(host, model)
}

// getOllamaHostFromEnv gets the Ollama host from environment variable.
func getOllamaHostFromEnv() string {
	return os.Getenv("OLLAMA_HOST")
}
