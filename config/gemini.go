package config

import (
	"context"
	"os"

	llmgemini "github.com/aschepis/backscratcher/lifelog/llm/gemini"
)

// NewGeminiClient creates a Gemini client for a resolved model.
func NewGeminiClient(ctx context.Context, apiKey, baseURL, model string) (*llmgemini.GeminiClient, error) {
	return llmgemini.NewGeminiClient(ctx, apiKey, baseURL, model)
}

// getGeminiAPIKeyFromEnv returns the default credential from the environment.
// GEMINI_API_KEY takes precedence over the legacy API_KEY.
func getGeminiAPIKeyFromEnv() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("API_KEY")
}
