package config

import (
	"os"

	llmopenai "github.com/aschepis/backscratcher/lifelog/llm/openai"
)

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *ServerConfig, apiKey, baseURL, model string) (*llmopenai.OpenAIClient, error) {
	var organization string
	if cfg != nil {
		organization = cfg.OpenAI.Organization
	}
	return llmopenai.NewOpenAIClient(apiKey, baseURL, model, organization)
}

// getOpenAIOrgFromEnv gets the OpenAI organization ID from environment variable.
func getOpenAIOrgFromEnv() string {
	return os.Getenv("OPENAI_ORG_ID")
}
