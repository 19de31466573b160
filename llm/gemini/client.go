// Package gemini implements llm.Client on the Google Gen AI SDK. It is the
// first-party transport: the only one that accepts audio and video inline and
// that enforces response schemas server-side.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/aschepis/backscratcher/lifelog/llm"
	"google.golang.org/genai"
)

// GeminiClient implements the llm.Client interface for the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string // Default model to use if not specified in request
}

// NewGeminiClient creates a new GeminiClient. baseURL overrides the API
// endpoint when non-empty.
func NewGeminiClient(ctx context.Context, apiKey, baseURL, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *GeminiClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	contents := ToContents(req.Messages)
	config := BuildConfig(req)

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, convertGeminiError(err)
	}

	return FromResponse(resp), nil
}

// convertGeminiError converts genai API errors to llm.Error types.
func convertGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.FromStatus("Gemini", apiErr.Code, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Type: llm.ErrorTypeTimeout, Message: "Gemini request cancelled", ProviderErr: err}
	}
	return llm.NewNetworkError("Gemini request failed", err)
}
