package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aschepis/backscratcher/lifelog/conversations"
	"github.com/aschepis/backscratcher/lifelog/memory"
	"github.com/aschepis/backscratcher/lifelog/service"
)

// NewMemory is the payload for AddMemory.
type NewMemory struct {
	Content   string     `json:"content,omitempty"`
	MediaType string     `json:"media_type,omitempty"`
	MediaMIME string     `json:"media_mime,omitempty"`
	Media     []byte     `json:"-"`
	Location  string     `json:"location,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// Status returns daemon status.
func (c *Client) Status(ctx context.Context) (*service.Info, error) {
	var info service.Info
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Models lists the model catalog.
func (c *Client) Models(ctx context.Context) ([]service.ModelInfo, error) {
	var resp struct {
		Models []service.ModelInfo `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// SetModelConfig stores the API key and optional base URL for a model.
func (c *Client) SetModelConfig(ctx context.Context, modelID, apiKey, baseURL string) error {
	body := map[string]string{"api_key": apiKey}
	if baseURL != "" {
		body["base_url"] = baseURL
	}
	return c.do(ctx, http.MethodPut, "/api/models/"+url.PathEscape(modelID)+"/config", nil, body, nil)
}

// DeleteModelConfig removes a stored model config.
func (c *Client) DeleteModelConfig(ctx context.Context, modelID string) error {
	return c.do(ctx, http.MethodDelete, "/api/models/"+url.PathEscape(modelID)+"/config", nil, nil, nil)
}

// AddMemory records a memory.
func (c *Client) AddMemory(ctx context.Context, m NewMemory) (*memory.Memory, error) {
	body := struct {
		NewMemory
		MediaBase64 string `json:"media_base64,omitempty"`
	}{NewMemory: m}
	if len(m.Media) > 0 {
		body.MediaBase64 = base64.StdEncoding.EncodeToString(m.Media)
	}
	var saved memory.Memory
	if err := c.do(ctx, http.MethodPost, "/api/memories", nil, body, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListMemories lists memories newest first, optionally filtered by query.
func (c *Client) ListMemories(ctx context.Context, query string, limit int) ([]memory.Memory, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Memories []memory.Memory `json:"memories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/memories", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Memories, nil
}

// GetMemory returns one memory without its media bytes.
func (c *Client) GetMemory(ctx context.Context, id string) (*memory.Memory, error) {
	var m memory.Memory
	if err := c.do(ctx, http.MethodGet, "/api/memories/"+url.PathEscape(id), nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMemory deletes a memory and its media.
func (c *Client) DeleteMemory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/memories/"+url.PathEscape(id), nil, nil, nil)
}

// Media opens a memory's media payload. The caller must close the reader.
func (c *Client) Media(ctx context.Context, id string) (io.ReadCloser, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/memories/"+url.PathEscape(id)+"/media", nil, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to reach daemon: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, "", decodeError(resp)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Analyze runs (or reruns) analysis of a memory with model.
func (c *Client) Analyze(ctx context.Context, id, model, locale string) (*memory.AIAnalysis, error) {
	body := map[string]string{"model": model, "locale": locale}
	var analysis memory.AIAnalysis
	if err := c.do(ctx, http.MethodPost, "/api/memories/"+url.PathEscape(id)+"/analysis", nil, body, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// EditSummary replaces the summary of an analyzed memory.
func (c *Client) EditSummary(ctx context.Context, id, summary string) (*memory.AIAnalysis, error) {
	var analysis memory.AIAnalysis
	body := map[string]string{"summary": summary}
	if err := c.do(ctx, http.MethodPatch, "/api/memories/"+url.PathEscape(id)+"/analysis", nil, body, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Ask asks a question answered from every memory.
func (c *Client) Ask(ctx context.Context, query, model string) (*service.Answer, error) {
	var answer service.Answer
	body := map[string]string{"query": query, "model": model}
	if err := c.do(ctx, http.MethodPost, "/api/ask", nil, body, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// Exchanges returns recent chat exchanges, newest first.
func (c *Client) Exchanges(ctx context.Context, limit int) ([]conversations.Exchange, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Exchanges []conversations.Exchange `json:"exchanges"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/exchanges", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Exchanges, nil
}

// ClearExchanges deletes the daemon's chat history.
func (c *Client) ClearExchanges(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/exchanges", nil, nil, nil)
}

// Graph builds the relationship graph with model.
func (c *Client) Graph(ctx context.Context, model string) (*service.GraphView, error) {
	var view service.GraphView
	if err := c.do(ctx, http.MethodPost, "/api/graph", nil, map[string]string{"model": model}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}
