package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aschepis/backscratcher/lifelog/conversations"
	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
	"github.com/aschepis/backscratcher/lifelog/migrations"
	"github.com/aschepis/backscratcher/lifelog/service"

	_ "github.com/mattn/go-sqlite3"
)

type scriptedClient struct {
	text string
	err  error
}

func (c *scriptedClient) Synchronous(context.Context, *llm.Request) (*llm.Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: []llm.ContentBlock{llm.NewTextBlock(c.text)}}, nil
}

func newTestServer(t *testing.T, client *scriptedClient) *httptest.Server {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, migrations.RunMigrations(db, filepath.Join(cwd, "..", "migrations"), zerolog.Nop()))

	registry := llm.NewProviderRegistry(nil, llm.ProviderConfig{DefaultCredential: "default-key"}, []string{llm.BackendGemini})
	eng := engine.New(registry, func(*llm.Resolution) (llm.Client, error) { return client, nil }, engine.Options{}, zerolog.Nop())
	svc := service.New(eng, memory.NewStore(db, nil, zerolog.Nop()), conversations.NewStore(db), service.Options{
		DefaultModel: "gemini-2.5-flash",
		Locale:       locale.English,
	}, zerolog.Nop())

	srv := httptest.NewServer(New(Config{Logger: zerolog.Nop(), AllowedOrigins: []string{"http://localhost:*"}}, svc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[errorEnvelope](t, resp).Error.Code
}

func createTextMemory(t *testing.T, srv *httptest.Server, content string) memory.Memory {
	t.Helper()
	resp := doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{"content": content})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[memory.Memory](t, resp)
}

func TestHealthAndRequestID(t *testing.T) {
	srv := newTestServer(t, &scriptedClient{})
	resp := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMemoryLifecycle(t *testing.T) {
	srv := newTestServer(t, &scriptedClient{})

	m := createTextMemory(t, srv, "first snow")
	assert.NotEmpty(t, m.ID)

	resp := doJSON(t, srv, http.MethodGet, "/api/memories", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct{ Memories []memory.Memory }](t, resp)
	require.Len(t, list.Memories, 1)

	resp = doJSON(t, srv, http.MethodGet, "/api/memories/"+m.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodDelete, "/api/memories/"+m.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/memories/"+m.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeNotFound, errorCode(t, resp))
}

func TestCreateMemory_Validation(t *testing.T) {
	srv := newTestServer(t, &scriptedClient{})

	resp := doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{"content": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeEmptyInput, errorCode(t, resp))

	resp = doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{"content": "x", "media_type": "HOLOGRAM"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeBadRequest, errorCode(t, resp))

	resp = doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{
		"media_type": "IMAGE", "media_mime": "audio/webm", "media_base64": base64.StdEncoding.EncodeToString([]byte("x")),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeBadRequest, errorCode(t, resp))
}

func TestMediaRoundTrip(t *testing.T) {
	srv := newTestServer(t, &scriptedClient{})
	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	resp := doJSON(t, srv, http.MethodPost, "/api/memories", map[string]any{"media_type": "IMAGE", "media_base64": payload})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	m := decode[memory.Memory](t, resp)
	require.NotNil(t, m.Media)
	assert.Equal(t, "image/png", m.Media.MIMEType)

	resp = doJSON(t, srv, http.MethodGet, "/api/memories/"+m.ID+"/media", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestAnalyzeAndEditSummary(t *testing.T) {
	client := &scriptedClient{text: `{"mood":"Calm","summary":"Snowfall","tags":["Winter"],"color":"#DBEAFE"}`}
	srv := newTestServer(t, client)
	m := createTextMemory(t, srv, "first snow")

	resp := doJSON(t, srv, http.MethodPatch, "/api/memories/"+m.ID+"/analysis", map[string]any{"summary": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/memories/"+m.ID+"/analysis", map[string]any{"locale": "en"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	analysis := decode[memory.AIAnalysis](t, resp)
	assert.Equal(t, "Calm", analysis.Mood)
	assert.Equal(t, "gemini-2.5-flash", analysis.AnalyzedByModel)

	resp = doJSON(t, srv, http.MethodPatch, "/api/memories/"+m.ID+"/analysis", map[string]any{"summary": "Quiet first snow"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	edited := decode[memory.AIAnalysis](t, resp)
	assert.Equal(t, "Quiet first snow", edited.Summary)
	assert.Equal(t, "gemini-2.5-flash", edited.AnalyzedByModel)

	resp = doJSON(t, srv, http.MethodPost, "/api/memories/"+m.ID+"/analysis", map[string]any{"locale": "fr"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	client := &scriptedClient{err: llm.NewServerError("gemini server error", 503, nil)}
	srv := newTestServer(t, client)
	m := createTextMemory(t, srv, "note")

	resp := doJSON(t, srv, http.MethodPost, "/api/memories/"+m.ID+"/analysis", map[string]any{"model": "foo-model"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeMissingCredential, errorCode(t, resp))

	resp = doJSON(t, srv, http.MethodPost, "/api/memories/"+m.ID+"/analysis", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, codeCouldNotComplete, errorCode(t, resp))

	resp = doJSON(t, srv, http.MethodPost, "/api/ask", map[string]any{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeEmptyInput, errorCode(t, resp))
}

func TestErrorMapping_ProviderLimits(t *testing.T) {
	retryAfter := 1500 * time.Millisecond
	client := &scriptedClient{err: llm.NewRateLimitError("gemini rate limit exceeded", &retryAfter, nil)}
	srv := newTestServer(t, client)
	m := createTextMemory(t, srv, "note")

	resp := doJSON(t, srv, http.MethodPost, "/api/memories/"+m.ID+"/analysis", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("Retry-After"))
	assert.Equal(t, codeRateLimited, errorCode(t, resp))

	client.err = llm.NewRequestTooLargeError("gemini request too large", nil)
	resp = doJSON(t, srv, http.MethodPost, "/api/ask", map[string]any{"query": "anything?"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, codeRequestTooLarge, errorCode(t, resp))
}

func TestAskAndExchanges(t *testing.T) {
	client := &scriptedClient{}
	srv := newTestServer(t, client)
	m := createTextMemory(t, srv, "coffee with an old friend")
	client.text = "You met a friend " + "[[ID:" + m.ID + "]]."

	resp := doJSON(t, srv, http.MethodPost, "/api/ask", map[string]any{"query": "Who did I meet?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	answer := decode[service.Answer](t, resp)
	assert.Equal(t, []string{m.ID}, answer.CitedIDs)
	assert.Empty(t, answer.Unresolved)
	require.Len(t, answer.Segments, 3)
	assert.True(t, answer.Segments[1].Citation)

	resp = doJSON(t, srv, http.MethodGet, "/api/exchanges", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct{ Exchanges []conversations.Exchange }](t, resp)
	require.Len(t, list.Exchanges, 1)
	assert.Equal(t, "Who did I meet?", list.Exchanges[0].Query)

	resp = doJSON(t, srv, http.MethodDelete, "/api/exchanges", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/exchanges", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw := decode[map[string]any](t, resp)
	assert.Equal(t, []any{}, raw["exchanges"])
}

func TestGraphGenericInsufficient(t *testing.T) {
	srv := newTestServer(t, &scriptedClient{})
	createTextMemory(t, srv, "a")

	resp := doJSON(t, srv, http.MethodPut, "/api/models/my-model/config", map[string]any{"api_key": "k"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/graph", map[string]any{"model": "my-model"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[map[string]any](t, resp)
	assert.Equal(t, true, view["insufficient_data"])
	assert.Equal(t, []any{}, view["nodes"])
	assert.Equal(t, []any{}, view["links"])
}

func TestModelConfigEndpoints(t *testing.T) {
	srv := newTestServer(t, &scriptedClient{})

	resp := doJSON(t, srv, http.MethodPut, "/api/models/qwen-max/config", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPut, "/api/models/qwen-max/config", map[string]any{"api_key": "k", "base_url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPut, "/api/models/qwen-max/config", map[string]any{"api_key": "k"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct{ Models []service.ModelInfo }](t, resp)
	var qwen *service.ModelInfo
	for i := range list.Models {
		if list.Models[i].ID == "qwen-max" {
			qwen = &list.Models[i]
		}
	}
	require.NotNil(t, qwen)
	assert.True(t, qwen.Configured)

	resp = doJSON(t, srv, http.MethodDelete, "/api/models/qwen-max/config", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, srv, http.MethodDelete, "/api/models/qwen-max/config", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModelConfigEscapedModelID(t *testing.T) {
	srv := newTestServer(t, &scriptedClient{})
	createTextMemory(t, srv, "tram ride downtown")

	resp := doJSON(t, srv, http.MethodPut, "/api/models/meta-llama%2Fllama-3/config", map[string]any{"api_key": "k"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/ask", map[string]any{"query": "Where did I go?", "model": "meta-llama/llama-3"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodDelete, "/api/models/meta-llama%2Fllama-3/config", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodPost, "/api/ask", map[string]any{"query": "Where did I go?", "model": "meta-llama/llama-3"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeMissingCredential, errorCode(t, resp))
}
