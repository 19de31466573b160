package client

import (
	"context"
	"database/sql"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aschepis/backscratcher/lifelog/conversations"
	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"github.com/aschepis/backscratcher/lifelog/memory"
	"github.com/aschepis/backscratcher/lifelog/migrations"
	"github.com/aschepis/backscratcher/lifelog/server"
	"github.com/aschepis/backscratcher/lifelog/service"

	_ "github.com/mattn/go-sqlite3"
)

type cannedClient struct{ text string }

func (c *cannedClient) Synchronous(context.Context, *llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: []llm.ContentBlock{llm.NewTextBlock(c.text)}}, nil
}

func newDaemon(t *testing.T, llmClient llm.Client) http.Handler {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, migrations.RunMigrations(db, filepath.Join(cwd, "..", "migrations"), zerolog.Nop()))

	registry := llm.NewProviderRegistry(nil, llm.ProviderConfig{DefaultCredential: "key"}, []string{llm.BackendGemini})
	eng := engine.New(registry, func(*llm.Resolution) (llm.Client, error) { return llmClient, nil }, engine.Options{}, zerolog.Nop())
	svc := service.New(eng, memory.NewStore(db, nil, zerolog.Nop()), conversations.NewStore(db), service.Options{
		DefaultModel: "gemini-2.5-flash",
		Locale:       locale.English,
	}, zerolog.Nop())
	return server.New(server.Config{Logger: zerolog.Nop()}, svc).Handler()
}

func newTestClient(t *testing.T, llmClient llm.Client) *Client {
	t.Helper()
	srv := httptest.NewServer(newDaemon(t, llmClient))
	t.Cleanup(srv.Close)
	c, err := Connect(srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect_AddressForms(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"", "http://" + DefaultAddress},
		{"127.0.0.1:9000", "http://127.0.0.1:9000"},
		{"http://example.test:8417/", "http://example.test:8417"},
		{"/tmp/lifelogd.sock", "http://lifelogd"},
		{"unix:///tmp/lifelogd.sock", "http://lifelogd"},
	}
	for _, tt := range tests {
		c, err := Connect(tt.address)
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.baseURL, tt.address)
	}
}

func TestMemoryLifecycle(t *testing.T) {
	c := newTestClient(t, &cannedClient{text: `{"mood":"Calm","summary":"A walk.","tags":["Outdoors"],"color":"#A7F3D0"}`})
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	saved, err := c.AddMemory(ctx, NewMemory{Content: "walk by the river", Location: "Riverside"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	mems, err := c.ListMemories(ctx, "river", 10)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, saved.ID, mems[0].ID)

	analysis, err := c.Analyze(ctx, saved.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Calm", analysis.Mood)
	assert.Equal(t, "gemini-2.5-flash", analysis.AnalyzedByModel)

	analysis, err = c.EditSummary(ctx, saved.ID, "A long walk.")
	require.NoError(t, err)
	assert.Equal(t, "A long walk.", analysis.Summary)

	got, err := c.GetMemory(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "A long walk.", got.Analysis.Summary)

	require.NoError(t, c.DeleteMemory(ctx, saved.ID))
	_, err = c.GetMemory(ctx, saved.ID)
	assert.True(t, IsCode(err, "not_found"))
}

func TestMediaRoundTrip(t *testing.T) {
	c := newTestClient(t, &cannedClient{})
	ctx := context.Background()

	saved, err := c.AddMemory(ctx, NewMemory{MediaType: "IMAGE", MediaMIME: "image/png", Media: []byte("png-bytes")})
	require.NoError(t, err)

	rc, mime, err := c.Media(ctx, saved.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestAskAndExchanges(t *testing.T) {
	llmClient := &cannedClient{}
	c := newTestClient(t, llmClient)
	ctx := context.Background()

	saved, err := c.AddMemory(ctx, NewMemory{Content: "coffee with Ana"})
	require.NoError(t, err)
	llmClient.text = "You met Ana [[ID:" + saved.ID + "]]."

	answer, err := c.Ask(ctx, "who did I meet?", "")
	require.NoError(t, err)
	assert.Equal(t, []string{saved.ID}, answer.CitedIDs)
	assert.Empty(t, answer.Unresolved)
	require.Len(t, answer.Segments, 3)
	assert.True(t, answer.Segments[1].Citation)

	exchanges, err := c.Exchanges(ctx, 5)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, "who did I meet?", exchanges[0].Query)
}

func TestErrorsAreDecoded(t *testing.T) {
	c := newTestClient(t, &cannedClient{})
	ctx := context.Background()

	_, err := c.Ask(ctx, "hello", "unknown-model")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "missing_credential", apiErr.Code)

	_, err = c.AddMemory(ctx, NewMemory{})
	assert.True(t, IsCode(err, "empty_input"))
}

func TestModelsAndConfig(t *testing.T) {
	c := newTestClient(t, &cannedClient{})
	ctx := context.Background()

	require.NoError(t, c.SetModelConfig(ctx, "qwen-max", "sk-test", ""))
	models, err := c.Models(ctx)
	require.NoError(t, err)

	var found bool
	for _, m := range models {
		if m.ID == "qwen-max" {
			found = true
			assert.True(t, m.Configured)
		}
	}
	assert.True(t, found)

	require.NoError(t, c.DeleteModelConfig(ctx, "qwen-max"))

	view, err := c.Graph(ctx, "")
	require.NoError(t, err)
	assert.True(t, view.InsufficientData)
}

func TestModelConfigWithSlash(t *testing.T) {
	c := newTestClient(t, &cannedClient{})
	ctx := context.Background()

	require.NoError(t, c.SetModelConfig(ctx, "meta-llama/llama-3", "sk-test", ""))
	models, err := c.Models(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	assert.Contains(t, ids, "meta-llama/llama-3")
	assert.NotContains(t, ids, "meta-llama%2Fllama-3")

	require.NoError(t, c.DeleteModelConfig(ctx, "meta-llama/llama-3"))
}

func TestUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "ll")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "d.sock")

	listener, err := net.Listen("unix", socket)
	require.NoError(t, err)
	srv := httptest.NewUnstartedServer(newDaemon(t, &cannedClient{}))
	srv.Listener = listener
	srv.Start()
	t.Cleanup(srv.Close)

	c, err := Connect(socket)
	require.NoError(t, err)
	assert.NoError(t, c.Health(context.Background()))
}
