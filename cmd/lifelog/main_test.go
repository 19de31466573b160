package main

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aschepis/backscratcher/lifelog/citation"
	"github.com/aschepis/backscratcher/lifelog/config"
	"github.com/aschepis/backscratcher/lifelog/conversations"
	"github.com/aschepis/backscratcher/lifelog/engine"
	"github.com/aschepis/backscratcher/lifelog/graph"
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

func startDaemon(t *testing.T, llmClient llm.Client) string {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, migrations.RunMigrations(db, filepath.Join(cwd, "..", "..", "migrations"), zerolog.Nop()))

	registry := llm.NewProviderRegistry(nil, llm.ProviderConfig{DefaultCredential: "key"}, []string{llm.BackendGemini})
	eng := engine.New(registry, func(*llm.Resolution) (llm.Client, error) { return llmClient, nil }, engine.Options{}, zerolog.Nop())
	svc := service.New(eng, memory.NewStore(db, nil, zerolog.Nop()), conversations.NewStore(db), service.Options{
		DefaultModel: "gemini-2.5-flash",
		Locale:       locale.English,
	}, zerolog.Nop())
	srv := httptest.NewServer(server.New(server.Config{Logger: zerolog.Nop()}, svc).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func runCLI(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LIFELOG_CLIENT_CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("LIFELOG_SERVER_URL", "")

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", serverURL, "--logfile", filepath.Join(dir, "cli.log"), "--locale", "en"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_AddListAsk(t *testing.T) {
	llmClient := &cannedClient{}
	url := startDaemon(t, llmClient)

	out, err := runCLI(t, url, "add", "--location", "Lisbon", "--at", "2024-05-01", "tram", "ride", "downtown")
	require.NoError(t, err)
	id := regexp.MustCompile(`Saved memory (\S+)`).FindStringSubmatch(out)
	require.Len(t, id, 2, out)

	out, err = runCLI(t, url, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id[1])
	assert.Contains(t, out, "May 1, 2024")
	assert.Contains(t, out, "tram ride downtown")

	llmClient.text = "You rode a tram [[ID:" + id[1] + "]] and flew [[ID:nope]]."
	out, err = runCLI(t, url, "ask", "where", "did", "I", "go?")
	require.NoError(t, err)
	assert.Equal(t, "You rode a tram [1] and flew [?].\n\n[1] May 1, 2024  tram ride downtown\n", out)
}

func TestCLI_History(t *testing.T) {
	llmClient := &cannedClient{text: "Nothing cited."}
	url := startDaemon(t, llmClient)

	out, err := runCLI(t, url, "history")
	require.NoError(t, err)
	assert.Equal(t, "No questions asked yet.\n", out)

	_, err = runCLI(t, url, "add", "quiet", "morning")
	require.NoError(t, err)
	_, err = runCLI(t, url, "ask", "how", "was", "the", "morning?")
	require.NoError(t, err)

	out, err = runCLI(t, url, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "how was the morning?")
	assert.Contains(t, out, "gemini-2.5-flash")

	out, err = runCLI(t, url, "history", "--clear")
	require.NoError(t, err)
	assert.Equal(t, "Chat history cleared\n", out)

	out, err = runCLI(t, url, "history")
	require.NoError(t, err)
	assert.Equal(t, "No questions asked yet.\n", out)
}

func TestCLI_ConfigSavesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	t.Setenv("LIFELOG_CLIENT_CONFIG_PATH", path)
	t.Setenv("LIFELOG_SERVER_URL", "")

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "--server", "http://example:9000", "--model", "glm-4", "--locale", "zh-CN", "--logfile", filepath.Join(dir, "cli.log")})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Saved client config to "+path)

	cfg, err := config.LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://example:9000", cfg.ServerURL)
	assert.Equal(t, "glm-4", cfg.Model)
	assert.Equal(t, "zh-CN", cfg.Locale)
	assert.Equal(t, 120, cfg.Timeout)

	root = newRootCmd(&out)
	root.SetArgs([]string{"config", "--locale", "fr", "--logfile", filepath.Join(dir, "cli.log")})
	assert.Error(t, root.Execute())
}

func TestCLI_ErrorsSurface(t *testing.T) {
	url := startDaemon(t, &cannedClient{})

	_, err := runCLI(t, url, "ask", "hello", "--model", "unknown-model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_credential")

	_, err = runCLI(t, url, "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty_input")
}

func TestMediaTypeFor(t *testing.T) {
	mt, mimeType, err := mediaTypeFor("holiday.PNG")
	require.NoError(t, err)
	assert.Equal(t, memory.MediaTypeImage, mt)
	assert.Equal(t, "image/png", mimeType)

	_, _, err = mediaTypeFor("notes.txt")
	assert.Error(t, err)

	_, _, err = mediaTypeFor("no-extension")
	assert.Error(t, err)
}

func TestRenderAnswer(t *testing.T) {
	created := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	answer := &service.Answer{
		Segments:   citation.Decode("A [[ID:m2]] B [[ID:m1]] C [[ID:m2]] D [[ID:zz]]"),
		Unresolved: []string{"zz"},
	}
	sources := map[string]memory.Memory{
		"m2": {ID: "m2", CreatedAt: created, Content: "second", MediaType: memory.MediaTypeText},
	}

	var buf bytes.Buffer
	renderAnswer(&buf, answer, sources, locale.English)
	assert.Equal(t, "A [1] B [2] C [1] D [?]\n\n[1] Mar 9, 2024  second\n[2] m1\n", buf.String())
}

func TestRenderAnswer_NoCitations(t *testing.T) {
	var buf bytes.Buffer
	renderAnswer(&buf, &service.Answer{Segments: citation.Decode("Nothing recorded.")}, nil, locale.English)
	assert.Equal(t, "Nothing recorded.\n", buf.String())
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("é", 80)
	assert.Equal(t, 60, len([]rune(snippet(memory.Memory{Content: long}))))
	assert.Equal(t, "a b", snippet(memory.Memory{Content: "a\n  b"}))
	assert.Equal(t, "[image]", snippet(memory.Memory{MediaType: memory.MediaTypeImage}))
	assert.Equal(t, "sunset", snippet(memory.Memory{MediaType: memory.MediaTypeImage, Analysis: &memory.AIAnalysis{Summary: "sunset"}}))
}

func TestRenderGraph(t *testing.T) {
	var buf bytes.Buffer
	renderGraph(&buf, &service.GraphView{Model: "my-model", InsufficientData: true})
	assert.Equal(t, "Not enough data to build a graph with my-model.\n", buf.String())

	buf.Reset()
	data := graph.Data{
		Nodes: []graph.Node{{ID: "a", Label: "Run", Group: "Life"}, {ID: "b", Label: "Swim"}},
		Links: []graph.Link{{Source: "a", Target: "b", Reason: "exercise"}},
	}
	renderGraph(&buf, &service.GraphView{Model: "m", Nodes: graph.Layout(data, graph.Options{}), Links: data.Links})
	out := buf.String()
	assert.Contains(t, out, "2 memories, 1 links (m)")
	assert.Contains(t, out, "Run -> Swim: exercise")
	assert.Contains(t, out, "(250, 150)")
}
