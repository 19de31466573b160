package service

import (
	"context"
	"database/sql"
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

	_ "github.com/mattn/go-sqlite3"
)

type stubClient struct{ text string }

func (c *stubClient) Synchronous(context.Context, *llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: []llm.ContentBlock{llm.NewTextBlock(c.text)}}, nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, migrations.RunMigrations(db, filepath.Join(cwd, "..", "migrations"), zerolog.Nop()))
	return db
}

func newTestService(t *testing.T, client llm.Client) *Service {
	t.Helper()
	db := setupTestDB(t)
	registry := llm.NewProviderRegistry(nil, llm.ProviderConfig{DefaultCredential: "default-key"}, []string{llm.BackendGemini})
	factory := func(*llm.Resolution) (llm.Client, error) { return client, nil }
	eng := engine.New(registry, factory, engine.Options{}, zerolog.Nop())
	return New(eng, memory.NewStore(db, nil, zerolog.Nop()), conversations.NewStore(db), Options{
		DefaultModel: "gemini-2.5-flash",
		Locale:       locale.English,
	}, zerolog.Nop())
}

func TestAsk_DecodesCitationsAndRecordsExchange(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client)
	ctx := context.Background()

	m, err := svc.AddMemory(ctx, memory.Memory{Content: "picnic in the park", MediaType: memory.MediaTypeText})
	require.NoError(t, err)
	client.text = "You had a picnic [[ID:" + m.ID + "]] and [[ID:ghost]]."

	answer, err := svc.Ask(ctx, "What did I do?", "")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", answer.Model)
	assert.Len(t, answer.Segments, 5)
	assert.Equal(t, []string{m.ID, "ghost"}, answer.CitedIDs)
	assert.Equal(t, []string{"ghost"}, answer.Unresolved)
	assert.NotZero(t, answer.ExchangeID)

	exchanges, err := svc.Exchanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, exchanges, 1)
	assert.Equal(t, client.text, exchanges[0].Answer)
}

func TestAsk_EmptyQueryAndMissingCredential(t *testing.T) {
	svc := newTestService(t, &stubClient{})
	ctx := context.Background()

	_, err := svc.Ask(ctx, " ", "")
	assert.ErrorIs(t, err, engine.ErrEmptyInput)

	_, err = svc.Ask(ctx, "hello", "foo-model")
	assert.ErrorIs(t, err, llm.ErrMissingCredential)

	exchanges, err := svc.Exchanges(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, exchanges)
}

func TestAnalyzeMemory_PersistsResult(t *testing.T) {
	svc := newTestService(t, &stubClient{text: `{"mood":"Joyful","summary":"Sunny picnic","tags":["Friends"],"color":"#FDE68A"}`})
	ctx := context.Background()

	m, err := svc.AddMemory(ctx, memory.Memory{Content: "picnic", MediaType: memory.MediaTypeText})
	require.NoError(t, err)

	analysis, err := svc.AnalyzeMemory(ctx, m.ID, "", locale.English)
	require.NoError(t, err)
	assert.Equal(t, "Joyful", analysis.Mood)

	stored, err := svc.GetMemory(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Analysis)
	assert.Equal(t, "gemini-2.5-flash", stored.Analysis.AnalyzedByModel)

	edited, err := svc.EditSummary(ctx, m.ID, "A picnic with friends")
	require.NoError(t, err)
	assert.Equal(t, "A picnic with friends", edited.Summary)
	assert.Equal(t, "gemini-2.5-flash", edited.AnalyzedByModel)
}

func TestGraph_GenericIsInsufficient(t *testing.T) {
	svc := newTestService(t, &stubClient{})
	ctx := context.Background()
	require.NoError(t, svc.SetModelConfig(ctx, llm.UserModelConfig{ModelID: "my-model", APIKey: "k"}))

	_, err := svc.AddMemory(ctx, memory.Memory{Content: "a", MediaType: memory.MediaTypeText})
	require.NoError(t, err)

	view, err := svc.Graph(ctx, "my-model")
	require.NoError(t, err)
	assert.True(t, view.InsufficientData)
	assert.NotNil(t, view.Nodes)
	assert.Empty(t, view.Nodes)
}

func TestGraph_NativeLaidOut(t *testing.T) {
	client := &stubClient{}
	svc := newTestService(t, client)
	ctx := context.Background()

	a, err := svc.AddMemory(ctx, memory.Memory{Content: "a", MediaType: memory.MediaTypeText})
	require.NoError(t, err)
	b, err := svc.AddMemory(ctx, memory.Memory{Content: "b", MediaType: memory.MediaTypeText})
	require.NoError(t, err)
	client.text = `{"nodes":[{"id":"` + a.ID + `","group":"Joyful"},{"id":"` + b.ID + `"}],"links":[{"source":"` + a.ID + `","target":"` + b.ID + `"}]}`

	view, err := svc.Graph(ctx, "")
	require.NoError(t, err)
	assert.False(t, view.InsufficientData)
	require.Len(t, view.Nodes, 2)
	assert.InDelta(t, 250, view.Nodes[0].X, 1e-9)
	assert.InDelta(t, 150, view.Nodes[0].Y, 1e-9)
	assert.Equal(t, "#3B82F6", view.Nodes[0].Color)
	assert.Len(t, view.Links, 1)
}

func TestModels_ClassAndConfigured(t *testing.T) {
	svc := newTestService(t, &stubClient{})
	ctx := context.Background()
	require.NoError(t, svc.SetModelConfig(ctx, llm.UserModelConfig{ModelID: "qwen-max", APIKey: "k"}))
	require.NoError(t, svc.SetModelConfig(ctx, llm.UserModelConfig{ModelID: "my-model", APIKey: "k"}))

	models, err := svc.Models(ctx)
	require.NoError(t, err)

	byID := map[string]ModelInfo{}
	for _, m := range models {
		byID[m.ID] = m
	}
	assert.Equal(t, llm.ClassNative, byID["gemini-2.5-flash"].Class)
	assert.True(t, byID["gemini-2.5-flash"].Default)
	assert.Equal(t, llm.ClassGeneric, byID["qwen-max"].Class)
	assert.True(t, byID["qwen-max"].Configured)
	assert.False(t, byID["deepseek-chat"].Configured)
	assert.Equal(t, "Other", byID["my-model"].Provider)
}

func TestLocale(t *testing.T) {
	svc := newTestService(t, &stubClient{})
	loc, err := svc.Locale("")
	require.NoError(t, err)
	assert.Equal(t, locale.English, loc)

	loc, err = svc.Locale("zh-CN")
	require.NoError(t, err)
	assert.Equal(t, locale.Chinese, loc)

	_, err = svc.Locale("fr")
	assert.Error(t, err)
}
