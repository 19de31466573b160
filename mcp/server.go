// Package mcp exposes LifeLog memories to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/lifelog/citation"
	"github.com/aschepis/backscratcher/lifelog/service"
)

const (
	serverName     = "lifelog"
	defaultLimit   = 20
	maxListResults = 200
)

// Server serves LifeLog tools.
type Server struct {
	svc    *service.Service
	mcp    *server.MCPServer
	logger zerolog.Logger
}

// NewServer creates an MCP server with the memory tools registered.
func NewServer(svc *service.Service, version string, logger zerolog.Logger) *Server {
	s := &Server{
		svc:    svc,
		mcp:    server.NewMCPServer(serverName, version, server.WithToolCapabilities(false), server.WithLogging()),
		logger: logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves requests read from in until ctx is cancelled or in is
// closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info().Msg("serving MCP on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("list_memories",
		mcp.WithDescription("List recorded memories, newest first. Optionally filter by a text query."),
		mcp.WithString("query", mcp.Description("Substring to match against content, location, summary or tags")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of memories to return (default 20)")),
	), s.listMemories)

	s.mcp.AddTool(mcp.NewTool("ask_memories",
		mcp.WithDescription("Ask a question answered from the user's memories. Cited memories are listed as numbered footnotes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to ask")),
		mcp.WithString("model", mcp.Description("Model id; the configured default is used when empty")),
	), s.askMemories)

	s.mcp.AddTool(mcp.NewTool("memory_graph",
		mcp.WithDescription("Build the relationship graph between memories."),
		mcp.WithString("model", mcp.Description("Model id; the configured default is used when empty")),
	), s.memoryGraph)
}

func (s *Server) listMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxListResults)

	mems, err := s.svc.ListMemories(ctx, req.GetString("query", ""), limit)
	if err != nil {
		return s.toolError("list_memories", err), nil
	}
	return jsonResult(mems)
}

func (s *Server) askMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.svc.Ask(ctx, query, req.GetString("model", ""))
	if err != nil {
		return s.toolError("ask_memories", err), nil
	}

	unresolved := make(map[string]bool, len(answer.Unresolved))
	for _, id := range answer.Unresolved {
		unresolved[id] = true
	}
	text, ids := citation.Footnotes(answer.Segments, func(id string) bool { return !unresolved[id] })

	var sb strings.Builder
	sb.WriteString(text)
	if len(ids) > 0 {
		sb.WriteString("\n\nSources:")
		for i, id := range ids {
			fmt.Fprintf(&sb, "\n[%d] %s", i+1, id)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) memoryGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := s.svc.Graph(ctx, req.GetString("model", ""))
	if err != nil {
		return s.toolError("memory_graph", err), nil
	}
	return jsonResult(view)
}

// toolError reports err to the caller as a tool result so the client's
// model can see it.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn().Err(err).Str("tool", tool).Msg("tool call failed")
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
