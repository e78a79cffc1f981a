// Package mcp exposes regulation search over the Model Context Protocol so
// external MCP clients (editors, agents) can query the same index the chat
// pipeline uses.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/regulation"
)

// defaultSearchK is used when a tool call does not specify k.
const defaultSearchK = 4

// Server wraps the MCP SDK server around the chunk store.
type Server struct {
	mcpServer *mcp.Server
	store     knowledge.Store
	logger    *slog.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Store   knowledge.Store
	Logger  *slog.Logger
}

// NewServer creates a new MCP server with the search tool registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		store:  cfg.Store,
		logger: cfg.Logger,
	}

	if err := s.registerSearchTool(); err != nil {
		return nil, fmt.Errorf("registering search tool: %w", err)
	}

	return s, nil
}

// Run starts the MCP server on the given transport.
// Blocking; handles all MCP protocol communication.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// SearchInput defines the input schema for the search_regulations tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"The question or phrase to search the regulation index for"`
	K     int    `json:"k,omitempty" jsonschema:"Maximum number of chunks to return (default 4)"`
}

// registerSearchTool registers search_regulations.
// Direct inline handling in the handler, like net/http.Handler.
func (s *Server) registerSearchTool() error {
	inputSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("creating input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: "search_regulations",
		Description: "Search Korean professional sports regulations (K-League football, " +
			"KBO baseball) by semantic similarity. Returns matching regulation excerpts " +
			"with document titles and page numbers.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
		if in.Query == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "Error: query is required"}},
				IsError: true,
			}, nil, nil
		}

		k := in.K
		if k <= 0 {
			k = defaultSearchK
		}

		chunks, err := s.store.Search(ctx, in.Query, k)
		if err != nil {
			return nil, nil, fmt.Errorf("searching regulations: %w", err)
		}
		s.logger.Debug("search tool call", "k", k, "results", len(chunks))

		if len(chunks) == 0 {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "No matching regulation excerpts found."}},
			}, nil, nil
		}

		var b strings.Builder
		for i, c := range chunks {
			if i > 0 {
				b.WriteString("\n\n---\n\n")
			}
			fmt.Fprintf(&b, "%s (p.%d)\n%s", regulation.DisplayName(c.Source), c.Page+1, c.Content)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
		}, nil, nil
	})

	return nil
}
