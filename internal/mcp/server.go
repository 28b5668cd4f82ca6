package mcpserver

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"workbench/internal/history"
	"workbench/internal/registry"
	"workbench/internal/schema"
	"workbench/internal/service"
)

// Server is the MCP server for the workbench.
// It exposes tools and resources so AI agents can inspect connections, run queries and read history.
type Server struct {
	mcp *server.MCPServer

	// Services (injected from app layer)
	registry *registry.Registry
	queries  *service.QueryService
	schema   *schema.Cache
	history  *history.Ledger

	allowWrites bool
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Registry *registry.Registry
	Queries  *service.QueryService
	Schema   *schema.Cache
	History  *history.Ledger

	// AllowWrites lets execute_query run statements other than SELECT and SHOW.
	AllowWrites bool
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		registry:    deps.Registry,
		queries:     deps.Queries,
		schema:      deps.Schema,
		history:     deps.History,
		allowWrites: deps.AllowWrites,
	}

	s.mcp = server.NewMCPServer(
		"sql-workbench-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerConnectionTools()
	s.registerQueryTools()
	s.registerSchemaTools()
	s.registerHistoryTools()
	s.registerResources()

	return s
}

// MCPServer returns the underlying server, for transports other than stdio.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
