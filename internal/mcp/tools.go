package mcpserver

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"

	"workbench/internal/dbclient"
	"workbench/internal/domain"
	"workbench/internal/history"
	"workbench/internal/query"
)

// defaultRowLimit caps the rows execute_query hands back to an agent.
const defaultRowLimit = 100

func (s *Server) registerConnectionTools() {
	s.mcp.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("List all saved database connections. Passwords are never included."),
	), s.handleListConnections)

	s.mcp.AddTool(mcp.NewTool("connect_database",
		mcp.WithDescription("Make a saved connection the active one. Any other active connection is deactivated."),
		mcp.WithNumber("connectionId", mcp.Description("Connection ID"), mcp.Required()),
	), s.handleConnectDatabase)
}

func (s *Server) registerQueryTools() {
	s.mcp.AddTool(mcp.NewTool("execute_query",
		mcp.WithDescription("Run a SQL statement on an active connection. Only a single SELECT or SHOW is allowed unless writes are enabled in the server config."),
		mcp.WithNumber("connectionId", mcp.Description("Connection ID"), mcp.Required()),
		mcp.WithString("sql", mcp.Description("SQL statement to execute"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default 100)")),
	), s.handleExecuteQuery)
}

func (s *Server) registerSchemaTools() {
	s.mcp.AddTool(mcp.NewTool("get_schema",
		mcp.WithDescription("Get the tables, views and procedures of a connection, or one table's indexes and constraints"),
		mcp.WithNumber("connectionId", mcp.Description("Connection ID"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Table name (optional). When set, returns that table's details.")),
		mcp.WithBoolean("refresh", mcp.Description("Reload the schema instead of using the cache")),
	), s.handleGetSchema)
}

func (s *Server) registerHistoryTools() {
	s.mcp.AddTool(mcp.NewTool("search_history",
		mcp.WithDescription("Search the query history, newest first"),
		mcp.WithString("term", mcp.Description("Case-insensitive text matched against the SQL and connection name")),
		mcp.WithNumber("connectionId", mcp.Description("Only entries of this connection")),
		mcp.WithString("status", mcp.Description("Only successful or failed entries"), mcp.Enum("success", "error")),
	), s.handleSearchHistory)
}

func (s *Server) handleListConnections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conns, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return jsonResult(conns)
}

func (s *Server) handleConnectDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := connectionID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	conn, err := s.registry.Connect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return jsonResult(conn)
}

// queryResponse is what execute_query returns: the result with its rows capped.
type queryResponse struct {
	*domain.QueryResult
	TotalRows int  `json:"totalRows"`
	Truncated bool `json:"truncated"`
}

func (s *Server) handleExecuteQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := connectionID(args)
	if err != nil {
		return nil, err
	}
	sql := req.GetString("sql", "")
	if sql == "" {
		return nil, fmt.Errorf("sql is required")
	}
	limit := int(getFloat(args, "limit", defaultRowLimit))
	if limit <= 0 {
		limit = defaultRowLimit
	}

	execute := s.queries.Execute
	if !s.allowWrites {
		if kind := query.Classify(sql); kind != domain.StatementSelect && kind != domain.StatementShow {
			log.Printf("[MCP] rejected %s statement: %s", kind, truncate(sql, 100))
			return textResult(fmt.Sprintf("%s statements are disabled for agents. Only SELECT and SHOW are allowed.", kind)), nil
		}
		if !dbclient.SingleStatement(sql) {
			log.Printf("[MCP] rejected stacked statements: %s", truncate(sql, 100))
			return textResult("Multiple statements are disabled for agents. Send one SELECT or SHOW per call."), nil
		}
		execute = s.queries.ExecuteReadOnly
	}

	res, err := execute(ctx, id, sql)
	if err != nil {
		return nil, err
	}
	out := queryResponse{QueryResult: res, TotalRows: len(res.Rows)}
	if len(res.Rows) > limit {
		// Copy so the stored result keeps every row.
		capped := *res
		capped.Rows = res.Rows[:limit]
		out.QueryResult = &capped
		out.Truncated = true
	}
	return jsonResult(out)
}

func (s *Server) handleGetSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := connectionID(args)
	if err != nil {
		return nil, err
	}
	if table := req.GetString("table", ""); table != "" {
		details, err := s.schema.GetTableDetails(ctx, id, table)
		if err != nil {
			return nil, fmt.Errorf("table details: %w", err)
		}
		return jsonResult(details)
	}

	var snap *domain.SchemaSnapshot
	if refresh, _ := args["refresh"].(bool); refresh {
		snap, err = s.schema.RefreshSchema(ctx, id)
	} else {
		snap, err = s.schema.GetSchema(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return jsonResult(snap)
}

func (s *Server) handleSearchHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	status, err := history.ParseStatus(req.GetString("status", ""))
	if err != nil {
		return nil, err
	}
	entries, err := s.history.List(ctx, history.Filter{
		ConnectionID: int64(getFloat(args, "connectionId", 0)),
		Status:       status,
		Term:         req.GetString("term", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	return jsonResult(entries)
}
