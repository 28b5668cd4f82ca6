package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

const connectionsURI = "workbench://connections"

func (s *Server) registerResources() {
	// ── workbench://connections ─────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		connectionsURI,
		"Saved Connections",
		mcp.WithMIMEType("application/json"),
	), s.handleConnectionsResource)
}

func (s *Server) handleConnectionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	conns, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	type connectionSummary struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		IsActive bool   `json:"isActive"`
	}

	summaries := make([]connectionSummary, 0, len(conns))
	for _, c := range conns {
		summaries = append(summaries, connectionSummary{ID: c.ID, Name: c.Name, Type: string(c.Engine), IsActive: c.IsActive})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      connectionsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
