package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpserver "workbench/internal/mcp"
)

// MCPServer builds the MCP tool server over the app's components.
func (a *App) MCPServer() *mcpserver.Server {
	return mcpserver.New(mcpserver.Deps{
		Registry:    a.Registry,
		Queries:     a.Queries,
		Schema:      a.Schema,
		History:     a.History,
		AllowWrites: a.cfg.MCP.AllowWrites,
	})
}

// ServeMCP runs the app as a standalone MCP server on stdin/stdout.
// It starts background work and serves until stdin closes or the process is interrupted.
func ServeMCP(ctx context.Context, a *App) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	if a.cfg.MCP.AllowWrites {
		log.Println("[MCP] write statements are enabled for agents")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.MCPServer().ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Println("[MCP] shutting down")
		return nil
	}
}
