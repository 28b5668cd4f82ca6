package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"workbench/internal/app"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  `Serve the REST API, the event stream and Prometheus metrics until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(opts.cfg)
			if err != nil {
				return err
			}
			return app.ServeHTTP(ctx, a)
		},
	}
}

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools on stdin/stdout",
		Long:  `Run as a standalone MCP server so AI agents can list connections, run queries and read schemas and history.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(opts.cfg)
			if err != nil {
				return err
			}
			return app.ServeMCP(cmd.Context(), a)
		},
	}
}
