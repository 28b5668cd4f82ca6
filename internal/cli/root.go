package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"workbench/internal/config"
)

var (
	// Build information, set with -ldflags.
	Version   = "dev"
	GitCommit = "unknown"
)

// options is the state shared by every subcommand.
type options struct {
	configFile string
	cfg        *config.Config
}

// NewRootCmd builds the workbench command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	// rootCmd represents the base command when called without any subcommands
	rootCmd := &cobra.Command{
		Use:   "workbench",
		Short: "SQL workbench",
		Long: "Manage database connections, run SQL, and browse results, history and schemas " +
			"over HTTP, MCP or the command line.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "workbench %s (commit %s, %s %s/%s)\n",
					Version, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to config file (default ./configs/config.yaml)")
	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	rootCmd.AddCommand(newServeCmd(opts), newMCPCmd(opts), newQueryCmd(opts))
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
