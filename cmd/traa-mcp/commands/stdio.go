package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opentraa/traa-mcp/internal/logger"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin/stdout (default)",
	Long: `Serve the Model Context Protocol over stdin/stdout.

This is what MCP clients such as Claude Desktop spawn as a subprocess. It
is also the default when no subcommand is given.`,
	Args: cobra.NoArgs,
	RunE: runStdio,
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}

func runStdio(cmd *cobra.Command, args []string) error {
	srv, router, _, err := setup()
	if err != nil {
		return err
	}
	defer router.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithComponent("main").Info().
		Str("backend", router.BackendName()).
		Msg("Serving MCP over stdio")

	return srv.RunStdio(ctx)
}
