package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opentraa/traa-mcp/internal/logger"
)

var sseCmd = &cobra.Command{
	Use:   "sse",
	Short: "Serve MCP over HTTP with Server-Sent Events",
	Example: `  # Listen on the default port (3001)
  traa-mcp sse

  # Listen on a custom port
  traa-mcp sse --port 8080`,
	Args: cobra.NoArgs,
	RunE: runSSE,
}

func init() {
	sseCmd.Flags().Int("port", 0, "listen port (default is 3001)")
	viper.BindPFlag("sse_port", sseCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(sseCmd)
}

func runSSE(cmd *cobra.Command, args []string) error {
	srv, router, cfg, err := setup()
	if err != nil {
		return err
	}
	defer router.Stop()

	port := cfg.SSEPort
	if p := viper.GetInt("sse_port"); p > 0 {
		port = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithComponent("main").Info().
		Str("backend", router.BackendName()).
		Int("port", port).
		Msg("Serving MCP over SSE")

	return srv.RunSSE(ctx, port)
}
