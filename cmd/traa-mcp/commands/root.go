package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opentraa/traa-mcp/internal/capture"
	"github.com/opentraa/traa-mcp/internal/config"
	"github.com/opentraa/traa-mcp/internal/logger"
	"github.com/opentraa/traa-mcp/internal/mcpserver"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "traa-mcp",
		Short: "traa-mcp - MCP server for screen and window snapshots",
		Long: `traa-mcp exposes screen/window enumeration and snapshot capture through
the Model Context Protocol, so AI agents can see what is on screen.

Tools:
  • enum_screen_sources  List capturable displays and windows
  • create_snapshot      Capture a source and return the image inline
  • save_snapshot        Capture a source and write the image to a file

Running the bare binary serves MCP over stdio; use the sse subcommand
for the HTTP/SSE transport.`,
		RunE: runStdio,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/traa-mcp/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "capture backend (x11, portal; default auto-detect)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
}

// setup loads configuration, applies flag overrides, and brings up the
// capture backend. The returned router must be stopped by the caller.
func setup() (*mcpserver.Server, *capture.Router, *config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if lvl := viper.GetString("log_level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if backend := viper.GetString("backend"); backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger.Init(cfg.LogLevel)

	router := capture.NewRouter(cfg.Backend)
	if err := router.Start(); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to start capture backend: %w", err)
	}

	return mcpserver.New(router, cfg), router, cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
