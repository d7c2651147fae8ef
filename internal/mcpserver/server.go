// Package mcpserver exposes screen capture as MCP tools over stdio or SSE.
package mcpserver

import (
	"context"
	"image"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opentraa/traa-mcp/internal/capture"
	"github.com/opentraa/traa-mcp/internal/config"
)

// Version is the server version reported during MCP negotiation
const Version = "0.1.0"

// Adapter is the capture surface the tool handlers need. Satisfied by
// *capture.Router; tests substitute a fake.
type Adapter interface {
	Sources() ([]capture.Source, error)
	Grab(id int64) (*image.RGBA, error)
}

// Server wires the three snapshot tools to an MCP server instance
type Server struct {
	mcp     *mcp.Server
	adapter Adapter
	cfg     *config.Config
}

// New creates a server and registers its tools
func New(adapter Adapter, cfg *config.Config) *Server {
	s := &Server{
		adapter: adapter,
		cfg:     cfg,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "traa-mcp",
		Title:   "TRAA MCP Server",
		Version: Version,
	}, nil)

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "enum_screen_sources",
		Description: "Enumerate all screen and window sources available on the system",
	}, s.handleEnumScreenSources)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_snapshot",
		Description: "Create a snapshot of the screen source with the given ID and return it as an image",
	}, s.handleCreateSnapshot)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "save_snapshot",
		Description: "Save a snapshot of the screen source with the given ID to a file",
	}, s.handleSaveSnapshot)
}

// RunStdio serves MCP over stdin/stdout until the client disconnects
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
