package mcpserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opentraa/traa-mcp/internal/capture"
	"github.com/opentraa/traa-mcp/internal/encode"
	"github.com/opentraa/traa-mcp/internal/logger"
)

// EnumResult is the structured output of enum_screen_sources
type EnumResult struct {
	Sources []capture.Source `json:"sources" jsonschema:"Available capture sources, displays first"`
	Count   int              `json:"count" jsonschema:"Total number of sources"`
}

// SnapshotArgs are the arguments shared by create_snapshot and
// save_snapshot
type SnapshotArgs struct {
	SourceID int64  `json:"source_id" jsonschema:"ID of the source to capture, as returned by enum_screen_sources"`
	Width    int    `json:"width,omitempty" jsonschema:"Target width in pixels; native width when omitted. Requires height."`
	Height   int    `json:"height,omitempty" jsonschema:"Target height in pixels; native height when omitted. Requires width."`
	Format   string `json:"format,omitempty" jsonschema:"Output format: jpeg (default) or png"`
	Quality  *int   `json:"quality,omitempty" jsonschema:"JPEG quality 1-100 (default 60); ignored for png"`
}

// SnapshotMeta is the structured output of create_snapshot
type SnapshotMeta struct {
	Format string `json:"format" jsonschema:"Encoded image format"`
	Width  int    `json:"width" jsonschema:"Encoded image width in pixels"`
	Height int    `json:"height" jsonschema:"Encoded image height in pixels"`
}

// SaveArgs are the arguments of save_snapshot
type SaveArgs struct {
	SnapshotArgs
	FilePath string `json:"file_path" jsonschema:"Destination path for the image file; parent directories are created as needed"`
}

// SaveResult is the structured output of save_snapshot
type SaveResult struct {
	FilePath string `json:"file_path" jsonschema:"Absolute path of the written file"`
	Width    int    `json:"width" jsonschema:"Written image width in pixels"`
	Height   int    `json:"height" jsonschema:"Written image height in pixels"`
}

func (s *Server) handleEnumScreenSources(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, EnumResult, error) {
	sources, err := s.adapter.Sources()
	if err != nil {
		return nil, EnumResult{}, fmt.Errorf("failed to enumerate screen sources: %w", err)
	}

	logger.WithComponent("tools").Debug().
		Int("count", len(sources)).
		Msg("Enumerated sources")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Found %d capture sources", len(sources))},
		},
	}, EnumResult{Sources: sources, Count: len(sources)}, nil
}

func (s *Server) handleCreateSnapshot(ctx context.Context, req *mcp.CallToolRequest, args SnapshotArgs) (*mcp.CallToolResult, SnapshotMeta, error) {
	res, err := s.snapshot(args)
	if err != nil {
		return nil, SnapshotMeta{}, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Captured source %d as %s (%dx%d, %d bytes)",
					args.SourceID, res.Format, res.Width, res.Height, len(res.Data)),
			},
			&mcp.ImageContent{
				Data:     res.Data,
				MIMEType: res.MIMEType(),
			},
		},
	}, SnapshotMeta{
		Format: string(res.Format),
		Width:  res.Width,
		Height: res.Height,
	}, nil
}

func (s *Server) handleSaveSnapshot(ctx context.Context, req *mcp.CallToolRequest, args SaveArgs) (*mcp.CallToolResult, SaveResult, error) {
	if args.FilePath == "" {
		return nil, SaveResult{}, fmt.Errorf("file_path is required")
	}

	res, err := s.snapshot(args.SnapshotArgs)
	if err != nil {
		return nil, SaveResult{}, err
	}

	absPath, err := filepath.Abs(args.FilePath)
	if err != nil {
		return nil, SaveResult{}, fmt.Errorf("invalid file path %q: %w", args.FilePath, err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, SaveResult{}, fmt.Errorf("failed to create directory for %q: %w", absPath, err)
	}
	if err := os.WriteFile(absPath, res.Data, 0644); err != nil {
		return nil, SaveResult{}, fmt.Errorf("failed to write snapshot to %q: %w", absPath, err)
	}

	logger.WithComponent("tools").Info().
		Str("path", absPath).
		Int("bytes", len(res.Data)).
		Msg("Snapshot saved")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf("Saved snapshot of source %d to %s (%dx%d)",
					args.SourceID, absPath, res.Width, res.Height),
			},
		},
	}, SaveResult{
		FilePath: absPath,
		Width:    res.Width,
		Height:   res.Height,
	}, nil
}

// snapshot runs the shared validate-capture-encode pipeline
func (s *Server) snapshot(args SnapshotArgs) (*encode.Result, error) {
	format := encode.Format(args.Format)
	if args.Format == "" {
		format = encode.Format(s.cfg.DefaultFormat)
	}
	if format != encode.FormatJPEG && format != encode.FormatPNG {
		return nil, fmt.Errorf("unsupported format %q (must be jpeg or png)", args.Format)
	}

	// Quality is only meaningful for JPEG; explicit values for PNG are
	// ignored rather than rejected
	quality := 0
	if format == encode.FormatJPEG {
		quality = s.cfg.DefaultQuality
		if args.Quality != nil {
			if *args.Quality < 1 || *args.Quality > 100 {
				return nil, fmt.Errorf("quality must be in 1-100, got %d", *args.Quality)
			}
			quality = *args.Quality
		}
	}

	if (args.Width != 0) != (args.Height != 0) {
		return nil, fmt.Errorf("width and height must be supplied together")
	}
	if args.Width < 0 || args.Height < 0 {
		return nil, fmt.Errorf("width and height must be positive, got %dx%d", args.Width, args.Height)
	}

	frame, err := s.adapter.Grab(args.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to capture source %d: %w", args.SourceID, err)
	}

	res, err := encode.Encode(frame, encode.Options{
		Format:  format,
		Quality: quality,
		Width:   args.Width,
		Height:  args.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return res, nil
}
