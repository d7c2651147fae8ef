package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/opentraa/traa-mcp/internal/capture"
	"github.com/opentraa/traa-mcp/internal/config"
)

// fakeAdapter serves canned sources and frames without a display server
type fakeAdapter struct {
	sources    []capture.Source
	sourcesErr error
	grabErr    error
}

func (f *fakeAdapter) Sources() ([]capture.Source, error) {
	if f.sourcesErr != nil {
		return nil, f.sourcesErr
	}
	return f.sources, nil
}

func (f *fakeAdapter) Grab(id int64) (*image.RGBA, error) {
	if f.grabErr != nil {
		return nil, f.grabErr
	}
	for _, src := range f.sources {
		if src.ID == id {
			img := image.NewRGBA(image.Rect(0, 0, src.Width, src.Height))
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i] = uint8(i)
				img.Pix[i+3] = 255
			}
			return img, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", capture.ErrSourceNotFound, id)
}

func newTestServer(adapter Adapter) *Server {
	return New(adapter, config.Defaults())
}

func testSources() []capture.Source {
	return []capture.Source{
		{ID: 0, Title: "Display 0 (64x48)", Kind: capture.KindDisplay, Width: 64, Height: 48},
		{ID: 0x400001, Title: "Terminal", Kind: capture.KindWindow, X: 10, Y: 20, Width: 32, Height: 24},
	}
}

func intPtr(v int) *int { return &v }

func TestEnumScreenSources(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})

	_, out, err := s.handleEnumScreenSources(context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("handleEnumScreenSources: %v", err)
	}
	if out.Count != 2 || len(out.Sources) != 2 {
		t.Fatalf("count = %d (len %d), want 2", out.Count, len(out.Sources))
	}
	if out.Sources[0].Kind != capture.KindDisplay {
		t.Errorf("first source kind = %q, want display before windows", out.Sources[0].Kind)
	}
	if out.Sources[1].Title != "Terminal" {
		t.Errorf("window title = %q, want Terminal", out.Sources[1].Title)
	}
}

func TestEnumScreenSourcesUnavailable(t *testing.T) {
	s := newTestServer(&fakeAdapter{sourcesErr: fmt.Errorf("%w: no display server", capture.ErrUnavailable)})

	_, _, err := s.handleEnumScreenSources(context.Background(), nil, struct{}{})
	if !errors.Is(err, capture.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestCreateSnapshotDefaults(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})

	res, meta, err := s.handleCreateSnapshot(context.Background(), nil, SnapshotArgs{SourceID: 0})
	if err != nil {
		t.Fatalf("handleCreateSnapshot: %v", err)
	}
	if meta.Format != "jpeg" {
		t.Errorf("format = %q, want jpeg by default", meta.Format)
	}
	if meta.Width != 64 || meta.Height != 48 {
		t.Errorf("dimensions = %dx%d, want native 64x48", meta.Width, meta.Height)
	}

	var img *mcp.ImageContent
	for _, c := range res.Content {
		if ic, ok := c.(*mcp.ImageContent); ok {
			img = ic
		}
	}
	if img == nil {
		t.Fatal("result has no image content")
	}
	if len(img.Data) == 0 {
		t.Error("image content is empty")
	}
	if img.MIMEType != "image/jpeg" {
		t.Errorf("mime type = %q, want image/jpeg", img.MIMEType)
	}
}

func TestCreateSnapshotResize(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})

	_, meta, err := s.handleCreateSnapshot(context.Background(), nil, SnapshotArgs{
		SourceID: 0,
		Width:    20,
		Height:   30,
		Format:   "png",
	})
	if err != nil {
		t.Fatalf("handleCreateSnapshot: %v", err)
	}
	if meta.Format != "png" {
		t.Errorf("format = %q, want png", meta.Format)
	}
	if meta.Width != 20 || meta.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 20x30", meta.Width, meta.Height)
	}
}

func TestCreateSnapshotQualityValidation(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})
	ctx := context.Background()

	for _, q := range []int{1, 60, 100} {
		_, _, err := s.handleCreateSnapshot(ctx, nil, SnapshotArgs{SourceID: 0, Quality: intPtr(q)})
		if err != nil {
			t.Errorf("quality=%d: unexpected error: %v", q, err)
		}
	}
	for _, q := range []int{0, 101} {
		_, _, err := s.handleCreateSnapshot(ctx, nil, SnapshotArgs{SourceID: 0, Quality: intPtr(q)})
		if err == nil {
			t.Errorf("quality=%d: expected error", q)
		}
	}

	// Quality is ignored for png, even out of range
	_, _, err := s.handleCreateSnapshot(ctx, nil, SnapshotArgs{SourceID: 0, Format: "png", Quality: intPtr(0)})
	if err != nil {
		t.Errorf("png quality=0: unexpected error: %v", err)
	}
}

func TestCreateSnapshotInvalidArgs(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})
	ctx := context.Background()

	if _, _, err := s.handleCreateSnapshot(ctx, nil, SnapshotArgs{SourceID: 0, Format: "gif"}); err == nil {
		t.Error("format=gif: expected error")
	}
	if _, _, err := s.handleCreateSnapshot(ctx, nil, SnapshotArgs{SourceID: 0, Width: 10}); err == nil {
		t.Error("width without height: expected error")
	}
	if _, _, err := s.handleCreateSnapshot(ctx, nil, SnapshotArgs{SourceID: 0, Height: 10}); err == nil {
		t.Error("height without width: expected error")
	}
}

func TestCreateSnapshotSourceNotFound(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})

	_, _, err := s.handleCreateSnapshot(context.Background(), nil, SnapshotArgs{SourceID: 9999})
	if !errors.Is(err, capture.ErrSourceNotFound) {
		t.Errorf("error = %v, want ErrSourceNotFound", err)
	}
}

func TestCreateSnapshotCaptureFailed(t *testing.T) {
	s := newTestServer(&fakeAdapter{
		sources: testSources(),
		grabErr: fmt.Errorf("%w: source disappeared", capture.ErrCaptureFailed),
	})

	_, _, err := s.handleCreateSnapshot(context.Background(), nil, SnapshotArgs{SourceID: 0})
	if !errors.Is(err, capture.ErrCaptureFailed) {
		t.Errorf("error = %v, want ErrCaptureFailed", err)
	}
}

func TestSaveSnapshotCreatesParentDirs(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})
	dir := t.TempDir()
	path := filepath.Join(dir, "deeply", "nested", "shot.jpeg")

	_, out, err := s.handleSaveSnapshot(context.Background(), nil, SaveArgs{
		SnapshotArgs: SnapshotArgs{SourceID: 0},
		FilePath:     path,
	})
	if err != nil {
		t.Fatalf("handleSaveSnapshot: %v", err)
	}
	if out.FilePath != path {
		t.Errorf("file_path = %q, want %q", out.FilePath, path)
	}
	if out.Width != 64 || out.Height != 48 {
		t.Errorf("dimensions = %dx%d, want 64x48", out.Width, out.Height)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat written file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("written file is empty")
	}
}

func TestSaveSnapshotOverwrites(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})
	path := filepath.Join(t.TempDir(), "shot.png")
	ctx := context.Background()

	args := SaveArgs{
		SnapshotArgs: SnapshotArgs{SourceID: 0, Format: "png"},
		FilePath:     path,
	}
	if _, _, err := s.handleSaveSnapshot(ctx, nil, args); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read first file: %v", err)
	}

	if _, _, err := s.handleSaveSnapshot(ctx, nil, args); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read second file: %v", err)
	}
	if len(first) == 0 || len(second) == 0 {
		t.Error("expected non-empty files from both saves")
	}
}

func TestSaveSnapshotRequiresPath(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})

	_, _, err := s.handleSaveSnapshot(context.Background(), nil, SaveArgs{
		SnapshotArgs: SnapshotArgs{SourceID: 0},
	})
	if err == nil {
		t.Error("expected error for missing file_path")
	}
}

func TestSaveSnapshotIOFailure(t *testing.T) {
	s := newTestServer(&fakeAdapter{sources: testSources()})
	dir := t.TempDir()

	// A path through an existing file cannot be created
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := s.handleSaveSnapshot(context.Background(), nil, SaveArgs{
		SnapshotArgs: SnapshotArgs{SourceID: 0},
		FilePath:     filepath.Join(blocker, "shot.jpeg"),
	})
	if err == nil {
		t.Error("expected error writing through a file")
	}
}
