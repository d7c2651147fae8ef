package capture

import (
	"errors"
	"image"
)

// Sentinel errors for the capture layer. Callers match with errors.Is and
// map them to tool-level errors at the dispatcher boundary.
var (
	// ErrUnavailable means no backend can enumerate sources at all
	// (no display server, permission denied)
	ErrUnavailable = errors.New("capture unavailable")

	// ErrSourceNotFound means the requested source id is unknown
	ErrSourceNotFound = errors.New("source not found")

	// ErrCaptureFailed wraps native errors during pixel acquisition
	// (source disappeared, permission revoked mid-capture)
	ErrCaptureFailed = errors.New("capture failed")
)

// Kind identifies the type of a capture source
type Kind string

const (
	KindDisplay Kind = "display"
	KindWindow  Kind = "window"
)

// Source describes one capturable display or window. Sources are
// request-scoped values: regenerated on every enumeration, never cached.
type Source struct {
	ID     int64  `json:"id" jsonschema:"Opaque source identifier, stable for the session"`
	Title  string `json:"title" jsonschema:"Human-readable source title"`
	Kind   Kind   `json:"kind" jsonschema:"Source kind: display or window"`
	X      int    `json:"x" jsonschema:"Left edge in screen coordinates"`
	Y      int    `json:"y" jsonschema:"Top edge in screen coordinates"`
	Width  int    `json:"width" jsonschema:"Source width in pixels"`
	Height int    `json:"height" jsonschema:"Source height in pixels"`
}

// Backend defines the interface for capture backends (X11, portal, ...)
type Backend interface {
	// Start initializes the backend and any required resources
	Start() error

	// Stop releases resources held by the backend
	Stop() error

	// Name returns a human-readable name for this backend
	Name() string

	// IsAvailable checks if this backend can be used in the current
	// environment
	IsAvailable() bool

	// Sources enumerates all capturable displays and windows, displays
	// first
	Sources() ([]Source, error)

	// Grab captures the source at its native size. Each call acquires
	// and releases its own buffers; nothing is shared across calls.
	Grab(id int64) (*image.RGBA, error)
}
