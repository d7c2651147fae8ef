package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/opentraa/traa-mcp/internal/logger"
)

// Router owns the active capture backend and routes enumeration and grab
// requests to it
type Router struct {
	backend Backend
	forced  string
	mu      sync.RWMutex
	started bool
}

// NewRouter creates a new capture router. forced selects a specific backend
// ("x11" or "portal"); empty means auto-detect.
func NewRouter(forced string) *Router {
	return &Router{forced: forced}
}

// Start initializes the first available backend
func (r *Router) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	log := logger.WithComponent("capture-router")

	if r.forced == "portal" {
		portal, err := NewPortalBackend()
		if err != nil {
			return fmt.Errorf("portal backend not available: %w", err)
		}
		return r.adopt(portal)
	}

	// X11 is preferred: it sees individual windows, the portal does not
	x11, err := NewX11Backend()
	if err != nil {
		log.Warn().Err(err).Msg("X11 backend not available")
	} else {
		return r.adopt(x11)
	}

	if r.forced == "x11" {
		return fmt.Errorf("x11 backend not available: %w", err)
	}

	portal, perr := NewPortalBackend()
	if perr != nil {
		log.Warn().Err(perr).Msg("Portal backend not available")
		return fmt.Errorf("no capture backends available")
	}
	return r.adopt(portal)
}

// adopt starts and installs a backend; callers hold the lock
func (r *Router) adopt(b Backend) error {
	if !b.IsAvailable() {
		b.Stop()
		return fmt.Errorf("%s backend is not available", b.Name())
	}
	if err := b.Start(); err != nil {
		b.Stop()
		return fmt.Errorf("failed to start %s backend: %w", b.Name(), err)
	}
	r.backend = b
	r.started = true
	logger.WithComponent("capture-router").Info().
		Str("backend", b.Name()).
		Msg("Capture backend initialized")
	return nil
}

// Stop stops the active backend
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.backend != nil {
		r.backend.Stop()
		r.backend = nil
	}
	r.started = false
	return nil
}

// BackendName returns the active backend's name, or empty when stopped
func (r *Router) BackendName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.backend == nil {
		return ""
	}
	return r.backend.Name()
}

// Sources enumerates all capturable sources from the active backend
func (r *Router) Sources() ([]Source, error) {
	b, err := r.active()
	if err != nil {
		return nil, err
	}
	return b.Sources()
}

// Grab captures one source at native size
func (r *Router) Grab(id int64) (*image.RGBA, error) {
	b, err := r.active()
	if err != nil {
		return nil, err
	}
	return b.Grab(id)
}

func (r *Router) active() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.backend == nil {
		return nil, fmt.Errorf("%w: no capture backend", ErrUnavailable)
	}
	return r.backend, nil
}
