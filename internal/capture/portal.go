package capture

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/opentraa/traa-mcp/internal/logger"
)

// Portal D-Bus constants
const (
	portalService    = "org.freedesktop.portal.Desktop"
	portalPath       = "/org/freedesktop/portal/desktop"
	screenshotIface  = "org.freedesktop.portal.Screenshot"
	requestIface     = "org.freedesktop.portal.Request"
	portalCallPrefix = screenshotIface + ".Screenshot"
)

// portalTimeout bounds the wait for the portal's Response signal
const portalTimeout = 30 * time.Second

// PortalBackend captures the screen through the xdg-desktop-portal
// Screenshot interface. It is the fallback for Wayland sessions where X11
// capture cannot see native windows; the portal only exposes the full
// screen, so this backend advertises a single display source.
type PortalBackend struct {
	conn     *dbus.Conn
	mu       sync.Mutex
	tokenSeq atomic.Uint64
}

// NewPortalBackend connects to the session bus
func NewPortalBackend() (*PortalBackend, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &PortalBackend{conn: conn}, nil
}

// Start initializes the portal backend
func (p *PortalBackend) Start() error {
	logger.WithComponent("portal-backend").Info().Msg("Screenshot portal backend initialized")
	return nil
}

// Stop closes the D-Bus connection
func (p *PortalBackend) Stop() error {
	return p.conn.Close()
}

// Name returns the backend name
func (p *PortalBackend) Name() string {
	return "portal"
}

// IsAvailable checks if the portal service is reachable
func (p *PortalBackend) IsAvailable() bool {
	if p.conn == nil {
		return false
	}
	var owner string
	err := p.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, portalService).Store(&owner)
	return err == nil && owner != ""
}

// Sources returns the single full-screen source the portal can capture.
// Geometry is unknown until capture; the portal does not expose it.
func (p *PortalBackend) Sources() ([]Source, error) {
	return []Source{{
		ID:    0,
		Title: "Screen",
		Kind:  KindDisplay,
	}}, nil
}

// Grab captures the screen through the portal's request/response dance:
// call Screenshot, wait for the Response signal on the returned request
// handle, then read and delete the file the portal wrote.
func (p *PortalBackend) Grab(id int64) (*image.RGBA, error) {
	if id != 0 {
		return nil, fmt.Errorf("%w: portal source %d", ErrSourceNotFound, id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	log := logger.WithComponent("portal-backend")

	token := fmt.Sprintf("traamcp%d_%d", os.Getpid(), p.tokenSeq.Add(1))
	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"interactive":  dbus.MakeVariant(false),
	}

	// Subscribe to Response signals before making the call so the reply
	// cannot race past us
	if err := p.conn.AddMatchSignal(
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return nil, fmt.Errorf("%w: failed to match portal signals: %v", ErrCaptureFailed, err)
	}
	signals := make(chan *dbus.Signal, 10)
	p.conn.Signal(signals)
	defer func() {
		p.conn.RemoveSignal(signals)
		p.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(requestIface),
			dbus.WithMatchMember("Response"),
		)
	}()

	obj := p.conn.Object(portalService, portalPath)
	var handle dbus.ObjectPath
	if err := obj.Call(portalCallPrefix, 0, "", options).Store(&handle); err != nil {
		return nil, fmt.Errorf("%w: portal call failed: %v", ErrCaptureFailed, err)
	}
	log.Debug().Str("handle", string(handle)).Msg("Screenshot requested")

	uri, err := p.waitForResponse(signals, handle)
	if err != nil {
		return nil, err
	}

	return readPortalScreenshot(uri)
}

// waitForResponse waits for the Response signal matching the request handle
func (p *PortalBackend) waitForResponse(signals chan *dbus.Signal, handle dbus.ObjectPath) (string, error) {
	timeout := time.After(portalTimeout)
	for {
		select {
		case sig := <-signals:
			if sig == nil || sig.Path != handle || len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok || code != 0 {
				return "", fmt.Errorf("%w: portal request denied (code %v)", ErrCaptureFailed, sig.Body[0])
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return "", fmt.Errorf("%w: malformed portal response", ErrCaptureFailed)
			}
			uriVar, ok := results["uri"]
			if !ok {
				return "", fmt.Errorf("%w: portal response has no uri", ErrCaptureFailed)
			}
			uri, ok := uriVar.Value().(string)
			if !ok {
				return "", fmt.Errorf("%w: portal uri is not a string", ErrCaptureFailed)
			}
			return uri, nil
		case <-timeout:
			return "", fmt.Errorf("%w: timed out waiting for portal response", ErrCaptureFailed)
		}
	}
}

// readPortalScreenshot loads the PNG the portal wrote and removes it
func readPortalScreenshot(uri string) (*image.RGBA, error) {
	if !strings.HasPrefix(uri, "file://") {
		return nil, fmt.Errorf("%w: unexpected portal uri %q", ErrCaptureFailed, uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: bad portal uri %q: %v", ErrCaptureFailed, uri, err)
	}
	path := u.Path

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open portal screenshot: %v", ErrCaptureFailed, err)
	}
	defer func() {
		f.Close()
		// The portal leaves the file behind; it is ours to clean up
		os.Remove(path)
	}()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode portal screenshot: %v", ErrCaptureFailed, err)
	}

	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}
