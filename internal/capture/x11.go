package capture

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/opentraa/traa-mcp/internal/logger"
)

// X11Backend captures displays and windows through X11/XWayland
type X11Backend struct {
	conn             *xgb.Conn
	root             xproto.Window
	screen           *xproto.ScreenInfo
	compositeEnabled bool
	mu               sync.Mutex
}

// NewX11Backend connects to the X server
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}, nil
}

// Start initializes the X11 backend
func (b *X11Backend) Start() error {
	log := logger.WithComponent("x11-backend")

	// Composite lets us grab obscured windows through a named pixmap
	if err := composite.Init(b.conn); err != nil {
		log.Warn().
			Err(err).
			Msg("Composite extension not available - captures of obscured windows may fail")
		b.compositeEnabled = false
	} else {
		b.compositeEnabled = true
		log.Info().Msg("Composite extension initialized")
	}

	return nil
}

// Stop closes the X11 connection
func (b *X11Backend) Stop() error {
	b.conn.Close()
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// IsAvailable checks if X11 capture is available
func (b *X11Backend) IsAvailable() bool {
	return b.conn != nil
}

// Sources enumerates displays first, then windows
func (b *X11Backend) Sources() ([]Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := logger.WithComponent("x11-backend")

	sources := displaySources()

	windows, err := b.listWindowsEWMH()
	if err != nil || len(windows) == 0 {
		if err != nil {
			log.Debug().Err(err).Msg("EWMH window list failed, falling back to QueryTree")
		}
		windows, err = b.listWindowsQueryTree()
		if err != nil {
			if len(sources) == 0 {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			log.Warn().Err(err).Msg("Window enumeration failed, returning displays only")
			return sources, nil
		}
	}

	log.Debug().
		Int("displays", len(sources)).
		Int("windows", len(windows)).
		Msg("Enumerated sources")

	return append(sources, windows...), nil
}

// listWindowsEWMH gets windows from _NET_CLIENT_LIST (EWMH standard)
func (b *X11Backend) listWindowsEWMH() ([]Source, error) {
	clientListAtom, err := b.getAtom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST atom: %w", err)
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		b.root,
		clientListAtom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST property: %w", err)
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("_NET_CLIENT_LIST is empty")
	}

	// The property is an array of 32-bit window ids
	windows := make([]Source, 0, reply.ValueLen)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		winID := xproto.Window(uint32(reply.Value[i]) |
			uint32(reply.Value[i+1])<<8 |
			uint32(reply.Value[i+2])<<16 |
			uint32(reply.Value[i+3])<<24)

		src, err := b.windowSource(winID)
		if err != nil {
			continue
		}
		if src.Title == "" {
			continue
		}
		windows = append(windows, src)
	}

	return windows, nil
}

// listWindowsQueryTree gets windows by querying root window children
func (b *X11Backend) listWindowsQueryTree() ([]Source, error) {
	tree, err := xproto.QueryTree(b.conn, b.root).Reply()
	if err != nil {
		return nil, err
	}

	windows := make([]Source, 0, len(tree.Children))
	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(b.conn, child).Reply()
		if err != nil {
			continue
		}
		if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
			continue
		}

		src, err := b.windowSource(child)
		if err != nil {
			continue
		}
		// Untitled children of root are usually frames, not user windows
		if src.Title == "" {
			continue
		}
		windows = append(windows, src)
	}

	return windows, nil
}

// windowSource builds a Source for one window
func (b *X11Backend) windowSource(win xproto.Window) (Source, error) {
	src := Source{
		ID:   int64(win),
		Kind: KindWindow,
	}

	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return src, fmt.Errorf("failed to get window geometry: %w", err)
	}
	src.X = int(geom.X)
	src.Y = int(geom.Y)
	src.Width = int(geom.Width)
	src.Height = int(geom.Height)

	if titleAtom, err := b.getAtom("_NET_WM_NAME"); err == nil {
		if title, err := b.getProperty(win, titleAtom); err == nil {
			src.Title = title
		}
	}
	if src.Title == "" {
		if titleAtom, err := b.getAtom("WM_NAME"); err == nil {
			if title, err := b.getProperty(win, titleAtom); err == nil {
				src.Title = title
			}
		}
	}
	if src.Title == "" {
		// WM_CLASS format is: instance\0class\0
		if classAtom, err := b.getAtom("WM_CLASS"); err == nil {
			if classRaw, err := b.getProperty(win, classAtom); err == nil {
				parts := strings.Split(classRaw, "\x00")
				if len(parts) >= 2 && parts[1] != "" {
					src.Title = parts[1]
				} else if parts[0] != "" {
					src.Title = parts[0]
				}
			}
		}
	}

	return src, nil
}

// Grab captures the source at native size
func (b *X11Backend) Grab(id int64) (*image.RGBA, error) {
	if isDisplayID(id) {
		return grabDisplay(int(id))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grabWindow(xproto.Window(id))
}

// grabWindow captures a window's content, via the Composite extension when
// available
func (b *X11Backend) grabWindow(win xproto.Window) (*image.RGBA, error) {
	log := logger.WithComponent("x11-backend")

	attrs, err := xproto.GetWindowAttributes(b.conn, win).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: window 0x%x", ErrSourceNotFound, uint32(win))
	}
	if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
		return nil, fmt.Errorf("%w: window 0x%x is not viewable", ErrCaptureFailed, uint32(win))
	}

	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get window geometry: %v", ErrCaptureFailed, err)
	}

	drawable := xproto.Drawable(win)
	if b.compositeEnabled {
		if err := composite.RedirectWindowChecked(b.conn, win, composite.RedirectAutomatic).Check(); err == nil {
			defer composite.UnredirectWindow(b.conn, win, composite.RedirectAutomatic)

			if pixmap, err := xproto.NewPixmapId(b.conn); err == nil {
				if err := composite.NameWindowPixmapChecked(b.conn, win, pixmap).Check(); err == nil {
					drawable = xproto.Drawable(pixmap)
					defer xproto.FreePixmap(b.conn, pixmap)
				}
			}
		} else {
			log.Debug().
				Err(err).
				Uint32("window_id", uint32(win)).
				Msg("Composite redirect failed, capturing window directly")
		}
	}

	reply, err := xproto.GetImage(
		b.conn,
		xproto.ImageFormatZPixmap,
		drawable,
		0, 0,
		geom.Width, geom.Height,
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get image: %v", ErrCaptureFailed, err)
	}

	return convertZPixmap(reply.Data, int(geom.Width), int(geom.Height)), nil
}

// getAtom gets an atom ID by name
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

// getProperty gets a property value as a string
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}
	return string(reply.Value), nil
}

// convertZPixmap converts 24/32-bit ZPixmap data (BGRA) to RGBA
func convertZPixmap(data []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := width * height * 4
	if n > len(data) {
		n = len(data)
	}
	for i := 0; i+3 < n; i += 4 {
		img.Pix[i] = data[i+2]
		img.Pix[i+1] = data[i+1]
		img.Pix[i+2] = data[i]
		img.Pix[i+3] = 0xff
	}
	return img
}
