package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Display source ids are the display index. Window ids are X11 window ids,
// which the server allocates far above any realistic display count, so the
// two id spaces stay disjoint.

// displaySources enumerates the active displays
func displaySources() []Source {
	num := screenshot.NumActiveDisplays()
	sources := make([]Source, 0, num)
	for i := 0; i < num; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		sources = append(sources, Source{
			ID:     int64(i),
			Title:  fmt.Sprintf("Display %d (%dx%d)", i, bounds.Dx(), bounds.Dy()),
			Kind:   KindDisplay,
			X:      bounds.Min.X,
			Y:      bounds.Min.Y,
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		})
	}
	return sources
}

// grabDisplay captures one display at native size
func grabDisplay(index int) (*image.RGBA, error) {
	if index < 0 || index >= screenshot.NumActiveDisplays() {
		return nil, fmt.Errorf("%w: display %d", ErrSourceNotFound, index)
	}
	img, err := screenshot.CaptureDisplay(index)
	if err != nil {
		return nil, fmt.Errorf("%w: display %d: %v", ErrCaptureFailed, index, err)
	}
	return img, nil
}

// isDisplayID reports whether id falls in the display index range
func isDisplayID(id int64) bool {
	return id >= 0 && id < int64(screenshot.NumActiveDisplays())
}
