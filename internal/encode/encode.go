// Package encode converts captured pixel buffers to JPEG or PNG bytes.
// It is pure: no I/O, no state shared across calls.
package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

var (
	// ErrInvalidParameter means a malformed format, quality, or size
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEncodeFailed wraps internal codec errors
	ErrEncodeFailed = errors.New("encode failed")
)

// Format is the output image format
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// DefaultJPEGQuality keeps typical full-screen snapshots under ~1MB so the
// result stays acceptable as model input
const DefaultJPEGQuality = 60

// Options control a single encode
type Options struct {
	Format Format

	// Quality is the JPEG quality, 1-100. Ignored for PNG.
	Quality int

	// Width and Height request a resize before encoding. Both zero means
	// native size; when set the frame is stretched to exactly these
	// dimensions (bilinear, aspect ratio not preserved).
	Width  int
	Height int
}

// Result carries the encoded bytes and their dimensions
type Result struct {
	Data   []byte
	Width  int
	Height int
	Format Format
}

// MIMEType returns the MIME type of the encoded data
func (r *Result) MIMEType() string {
	if r.Format == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Encode converts img to the requested format.
//
// JPEG discards the alpha channel (it is dropped, not composited against a
// background); PNG preserves it. Quality applies to JPEG only and must be
// in 1-100.
func Encode(img *image.RGBA, opts Options) (*Result, error) {
	if img == nil || img.Bounds().Dx() <= 0 || img.Bounds().Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrEncodeFailed)
	}

	switch opts.Format {
	case FormatJPEG, FormatPNG:
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidParameter, opts.Format)
	}

	if opts.Width != 0 || opts.Height != 0 {
		if opts.Width <= 0 || opts.Height <= 0 {
			return nil, fmt.Errorf("%w: width and height must both be positive, got %dx%d",
				ErrInvalidParameter, opts.Width, opts.Height)
		}
		img = resize(img, opts.Width, opts.Height)
	}

	var buf bytes.Buffer
	switch opts.Format {
	case FormatJPEG:
		quality := opts.Quality
		if quality == 0 {
			quality = DefaultJPEGQuality
		}
		if quality < 1 || quality > 100 {
			return nil, fmt.Errorf("%w: quality must be in 1-100, got %d", ErrInvalidParameter, opts.Quality)
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
	}

	return &Result{
		Data:   buf.Bytes(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Format: opts.Format,
	}, nil
}

// resize stretches img to exactly width x height with bilinear
// interpolation
func resize(img *image.RGBA, width, height int) *image.RGBA {
	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
