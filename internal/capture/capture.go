// Package capture acquires pixel buffers from the host displays.
package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay is returned when no active display can be found.
var ErrNoDisplay = errors.New("capture: no active display")

// Grabber captures the host desktop. Capture is idempotent and safe to
// call from multiple sessions concurrently.
type Grabber interface {
	// Capture returns the current desktop pixels.
	Capture() (*image.RGBA, error)

	// Bounds returns the captured region in display coordinates.
	Bounds() image.Rectangle
}

type displayGrabber struct {
	fullscreen bool
}

// NewGrabber returns a screenshot-backed Grabber. With fullscreen set
// it captures the union of all active displays, otherwise the primary
// display only.
func NewGrabber(fullscreen bool) (Grabber, error) {
	if screenshot.NumActiveDisplays() < 1 {
		return nil, ErrNoDisplay
	}
	return &displayGrabber{fullscreen: fullscreen}, nil
}

// Bounds is recomputed on every call so resolution changes are picked
// up between captures.
func (g *displayGrabber) Bounds() image.Rectangle {
	n := screenshot.NumActiveDisplays()
	if n < 1 {
		return image.Rectangle{}
	}
	bounds := screenshot.GetDisplayBounds(0)
	if g.fullscreen {
		for i := 1; i < n; i++ {
			bounds = bounds.Union(screenshot.GetDisplayBounds(i))
		}
	}
	return bounds
}

func (g *displayGrabber) Capture() (*image.RGBA, error) {
	bounds := g.Bounds()
	if bounds.Empty() {
		return nil, ErrNoDisplay
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		// On some platforms capture can intermittently fail.
		return nil, fmt.Errorf("capture: %w", err)
	}
	return img, nil
}
