package input

import (
	"errors"
	"image"
	"log"
	"math"

	"github.com/bitrate16/httprd/internal/protocol"
)

// Role is the authenticated capability of a session.
type Role int

const (
	RoleUnauthenticated Role = iota
	RoleViewer
	RoleController
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleController:
		return "controller"
	}
	return "unauthenticated"
}

var errNoViewport = errors.New("no viewport negotiated")

// Dispatcher replays input batches for one session. It is driven by
// the session's reader goroutine only and does not lock.
type Dispatcher struct {
	synth  Synthesizer
	bounds func() image.Rectangle
	bucket *tokenBucket

	viewW, viewH int
}

// NewDispatcher builds a dispatcher that scales viewport coordinates
// into the display region reported by bounds and rate-limits dispatch
// to maxIPS events per second.
func NewDispatcher(synth Synthesizer, bounds func() image.Rectangle, maxIPS int) *Dispatcher {
	return &Dispatcher{
		synth:  synth,
		bounds: bounds,
		bucket: newTokenBucket(maxIPS, nil),
	}
}

// SetViewport records the client viewport used to translate event
// coordinates. Called by the reader on every frame request.
func (d *Dispatcher) SetViewport(w, h int) {
	d.viewW, d.viewH = w, h
}

// Dispatch applies one decoded batch in order. Events from anything
// but a controller are discarded silently. Events over the rate budget
// are dropped oldest-first; a failing event is dropped and the rest of
// the batch continues.
func (d *Dispatcher) Dispatch(role Role, events []protocol.Event) {
	if role != RoleController {
		return
	}
	granted := d.bucket.take(len(events))
	if dropped := len(events) - granted; dropped > 0 {
		log.Printf("input: rate limit dropped %d of %d events", dropped, len(events))
		events = events[dropped:]
	}
	for _, ev := range events {
		if err := d.apply(ev); err != nil {
			log.Printf("input: dropping event: %v", err)
		}
	}
}

func (d *Dispatcher) apply(ev protocol.Event) error {
	switch e := ev.(type) {
	case protocol.MouseMove:
		x, y, err := d.toDisplay(e.X, e.Y)
		if err != nil {
			return err
		}
		d.synth.MoveMouse(x, y)
		return nil
	case protocol.MouseDown:
		x, y, err := d.toDisplay(e.X, e.Y)
		if err != nil {
			return err
		}
		return d.synth.ToggleMouse(x, y, e.Button, true)
	case protocol.MouseUp:
		x, y, err := d.toDisplay(e.X, e.Y)
		if err != nil {
			return err
		}
		return d.synth.ToggleMouse(x, y, e.Button, false)
	case protocol.MouseScroll:
		x, y, err := d.toDisplay(e.X, e.Y)
		if err != nil {
			return err
		}
		d.synth.Scroll(x, y, e.Dy)
		return nil
	case protocol.KeyDown:
		return d.synth.ToggleKey(e.Key, true)
	case protocol.KeyUp:
		return d.synth.ToggleKey(e.Key, false)
	}
	return errors.New("unhandled event")
}

// toDisplay maps viewport coordinates onto the host display region:
// clamp to the viewport, scale linearly, round to nearest, clamp to
// the display bounds.
func (d *Dispatcher) toDisplay(x, y int) (int, int, error) {
	if d.viewW < 1 || d.viewH < 1 {
		return 0, 0, errNoViewport
	}
	b := d.bounds()
	if b.Empty() {
		return 0, 0, errors.New("empty display bounds")
	}
	x = clamp(x, 0, d.viewW)
	y = clamp(y, 0, d.viewH)
	dx := b.Min.X + int(math.Round(float64(x)*float64(b.Dx())/float64(d.viewW)))
	dy := b.Min.Y + int(math.Round(float64(y)*float64(b.Dy())/float64(d.viewH)))
	dx = clamp(dx, b.Min.X, b.Max.X-1)
	dy = clamp(dy, b.Min.Y, b.Max.Y-1)
	return dx, dy, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
