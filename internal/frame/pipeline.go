package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/nfnt/resize"

	"github.com/bitrate16/httprd/internal/capture"
	"github.com/bitrate16/httprd/internal/config"
	"github.com/bitrate16/httprd/internal/protocol"
)

// Viewport dimensions are clamped to keep resize cost bounded no
// matter what a client requests.
const (
	minViewportDim = 1
	maxViewportDim = 4096
)

// Pipeline produces frame responses for one session. It owns the
// reference image the differ compares against and the repaint
// counters; it is not safe for concurrent use.
type Pipeline struct {
	grabber capture.Grabber

	minQuality    int
	maxQuality    int
	partialBudget int
	emptyBudget   int

	last          *image.RGBA
	viewW, viewH  int
	partialStreak int
	emptyStreak   int
}

// NewPipeline builds a pipeline bound to grabber with the repaint and
// quality bounds from cfg.
func NewPipeline(grabber capture.Grabber, cfg *config.Config) *Pipeline {
	return &Pipeline{
		grabber:       grabber,
		minQuality:    cfg.MinQuality,
		maxQuality:    cfg.MaxQuality,
		partialBudget: cfg.PartialRepaint,
		emptyBudget:   cfg.EmptyRepaint,
	}
}

// Produce services one frame request: capture, resize to the requested
// viewport, classify against the last sent image and encode the
// emitted region. A viewport change discards the reference image and
// forces a full frame. Capture and encode failures are returned
// without advancing the reference image or the repaint counters.
func (p *Pipeline) Produce(req protocol.FrameRequest) (*protocol.FrameResponse, error) {
	vw := clamp(int(req.ViewportWidth), minViewportDim, maxViewportDim)
	vh := clamp(int(req.ViewportHeight), minViewportDim, maxViewportDim)

	src, err := p.grabber.Capture()
	if err != nil {
		return nil, err
	}

	if vw != p.viewW || vh != p.viewH {
		p.last = nil
		p.viewW, p.viewH = vw, vh
	}

	cur := resizeFrame(src, vw, vh)
	quality := clamp(int(req.Quality), p.minQuality, p.maxQuality)

	kind := KindFull
	var rect image.Rectangle
	if p.last != nil {
		kind, rect = Diff(p.last, cur)
		switch kind {
		case KindEmpty:
			if p.emptyStreak+1 >= p.emptyBudget {
				kind = KindFull
			}
		case KindPartial:
			if p.partialStreak+1 >= p.partialBudget {
				kind = KindFull
			}
		}
	}

	resp := &protocol.FrameResponse{
		RemoteWidth:  uint16(vw),
		RemoteHeight: uint16(vh),
	}
	switch kind {
	case KindFull:
		blob, err := encodeJPEG(cur, quality)
		if err != nil {
			return nil, err
		}
		resp.Type = protocol.FrameFull
		resp.JPEG = blob
		p.last = cur
		p.partialStreak, p.emptyStreak = 0, 0
	case KindPartial:
		blob, err := encodeJPEG(cur.SubImage(rect), quality)
		if err != nil {
			return nil, err
		}
		resp.Type = protocol.FramePartial
		resp.CropX = uint16(rect.Min.X)
		resp.CropY = uint16(rect.Min.Y)
		resp.JPEG = blob
		draw.Draw(p.last, rect, cur, rect.Min, draw.Src)
		p.partialStreak++
		p.emptyStreak = 0
	case KindEmpty:
		resp.Type = protocol.FrameEmpty
		p.emptyStreak++
		p.partialStreak = 0
	}
	return resp, nil
}

// LastSent returns the reference image, or nil before the first full
// frame.
func (p *Pipeline) LastSent() *image.RGBA {
	return p.last
}

// resizeFrame scales src to w x h with Lanczos resampling and anchors
// the result at the origin.
func resizeFrame(src *image.RGBA, w, h int) *image.RGBA {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h && b.Min == (image.Point{}) {
		return src
	}
	out := resize.Resize(uint(w), uint(h), src, resize.Lanczos3)
	if rgba, ok := out.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), out, out.Bounds().Min, draw.Src)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
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
