package frame

import (
	"bytes"
	"image"
)

// Kind classifies an emitted frame.
type Kind int

const (
	// KindEmpty means the image did not change since the last emission.
	KindEmpty Kind = iota
	// KindFull means the whole viewport is repainted.
	KindFull
	// KindPartial means only a sub-rectangle is repainted.
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindFull:
		return "full"
	case KindPartial:
		return "partial"
	}
	return "unknown"
}

// Diff compares prev against cur and classifies the change. Both
// images must be anchored at the origin; the pipeline guarantees this
// for resized frames.
//
// A nil or differently-sized prev yields KindFull. A bitwise-equal
// pair yields KindEmpty. Anything else yields KindPartial with the
// tightest axis-aligned bounding rectangle of the differing pixels.
func Diff(prev, cur *image.RGBA) (Kind, image.Rectangle) {
	if prev == nil || prev.Bounds().Size() != cur.Bounds().Size() {
		return KindFull, cur.Bounds()
	}

	w, h := cur.Bounds().Dx(), cur.Bounds().Dy()
	minX, maxX := w, -1
	minY, maxY := -1, -1
	for y := 0; y < h; y++ {
		prow := row(prev, y, w)
		crow := row(cur, y, w)
		if bytes.Equal(prow, crow) {
			continue
		}
		lo := 0
		for pixelEqual(prow, crow, lo) {
			lo++
		}
		hi := w - 1
		for pixelEqual(prow, crow, hi) {
			hi--
		}
		if lo < minX {
			minX = lo
		}
		if hi > maxX {
			maxX = hi
		}
		if minY < 0 {
			minY = y
		}
		maxY = y
	}

	if maxY < 0 {
		return KindEmpty, image.Rectangle{}
	}
	return KindPartial, image.Rect(minX, minY, maxX+1, maxY+1)
}

func row(img *image.RGBA, y, w int) []byte {
	off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
	return img.Pix[off : off+w*4]
}

func pixelEqual(a, b []byte, x int) bool {
	return bytes.Equal(a[x*4:x*4+4], b[x*4:x*4+4])
}
