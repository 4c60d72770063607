package frame

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

func TestDiffNilPrevIsFull(t *testing.T) {
	cur := solid(8, 8, white)
	kind, _ := Diff(nil, cur)
	if kind != KindFull {
		t.Errorf("expected full, got %v", kind)
	}
}

func TestDiffSizeMismatchIsFull(t *testing.T) {
	kind, _ := Diff(solid(8, 8, white), solid(8, 9, white))
	if kind != KindFull {
		t.Errorf("expected full, got %v", kind)
	}
}

func TestDiffEqualIsEmpty(t *testing.T) {
	prev := solid(16, 16, white)
	kind, _ := Diff(prev, clone(prev))
	if kind != KindEmpty {
		t.Errorf("expected empty, got %v", kind)
	}
}

func TestDiffSinglePixel(t *testing.T) {
	prev := solid(16, 16, white)
	cur := clone(prev)
	cur.SetRGBA(5, 7, black)
	kind, rect := Diff(prev, cur)
	if kind != KindPartial {
		t.Fatalf("expected partial, got %v", kind)
	}
	if rect != image.Rect(5, 7, 6, 8) {
		t.Errorf("expected 1x1 rect at (5,7), got %v", rect)
	}
}

func TestDiffBoundingRectIsTight(t *testing.T) {
	prev := solid(32, 32, white)
	cur := clone(prev)
	cur.SetRGBA(3, 10, black)
	cur.SetRGBA(20, 4, black)
	cur.SetRGBA(12, 25, black)
	kind, rect := Diff(prev, cur)
	if kind != KindPartial {
		t.Fatalf("expected partial, got %v", kind)
	}
	if rect != image.Rect(3, 4, 21, 26) {
		t.Errorf("expected tight bbox (3,4)-(21,26), got %v", rect)
	}
}

func TestDiffCornerPixels(t *testing.T) {
	prev := solid(8, 8, white)
	cur := clone(prev)
	cur.SetRGBA(0, 0, black)
	cur.SetRGBA(7, 7, black)
	kind, rect := Diff(prev, cur)
	if kind != KindPartial {
		t.Fatalf("expected partial, got %v", kind)
	}
	if rect != image.Rect(0, 0, 8, 8) {
		t.Errorf("expected whole-image bbox, got %v", rect)
	}
}

func TestDiffDeterministic(t *testing.T) {
	prev := solid(16, 16, white)
	cur := clone(prev)
	cur.SetRGBA(1, 1, black)
	cur.SetRGBA(9, 14, black)
	k1, r1 := Diff(prev, cur)
	k2, r2 := Diff(prev, cur)
	if k1 != k2 || r1 != r2 {
		t.Errorf("diff is not deterministic: (%v, %v) vs (%v, %v)", k1, r1, k2, r2)
	}
}
