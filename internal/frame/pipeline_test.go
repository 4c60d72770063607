package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/bitrate16/httprd/internal/config"
	"github.com/bitrate16/httprd/internal/protocol"
)

type fakeGrabber struct {
	img   *image.RGBA
	err   error
	calls int
}

func (g *fakeGrabber) Capture() (*image.RGBA, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return clone(g.img), nil
}

func (g *fakeGrabber) Bounds() image.Rectangle {
	return g.img.Bounds()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ControlPassword = "secret"
	return cfg
}

func request(w, h int) protocol.FrameRequest {
	return protocol.FrameRequest{ViewportWidth: uint16(w), ViewportHeight: uint16(h), Quality: 75}
}

func fill(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func TestPipelineFirstFrameIsFull(t *testing.T) {
	g := &fakeGrabber{img: solid(64, 48, white)}
	p := NewPipeline(g, testConfig())

	resp, err := p.Produce(request(64, 48))
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if resp.Type != protocol.FrameFull {
		t.Fatalf("expected full frame, got 0x%02x", resp.Type)
	}
	if resp.RemoteWidth != 64 || resp.RemoteHeight != 48 {
		t.Errorf("expected 64x48, got %dx%d", resp.RemoteWidth, resp.RemoteHeight)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(resp.JPEG))
	if err != nil {
		t.Fatalf("payload is not a valid JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 64 || decoded.Bounds().Dy() != 48 {
		t.Errorf("JPEG is %v, expected 64x48", decoded.Bounds())
	}
}

func TestPipelineIdleEmitsEmptiesThenFull(t *testing.T) {
	cfg := testConfig()
	cfg.EmptyRepaint = 3
	g := &fakeGrabber{img: solid(32, 24, white)}
	p := NewPipeline(g, cfg)

	var kinds []byte
	for i := 0; i < 4; i++ {
		resp, err := p.Produce(request(32, 24))
		if err != nil {
			t.Fatalf("produce %d failed: %v", i, err)
		}
		kinds = append(kinds, resp.Type)
	}
	expected := []byte{protocol.FrameFull, protocol.FrameEmpty, protocol.FrameEmpty, protocol.FrameFull}
	if !bytes.Equal(kinds, expected) {
		t.Errorf("expected %v, got %v", expected, kinds)
	}
}

func TestPipelinePartialThenForcedFull(t *testing.T) {
	cfg := testConfig()
	cfg.PartialRepaint = 2
	g := &fakeGrabber{img: solid(32, 24, white)}
	p := NewPipeline(g, cfg)

	square := image.Rect(4, 6, 14, 16)
	colors := []color.RGBA{black, white, black, white}
	var kinds []byte
	for i := 0; i < 5; i++ {
		if i > 0 {
			fill(g.img, square, colors[i-1])
		}
		resp, err := p.Produce(request(32, 24))
		if err != nil {
			t.Fatalf("produce %d failed: %v", i, err)
		}
		kinds = append(kinds, resp.Type)
		if resp.Type == protocol.FramePartial {
			if resp.CropX != 4 || resp.CropY != 6 {
				t.Errorf("produce %d: expected crop (4,6), got (%d,%d)", i, resp.CropX, resp.CropY)
			}
			decoded, err := jpeg.Decode(bytes.NewReader(resp.JPEG))
			if err != nil {
				t.Fatalf("produce %d: bad JPEG: %v", i, err)
			}
			if decoded.Bounds().Dx() != 10 || decoded.Bounds().Dy() != 10 {
				t.Errorf("produce %d: crop is %v, expected 10x10", i, decoded.Bounds())
			}
		}
	}
	expected := []byte{
		protocol.FrameFull,
		protocol.FramePartial,
		protocol.FrameFull,
		protocol.FramePartial,
		protocol.FrameFull,
	}
	if !bytes.Equal(kinds, expected) {
		t.Errorf("expected %v, got %v", expected, kinds)
	}
}

func TestPipelinePartialUpdatesReference(t *testing.T) {
	g := &fakeGrabber{img: solid(32, 24, white)}
	p := NewPipeline(g, testConfig())

	if _, err := p.Produce(request(32, 24)); err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	fill(g.img, image.Rect(10, 10, 20, 20), black)
	resp, err := p.Produce(request(32, 24))
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if resp.Type != protocol.FramePartial {
		t.Fatalf("expected partial, got 0x%02x", resp.Type)
	}
	if !bytes.Equal(p.LastSent().Pix, g.img.Pix) {
		t.Errorf("reference image does not match the captured state after a partial update")
	}
}

func TestPipelineViewportChangeForcesFull(t *testing.T) {
	g := &fakeGrabber{img: solid(64, 48, white)}
	p := NewPipeline(g, testConfig())

	if _, err := p.Produce(request(64, 48)); err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	resp, err := p.Produce(request(32, 24))
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	if resp.Type != protocol.FrameFull {
		t.Errorf("expected full after viewport change, got 0x%02x", resp.Type)
	}
	if resp.RemoteWidth != 32 || resp.RemoteHeight != 24 {
		t.Errorf("expected 32x24, got %dx%d", resp.RemoteWidth, resp.RemoteHeight)
	}
}

func TestPipelineViewportResize(t *testing.T) {
	g := &fakeGrabber{img: solid(64, 48, white)}
	p := NewPipeline(g, testConfig())

	resp, err := p.Produce(request(32, 24))
	if err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(resp.JPEG))
	if err != nil {
		t.Fatalf("bad JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 32 || decoded.Bounds().Dy() != 24 {
		t.Errorf("expected downscaled 32x24 frame, got %v", decoded.Bounds())
	}
}

func TestPipelineCaptureErrorKeepsState(t *testing.T) {
	g := &fakeGrabber{img: solid(32, 24, white)}
	p := NewPipeline(g, testConfig())

	if _, err := p.Produce(request(32, 24)); err != nil {
		t.Fatalf("produce failed: %v", err)
	}
	g.err = errors.New("grab failed")
	if _, err := p.Produce(request(32, 24)); err == nil {
		t.Fatal("expected an error")
	}
	g.err = nil
	resp, err := p.Produce(request(32, 24))
	if err != nil {
		t.Fatalf("produce after recovery failed: %v", err)
	}
	if resp.Type != protocol.FrameEmpty {
		t.Errorf("expected empty after recovery with unchanged pixels, got 0x%02x", resp.Type)
	}
}
