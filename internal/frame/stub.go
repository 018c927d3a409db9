package frame

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
)

// StubDevice serves a deterministic test pattern (for development/testing,
// when no camera is configured).
type StubDevice struct {
	Width  int
	Height int
	Side   Facing
}

// NewStubDevice returns a 1280x720 front-facing test pattern camera.
func NewStubDevice() *StubDevice {
	return &StubDevice{Width: 1280, Height: 720, Side: FacingUser}
}

// Open accepts any constraints the pattern can satisfy.
func (d *StubDevice) Open(_ context.Context, c Constraints) (Stream, error) {
	if c.Facing != "" && c.Facing != d.Side {
		return nil, errors.New("stub camera faces " + string(d.Side))
	}
	if c.IdealWidth > d.Width || c.IdealHeight > d.Height {
		return nil, errors.New("stub camera resolution too low")
	}
	return &stubStream{img: testPattern(d.Width, d.Height), facing: d.Side}, nil
}

type stubStream struct {
	img     image.Image
	facing  Facing
	stopped atomic.Bool
}

func (s *stubStream) Frame(_ context.Context) (image.Image, error) {
	if s.stopped.Load() {
		return nil, errStreamStopped
	}
	return s.img, nil
}

func (s *stubStream) Facing() Facing { return s.facing }

func (s *stubStream) Stop() error {
	s.stopped.Store(true)
	return nil
}

// testPattern draws a diagonal color gradient with a dark left edge so that
// mirroring is visible.
func testPattern(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) * 255 / max(w+h-2, 1)),
				A: 255,
			}
			if x < w/20 {
				c = color.NRGBA{A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
