package frame

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/yangwenmai/sofort/internal/model"
)

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	black = color.NRGBA{A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestCropRect(t *testing.T) {
	tests := []struct {
		w, h int
		want image.Rectangle
	}{
		{2000, 1000, image.Rect(500, 0, 1500, 1000)},
		{1000, 2000, image.Rect(0, 500, 1000, 1500)},
		{640, 480, image.Rect(80, 0, 560, 480)},
		{7, 4, image.Rect(1, 0, 5, 4)},
		{300, 300, image.Rect(0, 0, 300, 300)},
	}
	for _, tt := range tests {
		got := CropRect(tt.w, tt.h)
		if got != tt.want {
			t.Errorf("CropRect(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
		if got.Dx() != got.Dy() {
			t.Errorf("CropRect(%d, %d) is not square: %v", tt.w, tt.h, got)
		}
		size := min(tt.w, tt.h)
		if got.Min.X != (tt.w-size)/2 || got.Min.Y != (tt.h-size)/2 {
			t.Errorf("CropRect(%d, %d) not centered: %v", tt.w, tt.h, got)
		}
	}
}

func TestNormalize_GalleryWideImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2000, 1000))
	fill(src, image.Rect(0, 0, 500, 1000), red)
	fill(src, image.Rect(500, 0, 1500, 1000), green)
	fill(src, image.Rect(1500, 0, 2000, 1000), blue)

	still, err := NewCropper(1000).Normalize(src, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if b := still.Image.Bounds(); b.Dx() != 1000 || b.Dy() != 1000 {
		t.Fatalf("bounds = %v, want 1000x1000", b)
	}
	for _, p := range []image.Point{{0, 0}, {999, 0}, {0, 999}, {999, 999}, {500, 500}} {
		if got := still.Image.NRGBAAt(p.X, p.Y); got != green {
			t.Errorf("pixel %v = %v, want green (center region only)", p, got)
		}
	}

	decoded, err := DecodeStaticImage(still.PNG)
	if err != nil {
		t.Fatalf("decode PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 1000 || b.Dy() != 1000 {
		t.Errorf("encoded PNG bounds = %v, want 1000x1000", b)
	}
}

func TestNormalize_ScalesToOutputSize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	fill(src, src.Bounds(), green)

	still, err := NewCropper(100).Normalize(src, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if b := still.Image.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("bounds = %v, want 100x100", b)
	}
}

func TestNormalize_Mirror(t *testing.T) {
	// Crop region is x in [5,15): left half black, right half white.
	src := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	fill(src, image.Rect(0, 0, 10, 10), black)
	fill(src, image.Rect(10, 0, 20, 10), white)

	c := NewCropper(10)

	plain, err := c.Normalize(src, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := plain.Image.NRGBAAt(0, 0); got != black {
		t.Errorf("unmirrored left pixel = %v, want black", got)
	}

	mirrored, err := c.Normalize(src, Options{Mirror: true})
	if err != nil {
		t.Fatalf("Normalize mirrored: %v", err)
	}
	if got := mirrored.Image.NRGBAAt(0, 0); got != white {
		t.Errorf("mirrored left pixel = %v, want white", got)
	}
	if got := mirrored.Image.NRGBAAt(9, 0); got != black {
		t.Errorf("mirrored right pixel = %v, want black", got)
	}
}

func TestNormalize_OffsetBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 30, 20))
	fill(src, image.Rect(10, 10, 20, 20), black)
	fill(src, image.Rect(20, 10, 30, 20), white)

	still, err := NewCropper(10).Normalize(src, Options{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := still.Image.NRGBAAt(0, 0); got != black {
		t.Errorf("left pixel = %v, want black", got)
	}
	if got := still.Image.NRGBAAt(9, 9); got != white {
		t.Errorf("right pixel = %v, want white", got)
	}
}

func TestNormalize_FrameNotReady(t *testing.T) {
	c := NewCropper(10)
	for name, src := range map[string]image.Image{
		"nil":         nil,
		"zero width":  image.NewNRGBA(image.Rect(0, 0, 0, 10)),
		"zero height": image.NewNRGBA(image.Rect(0, 0, 10, 0)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.Normalize(src, Options{})
			if !errors.Is(err, model.ErrFrameNotReady) {
				t.Errorf("err = %v, want ErrFrameNotReady", err)
			}
		})
	}
}

func TestNormalize_Filter(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	fill(src, src.Bounds(), color.NRGBA{R: 200, G: 40, B: 90, A: 255})

	noir, err := LookupFilter("noir")
	if err != nil {
		t.Fatalf("LookupFilter: %v", err)
	}
	still, err := NewCropper(10).Normalize(src, Options{Filter: noir})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	px := still.Image.NRGBAAt(5, 5)
	if px.R != px.G || px.G != px.B {
		t.Errorf("noir pixel = %v, want gray", px)
	}
}

func TestNewCropper_DefaultSize(t *testing.T) {
	if c := NewCropper(0); c.Size != DefaultOutputSize {
		t.Errorf("Size = %d, want %d", c.Size, DefaultOutputSize)
	}
}
