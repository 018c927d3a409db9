package frame

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/yangwenmai/sofort/internal/model"
)

// DefaultOutputSize is the edge length of normalized stills.
const DefaultOutputSize = 1000

// Still is a normalized square frame, decoded and PNG-encoded.
type Still struct {
	Image *image.NRGBA
	PNG   []byte
}

// Options controls the per-frame steps of Normalize.
type Options struct {
	// Mirror flips the output horizontally. Set it only for live
	// front-camera frames.
	Mirror bool
	// Filter is applied after scaling. Nil means no filter.
	Filter Filter
}

// Cropper center-crops frames to a square and scales them to Size x Size.
type Cropper struct {
	Size int
}

// NewCropper returns a cropper for size, falling back to DefaultOutputSize.
func NewCropper(size int) Cropper {
	if size <= 0 {
		size = DefaultOutputSize
	}
	return Cropper{Size: size}
}

// CropRect returns the centered square region of a w x h frame, relative to
// its origin.
func CropRect(w, h int) image.Rectangle {
	size := min(w, h)
	x := (w - size) / 2
	y := (h - size) / 2
	return image.Rect(x, y, x+size, y+size)
}

// Normalize crops, scales, optionally mirrors and filters src, then encodes
// the result as PNG. A zero-sized source fails with model.ErrFrameNotReady.
func (c Cropper) Normalize(src image.Image, opts Options) (*Still, error) {
	if src == nil {
		return nil, model.ErrFrameNotReady
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: source is %dx%d", model.ErrFrameNotReady, b.Dx(), b.Dy())
	}

	size := c.Size
	if size <= 0 {
		size = DefaultOutputSize
	}

	region := CropRect(b.Dx(), b.Dy()).Add(b.Min)
	out := imaging.Crop(src, region)
	if out.Bounds().Dx() != size {
		out = imaging.Resize(out, size, size, imaging.Lanczos)
	}
	if opts.Mirror {
		out = imaging.FlipH(out)
	}
	if opts.Filter != nil {
		out = opts.Filter(out)
	}

	png, err := EncodePNG(out)
	if err != nil {
		return nil, err
	}
	return &Still{Image: out, PNG: png}, nil
}

// EncodePNG encodes img losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
