package engine

import (
	"bytes"
	"context"
	"fmt"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/yangwenmai/sofort/internal/model"
)

// StubTransformer stylizes images locally (for development/testing, when no
// image API key is configured). It posterizes the image so the result is
// visibly different from the input.
type StubTransformer struct{}

func (StubTransformer) Transform(_ context.Context, img model.Image, _ string) (*model.Image, error) {
	src, err := imaging.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("stub: %w", err)
	}

	const levels = 4
	step := 255 / (levels - 1)
	out := imaging.AdjustFunc(imaging.AdjustSaturation(src, 40), func(c color.NRGBA) color.NRGBA {
		q := func(v uint8) uint8 { return uint8((int(v) + step/2) / step * step) }
		return color.NRGBA{R: q(c.R), G: q(c.G), B: q(c.B), A: c.A}
	})

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("stub: %w", err)
	}
	return &model.Image{Data: buf.Bytes(), MimeType: "image/png"}, nil
}

// UnavailableTransformer always fails. It stands in for a provider whose
// credentials are missing, so every instruction falls back to the original.
type UnavailableTransformer struct {
	Provider string
}

func (u UnavailableTransformer) Transform(context.Context, model.Image, string) (*model.Image, error) {
	return nil, fmt.Errorf("%s: %w", u.Provider, ErrNoCredentials)
}
