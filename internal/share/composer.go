// Package share renders the shareable print of an artifact: the photo on a
// white card with a caption and a date/label line underneath.
package share

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/yangwenmai/sofort/internal/frame"
	"github.com/yangwenmai/sofort/internal/model"
)

// Print geometry at the reference export width.
const (
	DefaultWidth   = 1080
	DefaultHeight  = 1350
	DefaultPadding = 60

	captionSize = 54
	metaSize    = 26

	maxCaptionRunes = 120
)

var (
	captionColor = color.NRGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
	metaColor    = color.NRGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
)

// Export is a packaged print ready for delivery.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Composer renders prints. It is safe for concurrent use.
type Composer struct {
	Width   int
	Height  int
	Padding int
	Prefix  string

	captionFont *opentype.Font
	metaFont    *opentype.Font
}

// NewComposer creates a composer for width x height prints. The canvas must
// be at least as tall as it is wide so the square photo fits.
func NewComposer(width, height int, prefix string) (*Composer, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if height < width {
		return nil, fmt.Errorf("share: canvas %dx%d is wider than tall", width, height)
	}
	if prefix == "" {
		prefix = "sofort"
	}

	italic, err := opentype.Parse(goitalic.TTF)
	if err != nil {
		return nil, fmt.Errorf("share: parse caption font: %w", err)
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("share: parse metadata font: %w", err)
	}

	return &Composer{
		Width:       width,
		Height:      height,
		Padding:     width * DefaultPadding / DefaultWidth,
		Prefix:      prefix,
		captionFont: italic,
		metaFont:    regular,
	}, nil
}

// FileName returns the download name of an artifact's print.
func FileName(prefix, id string) string {
	return prefix + "-" + id + ".png"
}

// Package composes the print and wraps it for delivery. Share and download
// use the same Export.
func (c *Composer) Package(a *model.Artifact, caption string) (*Export, error) {
	data, err := c.Compose(a, caption)
	if err != nil {
		return nil, err
	}
	return &Export{
		FileName:    FileName(c.Prefix, a.ID),
		ContentType: "image/png",
		Data:        data,
	}, nil
}

// Compose renders the print of a as PNG. Errors wrap model.ErrShareExport.
func (c *Composer) Compose(a *model.Artifact, caption string) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: %w", model.ErrShareExport, model.ErrNoArtifact)
	}
	photo, err := imaging.Decode(bytes.NewReader(a.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: decode artifact: %w", model.ErrShareExport, err)
	}

	inner := c.Width - 2*c.Padding
	photo = frame.PrintFinish(imaging.Fill(photo, inner, inner, imaging.Center, imaging.Lanczos))

	canvas := imaging.New(c.Width, c.Height, color.White)
	canvas = imaging.Paste(canvas, photo, image.Pt(c.Padding, c.Padding))

	scale := float64(c.Width) / DefaultWidth
	captionFace, err := newFace(c.captionFont, captionSize*scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrShareExport, err)
	}
	defer captionFace.Close()
	metaFace, err := newFace(c.metaFont, metaSize*scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrShareExport, err)
	}
	defer metaFace.Close()

	// Caption and metadata share the band below the photo.
	photoBottom := c.Padding + inner
	band := c.Height - photoBottom
	captionY := photoBottom + band*45/100
	metaY := captionY + int(metaSize*scale*2)
	if caption = strings.TrimSpace(caption); caption == "" {
		metaY = photoBottom + band/2
	}

	if caption != "" {
		text := fitText(captionFace, truncate(caption, maxCaptionRunes), inner)
		drawCentered(canvas, captionFace, captionColor, text, c.Width, captionY)
	}
	drawCentered(canvas, metaFace, metaColor, fitText(metaFace, a.MetadataLine(), inner), c.Width, metaY)

	out, err := frame.EncodePNG(canvas)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", model.ErrShareExport, err)
	}
	return out, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	if size < 1 {
		size = 1
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	return face, nil
}

func drawCentered(dst *image.NRGBA, face font.Face, col color.Color, text string, width, baseline int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	x := (fixed.I(width) - d.MeasureString(text)) / 2
	d.Dot = fixed.Point26_6{X: x, Y: fixed.I(baseline)}
	d.DrawString(text)
}

// fitText shortens text with an ellipsis until it is at most maxWidth wide.
func fitText(face font.Face, text string, maxWidth int) string {
	limit := fixed.I(maxWidth)
	if font.MeasureString(face, text) <= limit {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		s := strings.TrimSpace(string(runes)) + "…"
		if font.MeasureString(face, s) <= limit {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
