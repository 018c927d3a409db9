package share

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/sofort/internal/frame"
	"github.com/yangwenmai/sofort/internal/model"
)

func testArtifact(t *testing.T) *model.Artifact {
	t.Helper()
	png, err := frame.EncodePNG(imaging.New(100, 100, color.NRGBA{R: 200, G: 30, B: 30, A: 255}))
	require.NoError(t, err)
	at := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	return model.NewArtifact("abc-123", png, model.SourceLiveCapture, "ANIME VARIANT", at)
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}

func TestNewComposer_Defaults(t *testing.T) {
	c, err := NewComposer(0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, c.Width)
	assert.Equal(t, DefaultHeight, c.Height)
	assert.Equal(t, DefaultPadding, c.Padding)
	assert.Equal(t, "sofort", c.Prefix)
}

func TestNewComposer_RejectsLandscape(t *testing.T) {
	_, err := NewComposer(1350, 1080, "x")
	assert.Error(t, err)
}

func TestCompose_Layout(t *testing.T) {
	c, err := NewComposer(DefaultWidth, DefaultHeight, "sofort")
	require.NoError(t, err)

	data, err := c.Compose(testArtifact(t), "summer in the city")
	require.NoError(t, err)
	img := decode(t, data)

	assert.Equal(t, image.Rect(0, 0, DefaultWidth, DefaultHeight), img.Bounds())
	assert.True(t, isWhite(img.At(10, 10)), "padding should be white")
	assert.True(t, isWhite(img.At(DefaultWidth-10, DefaultHeight-10)), "bottom corner should be white")

	r, g, b, _ := img.At(DefaultWidth/2, DefaultWidth/2).RGBA()
	assert.Greater(t, r, g, "photo should stay red after the print finish")
	assert.Greater(t, r, b)
}

func TestCompose_DrawsCaption(t *testing.T) {
	c, err := NewComposer(DefaultWidth, DefaultHeight, "sofort")
	require.NoError(t, err)
	a := testArtifact(t)

	with := decode(t, mustCompose(t, c, a, "hello there"))
	without := decode(t, mustCompose(t, c, a, ""))

	// The caption band sits between the photo and the metadata line.
	photoBottom := c.Padding + (c.Width - 2*c.Padding)
	band := image.Rect(c.Padding, photoBottom+10, c.Width-c.Padding, photoBottom+(c.Height-photoBottom)*45/100-10)
	assert.True(t, hasInk(with, band), "caption should be drawn")
	assert.False(t, hasInk(without, band), "no caption should leave the band empty")
}

func TestCompose_Deterministic(t *testing.T) {
	c, err := NewComposer(540, 675, "sofort")
	require.NoError(t, err)
	a := testArtifact(t)

	first, err := c.Package(a, "same")
	require.NoError(t, err)
	second, err := c.Package(a, "same")
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, "sofort-abc-123.png", first.FileName)
	assert.Equal(t, "image/png", first.ContentType)
}

func TestCompose_Errors(t *testing.T) {
	c, err := NewComposer(540, 675, "sofort")
	require.NoError(t, err)

	_, err = c.Compose(nil, "")
	assert.True(t, errors.Is(err, model.ErrShareExport))

	broken := model.NewArtifact("x", []byte("not png"), model.SourceLiveCapture, model.LabelInstantFilm, time.Now())
	_, err = c.Package(broken, "")
	assert.True(t, errors.Is(err, model.ErrShareExport))
}

func TestFitText(t *testing.T) {
	c, err := NewComposer(DefaultWidth, DefaultHeight, "sofort")
	require.NoError(t, err)
	face, err := newFace(c.captionFont, captionSize)
	require.NoError(t, err)
	defer face.Close()

	assert.Equal(t, "short", fitText(face, "short", 1000))
	long := fitText(face, "a caption that is much too long to fit on a single narrow print", 300)
	assert.Contains(t, long, "…")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "polaroid-42.png", FileName("polaroid", "42"))
}

func mustCompose(t *testing.T, c *Composer, a *model.Artifact, caption string) []byte {
	t.Helper()
	data, err := c.Compose(a, caption)
	require.NoError(t, err)
	return data
}

func hasInk(img image.Image, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !isWhite(img.At(x, y)) {
				return true
			}
		}
	}
	return false
}
