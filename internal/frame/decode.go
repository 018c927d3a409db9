package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"net/url"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/yangwenmai/sofort/internal/model"
)

// MaxPixels bounds the decoded size of any still (50 megapixels). Compressed
// formats can expand far beyond their byte size, so dimensions are checked
// from the header before decoding.
const MaxPixels = 50_000_000

// DecodeStaticImage decodes an imported image. data may be the raw file or a
// "data:" URI as produced by a browser file reader. EXIF orientation is
// applied. Any failure wraps model.ErrDecode.
func DecodeStaticImage(data []byte) (image.Image, error) {
	raw, err := unwrapDataURI(data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", model.ErrDecode)
	}
	if err := checkPixels(raw); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	return img, nil
}

// checkPixels reads the image header and rejects images above MaxPixels.
func checkPixels(raw []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty image %dx%d", model.ErrDecode, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", model.ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}
	return nil
}

func unwrapDataURI(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("data:")) {
		return data, nil
	}
	header, payload, ok := strings.Cut(string(trimmed), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", model.ErrDecode)
	}
	if !strings.HasSuffix(header, ";base64") {
		raw, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: data URI payload: %v", model.ErrDecode, err)
		}
		return []byte(raw), nil
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: data URI payload: %v", model.ErrDecode, err)
	}
	return raw, nil
}
