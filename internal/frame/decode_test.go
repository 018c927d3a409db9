package frame

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"net/url"
	"testing"

	"github.com/yangwenmai/sofort/internal/model"
)

// dataURI encodes a PNG the way a browser file reader does.
func dataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h RGBA
// image with no pixel data. It is enough for image.DecodeConfig.
func pngHeader(w, h int) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(h))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), green)
	b, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	return b
}

func TestDecodeStaticImage(t *testing.T) {
	png := samplePNG(t, 30, 20)

	tests := []struct {
		name  string
		input []byte
	}{
		{"raw bytes", png},
		{"data URI", []byte(dataURI(png))},
		{"data URI with whitespace", []byte("  " + dataURI(png) + "\n")},
		{"percent-encoded data URI", []byte("data:image/png," + url.PathEscape(string(png)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeStaticImage(tt.input)
			if err != nil {
				t.Fatalf("DecodeStaticImage: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
				t.Errorf("bounds = %v, want 30x20", b)
			}
		})
	}
}

func TestDecodeStaticImage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated png", samplePNG(t, 10, 10)[:20]},
		{"malformed data URI", []byte("data:image/png;base64")},
		{"bad base64", []byte("data:image/png;base64,@@@")},
		{"bad percent escape", []byte("data:image/png,%zz")},
		{"too many pixels", pngHeader(12000, 12000)},
		{"too many pixels in data URI", []byte(dataURI(pngHeader(8000, 7000)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStaticImage(tt.input)
			if !errors.Is(err, model.ErrDecode) {
				t.Errorf("err = %v, want ErrDecode", err)
			}
		})
	}
}

func TestDecodeStaticImage_PixelLimit(t *testing.T) {
	// 5000 x 10000 is exactly MaxPixels; the header alone decides.
	err := checkPixels(pngHeader(5000, 10000))
	if err != nil {
		t.Errorf("checkPixels at the limit: %v", err)
	}
	err = checkPixels(pngHeader(5001, 10000))
	if !errors.Is(err, model.ErrDecode) {
		t.Errorf("checkPixels over the limit: err = %v, want ErrDecode", err)
	}
}
