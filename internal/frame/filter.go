package frame

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/yangwenmai/sofort/internal/model"
)

// Filter is a cosmetic adjustment over a pixel buffer. Filters are pure:
// they never modify their input.
type Filter func(img image.Image) *image.NRGBA

var filters = map[string]Filter{
	"analog": Analog,
	"noir": func(img image.Image) *image.NRGBA {
		return imaging.AdjustContrast(imaging.Grayscale(img), 25)
	},
	"warm": func(img image.Image) *image.NRGBA {
		return tint(img, 1.08, 1.0, 0.92)
	},
	"cool": func(img image.Image) *image.NRGBA {
		return tint(img, 0.92, 1.0, 1.08)
	},
	"fade": func(img image.Image) *image.NRGBA {
		out := imaging.AdjustSaturation(img, -30)
		out = imaging.AdjustContrast(out, -20)
		return imaging.AdjustBrightness(out, 8)
	},
}

// LookupFilter returns the filter registered under name. The empty name and
// model.FilterNone return a nil filter and no error.
func LookupFilter(name string) (Filter, error) {
	if name == "" || name == model.FilterNone {
		return nil, nil
	}
	f, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", name)
	}
	return f, nil
}

// FilterNames lists the selectable filter names, "none" first.
func FilterNames() []string {
	names := make([]string, 0, len(filters))
	for n := range filters {
		names = append(names, n)
	}
	sort.Strings(names)
	return append([]string{model.FilterNone}, names...)
}

// Analog approximates instant film: slightly desaturated, a touch more
// contrast, and a faint orange cast.
func Analog(img image.Image) *image.NRGBA {
	out := imaging.AdjustSaturation(img, -15)
	out = imaging.AdjustContrast(out, 10)
	return multiply(out, color.NRGBA{R: 124, G: 45, B: 18}, 0.05)
}

// PrintFinish is the filter stack applied uniformly to exported prints.
func PrintFinish(img image.Image) *image.NRGBA {
	return Analog(img)
}

func tint(img image.Image, r, g, b float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp(float64(c.R) * r),
			G: clamp(float64(c.G) * g),
			B: clamp(float64(c.B) * b),
			A: c.A,
		}
	})
}

// multiply blends over with img in multiply mode at the given opacity.
func multiply(img image.Image, over color.NRGBA, opacity float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		mix := func(base, top uint8) uint8 {
			m := float64(base) * float64(top) / 255
			return clamp(float64(base)*(1-opacity) + m*opacity)
		}
		return color.NRGBA{R: mix(c.R, over.R), G: mix(c.G, over.G), B: mix(c.B, over.B), A: c.A}
	})
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
