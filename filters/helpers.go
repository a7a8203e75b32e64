package filters

import (
	"math"

	"github.com/wudi/docxform/raster"
)

// mapPixels applies fn to the straight (non-premultiplied) color of every
// visible pixel of a copy of src. fn results are clamped and rounded.
func mapPixels(src *raster.Surface, fn func(r, g, b float64) (float64, float64, float64)) *raster.Surface {
	out := src.Clone()
	pix, _ := out.Pix()
	for i := 0; i+3 < len(pix); i += 4 {
		a := pix[i+3]
		if a == 0 {
			continue
		}
		r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])
		if a < 255 {
			k := 255 / float64(a)
			r, g, b = r*k, g*k, b*k
		}
		r, g, b = fn(r, g, b)
		r, g, b = clamp(r), clamp(g), clamp(b)
		if a < 255 {
			k := float64(a) / 255
			r, g, b = r*k, g*k, b*k
		}
		pix[i] = uint8(math.Round(r))
		pix[i+1] = uint8(math.Round(g))
		pix[i+2] = uint8(math.Round(b))
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return v
}
