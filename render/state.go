package render

import (
	"image"
	"image/color"

	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/coords"
)

// gstate is the part of the PDF graphics state the renderer tracks.
type gstate struct {
	ctm         coords.Matrix
	fill        paint
	stroke      paint
	fillSpace   *colorSpace
	strokeSpace *colorSpace
	fillAlpha   float64
	strokeAlpha float64
	lineWidth   float64
	// clip is a coverage mask over the whole surface; nil means unclipped.
	// Masks are never modified once installed, so states share them.
	clip *image.Alpha

	font        *pdfFont
	fontSize    float64
	charSpacing float64
	wordSpacing float64
	hscale      float64
	leading     float64
	rise        float64
	renderMode  contentstream.TextRenderMode
}

// paint is a resolved colour. Pattern paints have no colour the renderer
// can reproduce and are skipped.
type paint struct {
	c       color.NRGBA
	pattern bool
}

func newState(ctm coords.Matrix) gstate {
	black := paint{c: color.NRGBA{A: 255}}
	return gstate{
		ctm:         ctm,
		fill:        black,
		stroke:      black,
		fillSpace:   deviceGray,
		strokeSpace: deviceGray,
		fillAlpha:   1,
		strokeAlpha: 1,
		lineWidth:   1,
		hscale:      1,
	}
}

// csFamily is how components of a colour space turn into RGB.
type csFamily int

const (
	csGray csFamily = iota
	csRGB
	csCMYK
	csLab
	csIndexed
	csTint // Separation and DeviceN: components are ink amounts
	csPattern
)

type colorSpace struct {
	family csFamily
	n      int
	base   *colorSpace
	hival  int
	lookup []byte
}

var (
	deviceGray = &colorSpace{family: csGray, n: 1}
	deviceRGB  = &colorSpace{family: csRGB, n: 3}
	deviceCMYK = &colorSpace{family: csCMYK, n: 4}
	patternCS  = &colorSpace{family: csPattern, n: 0}
)

// initial is the colour a space starts with after cs/CS.
func (cs *colorSpace) initial() paint {
	switch cs.family {
	case csPattern:
		return paint{pattern: true}
	case csCMYK:
		return cs.paint([]float64{0, 0, 0, 1})
	case csTint:
		comps := make([]float64, cs.n)
		for i := range comps {
			comps[i] = 1
		}
		return cs.paint(comps)
	case csIndexed:
		return cs.paint([]float64{0})
	}
	return paint{c: color.NRGBA{A: 255}}
}

// paint converts components in cs to a colour. Missing components count
// as zero.
func (cs *colorSpace) paint(comps []float64) paint {
	at := func(i int) float64 {
		if i < len(comps) {
			return clamp01(comps[i])
		}
		return 0
	}
	switch cs.family {
	case csGray:
		g := to8(at(0))
		return paint{c: color.NRGBA{g, g, g, 255}}
	case csRGB:
		return paint{c: color.NRGBA{to8(at(0)), to8(at(1)), to8(at(2)), 255}}
	case csCMYK:
		r, g, b := color.CMYKToRGB(to8(at(0)), to8(at(1)), to8(at(2)), to8(at(3)))
		return paint{c: color.NRGBA{r, g, b, 255}}
	case csLab:
		l := 0.0
		if len(comps) > 0 {
			l = comps[0] / 100
		}
		g := to8(clamp01(l))
		return paint{c: color.NRGBA{g, g, g, 255}}
	case csTint:
		ink := 0.0
		for i := 0; i < len(comps) && i < cs.n; i++ {
			ink += clamp01(comps[i])
		}
		if cs.n > 0 {
			ink /= float64(cs.n)
		}
		g := to8(1 - ink)
		return paint{c: color.NRGBA{g, g, g, 255}}
	case csIndexed:
		idx := 0
		if len(comps) > 0 {
			idx = int(comps[0])
		}
		if idx < 0 {
			idx = 0
		}
		if idx > cs.hival {
			idx = cs.hival
		}
		base := cs.base
		if base == nil {
			base = deviceRGB
		}
		n := base.n
		vals := make([]float64, n)
		for i := 0; i < n; i++ {
			if p := idx*n + i; p < len(cs.lookup) {
				vals[i] = float64(cs.lookup[p]) / 255
			}
		}
		if base.family == csLab {
			vals[0] *= 100
		}
		return base.paint(vals)
	case csPattern:
		return paint{pattern: true}
	}
	return paint{c: color.NRGBA{A: 255}}
}

func to8(v float64) uint8 { return uint8(v*255 + 0.5) }

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// intersectClip combines two surface sized masks. Either may be nil.
func intersectClip(a, b *image.Alpha) *image.Alpha {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := image.NewAlpha(a.Rect)
	for i := range out.Pix {
		out.Pix[i] = uint8(uint32(a.Pix[i]) * uint32(b.Pix[i]) / 255)
	}
	return out
}
