// Package diff compares rendered pages pixel by pixel.
//
// Colour differences are measured in YIQ space. Pixels that differ only
// because of anti-aliasing are detected by looking at their neighbourhood
// in both images and are drawn in a separate colour without being counted.
package diff

import (
	"context"
	"image/color"
	"math"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/render"
)

// DefaultThreshold is the matching threshold on a 0..1 scale; smaller
// values make the comparison more sensitive.
const DefaultThreshold = 0.1

// maxYIQDelta is the largest possible YIQ distance between two colours.
const maxYIQDelta = 35215

// Options configures the comparison.
type Options struct {
	Threshold float64
	// IncludeAA counts anti-aliased pixels as differences.
	IncludeAA bool
	// Alpha is the opacity of the faded grayscale background, 0..1.
	Alpha     float64
	DiffColor color.RGBA
	AAColor   color.RGBA
}

// DefaultOptions returns red differences and yellow anti-aliasing over a
// background faded to 10%.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Alpha:     0.1,
		DiffColor: color.RGBA{R: 255, A: 255},
		AAColor:   color.RGBA{R: 255, G: 255, A: 255},
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = d.Threshold
	}
	if o.Alpha <= 0 || o.Alpha > 1 {
		o.Alpha = d.Alpha
	}
	if o.DiffColor == (color.RGBA{}) {
		o.DiffColor = d.DiffColor
	}
	if o.AAColor == (color.RGBA{}) {
		o.AAColor = d.AAColor
	}
	return o
}

// PageResult is the comparison of one page. Page is 1-based.
type PageResult struct {
	Page       int
	A, B       *raster.Surface
	Diff       *raster.Surface
	DiffPixels int
	Percentage float64
}

// Pixels compares a and b after padding both to the larger size with
// white. It returns the diff image and the number of differing pixels.
func Pixels(a, b *raster.Surface, opts Options) (*raster.Surface, int, error) {
	opts = opts.normalized()
	w, h := max(a.Width(), b.Width()), max(a.Height(), b.Height())
	pa, err := a.Flatten(color.White).Pad(w, h, color.White)
	if err != nil {
		return nil, 0, err
	}
	pb, err := b.Flatten(color.White).Pad(w, h, color.White)
	if err != nil {
		return nil, 0, err
	}
	out, err := raster.New(w, h)
	if err != nil {
		return nil, 0, err
	}
	img1, _ := pa.Pix()
	img2, _ := pb.Pix()
	dst, _ := out.Pix()

	maxDelta := maxYIQDelta * opts.Threshold * opts.Threshold
	diffs := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos := (y*w + x) * 4
			delta := colorDelta(img1, img2, pos, pos, false)
			switch {
			case math.Abs(delta) > maxDelta:
				if !opts.IncludeAA && (antialiased(img1, x, y, w, h, img2) || antialiased(img2, x, y, w, h, img1)) {
					putPixel(dst, pos, opts.AAColor)
					continue
				}
				putPixel(dst, pos, opts.DiffColor)
				diffs++
			default:
				v := uint8(math.Round(blend(rgb2y(img1[pos], img1[pos+1], img1[pos+2]), opts.Alpha)))
				putPixel(dst, pos, color.RGBA{R: v, G: v, B: v, A: 255})
			}
		}
	}
	return out, diffs, nil
}

// ComparePages compares two page rasters. A nil side stands for a missing
// page and is replaced by a white page of the other side's size.
func ComparePages(page int, a, b *raster.Surface, opts Options) (PageResult, error) {
	var err error
	switch {
	case a == nil && b == nil:
		return PageResult{}, docerr.New(docerr.Validation, "diff", "page %d is missing on both sides", page)
	case a == nil:
		a, err = raster.NewFilled(b.Width(), b.Height(), color.White)
	case b == nil:
		b, err = raster.NewFilled(a.Width(), a.Height(), color.White)
	}
	if err != nil {
		return PageResult{}, err
	}
	d, n, err := Pixels(a, b, opts)
	if err != nil {
		return PageResult{}, err
	}
	return PageResult{
		Page:       page,
		A:          a,
		B:          b,
		Diff:       d,
		DiffPixels: n,
		Percentage: Percentage(n, d.Width(), d.Height()),
	}, nil
}

// Percentage is the share of differing pixels, 0..100.
func Percentage(diffs, w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	return float64(diffs) / float64(w*h) * 100
}

// Compare renders both documents at scale and compares every page up to
// the longer document's length. progress, when non-nil, is called after
// each page.
func Compare(ctx context.Context, r *render.Renderer, a, b *document.Document, scale float64, opts Options, progress func(done, total int)) ([]PageResult, error) {
	total := max(a.PageCount(), b.PageCount())
	out := make([]PageResult, 0, total)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sa, err := renderOrNil(ctx, r, a, i, scale)
		if err != nil {
			return nil, err
		}
		sb, err := renderOrNil(ctx, r, b, i, scale)
		if err != nil {
			return nil, err
		}
		res, err := ComparePages(i+1, sa, sb, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
		if progress != nil {
			progress(i+1, total)
		}
	}
	return out, nil
}

func renderOrNil(ctx context.Context, r *render.Renderer, doc *document.Document, i int, scale float64) (*raster.Surface, error) {
	if i >= doc.PageCount() {
		return nil, nil
	}
	return r.Render(ctx, doc, i, scale)
}

func putPixel(pix []uint8, pos int, c color.RGBA) {
	pix[pos], pix[pos+1], pix[pos+2], pix[pos+3] = c.R, c.G, c.B, c.A
}

// antialiased reports whether the pixel at (x1, y1) of img looks like an
// anti-aliased edge: it has both darker and brighter neighbours, and one of
// those extremes sits in a flat area in both images.
func antialiased(img []uint8, x1, y1, w, h int, img2 []uint8) bool {
	x0, y0 := max(x1-1, 0), max(y1-1, 0)
	x2, y2 := min(x1+1, w-1), min(y1+1, h-1)
	pos := (y1*w + x1) * 4
	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == y0 || y1 == y2 {
		zeroes = 1
	}
	var lo, hi float64
	var minX, minY, maxX, maxY int
	for x := x0; x <= x2; x++ {
		for y := y0; y <= y2; y++ {
			if x == x1 && y == y1 {
				continue
			}
			delta := colorDelta(img, img, pos, (y*w+x)*4, true)
			switch {
			case delta == 0:
				zeroes++
				if zeroes > 2 {
					return false
				}
			case delta < lo:
				lo, minX, minY = delta, x, y
			case delta > hi:
				hi, maxX, maxY = delta, x, y
			}
		}
	}
	if lo == 0 || hi == 0 {
		return false
	}
	return (hasManySiblings(img, minX, minY, w, h) && hasManySiblings(img2, minX, minY, w, h)) ||
		(hasManySiblings(img, maxX, maxY, w, h) && hasManySiblings(img2, maxX, maxY, w, h))
}

// hasManySiblings reports whether at least three neighbours of (x1, y1)
// have exactly its colour.
func hasManySiblings(img []uint8, x1, y1, w, h int) bool {
	x0, y0 := max(x1-1, 0), max(y1-1, 0)
	x2, y2 := min(x1+1, w-1), min(y1+1, h-1)
	pos := (y1*w + x1) * 4
	zeroes := 0
	if x1 == x0 || x1 == x2 || y1 == y0 || y1 == y2 {
		zeroes = 1
	}
	for x := x0; x <= x2; x++ {
		for y := y0; y <= y2; y++ {
			if x == x1 && y == y1 {
				continue
			}
			pos2 := (y*w + x) * 4
			if img[pos] == img[pos2] && img[pos+1] == img[pos2+1] && img[pos+2] == img[pos2+2] && img[pos+3] == img[pos2+3] {
				zeroes++
			}
			if zeroes > 2 {
				return true
			}
		}
	}
	return false
}

// colorDelta is the squared YIQ distance between pixel k of img1 and m of
// img2, signed negative when the first is brighter. With yOnly it returns
// the luma difference alone.
func colorDelta(img1, img2 []uint8, k, m int, yOnly bool) float64 {
	r1, g1, b1, a1 := img1[k], img1[k+1], img1[k+2], img1[k+3]
	r2, g2, b2, a2 := img2[m], img2[m+1], img2[m+2], img2[m+3]
	if r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2 {
		return 0
	}
	fr1, fg1, fb1 := onWhite(r1, g1, b1, a1)
	fr2, fg2, fb2 := onWhite(r2, g2, b2, a2)
	y1 := yOf(fr1, fg1, fb1)
	y2 := yOf(fr2, fg2, fb2)
	y := y1 - y2
	if yOnly {
		return y
	}
	i := iOf(fr1, fg1, fb1) - iOf(fr2, fg2, fb2)
	q := qOf(fr1, fg1, fb1) - qOf(fr2, fg2, fb2)
	delta := 0.5053*y*y + 0.299*i*i + 0.1957*q*q
	if y1 > y2 {
		return -delta
	}
	return delta
}

// onWhite composites a premultiplied pixel over white.
func onWhite(r, g, b, a uint8) (float64, float64, float64) {
	inv := 255 - float64(a)
	return float64(r) + inv, float64(g) + inv, float64(b) + inv
}

func blend(c, a float64) float64 { return 255 + (c-255)*a }

func rgb2y(r, g, b uint8) float64 { return yOf(float64(r), float64(g), float64(b)) }

func yOf(r, g, b float64) float64 { return r*0.29889531 + g*0.58662247 + b*0.11448223 }
func iOf(r, g, b float64) float64 { return r*0.59597799 - g*0.27417610 - b*0.32180189 }
func qOf(r, g, b float64) float64 { return r*0.21147017 - g*0.52261711 + b*0.31114694 }
