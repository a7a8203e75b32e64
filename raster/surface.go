// Package raster implements the in-memory drawing surface every other
// component renders through: pixel access, image compositing, vector fills,
// glyph runs and encoding.
package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Surface is an 8-bit RGBA pixel buffer with non-premultiplied alpha
// semantics at the API level. Pixels are stored premultiplied, as in
// image.RGBA.
type Surface struct {
	img *image.RGBA
}

// New returns a transparent surface of w x h pixels.
func New(w, h int) (*Surface, error) {
	if err := CheckBounds(w, h); err != nil {
		return nil, err
	}
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, w, h))}, nil
}

// NewFilled returns a surface filled with c.
func NewFilled(w, h int, c color.Color) (*Surface, error) {
	s, err := New(w, h)
	if err != nil {
		return nil, err
	}
	s.Fill(c)
	return s, nil
}

// FromImage copies img into a new surface whose origin is (0, 0).
func FromImage(img image.Image) (*Surface, error) {
	b := img.Bounds()
	s, err := New(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	draw.Draw(s.img, s.img.Bounds(), img, b.Min, draw.Src)
	return s, nil
}

// Width returns the width in pixels.
func (s *Surface) Width() int { return s.img.Rect.Dx() }

// Height returns the height in pixels.
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// Bounds returns the pixel rectangle, always anchored at (0, 0).
func (s *Surface) Bounds() image.Rectangle { return s.img.Rect }

// Image exposes the backing buffer. Writes to it are writes to the surface.
func (s *Surface) Image() *image.RGBA { return s.img }

// Pix returns the raw premultiplied RGBA bytes and the row stride.
func (s *Surface) Pix() ([]uint8, int) { return s.img.Pix, s.img.Stride }

// At returns the pixel at (x, y). Out of range reads are transparent.
func (s *Surface) At(x, y int) color.RGBA {
	if !image.Pt(x, y).In(s.img.Rect) {
		return color.RGBA{}
	}
	return s.img.RGBAAt(x, y)
}

// Set writes the pixel at (x, y). Out of range writes are ignored.
func (s *Surface) Set(x, y int, c color.RGBA) {
	if !image.Pt(x, y).In(s.img.Rect) {
		return
	}
	s.img.SetRGBA(x, y, c)
}

// Clone returns a deep copy.
func (s *Surface) Clone() *Surface {
	img := image.NewRGBA(s.img.Rect)
	copy(img.Pix, s.img.Pix)
	return &Surface{img: img}
}

// Equal reports whether both surfaces have the same size and pixels.
func (s *Surface) Equal(o *Surface) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.img.Rect != o.img.Rect {
		return false
	}
	for i := range s.img.Pix {
		if s.img.Pix[i] != o.img.Pix[i] {
			return false
		}
	}
	return true
}

// Fill paints the whole surface with c, replacing existing pixels.
func (s *Surface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// FillRect composites c over r.
func (s *Surface) FillRect(r image.Rectangle, c color.Color) {
	draw.Draw(s.img, r.Intersect(s.img.Rect), image.NewUniform(c), image.Point{}, draw.Over)
}

// DrawImage scales src into dst and composites it with the given opacity
// (0..1).
func (s *Surface) DrawImage(src image.Image, dst image.Rectangle, opacity float64) {
	if dst.Empty() || opacity <= 0 {
		return
	}
	opts := &xdraw.Options{}
	if opacity < 1 {
		opts.SrcMask = image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
		opts.SrcMaskP = src.Bounds().Min
	}
	xdraw.CatmullRom.Scale(s.img, dst, src, src.Bounds(), xdraw.Over, opts)
}

// DrawTransformed composites src mapped by m, an affine transform from
// source pixel space to surface pixel space. mask, when non-nil, limits
// painting (clip). Sampling is bilinear.
func (s *Surface) DrawTransformed(src image.Image, m f64.Aff3, opacity float64, mask *image.Alpha) {
	if opacity <= 0 {
		return
	}
	if mask == nil && opacity >= 1 {
		xdraw.BiLinear.Transform(s.img, m, src, src.Bounds(), xdraw.Over, nil)
		return
	}
	layer := image.NewRGBA(s.img.Rect)
	xdraw.BiLinear.Transform(layer, m, src, src.Bounds(), xdraw.Src, nil)
	s.composite(layer, mask, opacity)
}

// composite draws layer over s through mask scaled by opacity.
func (s *Surface) composite(layer *image.RGBA, mask *image.Alpha, opacity float64) {
	a := uint32(math.Round(clamp01(opacity) * 255))
	m := image.NewAlpha(s.img.Rect)
	for i := range m.Pix {
		v := uint32(255)
		if mask != nil {
			v = uint32(mask.Pix[i])
		}
		m.Pix[i] = uint8(v * a / 255)
	}
	draw.DrawMask(s.img, s.img.Rect, layer, image.Point{}, m, image.Point{}, draw.Over)
}

// Resize returns a copy scaled to w x h.
func (s *Surface) Resize(w, h int) (*Surface, error) {
	out, err := New(w, h)
	if err != nil {
		return nil, err
	}
	xdraw.CatmullRom.Scale(out.img, out.img.Rect, s.img, s.img.Rect, xdraw.Src, nil)
	return out, nil
}

// Pad returns a copy of size w x h (never smaller than s) with s at the
// top-left and bg elsewhere.
func (s *Surface) Pad(w, h int, bg color.Color) (*Surface, error) {
	if w < s.Width() {
		w = s.Width()
	}
	if h < s.Height() {
		h = s.Height()
	}
	out, err := NewFilled(w, h, bg)
	if err != nil {
		return nil, err
	}
	draw.Draw(out.img, s.img.Rect, s.img, image.Point{}, draw.Src)
	return out, nil
}

// Flatten composites s over an opaque background, dropping transparency.
func (s *Surface) Flatten(bg color.Color) *Surface {
	out := &Surface{img: image.NewRGBA(s.img.Rect)}
	draw.Draw(out.img, out.img.Rect, image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out.img, out.img.Rect, s.img, image.Point{}, draw.Over)
	return out
}

// Rotate returns a copy rotated clockwise by quarter turns (0..3).
func (s *Surface) Rotate(quarters int) *Surface {
	q := ((quarters % 4) + 4) % 4
	if q == 0 {
		return s.Clone()
	}
	w, h := s.Width(), s.Height()
	ow, oh := w, h
	if q%2 == 1 {
		ow, oh = h, w
	}
	out := &Surface{img: image.NewRGBA(image.Rect(0, 0, ow, oh))}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var nx, ny int
			switch q {
			case 1:
				nx, ny = h-1-y, x
			case 2:
				nx, ny = w-1-x, h-1-y
			case 3:
				nx, ny = y, w-1-x
			}
			out.img.SetRGBA(nx, ny, s.img.RGBAAt(x, y))
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
