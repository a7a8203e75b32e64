package coords

import (
	"math"

	"github.com/wudi/docxform/docerr"
)

// PageRect is where one page sits on the editing surface. Offsets and
// rendered sizes are surface pixels; the point sizes are the page's own
// size in document space.
type PageRect struct {
	OffsetTop      float64
	OffsetLeft     float64
	RenderedWidth  float64
	RenderedHeight float64
	WidthPoints    float64
	HeightPoints   float64
}

// Scale is rendered pixels per point.
func (p PageRect) Scale() float64 {
	if p.WidthPoints == 0 {
		return 0
	}
	return p.RenderedWidth / p.WidthPoints
}

// Layout is the surface geometry of a stack of pages at the moment it was
// measured. Build a new one whenever the surface re-renders; mappings must
// not outlive it.
type Layout struct {
	Pages []PageRect
}

// Size is a page size in points.
type Size struct{ Width, Height float64 }

// StackPages lays pages out vertically, each scaled by scale, separated by
// gap pixels and shifted right by left pixels.
func StackPages(sizes []Size, scale, gap, left float64) Layout {
	l := Layout{Pages: make([]PageRect, len(sizes))}
	top := 0.0
	for i, s := range sizes {
		r := PageRect{
			OffsetTop:      top,
			OffsetLeft:     left,
			RenderedWidth:  s.Width * scale,
			RenderedHeight: s.Height * scale,
			WidthPoints:    s.Width,
			HeightPoints:   s.Height,
		}
		l.Pages[i] = r
		top += r.RenderedHeight + gap
	}
	return l
}

// Height is the total surface height, including gaps.
func (l Layout) Height() float64 {
	if len(l.Pages) == 0 {
		return 0
	}
	last := l.Pages[len(l.Pages)-1]
	return last.OffsetTop + last.RenderedHeight
}

// PageAt returns the page whose vertical extent contains sy.
func (l Layout) PageAt(sy float64) (int, bool) {
	for i, p := range l.Pages {
		if sy >= p.OffsetTop && sy < p.OffsetTop+p.RenderedHeight {
			return i, true
		}
	}
	return -1, false
}

// Placement is an item mapped into document point space.
type Placement struct {
	Page   int
	X, Y   float64
	Width  float64
	Height float64
}

// ToDocument maps an item whose top-left corner is at surface point
// (sx, sy) and whose size is w x h pixels into the point space of the page
// under sy. The returned Y is the item's bottom edge, origin bottom-left.
func (l Layout) ToDocument(sx, sy, w, h float64) (Placement, error) {
	page, ok := l.PageAt(sy)
	if !ok {
		return Placement{}, docerr.New(docerr.Validation, "coords", "point (%.1f, %.1f) is not on a page", sx, sy)
	}
	return l.ToPage(page, sx-l.Pages[page].OffsetLeft, sy-l.Pages[page].OffsetTop, w, h)
}

// ToPage maps a page-local pixel rectangle (lx, ly from the page's top-left
// corner) into document points on page.
func (l Layout) ToPage(page int, lx, ly, w, h float64) (Placement, error) {
	if page < 0 || page >= len(l.Pages) {
		return Placement{}, docerr.New(docerr.Validation, "coords", "page %d out of range", page)
	}
	p := l.Pages[page]
	scale := p.Scale()
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return Placement{}, docerr.New(docerr.Validation, "coords", "page %d has no rendered size", page)
	}
	return Placement{
		Page:   page,
		X:      lx / scale,
		Y:      p.HeightPoints - ly/scale - h/scale,
		Width:  w / scale,
		Height: h / scale,
	}, nil
}

// ToSurface is the inverse of ToDocument: it returns the surface top-left
// point and pixel size of a placement.
func (l Layout) ToSurface(pl Placement) (sx, sy, w, h float64, err error) {
	if pl.Page < 0 || pl.Page >= len(l.Pages) {
		return 0, 0, 0, 0, docerr.New(docerr.Validation, "coords", "page %d out of range", pl.Page)
	}
	p := l.Pages[pl.Page]
	scale := p.Scale()
	w, h = pl.Width*scale, pl.Height*scale
	sx = p.OffsetLeft + pl.X*scale
	sy = p.OffsetTop + (p.HeightPoints-pl.Y)*scale - h
	return sx, sy, w, h, nil
}
