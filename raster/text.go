package raster

import (
	"image"
	"image/color"

	gofont "github.com/go-text/typesetting/font"

	"github.com/wudi/docxform/fonts"
)

// TextStyle describes how DrawText paints a run.
type TextStyle struct {
	Face    *fonts.Face
	Size    float64 // pixels per em
	Color   color.Color
	Opacity float64
}

func (st TextStyle) normalized() TextStyle {
	if st.Face == nil {
		st.Face = fonts.Regular()
	}
	if st.Color == nil {
		st.Color = color.Black
	}
	if st.Opacity == 0 {
		st.Opacity = 1
	}
	return st
}

// TextPath returns the outline of text shaped with st, with the baseline
// origin at (x, y) in surface pixels.
func TextPath(text string, x, y float64, st TextStyle) *Path {
	st = st.normalized()
	p := NewPath()
	run := st.Face.Shape(text, st.Size)
	pen := x
	for _, g := range run.Glyphs {
		gx, gy := pen+g.XOffset, y-g.YOffset
		st.Face.AppendOutline(pathSink{p}, gofont.GID(g.ID), func(ex, ey float64) (float64, float64) {
			return gx + ex*st.Size, gy - ey*st.Size
		})
		pen += g.XAdvance
	}
	return p
}

// DrawText paints text with its baseline origin at (x, y) and returns the
// advance in pixels.
func (s *Surface) DrawText(text string, x, y float64, st TextStyle) float64 {
	st = st.normalized()
	p := TextPath(text, x, y, st)
	s.FillPath(p, st.Color, st.Opacity, nil)
	return st.Face.Measure(text, st.Size)
}

// TextBox returns the pixel box a run occupies: advance width and line
// height (ascent minus descent).
func TextBox(text string, st TextStyle) (w, h, ascent float64) {
	st = st.normalized()
	run := st.Face.Shape(text, st.Size)
	asc, desc := st.Face.Extents()
	return run.Advance, (asc - desc) * st.Size, asc * st.Size
}

// TextBounds is the integer bounding rectangle of DrawText at (x, y).
func TextBounds(text string, x, y float64, st TextStyle) image.Rectangle {
	w, h, asc := TextBox(text, st)
	return image.Rect(int(x), int(y-asc), int(x+w+0.999), int(y-asc+h+0.999))
}

type pathSink struct{ p *Path }

func (s pathSink) MoveTo(x, y float32) { s.p.MoveTo(float64(x), float64(y)) }
func (s pathSink) LineTo(x, y float32) { s.p.LineTo(float64(x), float64(y)) }
func (s pathSink) QuadTo(x1, y1, x, y float32) {
	s.p.QuadTo(float64(x1), float64(y1), float64(x), float64(y))
}
func (s pathSink) CubeTo(x1, y1, x2, y2, x, y float32) {
	s.p.CubeTo(float64(x1), float64(y1), float64(x2), float64(y2), float64(x), float64(y))
}
func (s pathSink) ClosePath() { s.p.Close() }

// Sink adapts p to fonts.PathSink.
func (p *Path) Sink() fonts.PathSink { return pathSink{p} }
