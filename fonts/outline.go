package fonts

import (
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"
)

// PathSink receives glyph outlines. *vector.Rasterizer satisfies it.
type PathSink interface {
	MoveTo(x, y float32)
	LineTo(x, y float32)
	QuadTo(x1, y1, x, y float32)
	CubeTo(x1, y1, x2, y2, x, y float32)
	ClosePath()
}

// Transform maps a point in em units (y up) to sink coordinates.
type Transform func(x, y float64) (float64, float64)

// AppendOutline feeds the outline of gid into sink. It reports false when the
// glyph has no vector outline (bitmap or empty glyphs).
func (f *Face) AppendOutline(sink PathSink, gid gofont.GID, tr Transform) bool {
	f.mu.Lock()
	data := f.face.GlyphData(gid)
	f.mu.Unlock()

	var outline gofont.GlyphOutline
	switch d := data.(type) {
	case gofont.GlyphOutline:
		outline = d
	case gofont.GlyphBitmap:
		if d.Outline == nil {
			return false
		}
		outline = *d.Outline
	default:
		return false
	}
	if len(outline.Segments) == 0 {
		return false
	}

	pt := func(p gofont.SegmentPoint) (float32, float32) {
		x, y := tr(float64(p.X)/f.upem, float64(p.Y)/f.upem)
		return float32(x), float32(y)
	}
	open := false
	for _, seg := range outline.Segments {
		switch seg.Op {
		case opentype.SegmentOpMoveTo:
			if open {
				sink.ClosePath()
			}
			x, y := pt(seg.Args[0])
			sink.MoveTo(x, y)
			open = true
		case opentype.SegmentOpLineTo:
			x, y := pt(seg.Args[0])
			sink.LineTo(x, y)
		case opentype.SegmentOpQuadTo:
			x1, y1 := pt(seg.Args[0])
			x, y := pt(seg.Args[1])
			sink.QuadTo(x1, y1, x, y)
		case opentype.SegmentOpCubeTo:
			x1, y1 := pt(seg.Args[0])
			x2, y2 := pt(seg.Args[1])
			x, y := pt(seg.Args[2])
			sink.CubeTo(x1, y1, x2, y2, x, y)
		}
	}
	if open {
		sink.ClosePath()
	}
	return true
}
