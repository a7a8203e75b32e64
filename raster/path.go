package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

type segKind uint8

const (
	segMove segKind = iota
	segLine
	segQuad
	segCube
	segClose
)

type segment struct {
	kind segKind
	pts  [3][2]float64
}

// Path is a vector outline in surface pixel coordinates (y down).
type Path struct {
	segs       []segment
	minX, minY float64
	maxX, maxY float64
	started    bool
	curX, curY float64
	startX     float64
	startY     float64
}

// NewPath returns an empty path.
func NewPath() *Path { return &Path{} }

func (p *Path) grow(x, y float64) {
	if !p.started {
		p.minX, p.minY, p.maxX, p.maxY = x, y, x, y
		p.started = true
		return
	}
	p.minX = math.Min(p.minX, x)
	p.minY = math.Min(p.minY, y)
	p.maxX = math.Max(p.maxX, x)
	p.maxY = math.Max(p.maxY, y)
}

func (p *Path) MoveTo(x, y float64) {
	p.segs = append(p.segs, segment{kind: segMove, pts: [3][2]float64{{x, y}}})
	p.grow(x, y)
	p.curX, p.curY, p.startX, p.startY = x, y, x, y
}

func (p *Path) ensureStart() {
	if len(p.segs) == 0 {
		p.MoveTo(p.curX, p.curY)
	}
}

func (p *Path) LineTo(x, y float64) {
	p.ensureStart()
	p.segs = append(p.segs, segment{kind: segLine, pts: [3][2]float64{{x, y}}})
	p.grow(x, y)
	p.curX, p.curY = x, y
}

func (p *Path) QuadTo(x1, y1, x, y float64) {
	p.ensureStart()
	p.segs = append(p.segs, segment{kind: segQuad, pts: [3][2]float64{{x1, y1}, {x, y}}})
	p.grow(x1, y1)
	p.grow(x, y)
	p.curX, p.curY = x, y
}

func (p *Path) CubeTo(x1, y1, x2, y2, x, y float64) {
	p.ensureStart()
	p.segs = append(p.segs, segment{kind: segCube, pts: [3][2]float64{{x1, y1}, {x2, y2}, {x, y}}})
	p.grow(x1, y1)
	p.grow(x2, y2)
	p.grow(x, y)
	p.curX, p.curY = x, y
}

func (p *Path) Close() {
	if len(p.segs) == 0 {
		return
	}
	p.segs = append(p.segs, segment{kind: segClose})
	p.curX, p.curY = p.startX, p.startY
}

// Rect appends a closed axis-aligned rectangle.
func (p *Path) Rect(x, y, w, h float64) {
	p.MoveTo(x, y)
	p.LineTo(x+w, y)
	p.LineTo(x+w, y+h)
	p.LineTo(x, y+h)
	p.Close()
}

// Empty reports whether the path has no drawing segments.
func (p *Path) Empty() bool { return len(p.segs) == 0 }

// Bounds returns the integer pixel box covering the control points.
func (p *Path) Bounds() image.Rectangle {
	if p.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(p.minX)), int(math.Floor(p.minY)),
		int(math.Ceil(p.maxX)), int(math.Ceil(p.maxY)),
	)
}

// Coverage rasterizes the path into an alpha mask covering the surface
// bounds. Holes follow the accumulation rule of x/image/vector: contours of
// opposite direction cancel.
func (p *Path) Coverage(bounds image.Rectangle) *image.Alpha {
	mask := image.NewAlpha(bounds)
	r := p.Bounds().Inset(-1).Intersect(bounds)
	if r.Empty() {
		return mask
	}
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.DrawOp = draw.Src
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	pt := func(v [2]float64) (float32, float32) { return float32(v[0] - ox), float32(v[1] - oy) }
	open := false
	for _, s := range p.segs {
		switch s.kind {
		case segMove:
			if open {
				z.ClosePath()
			}
			x, y := pt(s.pts[0])
			z.MoveTo(x, y)
			open = true
		case segLine:
			x, y := pt(s.pts[0])
			z.LineTo(x, y)
		case segQuad:
			x1, y1 := pt(s.pts[0])
			x, y := pt(s.pts[1])
			z.QuadTo(x1, y1, x, y)
		case segCube:
			x1, y1 := pt(s.pts[0])
			x2, y2 := pt(s.pts[1])
			x, y := pt(s.pts[2])
			z.CubeTo(x1, y1, x2, y2, x, y)
		case segClose:
			z.ClosePath()
			open = false
		}
	}
	if open {
		z.ClosePath()
	}
	// The rasterizer's alpha fast path assumes a packed destination, so
	// draw into a tight buffer and copy rows into place.
	tmp := image.NewAlpha(image.Rect(0, 0, r.Dx(), r.Dy()))
	z.Draw(tmp, tmp.Bounds(), image.Opaque, image.Point{})
	for y := 0; y < r.Dy(); y++ {
		copy(mask.Pix[mask.PixOffset(r.Min.X, r.Min.Y+y):], tmp.Pix[y*tmp.Stride:y*tmp.Stride+r.Dx()])
	}
	return mask
}

// FillPath composites c through the path coverage, optionally limited by
// clip and scaled by opacity.
func (s *Surface) FillPath(p *Path, c color.Color, opacity float64, clip *image.Alpha) {
	if p == nil || p.Empty() || opacity <= 0 {
		return
	}
	cov := p.Coverage(s.img.Rect)
	s.paintCoverage(cov, c, opacity, clip)
}

func (s *Surface) paintCoverage(cov *image.Alpha, c color.Color, opacity float64, clip *image.Alpha) {
	a := uint32(math.Round(clamp01(opacity) * 255))
	if clip != nil || a < 255 {
		for i := range cov.Pix {
			v := uint32(cov.Pix[i]) * a / 255
			if clip != nil {
				v = v * uint32(clip.Pix[i]) / 255
			}
			cov.Pix[i] = uint8(v)
		}
	}
	draw.DrawMask(s.img, s.img.Rect, image.NewUniform(c), image.Point{}, cov, s.img.Rect.Min, draw.Over)
}

// StrokePath strokes p with the given width in pixels. Segments become
// quads and joins get round caps, which approximates round joins and caps.
func (s *Surface) StrokePath(p *Path, width float64, c color.Color, opacity float64, clip *image.Alpha) {
	if p == nil || p.Empty() || opacity <= 0 {
		return
	}
	if width < 1 {
		width = 1
	}
	s.FillPath(p.Outline(width), c, opacity, clip)
}

// Outline returns a fillable path tracing a stroke of width w around p.
func (p *Path) Outline(w float64) *Path {
	out := NewPath()
	hw := w / 2
	for _, poly := range p.flatten() {
		for i := 1; i < len(poly); i++ {
			addQuad(out, poly[i-1], poly[i], hw)
		}
		for _, pt := range poly {
			addDisc(out, pt, hw)
		}
	}
	return out
}

// flatten converts the path to polylines, one per subpath.
func (p *Path) flatten() [][][2]float64 {
	var polys [][][2]float64
	var cur [][2]float64
	var start, last [2]float64
	flush := func() {
		if len(cur) > 0 {
			polys = append(polys, cur)
		}
		cur = nil
	}
	for _, s := range p.segs {
		switch s.kind {
		case segMove:
			flush()
			start, last = s.pts[0], s.pts[0]
			cur = append(cur, last)
		case segLine:
			last = s.pts[0]
			cur = append(cur, last)
		case segQuad:
			n := curveSteps(last, s.pts[0], s.pts[1], s.pts[1])
			p0 := last
			for i := 1; i <= n; i++ {
				t := float64(i) / float64(n)
				mt := 1 - t
				last = [2]float64{
					mt*mt*p0[0] + 2*mt*t*s.pts[0][0] + t*t*s.pts[1][0],
					mt*mt*p0[1] + 2*mt*t*s.pts[0][1] + t*t*s.pts[1][1],
				}
				cur = append(cur, last)
			}
		case segCube:
			n := curveSteps(last, s.pts[0], s.pts[1], s.pts[2])
			p0 := last
			for i := 1; i <= n; i++ {
				t := float64(i) / float64(n)
				mt := 1 - t
				a, b, c, d := mt*mt*mt, 3*mt*mt*t, 3*mt*t*t, t*t*t
				last = [2]float64{
					a*p0[0] + b*s.pts[0][0] + c*s.pts[1][0] + d*s.pts[2][0],
					a*p0[1] + b*s.pts[0][1] + c*s.pts[1][1] + d*s.pts[2][1],
				}
				cur = append(cur, last)
			}
		case segClose:
			cur = append(cur, start)
			last = start
			flush()
			cur = append(cur, start)
		}
	}
	flush()
	return polys
}

func curveSteps(p0, p1, p2, p3 [2]float64) int {
	l := dist(p0, p1) + dist(p1, p2) + dist(p2, p3)
	n := int(math.Ceil(l / 4))
	if n < 4 {
		n = 4
	}
	if n > 64 {
		n = 64
	}
	return n
}

func dist(a, b [2]float64) float64 { return math.Hypot(b[0]-a[0], b[1]-a[1]) }

// addQuad appends the rectangle around segment a-b, always wound the same
// way so overlapping pieces accumulate instead of cancelling.
func addQuad(out *Path, a, b [2]float64, hw float64) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw
	pts := [4][2]float64{
		{a[0] + nx, a[1] + ny},
		{b[0] + nx, b[1] + ny},
		{b[0] - nx, b[1] - ny},
		{a[0] - nx, a[1] - ny},
	}
	addPolygon(out, pts[:])
}

func addDisc(out *Path, c [2]float64, r float64) {
	const n = 12
	pts := make([][2]float64, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / n
		pts[i] = [2]float64{c[0] + r*math.Cos(a), c[1] + r*math.Sin(a)}
	}
	addPolygon(out, pts)
}

func addPolygon(out *Path, pts [][2]float64) {
	area := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	if area < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	out.MoveTo(pts[0][0], pts[0][1])
	for _, pt := range pts[1:] {
		out.LineTo(pt[0], pt[1])
	}
	out.Close()
}
