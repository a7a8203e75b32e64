package coords

import "math"

// Tiling places copies of a tile over a page. The tiles sit on a grid in a
// frame rotated by Angle degrees (counter-clockwise, y up) around the page
// centre; each tile is drawn rotated by the same angle around its centre.
type Tiling struct {
	Angle   float64
	TileW   float64
	TileH   float64
	Centers []Point
}

// TileGrid computes a tiling of a w x h page with tileW x tileH tiles whose
// union covers the whole page for any angle.
func TileGrid(w, h, tileW, tileH, angle float64) Tiling {
	t := Tiling{Angle: angle, TileW: tileW, TileH: tileH}
	if w <= 0 || h <= 0 || tileW <= 0 || tileH <= 0 {
		return t
	}
	toPage := t.frame(w, h)
	toFrame, err := toPage.Inverse()
	if err != nil {
		return t
	}
	// Page bounds seen from the rotated frame.
	b := toFrame.Bounds(Rect{Width: w, Height: h})
	i0, i1 := int(math.Floor(b.X/tileW)), int(math.Ceil((b.X+b.Width)/tileW))
	j0, j1 := int(math.Floor(b.Y/tileH)), int(math.Ceil((b.Y+b.Height)/tileH))
	for j := j0; j < j1; j++ {
		for i := i0; i < i1; i++ {
			c := Point{X: (float64(i) + 0.5) * tileW, Y: (float64(j) + 0.5) * tileH}
			t.Centers = append(t.Centers, toPage.Transform(c))
		}
	}
	return t
}

// frame maps rotated frame coordinates to page coordinates.
func (t Tiling) frame(w, h float64) Matrix {
	return Rotate(Degrees(t.Angle)).Multiply(Translate(w/2, h/2))
}

// Covers reports whether page point p lies inside at least one tile.
func (t Tiling) Covers(p Point) bool {
	toLocal := Rotate(-Degrees(t.Angle))
	for _, c := range t.Centers {
		q := toLocal.Transform(Point{X: p.X - c.X, Y: p.Y - c.Y})
		const eps = 1e-6
		if math.Abs(q.X) <= t.TileW/2+eps && math.Abs(q.Y) <= t.TileH/2+eps {
			return true
		}
	}
	return false
}

// TileMatrix maps the unit square onto tile i: scaled to the tile size,
// centred and rotated. It is the image matrix for drawing the tile.
func (t Tiling) TileMatrix(i int) Matrix {
	c := t.Centers[i]
	return Scale(t.TileW, t.TileH).
		Multiply(Translate(-t.TileW/2, -t.TileH/2)).
		Multiply(Rotate(Degrees(t.Angle))).
		Multiply(Translate(c.X, c.Y))
}
