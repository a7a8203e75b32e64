package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF style affine transform [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m followed by o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4], m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// Apply is Transform on bare coordinates.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det, -m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// ScaleFactor is the geometric mean of the axis scales, used to map line
// widths and font sizes through m.
func (m Matrix) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }
func Rotate(angle float64) Matrix {
	c, s := math.Cos(angle), math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// Degrees converts an angle in degrees to radians.
func Degrees(deg float64) float64 { return deg * math.Pi / 180 }

// DisplayToUser returns the transform from displayed page space to the
// unrotated user space of a w x h page with the given /Rotate, and the
// displayed size.
func DisplayToUser(w, h float64, rotate int) (m Matrix, dw, dh float64) {
	r := rotate % 360
	if r < 0 {
		r += 360
	}
	switch r - r%90 {
	case 90:
		return Matrix{0, 1, -1, 0, w, 0}, h, w
	case 180:
		return Matrix{-1, 0, 0, -1, w, h}, w, h
	case 270:
		return Matrix{0, -1, 1, 0, 0, h}, h, w
	default:
		return Identity(), w, h
	}
}

// Rect is an axis aligned rectangle.
type Rect struct{ X, Y, Width, Height float64 }

func (r Rect) Corners() [4]Point {
	return [4]Point{{r.X, r.Y}, {r.X + r.Width, r.Y}, {r.X + r.Width, r.Y + r.Height}, {r.X, r.Y + r.Height}}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	const eps = 1e-9
	return p.X >= r.X-eps && p.X <= r.X+r.Width+eps && p.Y >= r.Y-eps && p.Y <= r.Y+r.Height+eps
}

// Bounds returns the axis aligned bounding box of r mapped by m.
func (m Matrix) Bounds(r Rect) Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range r.Corners() {
		p := m.Transform(c)
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
