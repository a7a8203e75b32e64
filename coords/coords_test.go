package coords

import (
	"math"
	"testing"

	"github.com/wudi/docxform/docerr"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestMatrixInverse(t *testing.T) {
	m := Scale(2, 3).Multiply(Rotate(Degrees(30))).Multiply(Translate(10, -4))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatal(err)
	}
	p := Point{7, 11}
	back := inv.Transform(m.Transform(p))
	if !near(back.X, p.X, 1e-9) || !near(back.Y, p.Y, 1e-9) {
		t.Fatalf("round trip = %v", back)
	}
	if _, err := Scale(0, 1).Inverse(); err == nil {
		t.Fatalf("expected singular matrix error")
	}
	if !near(Scale(2, 8).ScaleFactor(), 4, 1e-12) {
		t.Fatalf("scale factor = %v", Scale(2, 8).ScaleFactor())
	}
}

func TestMatrixBounds(t *testing.T) {
	b := Rotate(Degrees(90)).Bounds(Rect{0, 0, 10, 20})
	if !near(b.X, -20, 1e-9) || !near(b.Width, 20, 1e-9) || !near(b.Height, 10, 1e-9) {
		t.Fatalf("rotated bounds = %+v", b)
	}
}

func TestRedactionMapping(t *testing.T) {
	l := StackPages([]Size{{200, 300}}, 1.5, 16, 0)
	pl, err := l.ToDocument(75, 75, 100, 60)
	if err != nil {
		t.Fatal(err)
	}
	if pl.Page != 0 || !near(pl.X, 50, 0.05) || !near(pl.Y, 210, 0.05) ||
		!near(pl.Width, 66.7, 0.05) || !near(pl.Height, 40, 0.05) {
		t.Fatalf("placement = %+v", pl)
	}
}

func TestStackedPagesUseTheirOwnRect(t *testing.T) {
	l := StackPages([]Size{{200, 300}, {400, 100}}, 2, 10, 30)
	// Second page starts at 600 + 10.
	if got, ok := l.PageAt(609); ok {
		t.Fatalf("gap should not map to a page, got %d", got)
	}
	pl, err := l.ToDocument(30+40, 610+20, 20, 10)
	if err != nil {
		t.Fatal(err)
	}
	if pl.Page != 1 || !near(pl.X, 20, 1e-9) || !near(pl.Y, 100-10-5, 1e-9) {
		t.Fatalf("placement = %+v", pl)
	}
	sx, sy, w, h, err := l.ToSurface(pl)
	if err != nil || !near(sx, 70, 1e-9) || !near(sy, 630, 1e-9) || !near(w, 20, 1e-9) || !near(h, 10, 1e-9) {
		t.Fatalf("inverse = %v %v %v %v %v", sx, sy, w, h, err)
	}
	if !near(l.Height(), 610+200, 1e-9) {
		t.Fatalf("height = %v", l.Height())
	}
}

func TestMappingFollowsCurrentGeometry(t *testing.T) {
	before := StackPages([]Size{{200, 300}}, 1, 0, 0)
	after := StackPages([]Size{{200, 300}}, 2, 0, 0)
	a, _ := before.ToDocument(100, 100, 10, 10)
	b, _ := after.ToDocument(100, 100, 10, 10)
	if a.X == b.X {
		t.Fatalf("mapping must depend on the rendered scale")
	}
}

func TestOffPage(t *testing.T) {
	l := StackPages([]Size{{200, 300}}, 1, 0, 0)
	if _, err := l.ToDocument(10, 400, 1, 1); docerr.KindOf(err) != docerr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := (Layout{Pages: []PageRect{{}}}).ToPage(0, 0, 0, 1, 1); err == nil {
		t.Fatalf("expected error for zero-size page")
	}
}

func TestDisplayToUser(t *testing.T) {
	tests := []struct {
		rotate int
		dx, dy float64
		ux, uy float64
		dw, dh float64
	}{
		{0, 10, 20, 10, 20, 100, 200},
		{90, 10, 20, 80, 10, 200, 100},
		{180, 10, 20, 90, 180, 100, 200},
		{270, 10, 20, 20, 190, 200, 100},
		{-90, 10, 20, 20, 190, 200, 100},
	}
	for _, tc := range tests {
		m, dw, dh := DisplayToUser(100, 200, tc.rotate)
		ux, uy := m.Apply(tc.dx, tc.dy)
		if math.Abs(ux-tc.ux) > 1e-9 || math.Abs(uy-tc.uy) > 1e-9 {
			t.Errorf("rotate %d: (%v,%v) -> (%v,%v), want (%v,%v)", tc.rotate, tc.dx, tc.dy, ux, uy, tc.ux, tc.uy)
		}
		if dw != tc.dw || dh != tc.dh {
			t.Errorf("rotate %d: displayed size %vx%v, want %vx%v", tc.rotate, dw, dh, tc.dw, tc.dh)
		}
	}
}

func TestTileGridCoversRotatedPage(t *testing.T) {
	const w, h = 595.0, 842.0
	for _, angle := range []float64{-180, -45, 0, 45, 180} {
		tiling := TileGrid(w, h, 160, 60, angle)
		if len(tiling.Centers) == 0 {
			t.Fatalf("angle %v: no tiles", angle)
		}
		for y := 0.0; y <= h; y += h / 40 {
			for x := 0.0; x <= w; x += w / 40 {
				if !tiling.Covers(Point{X: x, Y: y}) {
					t.Fatalf("angle %v: point (%.1f, %.1f) not covered", angle, x, y)
				}
			}
		}
		for _, corner := range (Rect{Width: w, Height: h}).Corners() {
			if !tiling.Covers(corner) {
				t.Fatalf("angle %v: corner %v not covered", angle, corner)
			}
		}
	}
}

func TestTileMatrixCentresTile(t *testing.T) {
	tiling := TileGrid(100, 100, 40, 20, 90)
	for i, c := range tiling.Centers {
		got := tiling.TileMatrix(i).Transform(Point{X: 0.5, Y: 0.5})
		if math.Abs(got.X-c.X) > 1e-9 || math.Abs(got.Y-c.Y) > 1e-9 {
			t.Fatalf("tile %d centre %v, want %v", i, got, c)
		}
	}
}
