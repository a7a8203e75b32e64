package filters

import (
	"context"
	"image/color"
	"math"
	"testing"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/raster"
)

func surfaceOf(t *testing.T, pixels ...color.RGBA) *raster.Surface {
	t.Helper()
	s, err := raster.New(len(pixels), 1)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range pixels {
		s.Set(i, 0, p)
	}
	return s
}

func apply(t *testing.T, f Filter, s *raster.Surface) *raster.Surface {
	t.Helper()
	out, err := f.Apply(context.Background(), s)
	if err != nil {
		t.Fatalf("%s: %v", f.Name(), err)
	}
	return out
}

func TestLightenClamps(t *testing.T) {
	src := surfaceOf(t, color.RGBA{10, 100, 240, 255})
	out := apply(t, NewLighten(DefaultLightenOffset), src)
	if got, want := out.At(0, 0), (color.RGBA{35, 125, 255, 255}); got != want {
		t.Fatalf("lighten = %v, want %v", got, want)
	}
	if src.At(0, 0) != (color.RGBA{10, 100, 240, 255}) {
		t.Fatalf("input modified")
	}
}

func TestMagicColor(t *testing.T) {
	f := ContrastFactor(DefaultContrast)
	if want := 259.0 * 295 / (255 * 219); math.Abs(f-want) > 1e-9 {
		t.Fatalf("factor = %v, want %v", f, want)
	}
	if ContrastFactor(0) < 1.0 || ContrastFactor(0) > 1.02 {
		t.Fatalf("zero contrast should be near identity, got %v", ContrastFactor(0))
	}

	out := apply(t, NewMagicColor(DefaultContrast), surfaceOf(t, color.RGBA{128, 128, 128, 255}, color.RGBA{200, 60, 128, 255}))
	mid := out.At(0, 0)
	if want := (color.RGBA{134, 131, 122, 255}); mid != want {
		t.Fatalf("midpoint = %v, want %v", mid, want)
	}
	px := out.At(1, 0)
	wantR := math.Min(255, math.Round(math.Min(255, f*(200-128)+128)*Tint[0]))
	if float64(px.R) != wantR {
		t.Fatalf("red = %d, want %v", px.R, wantR)
	}
	if px.G >= 60 {
		t.Fatalf("dark channel should get darker, got %d", px.G)
	}
}

func TestThreshold(t *testing.T) {
	out := apply(t, NewThreshold(DefaultCutoff), surfaceOf(t,
		color.RGBA{200, 200, 200, 255},
		color.RGBA{100, 100, 100, 255},
		color.RGBA{0, 255, 0, 255}, // luma 149.7
		color.RGBA{0, 0, 255, 255}, // luma 29.1
	))
	want := []uint8{255, 0, 255, 0}
	for i, w := range want {
		if got := out.At(i, 0); got.R != w || got.G != w || got.B != w {
			t.Fatalf("pixel %d = %v, want %d", i, got, w)
		}
	}
}

func TestGrayscale(t *testing.T) {
	out := apply(t, NewGrayscale(), surfaceOf(t, color.RGBA{255, 0, 0, 255}))
	l := uint8(math.Round(Luma(255, 0, 0)))
	if got := out.At(0, 0); got != (color.RGBA{l, l, l, 255}) {
		t.Fatalf("grayscale = %v, want luma %d", got, l)
	}
}

func TestTransparentPixelsUntouched(t *testing.T) {
	out := apply(t, NewLighten(50), surfaceOf(t, color.RGBA{}))
	if out.At(0, 0) != (color.RGBA{}) {
		t.Fatalf("transparent pixel changed: %v", out.At(0, 0))
	}
}

func TestByName(t *testing.T) {
	cases := map[string][]string{
		"":          {},
		"none":      {},
		"magic":     {"magic_color"},
		"bw":        {"bw"},
		"Grayscale": {"grayscale"},
		"lighten":   {"lighten"},
	}
	for name, want := range cases {
		p, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		got := p.Names()
		if len(got) != len(want) || (len(want) == 1 && got[0] != want[0]) {
			t.Fatalf("ByName(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := ByName("sepia"); docerr.KindOf(err) != docerr.Validation {
		t.Fatalf("unknown filter should be a validation error")
	}
}

func TestPipelineReturnsCopy(t *testing.T) {
	src := surfaceOf(t, color.RGBA{1, 2, 3, 255})
	out, err := NewPipeline().Apply(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	out.Set(0, 0, color.RGBA{})
	if src.At(0, 0) != (color.RGBA{1, 2, 3, 255}) {
		t.Fatalf("empty pipeline aliased its input")
	}

	chained, err := NewPipeline(NewGrayscale(), NewThreshold(128)).Apply(context.Background(), surfaceOf(t, color.RGBA{250, 250, 250, 255}))
	if err != nil || chained.At(0, 0) != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("chained pipeline = %v, %v", chained.At(0, 0), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPipeline(NewGrayscale()).Apply(ctx, src); docerr.KindOf(err) != docerr.Canceled {
		t.Fatalf("expected canceled, got %v", err)
	}
	if len(DefaultRegistry().Names()) != 4 {
		t.Fatalf("unexpected registry %v", DefaultRegistry().Names())
	}
}
