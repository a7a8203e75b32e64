package render

import (
	"context"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/recovery"
)

// runContent interprets content on a 100x100 surface with a flipped y axis
// and no resources.
func runContent(t *testing.T, content string, strict bool) (*raster.Surface, error) {
	t.Helper()
	s, err := raster.NewFilled(100, 100, color.White)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	opts := New().opts
	if strict {
		opts.Strategy = recovery.NewStrictStrategy()
	}
	in := &interpreter{ctx: context.Background(), surface: s, opts: opts, pageNr: 1, maxDepth: 4}
	err = in.run([]byte(content), nil, newState(coords.Matrix{1, 0, 0, -1, 0, 100}), 0)
	return s, err
}

func TestClipLimitsPainting(t *testing.T) {
	s, err := runContent(t, "q 0 0 10 10 re W n 0 0 1 rg 0 0 100 100 re f Q 1 0 0 rg 90 90 5 5 re f", false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if c := s.At(5, 95); c.B != 255 || c.R != 0 {
		t.Fatalf("inside clip = %v, want blue", c)
	}
	if c := s.At(50, 50); c.R != 255 || c.G != 255 {
		t.Fatalf("outside clip = %v, want white", c)
	}
	// Q drops the clip again.
	if c := s.At(92, 7); c.R != 255 || c.G != 0 {
		t.Fatalf("after restore = %v, want red", c)
	}
}

func TestColourOperators(t *testing.T) {
	tests := []struct {
		op   string
		want [3]uint8
	}{
		{"0.5 g", [3]uint8{128, 128, 128}},
		{"0 1 0 rg", [3]uint8{0, 255, 0}},
		{"0 0 0 1 k", [3]uint8{0, 0, 0}},
		{"1 0 0 0 k", [3]uint8{0, 255, 255}},
		{"/DeviceRGB cs 0 0 1 sc", [3]uint8{0, 0, 255}},
	}
	for _, tc := range tests {
		s, err := runContent(t, tc.op+" 0 0 100 100 re f", true)
		if err != nil {
			t.Fatalf("%s: %v", tc.op, err)
		}
		c := s.At(50, 50)
		if diff := cmp.Diff(tc.want, [3]uint8{c.R, c.G, c.B}); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tc.op, diff)
		}
	}
}

func TestBrokenOperatorsFollowStrategy(t *testing.T) {
	content := "0 0 1 rg 10 l 0 0 100 100 re f"
	s, err := runContent(t, content, false)
	if err != nil {
		t.Fatalf("lenient run failed: %v", err)
	}
	if c := s.At(50, 50); c.B != 255 || c.R != 0 {
		t.Fatalf("lenient run skipped the fill: %v", c)
	}
	if _, err := runContent(t, content, true); docerr.KindOf(err) != docerr.CorruptDocument {
		t.Fatalf("strict run: %v", err)
	}
}

func TestStrokeWidth(t *testing.T) {
	s, err := runContent(t, "4 w 1 0 0 RG 10 50 m 90 50 l S", true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if c := s.At(50, 50); c.R != 255 || c.G > 10 {
		t.Fatalf("stroke centre = %v, want red", c)
	}
	if c := s.At(50, 40); c.G != 255 {
		t.Fatalf("stroke too wide: %v", c)
	}
}

func TestParseToUnicode(t *testing.T) {
	cmap := `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
1 begincodespacerange <0000> <FFFF> endcodespacerange
2 beginbfchar
<0003> <0020>
<0024> <0041>
endbfchar
1 beginbfrange
<0044> <0046> <0061>
endbfrange
1 beginbfrange
<0050> <0051> [<00660069> <D83DDE00>]
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`
	got := parseToUnicode([]byte(cmap))
	want := map[uint32]string{
		0x03: " ", 0x24: "A",
		0x44: "a", 0x45: "b", 0x46: "c",
		0x50: "fi", 0x51: "😀",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ToUnicode (-want +got):\n%s", diff)
	}
}

func TestCoreName(t *testing.T) {
	for in, want := range map[string]string{
		"Helvetica":            "Helvetica",
		"ABCDEF+Arial,Bold":    "Helvetica-Bold",
		"TimesNewRoman,Italic": "Times-Italic",
		"CourierNew":           "Courier",
		"Calibri":              "",
	} {
		if got := coreName(in); got != want {
			t.Errorf("coreName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGlyphRune(t *testing.T) {
	for in, want := range map[string]rune{"A": 'A', "space": ' ', "uni20AC": '€', "u1F600": '😀', "nosuchglyph": 0} {
		if got := glyphRune(in); got != want {
			t.Errorf("glyphRune(%q) = %q, want %q", in, got, want)
		}
	}
}
