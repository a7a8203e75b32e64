package diff

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"testing"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/render"
)

func filled(t *testing.T, w, h int, c color.Color) *raster.Surface {
	t.Helper()
	s, err := raster.NewFilled(w, h, c)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	return s
}

func TestIdenticalSurfaces(t *testing.T) {
	a := filled(t, 20, 10, color.White)
	a.FillRect(image.Rect(5, 2, 15, 8), color.Black)
	res, err := ComparePages(1, a, a.Clone(), DefaultOptions())
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.DiffPixels != 0 || res.Percentage != 0 {
		t.Fatalf("identical pages differ: %d pixels, %g%%", res.DiffPixels, res.Percentage)
	}
	// Unchanged pixels are a faded copy: black fades to light gray.
	if c := res.Diff.At(10, 5); c.R != c.G || c.R < 200 {
		t.Fatalf("faded pixel = %v", c)
	}
}

func TestDifferenceCounted(t *testing.T) {
	a := filled(t, 10, 10, color.White)
	b := a.Clone()
	b.FillRect(image.Rect(0, 0, 5, 5), color.Black)
	res, err := ComparePages(1, a, b, DefaultOptions())
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	// A solid block has no anti-aliased pixels, only differences.
	if res.DiffPixels != 25 {
		t.Fatalf("diff pixels = %d, want 25", res.DiffPixels)
	}
	if res.Percentage != 25 {
		t.Fatalf("percentage = %g, want 25", res.Percentage)
	}
	if c := res.Diff.At(2, 2); c != (color.RGBA{R: 255, A: 255}) {
		t.Fatalf("diff pixel = %v, want red", c)
	}
}

func TestBelowThresholdIgnored(t *testing.T) {
	a := filled(t, 4, 4, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	b := filled(t, 4, 4, color.RGBA{R: 202, G: 200, B: 200, A: 255})
	_, n, err := Pixels(a, b, DefaultOptions())
	if err != nil {
		t.Fatalf("pixels: %v", err)
	}
	if n != 0 {
		t.Fatalf("diff pixels = %d, want 0", n)
	}
}

func TestAntialiasedPixelNotCounted(t *testing.T) {
	// A black/white edge in both images; b moves a single mid-gray edge
	// pixel, which has both a darker and a brighter flat neighbourhood.
	mk := func() *raster.Surface {
		s := filled(t, 9, 9, color.White)
		s.FillRect(image.Rect(0, 0, 4, 9), color.Black)
		return s
	}
	a, b := mk(), mk()
	b.Set(4, 4, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	res, err := ComparePages(1, a, b, DefaultOptions())
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.DiffPixels != 0 {
		t.Fatalf("diff pixels = %d, want 0", res.DiffPixels)
	}
	if c := res.Diff.At(4, 4); c != (color.RGBA{R: 255, G: 255, A: 255}) {
		t.Fatalf("aa pixel = %v, want yellow", c)
	}

	opts := DefaultOptions()
	opts.IncludeAA = true
	res, err = ComparePages(1, a, b, opts)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.DiffPixels != 1 {
		t.Fatalf("diff pixels with IncludeAA = %d, want 1", res.DiffPixels)
	}
}

func TestMissingPageAndPadding(t *testing.T) {
	a := filled(t, 10, 10, color.Black)
	res, err := ComparePages(2, a, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.Percentage != 100 || res.B.Width() != 10 {
		t.Fatalf("missing page: %g%%, blank width %d", res.Percentage, res.B.Width())
	}

	small := filled(t, 5, 10, color.White)
	big := filled(t, 10, 10, color.White)
	d, n, err := Pixels(small, big, DefaultOptions())
	if err != nil {
		t.Fatalf("pixels: %v", err)
	}
	if d.Width() != 10 || n != 0 {
		t.Fatalf("padded diff: width %d, %d pixels", d.Width(), n)
	}
	if _, err := ComparePages(1, nil, nil, DefaultOptions()); err == nil {
		t.Fatalf("expected error for two missing pages")
	}
}

func doc(t *testing.T, name string, pages ...string) *document.Document {
	t.Helper()
	b := builder.NewBuilder()
	for _, text := range pages {
		b.NewPage(100, 100).DrawText(text, 10, 50, builder.TextOptions{FontSize: 20}).Finish()
	}
	data, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	d, err := document.Load(name, data, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func TestCompareDocuments(t *testing.T) {
	a := doc(t, "a.pdf", "same", "left")
	b := doc(t, "b.pdf", "same", "right", "extra")
	var progress []int
	results, err := Compare(context.Background(), render.New(), a, b, 1, DefaultOptions(), func(done, total int) {
		progress = append(progress, done*100/total)
	})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Percentage != 0 {
		t.Fatalf("identical page differs by %g%%", results[0].Percentage)
	}
	if results[1].Percentage == 0 || results[2].Percentage == 0 {
		t.Fatalf("changed pages report no difference: %g, %g", results[1].Percentage, results[2].Percentage)
	}
	if len(progress) != 3 || progress[2] != 100 {
		t.Fatalf("progress = %v", progress)
	}

	s := Summarize(results)
	if s.Identical || len(s.Pages) != 3 || s.Pages[1].Image != "page_2_diff.png" {
		t.Fatalf("summary = %+v", s)
	}
	data, err := s.JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var back Summary
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Pages[2].Page != 3 {
		t.Fatalf("decoded summary = %+v", back)
	}
	if _, err := results[0].Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}
}
