package ocr

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/raster"
)

func TestNewPage(t *testing.T) {
	s, err := raster.NewFilled(4, 3, color.White)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	vars := map[string]string{"psm": "6"}
	p, err := NewPage(s, 2,
		WithLanguages("eng", "spa"),
		WithArea(Box{W: 2, H: 2}),
		WithDPI(300),
		WithVariables(vars),
		WithWhitelist("ABC"),
	)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(p.PNG))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("image size = %v", b)
	}
	vars["psm"] = "7"
	want := Page{
		Index:     2,
		DPI:       300,
		Languages: []string{"eng", "spa"},
		Area:      Box{W: 2, H: 2},
		Variables: map[string]string{"psm": "6", "tessedit_char_whitelist": "ABC"},
	}
	p.PNG = nil
	if diff := cmp.Diff(want, p); diff != "" {
		t.Fatalf("page (-want +got):\n%s", diff)
	}

	p = Page{}
	WithSegmentation(6)(&p)
	if p.Variables["tessedit_pageseg_mode"] != "6" {
		t.Fatalf("segmentation = %+v", p.Variables)
	}
}

func TestBoxUnion(t *testing.T) {
	a := Box{X: 0, Y: 0, W: 10, H: 10}
	b := Box{X: 12, Y: 5, W: 8, H: 10}
	if got := a.Union(b); got != (Box{X: 0, Y: 0, W: 20, H: 15}) {
		t.Fatalf("union = %+v", got)
	}
	if got := (Box{}).Union(b); got != b {
		t.Fatalf("union with empty = %+v", got)
	}
}

func TestLineAndResult(t *testing.T) {
	r := Result{Lines: []Line{
		{Words: []Word{{Text: "a", Confidence: 90}, {Text: "b", Confidence: 70}}},
		{Words: []Word{{Text: "c"}}},
	}}
	if got := r.Lines[0].Text(); got != "a b" {
		t.Fatalf("text = %q", got)
	}
	if got := r.Lines[0].Confidence(); got != 80 {
		t.Fatalf("confidence = %g", got)
	}
	var got []string
	for _, w := range r.Words() {
		got = append(got, w.Text)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("words (-want +got):\n%s", diff)
	}
}

type countingEngine struct{ calls int }

func (e *countingEngine) Name() string { return "counting" }

func (e *countingEngine) Recognize(ctx context.Context, p Page) (Result, error) {
	e.calls++
	return Result{Page: p.Index}, nil
}

func TestRecognizeAll(t *testing.T) {
	e := &countingEngine{}
	res, err := RecognizeAll(context.Background(), e, []Page{{Index: 0}, {Index: 1}})
	if err != nil {
		t.Fatalf("RecognizeAll: %v", err)
	}
	if len(res) != 2 || res[1].Page != 1 || e.calls != 2 {
		t.Fatalf("results = %+v, calls = %d", res, e.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RecognizeAll(ctx, e, []Page{{}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestRegister(t *testing.T) {
	prev := DefaultEngine()
	defer Register(prev)
	e := &countingEngine{}
	Register(e)
	if DefaultEngine() != Engine(e) {
		t.Fatalf("default engine not replaced")
	}
}
