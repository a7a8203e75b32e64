package textlayer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/ocr"
	"github.com/wudi/docxform/render"
)

type fakeEngine struct {
	words []ocr.Word
	pages []ocr.Page
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(ctx context.Context, p ocr.Page) (ocr.Result, error) {
	e.pages = append(e.pages, p)
	return ocr.Result{Page: p.Index, Lines: []ocr.Line{{Words: e.words}}}, nil
}

func TestPlace(t *testing.T) {
	words := []ocr.Word{
		{Text: "kept", Box: ocr.Box{X: 100, Y: 200, W: 80, H: 20}, Confidence: 50},
		{Text: "dropped", Box: ocr.Box{X: 0, Y: 0, W: 10, H: 10}, Confidence: 49.9},
		{Text: "", Box: ocr.Box{X: 0, Y: 0, W: 10, H: 10}, Confidence: 90},
	}
	got := Place(words, 3, 600, 2, DefaultMinConfidence)
	want := []editor.TextRun{{Page: 3, Text: "kept", X: 50, Y: 190, FontSize: 10, Width: 40}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("runs (-want +got):\n%s", diff)
	}
}

func TestOptionsNormalized(t *testing.T) {
	o := Options{Scale: 1}.normalized()
	if o.Scale != MinScale || o.MinConfidence != DefaultMinConfidence || o.Quality != 85 {
		t.Fatalf("normalized = %+v", o)
	}
	if o := (Options{Scale: 3, MinConfidence: 70}).normalized(); o.Scale != 3 || o.MinConfidence != 70 {
		t.Fatalf("normalized = %+v", o)
	}
}

func testDoc(t *testing.T) *document.Document {
	t.Helper()
	b := builder.NewBuilder()
	b.NewPage(100, 150).DrawText("one", 10, 100, builder.TextOptions{FontSize: 12}).Finish()
	b.NewPage(100, 150).DrawText("two", 10, 100, builder.TextOptions{FontSize: 12}).Finish()
	data, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	doc, err := document.Load("scan.pdf", data, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return doc
}

func TestBuild(t *testing.T) {
	doc := testDoc(t)
	e := &fakeEngine{words: []ocr.Word{
		{Text: "one", Box: ocr.Box{X: 20, Y: 80, W: 40, H: 24}, Confidence: 93},
	}}
	var done []int
	data, err := Build(context.Background(), doc, render.New(), e, Options{Languages: []string{"eng"}}, func(d, total int) {
		if total != 2 {
			t.Errorf("total = %d", total)
		}
		done = append(done, d)
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, done); diff != "" {
		t.Fatalf("progress (-want +got):\n%s", diff)
	}
	if len(e.pages) != 2 || e.pages[1].Index != 1 || e.pages[0].DPI != 144 || e.pages[0].Languages[0] != "eng" {
		t.Fatalf("pages = %+v", e.pages)
	}

	out, err := document.Load("scan_ocr.pdf", data, "")
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if out.PageCount() != 2 {
		t.Fatalf("pages = %d", out.PageCount())
	}
	if w, h := out.Pages()[0].RenderedSize(); w != 100 || h != 150 {
		t.Fatalf("page size = %gx%g", w, h)
	}
	pdf, err := out.Context()
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	d, _, _, err := pdf.PageDict(1, false)
	if err != nil {
		t.Fatalf("page dict: %v", err)
	}
	content, err := document.ContentOf(pdf.XRefTable, d)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if !strings.Contains(string(content), "DxOv1 Do") {
		t.Fatalf("no text layer on page 1: %q", content)
	}
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, testDoc(t), render.New(), &fakeEngine{}, Options{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestCheckLanguages(t *testing.T) {
	for _, ok := range []string{"", "eng", "eng+deu", "FRA", "spa+por+ita"} {
		if err := CheckLanguages(ok); err != nil {
			t.Fatalf("%q rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"jpn", "eng+rus", "ara", "chi_sim", "ell"} {
		if err := CheckLanguages(bad); docerr.KindOf(err) != docerr.Validation {
			t.Fatalf("%q: kind %s", bad, docerr.KindOf(err))
		}
	}
}

func TestBuildRejectsUnencodableLanguage(t *testing.T) {
	e := &fakeEngine{}
	_, err := Build(context.Background(), testDoc(t), render.New(), e, Options{Languages: []string{"jpn"}}, nil)
	if docerr.KindOf(err) != docerr.Validation {
		t.Fatalf("kind = %s (%v)", docerr.KindOf(err), err)
	}
	if len(e.pages) != 0 {
		t.Fatalf("engine ran on %d pages", len(e.pages))
	}
}
