package builder

import (
	"bytes"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/contentstream"
)

func readContext(t *testing.T, data []byte) *model.Context {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		t.Fatalf("page count: %v", err)
	}
	return ctx
}

func pageContent(t *testing.T, ctx *model.Context, nr int) string {
	t.Helper()
	d, _, _, err := ctx.PageDict(nr, false)
	if err != nil {
		t.Fatalf("page dict: %v", err)
	}
	b, err := ctx.PageContent(d, nr)
	if err != nil {
		t.Fatalf("page content: %v", err)
	}
	return string(b)
}

func TestBuildWritesPagesInOrder(t *testing.T) {
	b := NewBuilder().SetInfo(Info{Title: "Report", Author: "QA"})
	b.NewPage(200, 300).
		DrawText("Hello", 10, 20, TextOptions{FontSize: 16, Color: Color{R: 1}}).
		Finish()
	b.NewPage(400, 100).SetRotation(450).Finish()

	data, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := readContext(t, data)
	if ctx.PageCount != 2 {
		t.Fatalf("page count = %d, want 2", ctx.PageCount)
	}
	_, _, inh, err := ctx.PageDict(2, false)
	if err != nil {
		t.Fatalf("page dict: %v", err)
	}
	if inh.MediaBox.Width() != 400 || inh.MediaBox.Height() != 100 {
		t.Fatalf("media box = %v", inh.MediaBox)
	}
	if inh.Rotate != 90 {
		t.Fatalf("rotation not normalized: %d", inh.Rotate)
	}
	if ctx.Title != "Report" || ctx.Author != "QA" {
		t.Fatalf("info not written: %q %q", ctx.Title, ctx.Author)
	}
	content := pageContent(t, ctx, 1)
	for _, want := range []string{"BT", "/F1 16 Tf", "1 0 0 rg", "(Hello) Tj", "ET"} {
		if !strings.Contains(content, want) {
			t.Fatalf("content %q missing %q", content, want)
		}
	}
}

func TestBuildWithoutPagesFails(t *testing.T) {
	if _, err := NewBuilder().Build(); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestDrawShapesAndImages(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := range src.Pix {
		src.Pix[i] = 0xFF
	}
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, A: 128})
	img := FromImage(src)
	if !img.HasAlpha() {
		t.Fatalf("expected soft mask for translucent pixel")
	}

	b := NewBuilder()
	b.NewPage(100, 100).
		DrawRectangle(10, 20, 30, 40, RectOptions{Fill: true, FillColor: Color{R: 1}, Opacity: 0.5}).
		DrawLine(0, 0, 5, 5, LineOptions{StrokeColor: Color{G: 1}, LineWidth: 1.5}).
		DrawImage(img, 5, 5, 20, 15, ImageOptions{}).
		DrawImage(img, 50, 50, 20, 15, ImageOptions{Rotate: 45}).
		Finish()
	data, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := readContext(t, data)
	content := pageContent(t, ctx, 1)
	for _, want := range []string{"re", "/GS1 gs", "/Im1 Do", "l"} {
		if !strings.Contains(content, want) {
			t.Fatalf("content missing %q: %s", want, content)
		}
	}
	if strings.Count(content, "/Im1 Do") != 2 || strings.Contains(content, "/Im2") {
		t.Fatalf("image should be embedded once and drawn twice: %s", content)
	}
	_, _, inh, err := ctx.PageDict(1, false)
	if err != nil {
		t.Fatalf("page dict: %v", err)
	}
	xobjs := inh.Resources.DictEntry("XObject")
	if len(xobjs) != 1 {
		t.Fatalf("expected one image xobject, got %v", xobjs)
	}
}

func TestDrawTableBreaksPages(t *testing.T) {
	rows := []TableRow{{Cells: []TableCell{{Text: "Name"}, {Text: "Qty", HAlign: HAlignRight}}}}
	for i := 0; i < 40; i++ {
		rows = append(rows, TableRow{Cells: []TableCell{{Text: "item"}, {Text: "1", HAlign: HAlignRight}}})
	}
	b := NewBuilder()
	last := b.NewPage(200, 200).DrawTable(Table{
		Columns:    []float64{120, 60},
		Rows:       rows,
		HeaderRows: 1,
	}, TableOptions{X: 10, TopMargin: 10, BottomMargin: 10})
	last.Finish()
	if b.PageCount() < 2 {
		t.Fatalf("expected table to continue on a new page, got %d pages", b.PageCount())
	}
	data, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := readContext(t, data)
	if !strings.Contains(pageContent(t, ctx, 2), "(Name) Tj") {
		t.Fatalf("header row not repeated on continuation page")
	}
}

func TestOverlayWrapsOriginalContent(t *testing.T) {
	b := NewBuilder()
	b.NewPage(100, 200).DrawRectangle(0, 0, 10, 10, RectOptions{Fill: true}).Finish()
	data, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := readContext(t, data)
	ov, err := NewOverlay(ctx, 1, nil)
	if err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if w, h := ov.Size(); w != 100 || h != 200 {
		t.Fatalf("size = %vx%v", w, h)
	}
	ov.DrawText("stamp", 5, 5, TextOptions{RenderMode: contentstream.TextInvisible, Width: 50})
	if err := ov.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx2 := readContext(t, out.Bytes())
	content := pageContent(t, ctx2, 1)
	if !strings.HasPrefix(strings.TrimSpace(content), "q") || !strings.Contains(content, "/DxOv1 Do") {
		t.Fatalf("overlay not wrapped: %s", content)
	}
}

func TestEmptyOverlayIsNoop(t *testing.T) {
	data, err := NewBuilder().NewPage(10, 10).Finish().Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := readContext(t, data)
	ov, err := NewOverlay(ctx, 1, nil)
	if err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if err := ov.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	d, _, _, _ := ctx.PageDict(1, false)
	if obj, _ := d.Find("Contents"); isArray(obj) {
		t.Fatalf("empty overlay rewrote contents")
	}
}

func isArray(o types.Object) bool {
	_, ok := o.(types.Array)
	return ok
}

func TestTextMetrics(t *testing.T) {
	// Helvetica: 'H' is 722 units, 'i' is 222.
	if got := TextWidth("Hi", "Helvetica", 10); math.Abs(got-9.44) > 1e-9 {
		t.Fatalf("TextWidth = %v, want 9.44", got)
	}
	if TextWidth("Hi", "NoSuchFont", 10) != TextWidth("Hi", "Helvetica", 10) {
		t.Fatalf("unknown fonts should fall back to Helvetica")
	}
	if a := Ascent("Helvetica", 10); a <= 0 || a > 10 {
		t.Fatalf("ascent = %v", a)
	}
	if d := Descent("Helvetica", 10); d <= 0 || d > 5 {
		t.Fatalf("descent = %v", d)
	}
}

func TestWrapAndFitText(t *testing.T) {
	lines := WrapText("the quick brown fox jumps over the lazy dog", "Helvetica", 10, 60)
	if len(lines) < 3 {
		t.Fatalf("expected wrapping, got %q", lines)
	}
	for _, l := range lines {
		if TextWidth(l, "Helvetica", 10) > 60 {
			t.Fatalf("line %q wider than 60pt", l)
		}
	}
	if got := WrapText("a\n\nb", "Helvetica", 10, 100); len(got) != 3 || got[1] != "" {
		t.Fatalf("explicit newlines not kept: %q", got)
	}
	long := WrapText(strings.Repeat("W", 30), "Helvetica", 10, 40)
	if len(long) < 2 {
		t.Fatalf("long word not broken: %q", long)
	}
	fit := FitText("a fairly long cell value", "Helvetica", 10, 50)
	if !strings.HasSuffix(fit, "...") || TextWidth(fit, "Helvetica", 10) > 50 {
		t.Fatalf("FitText = %q", fit)
	}
}
