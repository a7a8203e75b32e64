package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/convert"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/observability"
	"github.com/wudi/docxform/ocr"
	"github.com/wudi/docxform/workspace"
)

func pdfFile(t *testing.T, name string, widths ...float64) Input {
	t.Helper()
	b := builder.NewBuilder()
	for _, w := range widths {
		b.NewPage(w, 300).DrawText("page", 20, 200, builder.TextOptions{FontSize: 12}).Finish()
	}
	data, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return Input{Name: name, Data: data}
}

func pngFile(t *testing.T, name string, w, h int) Input {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return Input{Name: name, Data: buf.Bytes()}
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func wantKind(t *testing.T, err error, kind docerr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("got nil error, want %s", kind)
	}
	if got := docerr.KindOf(err); got != kind {
		t.Fatalf("kind = %s, want %s (%v)", got, kind, err)
	}
}

type recorder struct{ events []Progress }

func (r *recorder) record(p Progress) { r.events = append(r.events, p) }

func (r *recorder) check(t *testing.T) {
	t.Helper()
	if len(r.events) < 2 {
		t.Fatalf("events = %+v", r.events)
	}
	if first, last := r.events[0], r.events[len(r.events)-1]; first.Percentage != 0 || last.Percentage != 100 {
		t.Fatalf("first %d last %d", first.Percentage, last.Percentage)
	}
	for i := 1; i < len(r.events); i++ {
		if r.events[i].Percentage < r.events[i-1].Percentage {
			t.Fatalf("progress went down: %+v", r.events)
		}
	}
}

func TestSubmitMerge(t *testing.T) {
	s := NewSession()
	var rec recorder
	art, err := s.Submit(context.Background(), Request{
		Tool:    ToolMerge,
		Options: MergeOptions{},
		Inputs:  []Input{pdfFile(t, "a.pdf", 100), pdfFile(t, "b.pdf", 200, 300)},
	}, rec.record)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rec.check(t)
	if art.Name != "merged.pdf" || art.MIME != "application/pdf" {
		t.Fatalf("artifact = %s %s", art.Name, art.MIME)
	}
	doc, err := document.Load(art.Name, art.Data, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("pages = %d", doc.PageCount())
	}
	if s.State() != Success {
		t.Fatalf("state = %s", s.State())
	}
	if stored, ok := s.Artifact(); !ok || stored.Name != "merged.pdf" {
		t.Fatalf("stored artifact = %q %v", stored.Name, ok)
	}
}

func TestValidationKeepsIdle(t *testing.T) {
	a, img := pdfFile(t, "a.pdf", 100), pngFile(t, "x.png", 4, 4)
	cases := []struct {
		name string
		req  Request
	}{
		{"merge one", Request{Tool: ToolMerge, Options: MergeOptions{}, Inputs: []Input{a}}},
		{"compare three", Request{Tool: ToolCompare, Options: CompareOptions{}, Inputs: []Input{a, a, a}}},
		{"rotate two", Request{Tool: ToolRotate, Options: RotateOptions{Degrees: 90}, Inputs: []Input{a, a}}},
		{"image to merge", Request{Tool: ToolMerge, Options: MergeOptions{}, Inputs: []Input{a, img}}},
		{"pdf to resize", Request{Tool: ToolResizeImages, Options: ResizeImagesOptions{}, Inputs: []Input{a}}},
		{"no images", Request{Tool: ToolImagesToPDF, Options: ImagesToPDFOptions{}}},
		{"wrong options", Request{Tool: ToolRotate, Options: CropOptions{}, Inputs: []Input{a}}},
		{"nil options", Request{Tool: ToolRotate, Inputs: []Input{a}}},
		{"unknown tool", Request{Tool: "fold", Options: MergeOptions{}, Inputs: []Input{a}}},
		{"bad rotation", Request{Tool: ToolRotate, Options: RotateOptions{Degrees: 45}, Inputs: []Input{a}}},
		{"no password", Request{Tool: ToolProtect, Options: ProtectOptions{}, Inputs: []Input{a}}},
		{"bad split", Request{Tool: ToolSplit, Options: SplitOptions{editor.SplitOptions{Mode: editor.SplitFixed}}, Inputs: []Input{a}}},
		{"bad filter", Request{Tool: ToolScanToPDF, Options: ScanOptions{Filter: "sepia"}, Inputs: []Input{img}}},
		{"ocr language", Request{Tool: ToolOCR, Options: OCROptions{Language: "chi_sim"}, Inputs: []Input{a}}},
		{"empty input", Request{Tool: ToolRotate, Options: RotateOptions{}, Inputs: []Input{{Name: "e.pdf", MIME: "application/pdf"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession()
			var rec recorder
			_, err := s.Submit(context.Background(), tc.req, rec.record)
			wantKind(t, err, docerr.Validation)
			if s.State() != Idle || len(rec.events) != 0 {
				t.Fatalf("state %s, %d events", s.State(), len(rec.events))
			}
		})
	}
}

func TestInputLimits(t *testing.T) {
	s := NewSession(WithInputLimits(0, 10))
	_, err := s.Submit(context.Background(), Request{
		Tool: ToolRotate, Options: RotateOptions{Degrees: 90}, Inputs: []Input{pdfFile(t, "a.pdf", 100)},
	}, nil)
	wantKind(t, err, docerr.Validation)
}

func TestSubmitWhileProcessingIsRejected(t *testing.T) {
	s := NewSession()
	req := Request{Tool: ToolRotate, Options: RotateOptions{Degrees: 90}, Inputs: []Input{pdfFile(t, "a.pdf", 100)}}
	var nested error
	var state State
	_, err := s.Submit(context.Background(), req, func(p Progress) {
		if p.Percentage == 0 {
			state = s.State()
			_, nested = s.Submit(context.Background(), req, nil)
		}
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if state != Processing {
		t.Fatalf("state during run = %s", state)
	}
	wantKind(t, nested, docerr.Validation)
	if s.State() != Success {
		t.Fatalf("state = %s", s.State())
	}
}

func TestImplicitResetAfterSuccess(t *testing.T) {
	s := NewSession()
	a := pdfFile(t, "a.pdf", 100)
	if _, err := s.Submit(context.Background(), Request{Tool: ToolRotate, Options: RotateOptions{Degrees: 90}, Inputs: []Input{a}}, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err := s.Submit(context.Background(), Request{Tool: ToolMerge, Options: MergeOptions{}, Inputs: []Input{a}}, nil)
	wantKind(t, err, docerr.Validation)
	if _, ok := s.Artifact(); ok || s.State() != Idle {
		t.Fatalf("previous result kept: state %s", s.State())
	}
}

func TestCanceledEndsInError(t *testing.T) {
	s := NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Submit(ctx, Request{Tool: ToolPDFToText, Options: PDFToTextOptions{}, Inputs: []Input{pdfFile(t, "a.pdf", 100)}}, nil)
	wantKind(t, err, docerr.Canceled)
	if s.State() != Error || s.Err() == nil || s.Err().Kind != docerr.Canceled {
		t.Fatalf("state %s err %v", s.State(), s.Err())
	}
	if _, ok := s.Artifact(); ok {
		t.Fatalf("artifact kept after failure")
	}
}

func TestResetAbandonsRunningRequest(t *testing.T) {
	s := NewSession()
	req := Request{Tool: ToolRotate, Options: RotateOptions{Degrees: 90}, Inputs: []Input{pdfFile(t, "a.pdf", 100)}}
	_, err := s.Submit(context.Background(), req, func(p Progress) {
		if p.Percentage == 0 {
			s.Reset()
		}
	})
	wantKind(t, err, docerr.Canceled)
	if s.State() != Idle {
		t.Fatalf("state = %s", s.State())
	}
}

func TestSubmitAfterResetWaitsForAbandonedRequest(t *testing.T) {
	s := NewSession()
	first := Request{Tool: ToolRotate, Options: RotateOptions{Degrees: 90}, Inputs: []Input{pdfFile(t, "first.pdf", 100)}}
	second := Request{Tool: ToolRotate, Options: RotateOptions{Degrees: 90}, Inputs: []Input{pdfFile(t, "second.pdf", 200)}}

	var nested, opened error
	_, err := s.Submit(context.Background(), first, func(p Progress) {
		if p.Percentage == 0 {
			s.Reset()
			_, nested = s.Submit(context.Background(), second, nil)
			_, opened = s.Open(context.Background(), second.Inputs[0])
		}
	})
	wantKind(t, err, docerr.Canceled)
	wantKind(t, nested, docerr.Validation)
	wantKind(t, opened, docerr.Validation)
	if docs := s.Documents(); len(docs) != 0 {
		t.Fatalf("abandoned request left %d documents", len(docs))
	}

	if _, err := s.Submit(context.Background(), second, nil); err != nil {
		t.Fatalf("Submit after drain: %v", err)
	}
	var names []string
	for _, d := range s.Documents() {
		names = append(names, d.Name)
	}
	if diff := cmp.Diff([]string{"second.pdf"}, names); diff != "" {
		t.Fatalf("arena (-want +got):\n%s", diff)
	}
}

func TestWrongPassword(t *testing.T) {
	s := NewSession()
	a := pdfFile(t, "a.pdf", 100)
	locked, err := s.Submit(context.Background(), Request{Tool: ToolProtect, Options: ProtectOptions{Password: "secret"}, Inputs: []Input{a}}, nil)
	if err != nil {
		t.Fatalf("protect: %v", err)
	}
	if locked.Name != "a_protected.pdf" {
		t.Fatalf("name = %q", locked.Name)
	}
	in := Input{Name: locked.Name, Data: locked.Data}
	_, err = s.Submit(context.Background(), Request{Tool: ToolUnlock, Options: UnlockOptions{Password: "guess"}, Inputs: []Input{in}}, nil)
	wantKind(t, err, docerr.WrongPassword)
	if s.Err().Kind.UserMessage() == "" {
		t.Fatalf("no user message")
	}

	open, err := s.Submit(context.Background(), Request{Tool: ToolUnlock, Options: UnlockOptions{Password: "secret"}, Inputs: []Input{in}}, nil)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if open.Name != "a_protected_unlocked.pdf" {
		t.Fatalf("name = %q", open.Name)
	}
	if doc, err := document.Load(open.Name, open.Data, ""); err != nil || doc.Encrypted() {
		t.Fatalf("unlocked output: %v", err)
	}
}

func TestSplitArchive(t *testing.T) {
	s := NewSession()
	art, err := s.Submit(context.Background(), Request{
		Tool:    ToolSplit,
		Options: SplitOptions{editor.SplitOptions{Mode: editor.SplitRanges, Ranges: "1,3-4"}},
		Inputs:  []Input{pdfFile(t, "report.pdf", 100, 110, 120, 130)},
	}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if art.Name != "split_files.zip" || art.MIME != "application/zip" {
		t.Fatalf("artifact = %s %s", art.Name, art.MIME)
	}
	if diff := cmp.Diff([]string{"report_1.pdf", "report_3-4.pdf"}, zipNames(t, art.Data)); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
}

func TestCompareArchive(t *testing.T) {
	s := NewSession()
	a := pdfFile(t, "a.pdf", 100, 100)
	b := a
	b.Name = "b.pdf"
	art, err := s.Submit(context.Background(), Request{Tool: ToolCompare, Options: CompareOptions{}, Inputs: []Input{a, b}}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := []string{"page_1_diff.png", "page_2_diff.png", "summary.json"}
	if diff := cmp.Diff(want, zipNames(t, art.Data)); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
	results := s.Comparison()
	if len(results) != 2 || results[0].DiffPixels != 0 || results[1].Percentage != 0 {
		t.Fatalf("results = %+v", results)
	}

	zr, _ := zip.NewReader(bytes.NewReader(art.Data), int64(len(art.Data)))
	rc, err := zr.File[2].Open()
	if err != nil {
		t.Fatalf("open summary: %v", err)
	}
	defer rc.Close()
	var summary struct {
		Identical bool `json:"identical"`
	}
	if err := json.NewDecoder(rc).Decode(&summary); err != nil || !summary.Identical {
		t.Fatalf("summary = %+v, %v", summary, err)
	}

	s.Reset()
	if s.Comparison() != nil || len(s.Documents()) != 0 {
		t.Fatalf("reset kept results")
	}
}

func TestImageBatchNaming(t *testing.T) {
	s := NewSession()
	opts := ResizeImagesOptions{convert.ResizeOptions{Unit: convert.UnitPercent, Width: 50, KeepAspect: true}}
	one, err := s.Submit(context.Background(), Request{
		Tool: ToolResizeImages, Options: opts, Inputs: []Input{pngFile(t, "cat.png", 8, 6)},
	}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if one.Name != "cat_resized.png" || one.MIME != "image/png" {
		t.Fatalf("single = %s %s", one.Name, one.MIME)
	}

	many, err := s.Submit(context.Background(), Request{
		Tool: ToolResizeImages, Options: opts, Inputs: []Input{pngFile(t, "cat.png", 8, 6), pngFile(t, "dog.png", 4, 4)},
	}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if many.Name != "resized_images.zip" {
		t.Fatalf("batch name = %q", many.Name)
	}
	if diff := cmp.Diff([]string{"cat_resized.png", "dog_resized.png"}, zipNames(t, many.Data)); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
}

func TestImagesAndScanToPDF(t *testing.T) {
	s := NewSession()
	imgs := []Input{pngFile(t, "a.png", 30, 20), pngFile(t, "b.png", 20, 30)}
	for _, tc := range []struct {
		req  Request
		name string
	}{
		{Request{Tool: ToolImagesToPDF, Options: ImagesToPDFOptions{Fit: convert.FitImage}, Inputs: imgs}, "images.pdf"},
		{Request{Tool: ToolScanToPDF, Options: ScanOptions{Filter: "bw"}, Inputs: imgs}, "scan.pdf"},
	} {
		art, err := s.Submit(context.Background(), tc.req, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.req.Tool, err)
		}
		doc, err := document.Load(art.Name, art.Data, "")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if art.Name != tc.name || doc.PageCount() != 2 {
			t.Fatalf("%s: %s with %d pages", tc.req.Tool, art.Name, doc.PageCount())
		}
	}
}

func TestTextToPDFAndBack(t *testing.T) {
	s := NewSession()
	art, err := s.Submit(context.Background(), Request{
		Tool: ToolToPDF, Options: ToPDFOptions{}, Inputs: []Input{{Name: "notes.txt", Data: []byte("hello engine")}},
	}, nil)
	if err != nil {
		t.Fatalf("to-pdf: %v", err)
	}
	if art.Name != "notes.pdf" {
		t.Fatalf("name = %q", art.Name)
	}
	txt, err := s.Submit(context.Background(), Request{
		Tool: ToolPDFToText, Options: PDFToTextOptions{}, Inputs: []Input{{Name: art.Name, Data: art.Data}},
	}, nil)
	if err != nil {
		t.Fatalf("pdf-to-text: %v", err)
	}
	if txt.Name != "notes.txt" || !bytes.Contains(txt.Data, []byte("hello")) {
		t.Fatalf("text = %s %q", txt.Name, txt.Data)
	}
}

func TestOrganizeReplacesDocument(t *testing.T) {
	log := observability.NewRecordingLogger()
	s := NewSession(WithLogger(log))
	in := pdfFile(t, "a.pdf", 100, 200)
	if _, err := s.Open(context.Background(), in); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Workspace().AddItem(workspace.CanvasItem{Kind: workspace.TextItem, Text: "x", X: 5, Y: 5, Width: 20, Height: 10}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	art, err := s.Submit(context.Background(), Request{
		Tool:    ToolOrganize,
		Options: OrganizeOptions{Pages: []editor.PageSpec{{Source: 1}, {Source: 0}}},
		Inputs:  []Input{in},
	}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if art.Name != "a_organized.pdf" {
		t.Fatalf("name = %q", art.Name)
	}
	if len(s.Workspace().Items()) != 0 {
		t.Fatalf("annotations survived a new page set")
	}
	docs := s.Documents()
	if len(docs) != 1 || docs[0].Pages()[0].Width != 200 {
		t.Fatalf("arena holds %d documents", len(docs))
	}
}

func TestEditWithPreviewLayout(t *testing.T) {
	s := NewSession()
	art, err := s.Submit(context.Background(), Request{
		Tool: ToolEdit,
		Options: EditOptions{Items: []workspace.CanvasItem{
			{Kind: workspace.TextItem, Text: "approved", X: 15, Y: 30, Width: 90, Height: 18, FontSize: 18},
		}},
		Inputs: []Input{pdfFile(t, "form.pdf", 200)},
	}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if art.Name != "form_edited.pdf" {
		t.Fatalf("name = %q", art.Name)
	}
	if _, err := document.Load(art.Name, art.Data, ""); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Below the only page at preview scale 1.5.
	_, err = s.Submit(context.Background(), Request{
		Tool: ToolRedact,
		Options: RedactOptions{Areas: []workspace.RedactionArea{
			{X: 0, Y: 1000, Width: 10, Height: 10},
		}},
		Inputs: []Input{pdfFile(t, "form.pdf", 200)},
	}, nil)
	wantKind(t, err, docerr.Validation)
	if s.State() != Error {
		t.Fatalf("state = %s", s.State())
	}
}

type panicEngine struct{}

func (panicEngine) Name() string { return "panic" }
func (panicEngine) Recognize(context.Context, ocr.Page) (ocr.Result, error) {
	panic("recognizer crashed")
}

func TestPanicBecomesProcessingFault(t *testing.T) {
	s := NewSession(WithOCREngine(panicEngine{}))
	_, err := s.Submit(context.Background(), Request{Tool: ToolOCR, Options: OCROptions{}, Inputs: []Input{pdfFile(t, "a.pdf", 100)}}, nil)
	wantKind(t, err, docerr.ProcessingFault)
	if s.State() != Error {
		t.Fatalf("state = %s", s.State())
	}
}

func TestOCRWithoutEngine(t *testing.T) {
	if ocr.DefaultEngine() != nil {
		t.Skip("an OCR engine is registered")
	}
	s := NewSession()
	_, err := s.Submit(context.Background(), Request{Tool: ToolOCR, Options: OCROptions{}, Inputs: []Input{pdfFile(t, "a.pdf", 100)}}, nil)
	wantKind(t, err, docerr.UnsupportedContent)
}

func TestMediaType(t *testing.T) {
	pdf := pdfFile(t, "x.bin", 100)
	img := pngFile(t, "photo.dat", 2, 2)
	cases := []struct {
		in   Input
		want string
	}{
		{pdf, "application/pdf"},
		{img, "image/png"},
		{Input{Name: "scan.tiff", Data: []byte{'I', 'I', 42, 0}}, "image/tiff"},
		{Input{Name: "readme.md", Data: []byte("# title")}, "text/markdown; charset=utf-8"},
		{Input{Name: "deck.pptx", Data: []byte("PK\x03\x04rest")}, "application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		{Input{Name: "x.png", Data: []byte("x"), MIME: "image/gif"}, "image/gif"},
	}
	for _, tc := range cases {
		if got := tc.in.MediaType(); got != tc.want {
			t.Errorf("MediaType(%s) = %q, want %q", tc.in.Name, got, tc.want)
		}
	}
}

func TestRelayClampsAndNeverGoesDown(t *testing.T) {
	var got []int
	r := &relay{fn: func(p Progress) { got = append(got, p.Percentage) }}
	for _, p := range []int{-5, 40, 30, 120, 90} {
		r.emit(p, "")
	}
	if diff := cmp.Diff([]int{0, 40, 40, 100, 100}, got); diff != "" {
		t.Fatalf("progress (-want +got):\n%s", diff)
	}
}

func TestConfigOptions(t *testing.T) {
	s := NewSession(WithOCRScale(1), WithDiffThreshold(0.3), WithJPEGQuality(0), WithOCRLanguage("deu"))
	c := s.Config()
	if c.OCRScale != 2 || c.DiffOptions.Threshold != 0.3 || c.JPEGQuality != 85 || c.OCRLanguage != "deu" {
		t.Fatalf("config = %+v", c)
	}
	if c.OCRMinConfidence != 50 || c.Strategy == nil || c.Logger == nil {
		t.Fatalf("defaults missing: %+v", c)
	}
}
