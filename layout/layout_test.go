package layout

import (
	"strings"
	"testing"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/document"
)

// --- Mocks ---

type MockBuilder struct {
	Pages []*MockPageBuilder
	Info  builder.Info
}

func (m *MockBuilder) NewPage(width, height float64) builder.PageBuilder {
	p := &MockPageBuilder{parent: m, W: width, H: height}
	m.Pages = append(m.Pages, p)
	return p
}

func (m *MockBuilder) SetInfo(info builder.Info) builder.PDFBuilder { m.Info = info; return m }
func (m *MockBuilder) PageCount() int                               { return len(m.Pages) }
func (m *MockBuilder) Build() ([]byte, error)                       { return nil, nil }

// Texts returns every drawn text across pages.
func (m *MockBuilder) Texts() []DrawnText {
	var out []DrawnText
	for _, p := range m.Pages {
		out = append(out, p.DrawnTexts...)
	}
	return out
}

func (m *MockBuilder) Tables() []builder.Table {
	var out []builder.Table
	for _, p := range m.Pages {
		out = append(out, p.DrawnTables...)
	}
	return out
}

func (m *MockBuilder) find(text string) (DrawnText, bool) {
	for _, dt := range m.Texts() {
		if dt.Text == text {
			return dt, true
		}
	}
	return DrawnText{}, false
}

type MockPageBuilder struct {
	parent      *MockBuilder
	W, H        float64
	DrawnTexts  []DrawnText
	DrawnTables []builder.Table
	Lines       int
	Finished    bool
}

type DrawnText struct {
	Text string
	X, Y float64
	Opts builder.TextOptions
}

func (p *MockPageBuilder) DrawText(text string, x, y float64, opts builder.TextOptions) builder.PageBuilder {
	p.DrawnTexts = append(p.DrawnTexts, DrawnText{Text: text, X: x, Y: y, Opts: opts})
	return p
}

func (p *MockPageBuilder) DrawImage(img *builder.Image, x, y, width, height float64, opts builder.ImageOptions) builder.PageBuilder {
	return p
}

func (p *MockPageBuilder) DrawRectangle(x, y, width, height float64, opts builder.RectOptions) builder.PageBuilder {
	return p
}

func (p *MockPageBuilder) DrawLine(x1, y1, x2, y2 float64, opts builder.LineOptions) builder.PageBuilder {
	p.Lines++
	return p
}

func (p *MockPageBuilder) DrawTable(table builder.Table, opts builder.TableOptions) builder.PageBuilder {
	p.DrawnTables = append(p.DrawnTables, table)
	return p
}

func (p *MockPageBuilder) SetRotation(degrees int) builder.PageBuilder { return p }
func (p *MockPageBuilder) Size() (float64, float64)                   { return p.W, p.H }
func (p *MockPageBuilder) Finish() builder.PDFBuilder {
	p.Finished = true
	return p.parent
}

// --- Tests ---

func TestEngineConfiguration(t *testing.T) {
	mb := &MockBuilder{}

	t.Run("Default Configuration", func(t *testing.T) {
		e := NewEngine(mb)
		if e.DefaultFont != "Helvetica" {
			t.Errorf("Expected default font Helvetica, got %s", e.DefaultFont)
		}
		if e.DefaultFontSize != 12 {
			t.Errorf("Expected default font size 12, got %f", e.DefaultFontSize)
		}
		if e.pageWidth != 595.28 {
			t.Errorf("Expected default page width 595.28, got %f", e.pageWidth)
		}
	})

	t.Run("Custom Configuration", func(t *testing.T) {
		e := NewEngine(mb,
			WithDefaultFont("Times-Roman"),
			WithDefaultFontSize(14),
			WithLineHeight(1.5),
			WithMargins(Margins{Top: 20, Bottom: 20, Left: 20, Right: 20}),
			WithPageSize(1000, 1000),
		)
		if e.DefaultFont != "Times-Roman" {
			t.Errorf("Expected font Times-Roman, got %s", e.DefaultFont)
		}
		if e.DefaultFontSize != 14 {
			t.Errorf("Expected font size 14, got %f", e.DefaultFontSize)
		}
		if e.LineHeight != 1.5 {
			t.Errorf("Expected line height 1.5, got %f", e.LineHeight)
		}
		if e.Margins.Top != 20 {
			t.Errorf("Expected top margin 20, got %f", e.Margins.Top)
		}
		if e.pageWidth != 1000 {
			t.Errorf("Expected page width 1000, got %f", e.pageWidth)
		}
	})

	t.Run("Paper Size Configuration", func(t *testing.T) {
		e := NewEngine(mb, WithPaperSize(builder.A3))
		if e.pageWidth != 841.89 || e.pageHeight != 1190.55 {
			t.Errorf("Expected A3 841.89x1190.55, got %fx%f", e.pageWidth, e.pageHeight)
		}
	})

	t.Run("Unknown Font", func(t *testing.T) {
		e := NewEngine(mb, WithDefaultFont("Comic Sans"))
		if e.DefaultFont != "Helvetica" {
			t.Errorf("Expected fallback to Helvetica, got %s", e.DefaultFont)
		}
	})
}

func TestStyledFont(t *testing.T) {
	tests := []struct {
		base         string
		bold, italic bool
		want         string
	}{
		{"Helvetica", false, false, "Helvetica"},
		{"Helvetica", true, false, "Helvetica-Bold"},
		{"Times-Roman", false, true, "Times-Italic"},
		{"Courier", true, true, "Courier-BoldOblique"},
		{"Symbol", true, false, "Symbol"},
	}
	for _, tt := range tests {
		if got := styledFont(tt.base, tt.bold, tt.italic); got != tt.want {
			t.Errorf("styledFont(%s, %v, %v) = %s, want %s", tt.base, tt.bold, tt.italic, got, tt.want)
		}
	}
}

func TestRenderTextWrapsWithinMargins(t *testing.T) {
	mb := &MockBuilder{}
	e := NewEngine(mb)
	line := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	var src strings.Builder
	for i := 0; i < 60; i++ {
		src.WriteString(line)
		src.WriteString("\n")
	}
	if err := e.RenderText(src.String()); err != nil {
		t.Fatalf("RenderText failed: %v", err)
	}
	if len(mb.Pages) < 2 {
		t.Fatalf("Expected a page break, got %d pages", len(mb.Pages))
	}
	right := builder.A4.Width - e.Margins.Right
	for _, dt := range mb.Texts() {
		w := builder.TextWidth(dt.Text, dt.Opts.Font, dt.Opts.FontSize)
		if dt.X < e.Margins.Left || dt.X+w > right+0.01 {
			t.Fatalf("%q at x=%.2f width %.2f leaves the content box", dt.Text, dt.X, w)
		}
		if dt.Y < e.Margins.Bottom-e.DefaultFontSize {
			t.Fatalf("%q drawn below the bottom margin at y=%.2f", dt.Text, dt.Y)
		}
	}
	for i, p := range mb.Pages {
		if !p.Finished {
			t.Errorf("page %d not finished", i)
		}
	}
}

func TestRenderTextLongWordBreaks(t *testing.T) {
	mb := &MockBuilder{}
	e := NewEngine(mb, WithPageSize(200, 400), WithMargins(Margins{Top: 10, Bottom: 10, Left: 10, Right: 10}))
	if err := e.RenderText(strings.Repeat("W", 80)); err != nil {
		t.Fatalf("RenderText failed: %v", err)
	}
	texts := mb.Texts()
	if len(texts) < 2 {
		t.Fatalf("Expected the word to be split, got %d pieces", len(texts))
	}
	var joined strings.Builder
	for _, dt := range texts {
		joined.WriteString(dt.Text)
	}
	if joined.String() != strings.Repeat("W", 80) {
		t.Fatalf("pieces do not reassemble the word: %q", joined.String())
	}
}

func TestEmptySourceYieldsOnePage(t *testing.T) {
	mb := &MockBuilder{}
	if err := NewEngine(mb).RenderText(""); err != nil {
		t.Fatalf("RenderText failed: %v", err)
	}
	if len(mb.Pages) != 1 {
		t.Fatalf("Expected 1 page, got %d", len(mb.Pages))
	}
}

func TestFormFeedStartsPage(t *testing.T) {
	mb := &MockBuilder{}
	if err := NewEngine(mb).RenderText("one\ftwo"); err != nil {
		t.Fatalf("RenderText failed: %v", err)
	}
	if len(mb.Pages) != 2 {
		t.Fatalf("Expected 2 pages, got %d", len(mb.Pages))
	}
	if got := mb.Pages[1].DrawnTexts[0].Text; got != "two" {
		t.Fatalf("second page starts with %q", got)
	}
}

func TestTableRepeatsHeaderAfterBreak(t *testing.T) {
	mb := &MockBuilder{}
	e := NewEngine(mb, WithPageSize(300, 200), WithMargins(Margins{Top: 20, Bottom: 20, Left: 20, Right: 20}))
	rows := [][]string{{"Name", "Value"}}
	for i := 0; i < 30; i++ {
		rows = append(rows, []string{"row", "v"})
	}
	e.Table(rows, 1)
	e.Close()
	if len(mb.Pages) < 2 {
		t.Fatalf("Expected table to span pages, got %d", len(mb.Pages))
	}
	for i, p := range mb.Pages {
		first := p.DrawnTables[0]
		if first.HeaderRows != 1 || first.Rows[0].Cells[0].Text != "Name" {
			t.Fatalf("page %d does not start with the header row", i)
		}
	}
}

func TestLayoutWithRealBuilder(t *testing.T) {
	b := builder.NewBuilder()
	e := NewEngine(b)
	if err := e.RenderMarkdown("# Title\n\nSome *text* with `code`.\n\n- one\n- two\n"); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	data, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	doc, err := document.Load("out.pdf", data, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("Expected 1 page, got %d", doc.PageCount())
	}
}
