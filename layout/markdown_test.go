package layout

import (
	"testing"
)

func TestRenderMarkdownFeatures(t *testing.T) {
	mb := &MockBuilder{}
	engine := NewEngine(mb)

	md := `
# Header 1
## Header 2

Paragraph with **bold** and *italic* and ~~gone~~ text.

- List item 1
- List item 2
  1. nested

` + "```go" + `
func main() {
	fmt.Println("Hello")
}
` + "```" + `

[Link](http://example.com)

| Name | Qty |
|------|-----|
| pear | 3   |
`
	if err := engine.RenderMarkdown(md); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if len(mb.Pages) == 0 {
		t.Fatal("No page created")
	}

	h1, ok := mb.find("Header")
	if !ok || h1.Opts.FontSize != engine.DefaultFontSize*2.0 || h1.Opts.Font != "Helvetica-Bold" {
		t.Errorf("H1 not rendered as large bold text: %+v", h1)
	}
	if dt, ok := mb.find("bold"); !ok || dt.Opts.Font != "Helvetica-Bold" {
		t.Errorf("bold word not bold: %+v", dt)
	}
	if dt, ok := mb.find("italic"); !ok || dt.Opts.Font != "Helvetica-Oblique" {
		t.Errorf("italic word not oblique: %+v", dt)
	}
	if _, ok := mb.find("•"); !ok {
		t.Errorf("bullet marker missing")
	}
	if _, ok := mb.find("1."); !ok {
		t.Errorf("ordered marker missing")
	}
	if dt, ok := mb.find("func main() {"); !ok || dt.Opts.Font != "Courier" {
		t.Errorf("code line not set in Courier: %+v", dt)
	}
	if dt, ok := mb.find("Link"); !ok || dt.Opts.Color != linkColor {
		t.Errorf("link not coloured: %+v", dt)
	}
	if mb.Pages[0].Lines < 2 {
		t.Errorf("Expected underline and strike lines, got %d", mb.Pages[0].Lines)
	}

	tables := mb.Tables()
	if len(tables) != 2 {
		t.Fatalf("Expected header and body rows, got %d tables", len(tables))
	}
	if tables[0].HeaderRows != 1 || tables[0].Rows[0].Cells[1].Text != "Qty" {
		t.Errorf("header row = %+v", tables[0])
	}
	if tables[1].Rows[0].Cells[0].Text != "pear" {
		t.Errorf("body row = %+v", tables[1])
	}
}

func TestRenderMarkdownOrderedStart(t *testing.T) {
	mb := &MockBuilder{}
	if err := NewEngine(mb).RenderMarkdown("3. three\n4. four\n"); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if _, ok := mb.find("3."); !ok {
		t.Fatalf("list did not start at 3")
	}
	if _, ok := mb.find("4."); !ok {
		t.Fatalf("second marker missing")
	}
}
