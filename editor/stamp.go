package editor

import (
	"context"
	"image"
	"image/color"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
)

// StampItem places an image on a page. X, Y, Width and Height are points
// in the displayed page, origin at the lower left corner. Page is 0-based.
type StampItem struct {
	Page   int
	X, Y   float64
	Width  float64
	Height float64
	Image  image.Image
}

// TextRun places a line of text with its baseline origin at (X, Y). A
// positive Width stretches the run horizontally to that width.
type TextRun struct {
	Page     int
	Text     string
	X, Y     float64
	FontSize float64
	Width    float64
	Color    color.Color
}

// Stamp draws items over their pages.
func Stamp(doc *document.Document, items []StampItem) ([]byte, error) {
	return Edit(doc, items, nil)
}

// AddText draws visible text runs over their pages.
func AddText(doc *document.Document, runs []TextRun) ([]byte, error) {
	return Edit(doc, nil, runs)
}

// Edit draws images and visible text over their pages. Images come first
// so text stays readable on top of them.
func Edit(doc *document.Document, stamps []StampItem, texts []TextRun) ([]byte, error) {
	return annotate(doc, "editor.edit", stamps, texts, contentstream.TextFill)
}

// EmbedInvisibleText draws runs in render mode 3: they are selectable and
// searchable but paint nothing.
func EmbedInvisibleText(doc *document.Document, runs []TextRun) ([]byte, error) {
	return annotate(doc, "editor.text_layer", nil, runs, contentstream.TextInvisible)
}

func annotate(doc *document.Document, op string, stamps []StampItem, texts []TextRun, mode contentstream.TextRenderMode) ([]byte, error) {
	for _, s := range stamps {
		if err := checkPage(op, doc, s.Page); err != nil {
			return nil, err
		}
		if s.Image == nil || s.Width <= 0 || s.Height <= 0 {
			return nil, docerr.New(docerr.Validation, op, "stamp on page %d has no image or no size", s.Page+1)
		}
	}
	for _, t := range texts {
		if err := checkPage(op, doc, t.Page); err != nil {
			return nil, err
		}
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	ov := newOverlays(pdf)
	for _, s := range stamps {
		o, err := ov.page(s.Page)
		if err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, op, err)
		}
		o.DrawImage(builder.FromImage(s.Image), s.X, s.Y, s.Width, s.Height, builder.ImageOptions{})
	}
	for _, t := range texts {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		o, err := ov.page(t.Page)
		if err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, op, err)
		}
		o.DrawText(t.Text, t.X, t.Y, builder.TextOptions{
			FontSize:   t.FontSize,
			Color:      toColor(t.Color),
			RenderMode: mode,
			Width:      t.Width,
		})
	}
	if err := ov.commit(); err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, op, err)
	}
	return write(op, pdf)
}

func checkPage(op string, doc *document.Document, page int) error {
	if page < 0 || page >= doc.PageCount() {
		return docerr.New(docerr.Validation, op, "page %d out of range [1, %d]", page+1, doc.PageCount())
	}
	return nil
}

// overlays hands out one builder.Overlay per page, sharing resources so an
// image drawn on many pages is embedded once.
type overlays struct {
	pdf    *model.Context
	shared *builder.Resources
	pages  map[int]*builder.Overlay
}

func newOverlays(pdf *model.Context) *overlays {
	return &overlays{pdf: pdf, shared: builder.NewResources(pdf), pages: make(map[int]*builder.Overlay)}
}

// page returns the overlay of the 0-based page index.
func (ov *overlays) page(index int) (*builder.Overlay, error) {
	if o, ok := ov.pages[index]; ok {
		return o, nil
	}
	o, err := builder.NewOverlay(ov.pdf, index+1, ov.shared)
	if err != nil {
		return nil, err
	}
	ov.pages[index] = o
	return o, nil
}

func (ov *overlays) commit() error {
	idx := make([]int, 0, len(ov.pages))
	for i := range ov.pages {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		if err := ov.pages[i].Commit(); err != nil {
			return err
		}
	}
	return nil
}

func toColor(c color.Color) builder.Color {
	if c == nil {
		return builder.Black
	}
	r, g, b, _ := c.RGBA()
	return builder.Color{R: float64(r) / 0xffff, G: float64(g) / 0xffff, B: float64(b) / 0xffff}
}

type Position string

const (
	TopLeft      Position = "top-left"
	TopCenter    Position = "top-center"
	TopRight     Position = "top-right"
	BottomLeft   Position = "bottom-left"
	BottomCenter Position = "bottom-center"
	BottomRight  Position = "bottom-right"
)

// PageNumberOptions configures PageNumbers. Format may contain {n} for the
// page number and {total} for the number of pages; Start is the number of
// the first page.
type PageNumberOptions struct {
	Position Position
	Start    int
	Format   string
	FontSize float64
	Margin   float64
	Color    color.Color
}

func (o PageNumberOptions) withDefaults() PageNumberOptions {
	if o.Position == "" {
		o.Position = BottomCenter
	}
	if o.Start <= 0 {
		o.Start = 1
	}
	if o.Format == "" {
		o.Format = "{n}"
	}
	if o.FontSize <= 0 {
		o.FontSize = 12
	}
	if o.Margin <= 0 {
		o.Margin = 36
	}
	return o
}

// Label is the text printed on the 0-based page of a total page document.
func (o PageNumberOptions) Label(page, total int) string {
	o = o.withDefaults()
	r := strings.NewReplacer("{n}", strconv.Itoa(o.Start+page), "{total}", strconv.Itoa(o.Start+total-1))
	return r.Replace(o.Format)
}

const pageNumberFont = "Helvetica"

// PageNumbers prints a label on every page.
func PageNumbers(ctx context.Context, doc *document.Document, opts PageNumberOptions) ([]byte, error) {
	opts = opts.withDefaults()
	switch opts.Position {
	case TopLeft, TopCenter, TopRight, BottomLeft, BottomCenter, BottomRight:
	default:
		return nil, docerr.New(docerr.Validation, "editor.page_numbers", "unknown position %q", opts.Position)
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	ov := newOverlays(pdf)
	total := doc.PageCount()
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o, err := ov.page(i)
		if err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, "editor.page_numbers", err)
		}
		label := opts.Label(i, total)
		w, h := o.Size()
		tw := builder.TextWidth(label, pageNumberFont, opts.FontSize)
		x, y := labelOrigin(opts.Position, w, h, tw, opts.FontSize, opts.Margin)
		o.DrawText(label, x, y, builder.TextOptions{
			Font:     pageNumberFont,
			FontSize: opts.FontSize,
			Color:    toColor(opts.Color),
		})
	}
	if err := ov.commit(); err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "editor.page_numbers", err)
	}
	return write("editor.page_numbers", pdf)
}

// labelOrigin returns the baseline origin of a label of width tw on a w x h
// page.
func labelOrigin(pos Position, w, h, tw, size, margin float64) (x, y float64) {
	switch pos {
	case TopLeft, BottomLeft:
		x = margin
	case TopRight, BottomRight:
		x = w - margin - tw
	default:
		x = (w - tw) / 2
	}
	switch pos {
	case TopLeft, TopCenter, TopRight:
		y = h - margin - size
	default:
		y = margin
	}
	return x, y
}
