package builder

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/contentstream"
)

// PDFBuilder provides a fluent API for PDF construction.
type PDFBuilder interface {
	NewPage(width, height float64) PageBuilder
	SetInfo(info Info) PDFBuilder
	PageCount() int
	Build() ([]byte, error)
}

// PageBuilder provides a fluent API for page construction. Coordinates are
// PDF points with the origin at the lower left corner of the page.
type PageBuilder interface {
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	DrawImage(img *Image, x, y, width, height float64, opts ImageOptions) PageBuilder
	DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder
	DrawTable(table Table, opts TableOptions) PageBuilder
	SetRotation(degrees int) PageBuilder
	Size() (width, height float64)
	Finish() PDFBuilder
}

// Info is the document information dictionary written by Build.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
}

// Properties returns the non-empty entries keyed by their PDF names.
func (i Info) Properties() map[string]string {
	m := make(map[string]string)
	for k, v := range map[string]string{
		"Title":    i.Title,
		"Author":   i.Author,
		"Subject":  i.Subject,
		"Keywords": i.Keywords,
		"Creator":  i.Creator,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// TextOptions configures text drawing. Font must name one of the 14
// standard fonts; text is encoded as WinAnsi.
type TextOptions struct {
	Font         string
	FontSize     float64
	Color        Color
	Opacity      float64 // 0 means opaque
	RenderMode   contentstream.TextRenderMode
	CharSpacing  float64
	HorizScaling float64
	Rotate       float64 // degrees counter-clockwise around (x, y)
	Width        float64 // when set, horizontal scaling stretches the run to this width
}

// PathOptions configures path drawing.
type PathOptions struct {
	StrokeColor Color
	FillColor   Color
	LineWidth   float64
	Opacity     float64
	Fill        bool
	Stroke      bool
}

// RectOptions configures rectangle drawing (defaults to stroke if neither fill nor stroke is set).
type RectOptions = PathOptions

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor Color
	LineWidth   float64
	Opacity     float64
}

// ImageOptions configures image drawing.
type ImageOptions struct {
	Opacity float64
	Rotate  float64 // degrees counter-clockwise around the image center
}

// Color represents an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
)

// Table defines a matrix of cells to draw.
type Table struct {
	Columns    []float64
	Rows       []TableRow
	HeaderRows int
}

// TableRow wraps a slice of cells.
type TableRow struct {
	Cells []TableCell
}

// TableCell configures individual table cell rendering.
type TableCell struct {
	Text            string
	Font            string
	FontSize        float64
	BackgroundColor *Color
	TextColor       Color
	ColSpan         int
	HAlign          HAlign
}

// TableOptions configures table rendering.
type TableOptions struct {
	X            float64
	Y            float64 // top edge; 0 means the top margin
	CellPadding  float64
	BorderColor  Color
	BorderWidth  float64
	HeaderFill   *Color
	TopMargin    float64
	BottomMargin float64
	DefaultFont  string
	DefaultSize  float64
}

// PaperSize is a page size in points, portrait.
type PaperSize struct {
	Width, Height float64
}

var (
	A3     = PaperSize{Width: 841.89, Height: 1190.55}
	A4     = PaperSize{Width: 595.28, Height: 841.89}
	A5     = PaperSize{Width: 419.53, Height: 595.28}
	Letter = PaperSize{Width: 612, Height: 792}
	Legal  = PaperSize{Width: 612, Height: 1008}
)

// Landscape returns the size with width and height swapped.
func (p PaperSize) Landscape() PaperSize { return PaperSize{Width: p.Height, Height: p.Width} }

// HAlign controls horizontal text alignment within a cell.
type HAlign string

const (
	HAlignLeft   HAlign = "left"
	HAlignCenter HAlign = "center"
	HAlignRight  HAlign = "right"
)

const defaultBaseFont = "Helvetica"

type pageSpec struct {
	width, height float64
	rotate        int
	canvas        *canvas
}

type builderImpl struct {
	pages []*pageSpec
	info  Info
}

type pageBuilderImpl struct {
	parent *builderImpl
	page   *pageSpec
}

// NewBuilder constructs a PDFBuilder.
func NewBuilder() PDFBuilder { return &builderImpl{} }

func (b *builderImpl) NewPage(w, h float64) PageBuilder {
	p := &pageSpec{width: w, height: h, canvas: newCanvas()}
	b.pages = append(b.pages, p)
	return &pageBuilderImpl{parent: b, page: p}
}

func (b *builderImpl) SetInfo(info Info) PDFBuilder {
	b.info = info
	return b
}

func (b *builderImpl) PageCount() int { return len(b.pages) }

// Build writes the document. Pages are emitted in creation order.
func (b *builderImpl) Build() ([]byte, error) {
	if len(b.pages) == 0 {
		return nil, fmt.Errorf("builder: document has no pages")
	}
	conf := model.NewDefaultConfiguration()
	first := b.pages[0]
	ctx, err := pdfcpu.CreateContextWithXRefTable(conf, &types.Dim{Width: first.width, Height: first.height})
	if err != nil {
		return nil, fmt.Errorf("builder: create context: %w", err)
	}
	pagesRef, err := ctx.Pages()
	if err != nil {
		return nil, err
	}
	pagesDict, err := ctx.DereferenceDict(*pagesRef)
	if err != nil {
		return nil, err
	}
	shared := newDocResources(ctx.XRefTable)
	for i, p := range b.pages {
		if p.canvas.err != nil {
			return nil, fmt.Errorf("builder: page %d: %w", i+1, p.canvas.err)
		}
		ref, err := b.writePage(ctx, shared, *pagesRef, p)
		if err != nil {
			return nil, fmt.Errorf("builder: page %d: %w", i+1, err)
		}
		if err := model.AppendPageTree(ref, 1, pagesDict); err != nil {
			return nil, err
		}
		ctx.PageCount++
	}
	if props := b.info.Properties(); len(props) > 0 {
		if ctx.Properties == nil {
			ctx.Properties = map[string]string{}
		}
		if err := pdfcpu.PropertiesAdd(ctx, props); err != nil {
			return nil, fmt.Errorf("builder: info: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("builder: write: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *builderImpl) writePage(ctx *model.Context, shared *docResources, parent types.IndirectRef, p *pageSpec) (*types.IndirectRef, error) {
	res, err := p.canvas.resourceDict(shared)
	if err != nil {
		return nil, err
	}
	contentRef, err := shared.contentStream(p.canvas.w.Bytes())
	if err != nil {
		return nil, err
	}
	d := types.Dict(map[string]types.Object{
		"Type":      types.Name("Page"),
		"Parent":    parent,
		"MediaBox":  types.RectForDim(p.width, p.height).Array(),
		"Resources": res,
		"Contents":  *contentRef,
	})
	if p.rotate != 0 {
		d.Insert("Rotate", types.Integer(p.rotate))
	}
	return ctx.IndRefForNewObject(d)
}

func (p *pageBuilderImpl) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	p.page.canvas.drawText(text, x, y, opts)
	return p
}

func (p *pageBuilderImpl) DrawImage(img *Image, x, y, width, height float64, opts ImageOptions) PageBuilder {
	p.page.canvas.drawImage(img, x, y, width, height, opts)
	return p
}

func (p *pageBuilderImpl) DrawRectangle(x, y, width, height float64, opts RectOptions) PageBuilder {
	p.page.canvas.drawRect(x, y, width, height, opts)
	return p
}

func (p *pageBuilderImpl) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder {
	p.page.canvas.drawLine(x1, y1, x2, y2, opts)
	return p
}

func (p *pageBuilderImpl) SetRotation(degrees int) PageBuilder {
	r := degrees % 360
	if r < 0 {
		r += 360
	}
	p.page.rotate = r - r%90
	return p
}

func (p *pageBuilderImpl) Size() (float64, float64) { return p.page.width, p.page.height }

func (p *pageBuilderImpl) Finish() PDFBuilder { return p.parent }

// DrawTable draws table top-down starting at opts.Y, continuing on new
// pages of the same size when a row does not fit above the bottom margin.
// Header rows are repeated on every continuation page. The returned
// builder is the page the table ended on.
func (p *pageBuilderImpl) DrawTable(table Table, opts TableOptions) PageBuilder {
	if len(table.Columns) == 0 || len(table.Rows) == 0 {
		return p
	}
	cur := p
	borderWidth := opts.BorderWidth
	if borderWidth == 0 {
		borderWidth = 0.5
	}
	cellPad := opts.CellPadding
	if cellPad == 0 {
		cellPad = 4
	}
	defaultSize := opts.DefaultSize
	if defaultSize == 0 {
		defaultSize = 10
	}
	font := opts.DefaultFont
	if font == "" {
		font = defaultBaseFont
	}
	top := opts.Y
	if top == 0 {
		top = cur.page.height - opts.TopMargin
	}
	headerCount := table.HeaderRows
	if headerCount > len(table.Rows) {
		headerCount = len(table.Rows)
	}

	rowHeights := make([]float64, len(table.Rows))
	for i, row := range table.Rows {
		h := defaultSize*1.2 + 2*cellPad
		for _, cell := range row.Cells {
			if cell.FontSize > 0 && cell.FontSize*1.2+2*cellPad > h {
				h = cell.FontSize*1.2 + 2*cellPad
			}
		}
		rowHeights[i] = h
	}
	spanWidth := func(startCol, span int) float64 {
		end := startCol + span
		if end > len(table.Columns) {
			end = len(table.Columns)
		}
		width := 0.0
		for i := startCol; i < end; i++ {
			width += table.Columns[i]
		}
		return width
	}

	curY := top
	var renderRow func(row TableRow, height float64, isHeader, allowBreak bool)
	renderRow = func(row TableRow, height float64, isHeader, allowBreak bool) {
		if allowBreak && curY-height < opts.BottomMargin && curY < top {
			cur = cur.parent.NewPage(cur.page.width, cur.page.height).(*pageBuilderImpl)
			curY = top
			for i := 0; i < headerCount; i++ {
				renderRow(table.Rows[i], rowHeights[i], true, false)
			}
		}
		x := opts.X
		for col := 0; col < len(table.Columns) && col < len(row.Cells); col++ {
			cell := row.Cells[col]
			span := cell.ColSpan
			if span <= 0 {
				span = 1
			}
			width := spanWidth(col, span)
			fill := cell.BackgroundColor
			if fill == nil && isHeader {
				fill = opts.HeaderFill
			}
			if fill != nil {
				cur.DrawRectangle(x, curY-height, width, height, RectOptions{Fill: true, FillColor: *fill})
			}
			if borderWidth > 0 {
				cur.DrawRectangle(x, curY-height, width, height, RectOptions{
					Stroke:      true,
					StrokeColor: opts.BorderColor,
					LineWidth:   borderWidth,
				})
			}
			size := cell.FontSize
			if size == 0 {
				size = defaultSize
			}
			cellFont := cell.Font
			if cellFont == "" {
				cellFont = font
			}
			text := FitText(cell.Text, cellFont, size, width-2*cellPad)
			textX := x + cellPad
			if cell.HAlign == HAlignCenter || cell.HAlign == HAlignRight {
				tw := TextWidth(text, cellFont, size)
				if cell.HAlign == HAlignCenter {
					textX = x + (width-tw)/2
				} else {
					textX = x + width - cellPad - tw
				}
			}
			cur.DrawText(text, textX, curY-cellPad-Ascent(cellFont, size), TextOptions{
				Font:     cellFont,
				FontSize: size,
				Color:    cell.TextColor,
			})
			x += width
			col += span - 1
		}
		curY -= height
	}
	for i, row := range table.Rows {
		renderRow(row, rowHeights[i], i < headerCount, true)
	}
	return cur
}
