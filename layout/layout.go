// Package layout flows structured text onto PDF pages: plain text,
// Markdown, HTML, word processing documents and spreadsheets.
//
// Text is set in the standard fonts with WinAnsi encoding, wrapped at word
// boundaries and broken onto new pages when the bottom margin is reached.
package layout

import (
	"strings"
	"unicode/utf8"

	"github.com/wudi/docxform/builder"
)

// Engine handles the layout and rendering of structured content into PDF pages.
type Engine struct {
	b builder.PDFBuilder

	// Configuration
	DefaultFont     string
	DefaultFontSize float64
	LineHeight      float64 // Multiplier, e.g., 1.2
	Margins         Margins

	// State
	currentPage builder.PageBuilder
	cursorY     float64
	indent      float64
	pageWidth   float64
	pageHeight  float64
}

// Margins defines page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithDefaultFont sets the default font. It must be one of the standard
// fonts; bold and italic variants are derived from its family.
func WithDefaultFont(font string) Option {
	return func(e *Engine) {
		e.DefaultFont = font
	}
}

// WithDefaultFontSize sets the default font size.
func WithDefaultFontSize(size float64) Option {
	return func(e *Engine) {
		e.DefaultFontSize = size
	}
}

// WithLineHeight sets the line height multiplier.
func WithLineHeight(height float64) Option {
	return func(e *Engine) {
		e.LineHeight = height
	}
}

// WithMargins sets the page margins.
func WithMargins(margins Margins) Option {
	return func(e *Engine) {
		e.Margins = margins
	}
}

// WithPageSize sets the page dimensions.
func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.pageWidth = width
		e.pageHeight = height
	}
}

// WithPaperSize sets the page dimensions using a standard paper size.
func WithPaperSize(size builder.PaperSize) Option {
	return func(e *Engine) {
		e.pageWidth = size.Width
		e.pageHeight = size.Height
	}
}

// NewEngine creates a new layout engine with optional configuration.
func NewEngine(b builder.PDFBuilder, opts ...Option) *Engine {
	e := &Engine{
		b:               b,
		DefaultFont:     "Helvetica",
		DefaultFontSize: 12,
		LineHeight:      1.2,
		Margins: Margins{
			Top:    50,
			Bottom: 50,
			Left:   50,
			Right:  50,
		},
		pageWidth:  builder.A4.Width,
		pageHeight: builder.A4.Height,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !builder.IsStandardFont(e.DefaultFont) {
		e.DefaultFont = "Helvetica"
	}
	return e
}

// SetPageSize sets the dimensions for new pages.
func (e *Engine) SetPageSize(width, height float64) {
	e.pageWidth = width
	e.pageHeight = height
}

// Close finishes the current page. A document without any content still
// gets one blank page.
func (e *Engine) Close() {
	if e.currentPage == nil && e.b.PageCount() == 0 {
		e.newPage()
	}
	if e.currentPage != nil {
		e.currentPage.Finish()
		e.currentPage = nil
	}
}

// ensurePage makes sure there is a current page and the cursor is valid.
func (e *Engine) ensurePage() {
	if e.currentPage == nil {
		e.newPage()
	}
}

// newPage starts a new page and resets the cursor.
func (e *Engine) newPage() {
	e.currentPage = e.b.NewPage(e.pageWidth, e.pageHeight)
	e.cursorY = e.pageHeight - e.Margins.Top
}

// checkPageBreak checks if there is enough space for height; if not, adds a new page.
func (e *Engine) checkPageBreak(height float64) {
	if e.currentPage == nil {
		e.newPage()
		return
	}
	if e.cursorY-height < e.Margins.Bottom {
		e.currentPage.Finish()
		e.newPage()
	}
}

func (e *Engine) left() float64 { return e.Margins.Left + e.indent }

func (e *Engine) contentWidth() float64 {
	return e.pageWidth - e.Margins.Right - e.left()
}

// TextSpan represents a segment of text with specific styling.
type TextSpan struct {
	Text          string
	Bold          bool
	Italic        bool
	Code          bool
	FontSize      float64
	Link          string
	Color         builder.Color
	Underline     bool
	Strikethrough bool
}

var linkColor = builder.Color{R: 0.02, G: 0.27, B: 0.68}

// font resolves the standard font of a span from the family of base.
func (e *Engine) font(s TextSpan) string {
	family := e.DefaultFont
	if s.Code {
		family = "Courier"
	}
	return styledFont(family, s.Bold, s.Italic)
}

var fontFamilies = map[string][4]string{
	"Helvetica":   {"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique"},
	"Times-Roman": {"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic"},
	"Courier":     {"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique"},
}

func styledFont(base string, bold, italic bool) string {
	var family [4]string
	found := false
	for _, f := range fontFamilies {
		for _, name := range f {
			if name == base {
				family, found = f, true
			}
		}
	}
	if !found {
		return base
	}
	i := 0
	if bold {
		i++
	}
	if italic {
		i += 2
	}
	return family[i]
}

// Heading draws a heading of level 1 to 6.
func (e *Engine) Heading(level int, spans []TextSpan) {
	fontSize := e.DefaultFontSize * 1.1
	switch {
	case level <= 1:
		fontSize = e.DefaultFontSize * 2.0
	case level == 2:
		fontSize = e.DefaultFontSize * 1.5
	case level == 3:
		fontSize = e.DefaultFontSize * 1.25
	}
	styled := make([]TextSpan, len(spans))
	for i, s := range spans {
		s.Bold = true
		s.FontSize = fontSize
		styled[i] = s
	}
	e.ensurePage()
	e.cursorY -= fontSize * 0.3
	e.renderSpans(styled, e.left(), fontSize*e.LineHeight)
	e.cursorY -= fontSize * 0.2
}

// Paragraph draws wrapped text followed by paragraph spacing.
func (e *Engine) Paragraph(spans []TextSpan) {
	if isBlank(spans) {
		return
	}
	e.ensurePage()
	e.renderSpans(spans, e.left(), e.DefaultFontSize*e.LineHeight)
	e.renderParagraphSpacing()
}

// ListItem draws marker in the left gutter and the item text indented
// next to it.
func (e *Engine) ListItem(marker string, spans []TextSpan) {
	e.ensurePage()
	fontSize := e.DefaultFontSize
	lineHeight := fontSize * e.LineHeight
	e.checkPageBreak(lineHeight)
	e.currentPage.DrawText(marker, e.left(), e.cursorY-fontSize, builder.TextOptions{
		Font:     e.DefaultFont,
		FontSize: fontSize,
	})
	if isBlank(spans) {
		e.cursorY -= lineHeight
		return
	}
	e.indent += listIndent
	e.renderSpans(spans, e.left(), lineHeight)
	e.indent -= listIndent
}

const listIndent = 18.0

// Indent shifts following blocks right by delta points; a negative delta
// undoes it.
func (e *Engine) Indent(delta float64) {
	e.indent += delta
	if e.indent < 0 {
		e.indent = 0
	}
}

// CodeBlock draws preformatted text in Courier, keeping line breaks.
func (e *Engine) CodeBlock(text string) {
	e.ensurePage()
	fontSize := e.DefaultFontSize * 0.9
	lineHeight := fontSize * e.LineHeight
	font := styledFont("Courier", false, false)
	text = strings.TrimRight(strings.ReplaceAll(text, "\t", "    "), "\n")
	for _, src := range strings.Split(text, "\n") {
		for _, line := range hardWrap(strings.TrimRight(src, "\r"), font, fontSize, e.contentWidth()) {
			e.checkPageBreak(lineHeight)
			e.currentPage.DrawText(line, e.left(), e.cursorY-fontSize, builder.TextOptions{
				Font:     font,
				FontSize: fontSize,
			})
			e.cursorY -= lineHeight
		}
	}
	e.renderParagraphSpacing()
}

// hardWrap breaks line between characters so that no piece is wider than
// width. White space is kept as is.
func hardWrap(line, font string, size, width float64) []string {
	var out []string
	for builder.TextWidth(line, font, size) > width {
		cut := 0
		for i, r := range line {
			next := i + utf8.RuneLen(r)
			if builder.TextWidth(line[:next], font, size) > width {
				break
			}
			cut = next
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(line)
		}
		out = append(out, line[:cut])
		line = line[cut:]
	}
	return append(out, line)
}

// Rule draws a horizontal line across the content width.
func (e *Engine) Rule() {
	e.ensurePage()
	e.checkPageBreak(e.DefaultFontSize)
	y := e.cursorY - e.DefaultFontSize/2
	e.currentPage.DrawLine(e.left(), y, e.pageWidth-e.Margins.Right, y, builder.LineOptions{
		StrokeColor: builder.Color{R: 0.6, G: 0.6, B: 0.6},
		LineWidth:   0.75,
	})
	e.cursorY -= e.DefaultFontSize
}

var headerFill = builder.Color{R: 0.9, G: 0.9, B: 0.9}

// Table draws rows of cell text in equally wide columns. The first
// headerRows rows are shaded and repeated after page breaks. Cell text
// that does not fit is shortened with an ellipsis.
func (e *Engine) Table(rows [][]string, headerRows int) {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}
	e.ensurePage()
	width := e.contentWidth() / float64(cols)
	columns := make([]float64, cols)
	for i := range columns {
		columns[i] = width
	}
	fontSize := e.DefaultFontSize * 0.9
	const pad = 4.0
	rowHeight := fontSize*1.2 + 2*pad

	draw := func(r []string, header bool) {
		cells := make([]builder.TableCell, cols)
		for i := range cells {
			if i < len(r) {
				cells[i].Text = strings.Join(strings.Fields(r[i]), " ")
			}
			if header {
				cells[i].Font = styledFont(e.DefaultFont, true, false)
			}
		}
		opts := builder.TableOptions{
			X:           e.left(),
			Y:           e.cursorY,
			CellPadding: pad,
			BorderColor: builder.Color{R: 0.5, G: 0.5, B: 0.5},
			DefaultFont: e.DefaultFont,
			DefaultSize: fontSize,
		}
		if header {
			opts.HeaderFill = &headerFill
		}
		t := builder.Table{Columns: columns, Rows: []builder.TableRow{{Cells: cells}}}
		if header {
			t.HeaderRows = 1
		}
		e.currentPage.DrawTable(t, opts)
		e.cursorY -= rowHeight
	}
	headerRows = min(max(headerRows, 0), len(rows))
	for i, r := range rows {
		if e.cursorY-rowHeight < e.Margins.Bottom {
			e.checkPageBreak(rowHeight)
			if i >= headerRows {
				for _, h := range rows[:headerRows] {
					draw(h, true)
				}
			}
		}
		draw(r, i < headerRows)
	}
	e.renderParagraphSpacing()
}

func (e *Engine) renderParagraphSpacing() {
	if e.currentPage != nil {
		e.cursorY -= e.DefaultFontSize * (e.LineHeight - 1) * 2.5
	}
}

func isBlank(spans []TextSpan) bool {
	for _, s := range spans {
		if strings.TrimSpace(s.Text) != "" {
			return false
		}
	}
	return true
}

func (e *Engine) renderTextWrapped(text string, x float64, fontSize, lineHeight float64) {
	e.renderSpans([]TextSpan{{
		Text:     text,
		FontSize: fontSize,
	}}, x, lineHeight)
}

// renderSpans wraps spans into lines starting at x. Runs of white space
// collapse to one space; a newline forces a line break.
func (e *Engine) renderSpans(spans []TextSpan, x, lineHeight float64) {
	if len(spans) == 0 {
		return
	}
	e.ensurePage()

	maxWidth := e.pageWidth - e.Margins.Right - x

	type wordSpan struct {
		text  string
		span  TextSpan
		font  string
		width float64
	}

	var currentLine []wordSpan
	currentLineWidth := 0.0

	flushLine := func() {
		for len(currentLine) > 0 && currentLine[len(currentLine)-1].text == " " {
			currentLine = currentLine[:len(currentLine)-1]
		}
		if len(currentLine) == 0 {
			currentLineWidth = 0
			return
		}
		e.checkPageBreak(lineHeight)

		curX := x
		for _, ws := range currentLine {
			color := ws.span.Color
			if ws.span.Link != "" && color == builder.Black {
				color = linkColor
			}
			if ws.text != " " {
				e.currentPage.DrawText(ws.text, curX, e.cursorY-ws.span.FontSize, builder.TextOptions{
					Font:     ws.font,
					FontSize: ws.span.FontSize,
					Color:    color,
				})
			}
			if ws.span.Underline || ws.span.Link != "" {
				y := e.cursorY - ws.span.FontSize - 2
				e.currentPage.DrawLine(curX, y, curX+ws.width, y, builder.LineOptions{
					StrokeColor: color,
					LineWidth:   0.5,
				})
			}
			if ws.span.Strikethrough {
				midY := e.cursorY - ws.span.FontSize/2 - 1
				e.currentPage.DrawLine(curX, midY, curX+ws.width, midY, builder.LineOptions{
					StrokeColor: color,
					LineWidth:   0.75,
				})
			}
			curX += ws.width
		}
		e.cursorY -= lineHeight
		currentLine = nil
		currentLineWidth = 0
	}

	for _, span := range spans {
		if span.Text == "" {
			continue
		}
		if span.FontSize == 0 {
			span.FontSize = e.DefaultFontSize
		}
		font := e.font(span)
		size := span.FontSize
		spaceW := builder.TextWidth(" ", font, size)

		for _, token := range tokenize(span.Text) {
			switch token {
			case "\n":
				if len(currentLine) == 0 {
					e.checkPageBreak(lineHeight)
					e.cursorY -= lineHeight
					continue
				}
				flushLine()
				continue
			case " ":
				if len(currentLine) == 0 || currentLine[len(currentLine)-1].text == " " {
					continue
				}
				if currentLineWidth+spaceW > maxWidth {
					flushLine()
					continue
				}
				currentLine = append(currentLine, wordSpan{text: " ", span: span, font: font, width: spaceW})
				currentLineWidth += spaceW
				continue
			}

			w := builder.TextWidth(token, font, size)
			if currentLineWidth+w <= maxWidth {
				currentLine = append(currentLine, wordSpan{text: token, span: span, font: font, width: w})
				currentLineWidth += w
				continue
			}
			flushLine()
			if w <= maxWidth {
				currentLine = append(currentLine, wordSpan{text: token, span: span, font: font, width: w})
				currentLineWidth = w
				continue
			}
			// Character-level wrapping for words longer than a line.
			pieces := builder.WrapText(token, font, size, maxWidth)
			for i, p := range pieces {
				pw := builder.TextWidth(p, font, size)
				currentLine = append(currentLine, wordSpan{text: p, span: span, font: font, width: pw})
				currentLineWidth = pw
				if i < len(pieces)-1 {
					flushLine()
				}
			}
		}
	}
	flushLine()
}

// tokenize splits text into words, single spaces and newlines.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch r {
		case '\n':
			flush()
			tokens = append(tokens, "\n")
		case ' ', '\t', '\r', '\u00a0':
			flush()
			tokens = append(tokens, " ")
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
