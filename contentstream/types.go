package contentstream

// TextRenderMode is the operand of Tr.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Fills reports whether glyph interiors are painted.
func (m TextRenderMode) Fills() bool {
	return m == TextFill || m == TextFillStroke || m == TextFillClip || m == TextFillStrokeClip
}

// Strokes reports whether glyph outlines are painted.
func (m TextRenderMode) Strokes() bool {
	return m == TextStroke || m == TextFillStroke || m == TextStrokeClip || m == TextFillStrokeClip
}

// Paints reports whether glyphs leave marks on the page.
func (m TextRenderMode) Paints() bool { return m.Fills() || m.Strokes() }
