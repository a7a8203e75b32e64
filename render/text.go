package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/raster"
)

func (r *runner) opBeginText(contentstream.Operation) error {
	r.tm, r.tlm = coords.Identity(), coords.Identity()
	return nil
}

func (r *runner) opEndText(contentstream.Operation) error { return nil }

func (r *runner) opFont(op contentstream.Operation) error {
	name, err := op.Name(0)
	if err != nil {
		return err
	}
	size, err := op.Float(1)
	if err != nil {
		return err
	}
	obj, err := r.resource("Font", name)
	if err != nil {
		r.gs.font = defaultFont()
		r.gs.fontSize = size
		return err
	}
	var f *pdfFont
	if ref, ok := obj.(types.IndirectRef); ok {
		f, err = r.loadFont(ref)
	} else {
		f, err = r.buildFont(obj)
	}
	if err != nil {
		f = defaultFont()
	}
	r.gs.font = f
	r.gs.fontSize = size
	return err
}

func (r *runner) textParam(set func(float64)) contentstream.HandlerFunc {
	return func(op contentstream.Operation) error {
		v, err := op.Float(0)
		if err != nil {
			return err
		}
		set(v)
		return nil
	}
}

func (r *runner) opRenderMode(op contentstream.Operation) error {
	v, err := op.Float(0)
	if err != nil {
		return err
	}
	if v < 0 || v > 7 {
		return fmt.Errorf("text render mode %v out of range", v)
	}
	r.gs.renderMode = contentstream.TextRenderMode(v)
	return nil
}

func (r *runner) moveLine(tx, ty float64) {
	r.tlm = coords.Translate(tx, ty).Multiply(r.tlm)
	r.tm = r.tlm
}

func (r *runner) opTextMove(op contentstream.Operation) error {
	v, err := op.Floats(2)
	if err != nil {
		return err
	}
	r.moveLine(v[0], v[1])
	return nil
}

func (r *runner) opTextMoveLeading(op contentstream.Operation) error {
	v, err := op.Floats(2)
	if err != nil {
		return err
	}
	r.gs.leading = -v[1]
	r.moveLine(v[0], v[1])
	return nil
}

func (r *runner) opTextMatrix(op contentstream.Operation) error {
	v, err := op.Floats(6)
	if err != nil {
		return err
	}
	r.tm = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
	r.tlm = r.tm
	return nil
}

func (r *runner) opNextLine(contentstream.Operation) error {
	r.moveLine(0, -r.gs.leading)
	return nil
}

func (r *runner) opShowText(op contentstream.Operation) error {
	s, err := stringOperand(op, 0)
	if err != nil {
		return err
	}
	r.show(s)
	return nil
}

func (r *runner) opNextLineShow(op contentstream.Operation) error {
	r.moveLine(0, -r.gs.leading)
	return r.opShowText(op)
}

func (r *runner) opSpacingShow(op contentstream.Operation) error {
	v, err := op.Floats(2)
	if err != nil {
		return err
	}
	s, err := stringOperand(op, 2)
	if err != nil {
		return err
	}
	r.gs.wordSpacing, r.gs.charSpacing = v[0], v[1]
	r.moveLine(0, -r.gs.leading)
	r.show(s)
	return nil
}

func (r *runner) opShowTextArray(op contentstream.Operation) error {
	if len(op.Operands) == 0 {
		return fmt.Errorf("TJ: missing array")
	}
	arr, ok := op.Operands[0].(contentstream.Array)
	if !ok {
		return fmt.Errorf("TJ: operand is %T", op.Operands[0])
	}
	for _, item := range arr {
		switch v := item.(type) {
		case contentstream.String:
			r.show(v.Value)
		case contentstream.Number:
			tx := -float64(v) / 1000 * r.gs.fontSize * r.gs.hscale
			r.tm = coords.Translate(tx, 0).Multiply(r.tm)
		}
	}
	return nil
}

func stringOperand(op contentstream.Operation, i int) ([]byte, error) {
	if i >= len(op.Operands) {
		return nil, fmt.Errorf("%s: missing string", op.Operator)
	}
	s, ok := op.Operands[i].(contentstream.String)
	if !ok {
		return nil, fmt.Errorf("%s: operand %d is %T, want string", op.Operator, i, op.Operands[i])
	}
	return s.Value, nil
}

// show draws the glyphs of s and advances the text matrix.
func (r *runner) show(s []byte) {
	f := r.gs.font
	if f == nil {
		f = defaultFont()
		r.gs.font = f
	}
	fs, th := r.gs.fontSize, r.gs.hscale
	mode := r.gs.renderMode
	path := raster.NewPath()
	for _, gc := range f.codes(s) {
		gid, ok := f.glyph(gc.code)
		if mode.Paints() && ok {
			trm := coords.Matrix{fs * th, 0, 0, fs, 0, r.gs.rise}.Multiply(r.tm).Multiply(r.gs.ctm)
			f.face.AppendOutline(path.Sink(), gid, func(x, y float64) (float64, float64) {
				return trm.Apply(x, y)
			})
		}
		adv := f.width(gc.code, gid, ok)*fs + r.gs.charSpacing
		if gc.single && gc.code == ' ' {
			adv += r.gs.wordSpacing
		}
		r.tm = coords.Translate(adv*th, 0).Multiply(r.tm)
	}
	if path.Empty() {
		return
	}
	if mode.Fills() {
		r.fillText(path)
	}
	if mode.Strokes() {
		r.strokeText(path)
	}
}

func (r *runner) fillText(p *raster.Path) {
	if !r.gs.fill.pattern {
		r.surface.FillPath(p, r.gs.fill.c, r.gs.fillAlpha, r.gs.clip)
	}
}

func (r *runner) strokeText(p *raster.Path) {
	if !r.gs.stroke.pattern {
		w := r.gs.lineWidth * r.gs.ctm.ScaleFactor()
		r.surface.StrokePath(p, w, r.gs.stroke.c, r.gs.strokeAlpha, r.gs.clip)
	}
}

// glyphRune maps a glyph name from an encoding Differences array to a
// rune, or 0 when unknown.
func glyphRune(name string) rune {
	if r, ok := glyphNames[name]; ok {
		return r
	}
	if len(name) == 1 {
		return rune(name[0])
	}
	for _, prefix := range []string{"uni", "u"} {
		if strings.HasPrefix(name, prefix) && len(name) >= len(prefix)+4 {
			hex := name[len(prefix):]
			if prefix == "uni" {
				hex = hex[:4]
			}
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return rune(v)
			}
		}
	}
	return 0
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "parenleft": '(',
	"parenright": ')', "asterisk": '*', "plus": '+', "comma": ',', "hyphen": '-',
	"period": '.', "slash": '/', "zero": '0', "one": '1', "two": '2', "three": '3',
	"four": '4', "five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=', "greater": '>',
	"question": '?', "at": '@', "bracketleft": '[', "backslash": '\\',
	"bracketright": ']', "asciicircum": '^', "underscore": '_', "grave": '`',
	"braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
	"bullet": '•', "endash": '–', "emdash": '—', "quoteleft": '‘', "quoteright": '’',
	"quotedblleft": '“', "quotedblright": '”', "ellipsis": '…', "fi": 'ﬁ', "fl": 'ﬂ',
	"Euro": '€', "copyright": '©', "registered": '®', "trademark": '™', "degree": '°',
	"section": '§', "paragraph": '¶', "dagger": '†', "daggerdbl": '‡', "minus": '−',
	"multiply": '×', "divide": '÷', "nbspace": ' ',
}
