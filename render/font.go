package render

import (
	"fmt"
	"strings"

	gofont "github.com/go-text/typesetting/font"
	pdffont "github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/fonts"
)

// pdfFont is a font resource prepared for drawing.
type pdfFont struct {
	name      string
	composite bool // two byte codes (Type0)
	face      *fonts.Face
	embedded  bool
	core      string // standard 14 name used for missing widths

	widths    map[uint32]float64 // glyph space units (1/1000 em)
	dw        float64
	toUnicode map[uint32]string
	encoding  *[256]rune
	cidToGID  []uint16 // nil means identity
	// unitScale converts widths to em; Type3 fonts use their FontMatrix.
	unitScale float64
	type3     bool
}

// glyphCode is one character code of a shown string.
type glyphCode struct {
	code   uint32
	single bool
}

// codes splits a shown string into character codes.
func (f *pdfFont) codes(b []byte) []glyphCode {
	if !f.composite {
		out := make([]glyphCode, len(b))
		for i, c := range b {
			out[i] = glyphCode{code: uint32(c), single: true}
		}
		return out
	}
	out := make([]glyphCode, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		out = append(out, glyphCode{code: uint32(b[i])<<8 | uint32(b[i+1])})
	}
	return out
}

// width is the advance of code in em.
func (f *pdfFont) width(code uint32, gid gofont.GID, hasGlyph bool) float64 {
	if w, ok := f.widths[code]; ok {
		return w * f.unitScale
	}
	if f.composite {
		return f.dw * f.unitScale
	}
	if f.core != "" && code < 256 {
		if w := pdffont.CharWidth(f.core, rune(code)); w > 0 {
			return float64(w) / 1000
		}
	}
	if hasGlyph {
		return f.face.Advance(gid)
	}
	return f.dw * f.unitScale
}

// text returns the Unicode text for code, used when the face must be
// addressed by character.
func (f *pdfFont) text(code uint32) []rune {
	if s, ok := f.toUnicode[code]; ok && s != "" {
		return []rune(s)
	}
	if !f.composite && f.encoding != nil && code < 256 {
		if r := f.encoding[code]; r != 0 {
			return []rune{r}
		}
	}
	return []rune{rune(code)}
}

// glyph finds the glyph to draw for code.
func (f *pdfFont) glyph(code uint32) (gofont.GID, bool) {
	if f.type3 {
		return 0, false
	}
	if f.composite && f.embedded {
		if f.cidToGID != nil {
			if int(code) < len(f.cidToGID) {
				return gofont.GID(f.cidToGID[code]), true
			}
			return 0, false
		}
		return gofont.GID(code), true
	}
	rs := f.text(code)
	if len(rs) == 0 {
		return 0, false
	}
	if gid, ok := f.face.Glyph(rs[0]); ok {
		return gid, true
	}
	if f.embedded && !f.composite {
		// Symbolic TrueType fonts map codes through the (3,0) cmap.
		if gid, ok := f.face.Glyph(0xF000 + rune(code)); ok {
			return gid, true
		}
		if gid, ok := f.face.Glyph(rune(code)); ok {
			return gid, true
		}
	}
	return 0, false
}

// defaultFont stands in when text is shown before any Tf.
func defaultFont() *pdfFont {
	enc := winAnsi()
	return &pdfFont{
		name:      "Helvetica",
		face:      fonts.Substitute("Helvetica"),
		core:      "Helvetica",
		encoding:  enc,
		dw:        500,
		unitScale: 1.0 / 1000,
	}
}

func (r *runner) loadFont(ref types.IndirectRef) (*pdfFont, error) {
	if f, ok := r.fonts[ref]; ok {
		return f, nil
	}
	f, err := r.buildFont(ref)
	if err != nil {
		return nil, err
	}
	r.fonts[ref] = f
	return f, nil
}

func (r *runner) buildFont(obj types.Object) (*pdfFont, error) {
	d, err := r.xref.DereferenceDict(obj)
	if err != nil || d == nil {
		return nil, fmt.Errorf("font dictionary: %v", err)
	}
	subtype := ""
	if s := d.NameEntry("Subtype"); s != nil {
		subtype = *s
	}
	base := ""
	if s := d.NameEntry("BaseFont"); s != nil {
		base = *s
	}
	f := &pdfFont{name: base, dw: 1000, unitScale: 1.0 / 1000}
	if obj, ok := d.Find("ToUnicode"); ok {
		if data, err := r.bytesOf(obj); err == nil {
			f.toUnicode = parseToUnicode(data)
		}
	}

	switch subtype {
	case "Type0":
		f.composite = true
		if err := r.loadDescendant(d, f); err != nil {
			return nil, err
		}
	case "Type3":
		f.type3 = true
		f.unitScale = 1
		if m := d.ArrayEntry("FontMatrix"); len(m) == 6 {
			if v, err := r.xref.DereferenceNumber(m[0]); err == nil {
				f.unitScale = v
			}
		}
		f.face = fonts.Regular()
		r.simpleWidths(d, f)
		f.encoding = r.simpleEncoding(d, winAnsi())
	default:
		f.dw = 0
		r.simpleWidths(d, f)
		f.core = coreName(base)
		start := winAnsi()
		switch f.core {
		case "Symbol", "ZapfDingbats":
			start = identityEncoding()
		}
		f.encoding = r.simpleEncoding(d, start)
		f.face, f.embedded = r.embeddedFace(d, base)
	}
	if f.face == nil {
		f.face = fonts.Substitute(base)
	}
	return f, nil
}

func (r *runner) loadDescendant(d types.Dict, f *pdfFont) error {
	arr := d.ArrayEntry("DescendantFonts")
	if arr == nil {
		if obj, ok := d.Find("DescendantFonts"); ok {
			arr, _ = r.xref.DereferenceArray(obj)
		}
	}
	if len(arr) == 0 {
		return fmt.Errorf("Type0 font %s without descendant", f.name)
	}
	cid, err := r.xref.DereferenceDict(arr[0])
	if err != nil || cid == nil {
		return fmt.Errorf("descendant font: %v", err)
	}
	if v, ok := r.number(cid, "DW"); ok {
		f.dw = v
	}
	if obj, ok := cid.Find("W"); ok {
		if w, err := r.xref.DereferenceArray(obj); err == nil {
			f.widths = r.cidWidths(w)
		}
	}
	if obj, ok := cid.Find("CIDToGIDMap"); ok {
		if sd, _, err := r.xref.DereferenceStreamDict(obj); err == nil && sd != nil {
			if data, err := document.StreamContent(sd); err == nil {
				m := make([]uint16, len(data)/2)
				for i := range m {
					m[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
				}
				f.cidToGID = m
			}
		}
	}
	f.face, f.embedded = r.embeddedFace(cid, f.name)
	return nil
}

// cidWidths reads a CIDFont W array: "c [w1 w2 ...]" and "c1 c2 w" runs.
func (r *runner) cidWidths(w types.Array) map[uint32]float64 {
	out := make(map[uint32]float64)
	for i := 0; i < len(w); {
		first, err := r.xref.DereferenceNumber(w[i])
		if err != nil || i+1 >= len(w) {
			break
		}
		next, _ := r.xref.Dereference(w[i+1])
		if list, ok := next.(types.Array); ok {
			for j, o := range list {
				if v, err := r.xref.DereferenceNumber(o); err == nil {
					out[uint32(first)+uint32(j)] = v
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(w) {
			break
		}
		last, err1 := r.xref.DereferenceNumber(w[i+1])
		v, err2 := r.xref.DereferenceNumber(w[i+2])
		if err1 != nil || err2 != nil {
			break
		}
		for c := uint32(first); c <= uint32(last) && c-uint32(first) < 65536; c++ {
			out[c] = v
		}
		i += 3
	}
	return out
}

func (r *runner) simpleWidths(d types.Dict, f *pdfFont) {
	first := 0
	if v, ok := r.number(d, "FirstChar"); ok {
		first = int(v)
	}
	obj, ok := d.Find("Widths")
	if !ok {
		return
	}
	arr, err := r.xref.DereferenceArray(obj)
	if err != nil {
		return
	}
	f.widths = make(map[uint32]float64, len(arr))
	for i, o := range arr {
		if v, err := r.xref.DereferenceNumber(o); err == nil {
			f.widths[uint32(first+i)] = v
		}
	}
	if desc, err := r.descriptor(d); err == nil && desc != nil {
		if v, ok := r.number(desc, "MissingWidth"); ok {
			f.dw = v
		}
	}
}

func (r *runner) descriptor(d types.Dict) (types.Dict, error) {
	obj, ok := d.Find("FontDescriptor")
	if !ok {
		return nil, nil
	}
	return r.xref.DereferenceDict(obj)
}

// embeddedFace parses an embedded TrueType or OpenType program. Bare CFF
// and Type 1 programs are not parsed; those fonts use a substitute.
func (r *runner) embeddedFace(d types.Dict, base string) (*fonts.Face, bool) {
	desc, err := r.descriptor(d)
	if err != nil || desc == nil {
		return nil, false
	}
	for _, key := range []string{"FontFile2", "FontFile3"} {
		obj, ok := desc.Find(key)
		if !ok {
			continue
		}
		sd, _, err := r.xref.DereferenceStreamDict(obj)
		if err != nil || sd == nil {
			continue
		}
		if key == "FontFile3" {
			if st := sd.NameEntry("Subtype"); st == nil || *st != "OpenType" {
				continue
			}
		}
		data, err := document.StreamContent(sd)
		if err != nil {
			continue
		}
		face, err := fonts.Parse(base, data)
		if err != nil {
			r.opts.Logger.Debug("embedded font not usable, substituting")
			continue
		}
		return face, true
	}
	return nil, false
}

func (r *runner) simpleEncoding(d types.Dict, start *[256]rune) *[256]rune {
	enc := *start
	obj, ok := d.Find("Encoding")
	if !ok {
		return &enc
	}
	obj, err := r.xref.Dereference(obj)
	if err != nil {
		return &enc
	}
	switch e := obj.(type) {
	case types.Name:
		enc = *namedEncoding(e.Value(), start)
	case types.Dict:
		if b := e.NameEntry("BaseEncoding"); b != nil {
			enc = *namedEncoding(*b, start)
		}
		if obj, ok := e.Find("Differences"); ok {
			if diffs, err := r.xref.DereferenceArray(obj); err == nil {
				code := 0
				for _, o := range diffs {
					switch v := o.(type) {
					case types.Integer:
						code = v.Value()
					case types.Name:
						if code >= 0 && code < 256 {
							if g := glyphRune(v.Value()); g != 0 {
								enc[code] = g
							}
						}
						code++
					}
				}
			}
		}
	}
	return &enc
}

func namedEncoding(name string, fallback *[256]rune) *[256]rune {
	switch name {
	case "WinAnsiEncoding", "StandardEncoding":
		return winAnsi()
	case "MacRomanEncoding":
		return fromCharmap(charmap.Macintosh)
	}
	return fallback
}

func winAnsi() *[256]rune { return fromCharmap(charmap.Windows1252) }

func fromCharmap(cm *charmap.Charmap) *[256]rune {
	var enc [256]rune
	for i := range enc {
		enc[i] = cm.DecodeByte(byte(i))
	}
	return &enc
}

func identityEncoding() *[256]rune {
	var enc [256]rune
	for i := range enc {
		enc[i] = rune(i)
	}
	return &enc
}

// coreName maps a base font name onto one of the standard 14 fonts, or "".
func coreName(base string) string {
	name := base
	if i := strings.IndexByte(name, '+'); i == 6 {
		name = name[i+1:]
	}
	if pdffont.IsCoreFont(name) {
		return name
	}
	lower := strings.ToLower(name)
	bold := strings.Contains(lower, "bold")
	italic := strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")
	var family string
	switch {
	case strings.HasPrefix(lower, "arial"), strings.HasPrefix(lower, "helvetica"):
		family = "Helvetica"
	case strings.HasPrefix(lower, "times"):
		family = "Times"
	case strings.HasPrefix(lower, "courier"):
		family = "Courier"
	default:
		return ""
	}
	switch {
	case family == "Times" && bold && italic:
		return "Times-BoldItalic"
	case family == "Times" && bold:
		return "Times-Bold"
	case family == "Times" && italic:
		return "Times-Italic"
	case family == "Times":
		return "Times-Roman"
	case bold && italic:
		return family + "-BoldOblique"
	case bold:
		return family + "-Bold"
	case italic:
		return family + "-Oblique"
	}
	return family
}
