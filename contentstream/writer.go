package contentstream

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/docxform/coords"
)

// Writer assembles a content stream.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

// Bytes returns the stream written so far.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return w.buf.Len() }

// Op writes one operation.
func (w *Writer) Op(operator string, operands ...Operand) *Writer {
	for _, o := range operands {
		writeOperand(&w.buf, o)
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString(operator)
	w.buf.WriteByte('\n')
	return w
}

// Ops writes previously parsed operations back out.
func (w *Writer) Ops(ops []Operation) *Writer {
	for _, op := range ops {
		if op.Operator == "BI" {
			w.buf.WriteString("BI\n")
			if len(op.Operands) == 1 {
				if d, ok := op.Operands[0].(Dict); ok {
					for _, k := range sortedKeys(d) {
						writeOperand(&w.buf, Name(k))
						w.buf.WriteByte(' ')
						writeOperand(&w.buf, d[k])
						w.buf.WriteByte('\n')
					}
				}
			}
			w.buf.WriteString("ID ")
			w.buf.Write(op.InlineData)
			w.buf.WriteString("\nEI\n")
			continue
		}
		w.Op(op.Operator, op.Operands...)
	}
	return w
}

func nums(vs ...float64) []Operand {
	out := make([]Operand, len(vs))
	for i, v := range vs {
		out[i] = Number(v)
	}
	return out
}

func (w *Writer) Save() *Writer    { return w.Op("q") }
func (w *Writer) Restore() *Writer { return w.Op("Q") }

// Concat multiplies the CTM by m.
func (w *Writer) Concat(m coords.Matrix) *Writer { return w.Op("cm", nums(m[:]...)...) }

func (w *Writer) FillRGB(r, g, b float64) *Writer   { return w.Op("rg", nums(r, g, b)...) }
func (w *Writer) StrokeRGB(r, g, b float64) *Writer { return w.Op("RG", nums(r, g, b)...) }
func (w *Writer) LineWidth(v float64) *Writer       { return w.Op("w", Number(v)) }

func (w *Writer) MoveTo(x, y float64) *Writer { return w.Op("m", nums(x, y)...) }
func (w *Writer) LineTo(x, y float64) *Writer { return w.Op("l", nums(x, y)...) }
func (w *Writer) Rect(x, y, width, height float64) *Writer {
	return w.Op("re", nums(x, y, width, height)...)
}
func (w *Writer) Fill() *Writer       { return w.Op("f") }
func (w *Writer) Stroke() *Writer     { return w.Op("S") }
func (w *Writer) FillStroke() *Writer { return w.Op("B") }
func (w *Writer) ClosePath() *Writer  { return w.Op("h") }

// ExtGState selects a named graphics state dictionary (opacity).
func (w *Writer) ExtGState(name string) *Writer { return w.Op("gs", Name(name)) }

// XObject paints a named image or form XObject.
func (w *Writer) XObject(name string) *Writer { return w.Op("Do", Name(name)) }

func (w *Writer) BeginText() *Writer { return w.Op("BT") }
func (w *Writer) EndText() *Writer   { return w.Op("ET") }
func (w *Writer) Font(name string, size float64) *Writer {
	return w.Op("Tf", Name(name), Number(size))
}
func (w *Writer) TextMatrix(m coords.Matrix) *Writer { return w.Op("Tm", nums(m[:]...)...) }
func (w *Writer) RenderMode(m TextRenderMode) *Writer {
	return w.Op("Tr", Number(m))
}

// HorizontalScaling sets Tz, in percent.
func (w *Writer) HorizontalScaling(pct float64) *Writer { return w.Op("Tz", Number(pct)) }

// ShowText writes s with Tj, encoded as WinAnsi for the standard fonts.
// Characters outside WinAnsi become '?'.
func (w *Writer) ShowText(s string) *Writer {
	return w.Op("Tj", String{Value: EncodeWinAnsi(s)})
}

// EncodeWinAnsi maps s to Windows-1252 bytes, replacing unmappable runes.
func EncodeWinAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return out
}

// DecodeWinAnsi maps Windows-1252 bytes to a string.
func DecodeWinAnsi(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(charmap.Windows1252.DecodeByte(c))
	}
	return sb.String()
}

func writeOperand(buf *bytes.Buffer, o Operand) {
	switch v := o.(type) {
	case Number:
		buf.WriteString(formatNumber(float64(v)))
	case Name:
		buf.WriteByte('/')
		for i := 0; i < len(v); i++ {
			c := v[i]
			if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
				buf.WriteByte('#')
				buf.WriteByte("0123456789ABCDEF"[c>>4])
				buf.WriteByte("0123456789ABCDEF"[c&0x0f])
				continue
			}
			buf.WriteByte(c)
		}
	case Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Null:
		buf.WriteString("null")
	case String:
		if v.Hex {
			buf.WriteByte('<')
			for _, c := range v.Value {
				buf.WriteByte("0123456789ABCDEF"[c>>4])
				buf.WriteByte("0123456789ABCDEF"[c&0x0f])
			}
			buf.WriteByte('>')
			return
		}
		buf.WriteByte('(')
		for _, c := range v.Value {
			switch c {
			case '(', ')', '\\':
				buf.WriteByte('\\')
				buf.WriteByte(c)
			case '\r':
				buf.WriteString(`\r`)
			case '\n':
				buf.WriteString(`\n`)
			default:
				buf.WriteByte(c)
			}
		}
		buf.WriteByte(')')
	case Array:
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeOperand(buf, e)
		}
		buf.WriteByte(']')
	case Dict:
		buf.WriteString("<<")
		for _, k := range sortedKeys(v) {
			writeOperand(buf, Name(k))
			buf.WriteByte(' ')
			writeOperand(buf, v[k])
			buf.WriteByte(' ')
		}
		buf.WriteString(">>")
	}
}

func sortedKeys(d Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
