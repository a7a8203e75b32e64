package render

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/wudi/docxform/contentstream"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// parseToUnicode reads the bfchar and bfrange sections of a ToUnicode
// CMap. The CMap syntax is close enough to content streams that the
// content stream parser tokenizes it; whatever parses before an error is
// kept.
func parseToUnicode(data []byte) map[uint32]string {
	ops, _ := contentstream.Parse(data)
	out := make(map[uint32]string)
	for _, op := range ops {
		switch op.Operator {
		case "endbfchar":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				src, ok1 := op.Operands[i].(contentstream.String)
				dst, ok2 := op.Operands[i+1].(contentstream.String)
				if ok1 && ok2 {
					out[codeOf(src.Value)] = decodeUTF16(dst.Value)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.Operands); i += 3 {
				lo, ok1 := op.Operands[i].(contentstream.String)
				hi, ok2 := op.Operands[i+1].(contentstream.String)
				if !ok1 || !ok2 {
					continue
				}
				first, last := codeOf(lo.Value), codeOf(hi.Value)
				if last < first || last-first > 0xFFFF {
					continue
				}
				switch dst := op.Operands[i+2].(type) {
				case contentstream.String:
					base := append([]byte(nil), dst.Value...)
					for c := first; c <= last; c++ {
						out[c] = decodeUTF16(offsetLast(base, c-first))
					}
				case contentstream.Array:
					for j, item := range dst {
						s, ok := item.(contentstream.String)
						if !ok || first+uint32(j) > last {
							continue
						}
						out[first+uint32(j)] = decodeUTF16(s.Value)
					}
				}
			}
		}
	}
	return out
}

func codeOf(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

// offsetLast adds n to the last UTF-16 unit of b.
func offsetLast(b []byte, n uint32) []byte {
	out := append([]byte(nil), b...)
	if len(out) < 2 {
		if len(out) == 1 {
			out[0] += byte(n)
		}
		return out
	}
	unit := uint32(out[len(out)-2])<<8 | uint32(out[len(out)-1])
	unit += n
	out[len(out)-2], out[len(out)-1] = byte(unit>>8), byte(unit)
	return out
}

func decodeUTF16(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	s, err := utf16BE.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}
