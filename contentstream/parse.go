package contentstream

import (
	"fmt"
)

// Parse splits a decoded content stream into operations. On malformed input
// it returns the operations read so far together with the error.
func Parse(data []byte) ([]Operation, error) {
	l := &lexer{data: data}
	var ops []Operation
	var stack []Operand
	for {
		tok, err := l.next()
		if err != nil {
			return ops, err
		}
		switch tok.typ {
		case tokEOF:
			return ops, nil
		case tokKeyword:
			kw := tok.value.(string)
			switch kw {
			case "true", "false":
				stack = append(stack, Bool(kw == "true"))
				continue
			case "null":
				stack = append(stack, Null{})
				continue
			case "BI":
				op, err := parseInlineImage(l, tok.pos)
				if err != nil {
					return ops, err
				}
				ops = append(ops, op)
				stack = stack[:0]
				continue
			}
			ops = append(ops, Operation{Operator: kw, Operands: append([]Operand(nil), stack...), Offset: tok.pos})
			stack = stack[:0]
		default:
			v, err := parseOperand(l, tok)
			if err != nil {
				return ops, err
			}
			stack = append(stack, v)
		}
	}
}

func parseOperand(l *lexer, tok token) (Operand, error) {
	switch tok.typ {
	case tokNumber:
		return Number(tok.value.(float64)), nil
	case tokName:
		return Name(tok.value.(string)), nil
	case tokString:
		return String{Value: tok.value.([]byte), Hex: tok.hex}, nil
	case tokArrayOpen:
		var arr Array
		for {
			t, err := l.next()
			if err != nil {
				return nil, err
			}
			switch t.typ {
			case tokArrayClose:
				return arr, nil
			case tokEOF:
				return nil, fmt.Errorf("unterminated array at %d", tok.pos)
			case tokKeyword:
				switch t.value.(string) {
				case "true", "false":
					arr = append(arr, Bool(t.value.(string) == "true"))
				case "null":
					arr = append(arr, Null{})
				default:
					return nil, fmt.Errorf("unexpected %q in array at %d", t.value, t.pos)
				}
			default:
				v, err := parseOperand(l, t)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
		}
	case tokDictOpen:
		d := Dict{}
		for {
			t, err := l.next()
			if err != nil {
				return nil, err
			}
			if t.typ == tokDictClose {
				return d, nil
			}
			if t.typ != tokName {
				return nil, fmt.Errorf("dictionary key at %d is not a name", t.pos)
			}
			vt, err := l.next()
			if err != nil {
				return nil, err
			}
			v, err := parseValue(l, vt)
			if err != nil {
				return nil, err
			}
			d[t.value.(string)] = v
		}
	}
	return nil, fmt.Errorf("unexpected token at %d", tok.pos)
}

func parseValue(l *lexer, t token) (Operand, error) {
	if t.typ == tokKeyword {
		switch t.value.(string) {
		case "true", "false":
			return Bool(t.value.(string) == "true"), nil
		case "null":
			return Null{}, nil
		}
		return nil, fmt.Errorf("unexpected %q at %d", t.value, t.pos)
	}
	return parseOperand(l, t)
}

// parseInlineImage reads "BI <dict pairs> ID <data> EI".
func parseInlineImage(l *lexer, start int64) (Operation, error) {
	d := Dict{}
	for {
		t, err := l.next()
		if err != nil {
			return Operation{}, err
		}
		if t.typ == tokKeyword && t.value.(string) == "ID" {
			data, err := l.scanInlineImage()
			if err != nil {
				return Operation{}, fmt.Errorf("inline image at %d: %w", start, err)
			}
			return Operation{Operator: "BI", Operands: []Operand{d}, Offset: start, InlineData: data}, nil
		}
		if t.typ != tokName {
			return Operation{}, fmt.Errorf("inline image key at %d is not a name", t.pos)
		}
		vt, err := l.next()
		if err != nil {
			return Operation{}, err
		}
		v, err := parseValue(l, vt)
		if err != nil {
			return Operation{}, err
		}
		d[t.value.(string)] = v
	}
}
