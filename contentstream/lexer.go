package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

type tokenType int

const (
	tokDictOpen tokenType = iota
	tokDictClose
	tokArrayOpen
	tokArrayClose
	tokName
	tokString
	tokNumber
	tokKeyword
	tokEOF
)

type token struct {
	typ   tokenType
	value interface{}
	hex   bool
	pos   int64
}

// lexer tokenizes a decoded content stream held in memory.
type lexer struct {
	data []byte
	pos  int64
}

func (l *lexer) peek(n int64) byte {
	if l.pos+n >= int64(len(l.data)) {
		return 0
	}
	return l.data[l.pos+n]
}

func (l *lexer) skipWSAndComments() {
	for l.pos < int64(len(l.data)) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < int64(len(l.data)) && !isEOL(l.data[l.pos]) {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) next() (token, error) {
	l.skipWSAndComments()
	if l.pos >= int64(len(l.data)) {
		return token{typ: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.data[l.pos]
	switch c {
	case '<':
		if l.peek(1) == '<' {
			l.pos += 2
			return token{typ: tokDictOpen, pos: start}, nil
		}
		return l.scanHexString()
	case '>':
		if l.peek(1) == '>' {
			l.pos += 2
			return token{typ: tokDictClose, pos: start}, nil
		}
		l.pos++
		return token{}, fmt.Errorf("unexpected '>' at %d", start)
	case '[':
		l.pos++
		return token{typ: tokArrayOpen, pos: start}, nil
	case ']':
		l.pos++
		return token{typ: tokArrayClose, pos: start}, nil
	case '(':
		return l.scanLiteralString()
	case '/':
		return l.scanName(), nil
	case '{', '}':
		l.pos++
		return token{typ: tokKeyword, value: string(c), pos: start}, nil
	}
	if isDigitStart(c) {
		return l.scanNumber()
	}
	return l.scanKeyword(), nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func (l *lexer) scanName() token {
	start := l.pos
	l.pos++ // skip '/'
	var out bytes.Buffer
	for l.pos < int64(len(l.data)) {
		c := l.data[l.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && l.pos+2 < int64(len(l.data)) {
			a, b := fromHex(l.data[l.pos+1]), fromHex(l.data[l.pos+2])
			out.WriteByte(a<<4 | b)
			l.pos += 3
			continue
		}
		out.WriteByte(c)
		l.pos++
	}
	return token{typ: tokName, value: out.String(), pos: start}
}

func (l *lexer) scanLiteralString() (token, error) {
	start := l.pos
	l.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for l.pos < int64(len(l.data)) {
		c := l.data[l.pos]
		if c == '\\' {
			l.pos++
			if l.pos >= int64(len(l.data)) {
				break
			}
			esc := l.data[l.pos]
			switch {
			case esc == '\r':
				l.pos++
				if l.peek(0) == '\n' {
					l.pos++
				}
			case esc == '\n':
				l.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				l.pos++
				for k := 0; k < 2 && l.pos < int64(len(l.data)); k++ {
					d := l.data[l.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					l.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
				l.pos++
			}
			continue
		}
		l.pos++
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
			if depth == 0 {
				return token{typ: tokString, value: buf.Bytes(), pos: start}, nil
			}
		}
		buf.WriteByte(c)
	}
	return token{}, fmt.Errorf("unterminated literal string at %d", start)
}

func (l *lexer) scanHexString() (token, error) {
	start := l.pos
	l.pos++ // skip '<'
	var hexbuf []byte
	for l.pos < int64(len(l.data)) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if len(hexbuf)%2 == 1 {
				hexbuf = append(hexbuf, '0')
			}
			out := make([]byte, 0, len(hexbuf)/2)
			for i := 0; i < len(hexbuf); i += 2 {
				out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
			}
			return token{typ: tokString, value: out, hex: true, pos: start}, nil
		}
		if !isWhitespace(c) {
			hexbuf = append(hexbuf, c)
		}
	}
	return token{}, fmt.Errorf("unterminated hex string at %d", start)
}

func (l *lexer) scanNumber() (token, error) {
	start := l.pos
	for l.pos < int64(len(l.data)) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	s := string(l.data[start:l.pos])
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// A lone sign or dot reads as zero.
		if s == "-" || s == "+" || s == "." {
			return token{typ: tokNumber, value: 0.0, pos: start}, nil
		}
		return token{}, fmt.Errorf("invalid number %q at %d", s, start)
	}
	return token{typ: tokNumber, value: f, pos: start}, nil
}

func (l *lexer) scanKeyword() token {
	start := l.pos
	for l.pos < int64(len(l.data)) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++ // stray delimiter such as ')'
	}
	return token{typ: tokKeyword, value: string(l.data[start:l.pos]), pos: start}
}

var errUnterminatedInline = errors.New("unterminated inline image")

// scanInlineImage is called right after the ID keyword and returns the raw
// image bytes up to the EI keyword.
func (l *lexer) scanInlineImage() ([]byte, error) {
	if l.pos < int64(len(l.data)) && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
	dataStart := l.pos
	for l.pos+1 < int64(len(l.data)) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			l.pos > dataStart && isWhitespace(l.data[l.pos-1]) &&
			(l.pos+2 >= int64(len(l.data)) || isDelimiter(l.data[l.pos+2])) {
			payload := l.data[dataStart : l.pos-1]
			l.pos += 2
			return payload, nil
		}
		l.pos++
	}
	return nil, errUnterminatedInline
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}
func isEOL(c byte) bool { return c == '\r' || c == '\n' }
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}
