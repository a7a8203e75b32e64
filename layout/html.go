package layout

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderHTML renders an HTML string to the PDF. Block elements map onto
// headings, paragraphs, lists, preformatted blocks, rules and tables;
// inline elements become span styles. Scripts, styles and the document
// head are skipped.
func (e *Engine) RenderHTML(source string) error {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return err
	}
	var inline []TextSpan
	e.walkHTML(doc, &inline)
	e.flushInline(&inline)
	e.Close()
	return nil
}

// walkHTML renders block children of n, collecting loose inline content
// into pending until the next block boundary.
func (e *Engine) walkHTML(n *html.Node, pending *[]TextSpan) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode || (c.Type == html.ElementNode && isInline(c.DataAtom)) {
			*pending = htmlSpans(c, TextSpan{}, *pending)
			continue
		}
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript:
			continue
		}
		e.flushInline(pending)
		e.renderHTMLBlock(c)
	}
}

func (e *Engine) flushInline(pending *[]TextSpan) {
	if len(*pending) > 0 {
		e.Paragraph(*pending)
		*pending = nil
	}
}

func (e *Engine) renderHTMLBlock(n *html.Node) {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		e.Heading(level, htmlChildSpans(n, TextSpan{}))
	case atom.P:
		e.Paragraph(htmlChildSpans(n, TextSpan{}))
	case atom.Ul, atom.Ol:
		e.renderHTMLList(n)
		e.renderParagraphSpacing()
	case atom.Pre:
		e.CodeBlock(rawText(n))
	case atom.Hr:
		e.Rule()
	case atom.Table:
		e.Table(htmlTable(n))
	case atom.Blockquote, atom.Dd:
		e.Indent(listIndent)
		e.walkBlock(n)
		e.Indent(-listIndent)
	default:
		e.walkBlock(n)
	}
}

func (e *Engine) walkBlock(n *html.Node) {
	var inline []TextSpan
	e.walkHTML(n, &inline)
	e.flushInline(&inline)
}

func (e *Engine) renderHTMLList(list *html.Node) {
	number := 1
	if v := attr(list, "start"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			number = s
		}
	}
	for item := list.FirstChild; item != nil; item = item.NextSibling {
		if item.Type != html.ElementNode || item.DataAtom != atom.Li {
			continue
		}
		marker := "•"
		if list.DataAtom == atom.Ol {
			marker = strconv.Itoa(number) + "."
			number++
		}
		// Inline content before the first nested block belongs to the marker.
		var spans []TextSpan
		c := item.FirstChild
		for ; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && !isInline(c.DataAtom) {
				break
			}
			spans = htmlSpans(c, TextSpan{}, spans)
		}
		e.ListItem(marker, spans)
		e.Indent(listIndent)
		var pending []TextSpan
		for ; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				e.flushInline(&pending)
				e.renderHTMLList(c)
				continue
			}
			if c.Type == html.TextNode || isInline(c.DataAtom) {
				pending = htmlSpans(c, TextSpan{}, pending)
				continue
			}
			e.flushInline(&pending)
			e.renderHTMLBlock(c)
		}
		e.flushInline(&pending)
		e.Indent(-listIndent)
	}
}

func isInline(a atom.Atom) bool {
	switch a {
	case atom.A, atom.Abbr, atom.B, atom.Big, atom.Br, atom.Cite, atom.Code, atom.Del,
		atom.Em, atom.Font, atom.I, atom.Img, atom.Ins, atom.Kbd, atom.Label, atom.Mark,
		atom.Q, atom.S, atom.Samp, atom.Small, atom.Span, atom.Strike, atom.Strong,
		atom.Sub, atom.Sup, atom.Time, atom.Tt, atom.U, atom.Var:
		return true
	}
	return false
}

func htmlChildSpans(n *html.Node, style TextSpan) []TextSpan {
	var out []TextSpan
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = htmlSpans(c, style, out)
	}
	return out
}

// htmlSpans appends the spans of n and its descendants.
func htmlSpans(n *html.Node, style TextSpan, out []TextSpan) []TextSpan {
	switch n.Type {
	case html.TextNode:
		s := style
		s.Text = collapseSpace.Replace(n.Data)
		return append(out, s)
	case html.ElementNode:
	default:
		return out
	}
	s := style
	switch n.DataAtom {
	case atom.Script, atom.Style:
		return out
	case atom.Br:
		s.Text = "\n"
		return append(out, s)
	case atom.Img:
		if alt := attr(n, "alt"); alt != "" {
			s.Text = alt
			s.Italic = true
			return append(out, s)
		}
		return out
	case atom.B, atom.Strong, atom.Th:
		s.Bold = true
	case atom.I, atom.Em, atom.Cite, atom.Var:
		s.Italic = true
	case atom.Code, atom.Kbd, atom.Samp, atom.Tt:
		s.Code = true
	case atom.A:
		s.Link = attr(n, "href")
	case atom.U, atom.Ins:
		s.Underline = true
	case atom.S, atom.Strike, atom.Del:
		s.Strikethrough = true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = htmlSpans(c, s, out)
	}
	return out
}

var collapseSpace = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

func htmlTable(t *html.Node) ([][]string, int) {
	var rows [][]string
	header := 0
	var walk func(n *html.Node, inHead bool)
	walk = func(n *html.Node, inHead bool) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Thead:
				walk(c, true)
			case atom.Tbody, atom.Tfoot:
				walk(c, false)
			case atom.Tr:
				var row []string
				allTh := true
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode || (cell.DataAtom != atom.Td && cell.DataAtom != atom.Th) {
						continue
					}
					allTh = allTh && cell.DataAtom == atom.Th
					row = append(row, plain(htmlChildSpans(cell, TextSpan{})))
				}
				if len(row) == 0 {
					continue
				}
				if (inHead || allTh) && header == len(rows) {
					header++
				}
				rows = append(rows, row)
			}
		}
	}
	walk(t, false)
	return rows, header
}

// rawText returns the text of n with white space preserved.
func rawText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.TrimPrefix(sb.String(), "\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
