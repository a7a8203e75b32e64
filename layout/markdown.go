package layout

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// RenderMarkdown renders a GitHub flavoured markdown string using goldmark.
func (e *Engine) RenderMarkdown(source string) error {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))

	e.walkMarkdown(doc, src)
	e.Close()
	return nil
}

func (e *Engine) walkMarkdown(node ast.Node, source []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		e.renderMarkdownBlock(child, source)
	}
}

func (e *Engine) renderMarkdownBlock(node ast.Node, source []byte) {
	switch n := node.(type) {
	case *ast.Heading:
		e.Heading(n.Level, markdownSpans(n, source, TextSpan{}, nil))
	case *ast.Paragraph, *ast.TextBlock:
		e.Paragraph(markdownSpans(n, source, TextSpan{}, nil))
	case *ast.List:
		e.renderMarkdownList(n, source)
		e.renderParagraphSpacing()
	case *ast.FencedCodeBlock:
		e.CodeBlock(lines(n, source))
	case *ast.CodeBlock:
		e.CodeBlock(lines(n, source))
	case *ast.Blockquote:
		e.Indent(listIndent)
		e.walkMarkdown(n, source)
		e.Indent(-listIndent)
	case *ast.ThematicBreak:
		e.Rule()
	case *extast.Table:
		e.Table(markdownTable(n, source))
	case *ast.HTMLBlock:
		// Raw HTML is not interpreted inside markdown.
	default:
		e.walkMarkdown(n, source)
	}
}

func (e *Engine) renderMarkdownList(list *ast.List, source []byte) {
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if list.IsOrdered() {
			marker = strconv.Itoa(number) + "."
			number++
		}
		first := item.FirstChild()
		switch first.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			e.ListItem(marker, markdownSpans(first, source, TextSpan{}, nil))
			first = first.NextSibling()
		default:
			e.ListItem(marker, nil)
		}
		e.Indent(listIndent)
		for c := first; c != nil; c = c.NextSibling() {
			if l, ok := c.(*ast.List); ok {
				e.renderMarkdownList(l, source)
				continue
			}
			e.renderMarkdownBlock(c, source)
		}
		e.Indent(-listIndent)
	}
}

// markdownSpans flattens the inline children of n into styled spans.
func markdownSpans(n ast.Node, source []byte, style TextSpan, out []TextSpan) []TextSpan {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		s := style
		switch c := c.(type) {
		case *ast.Text:
			s.Text = string(c.Segment.Value(source))
			switch {
			case c.HardLineBreak():
				s.Text += "\n"
			case c.SoftLineBreak():
				s.Text += " "
			}
			out = append(out, s)
		case *ast.String:
			s.Text = string(c.Value)
			out = append(out, s)
		case *ast.CodeSpan:
			s.Code = true
			out = markdownSpans(c, source, s, out)
		case *ast.Emphasis:
			if c.Level >= 2 {
				s.Bold = true
			} else {
				s.Italic = true
			}
			out = markdownSpans(c, source, s, out)
		case *ast.Link:
			s.Link = string(c.Destination)
			out = markdownSpans(c, source, s, out)
		case *ast.AutoLink:
			s.Link = string(c.URL(source))
			s.Text = string(c.Label(source))
			out = append(out, s)
		case *ast.Image:
			s.Italic = true
			out = markdownSpans(c, source, s, out)
		case *extast.Strikethrough:
			s.Strikethrough = true
			out = markdownSpans(c, source, s, out)
		case *extast.TaskCheckBox:
			s.Code = true
			s.Text = "[ ] "
			if c.IsChecked {
				s.Text = "[x] "
			}
			out = append(out, s)
		case *ast.RawHTML:
		default:
			out = markdownSpans(c, source, s, out)
		}
	}
	return out
}

func plain(spans []TextSpan) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

func markdownTable(t *extast.Table, source []byte) ([][]string, int) {
	var rows [][]string
	header := 0
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var row []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			row = append(row, plain(markdownSpans(c, source, TextSpan{}, nil)))
		}
		if _, ok := r.(*extast.TableHeader); ok {
			header++
		}
		rows = append(rows, row)
	}
	return rows, header
}

func lines(n ast.Node, source []byte) string {
	var sb strings.Builder
	l := n.Lines()
	for i := 0; i < l.Len(); i++ {
		seg := l.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}
