package convert

import (
	"bytes"
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	lpdf "github.com/ledongthuc/pdf"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/recovery"
)

// PageTexts extracts the text of every page, one string per page with
// lines separated by "\n".
func PageTexts(ctx context.Context, doc *document.Document, progress Progress) ([]string, error) {
	data := doc.Bytes()
	if doc.Encrypted() {
		plain, err := editor.Decrypt(doc, doc.Password())
		if err != nil {
			return nil, err
		}
		data = plain
	}
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "convert.text", err)
	}
	n := r.NumPage()
	out := make([]string, n)
	err = each(ctx, n, progress, func(i int) error {
		return recovery.Guard("convert.text", func() error {
			p := r.Page(i + 1)
			if p.V.IsNull() {
				return nil
			}
			out[i] = pageText(p.Content().Text)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PDFToText joins the page texts with a blank line.
func PDFToText(ctx context.Context, doc *document.Document, progress Progress) ([]byte, error) {
	pages, err := PageTexts(ctx, doc, progress)
	if err != nil {
		return nil, err
	}
	return []byte(strings.Join(pages, "\n\n")), nil
}

type textLine struct {
	y     float64
	size  float64
	items []lpdf.Text
}

// pageText rebuilds lines from single glyph text items: items sharing a
// baseline form a line, lines run top to bottom, and a space is inserted
// where the horizontal gap between glyphs exceeds a fifth of the font size.
func pageText(items []lpdf.Text) string {
	var lines []*textLine
	for _, t := range items {
		if t.S == "" {
			continue
		}
		var line *textLine
		for _, l := range lines {
			if math.Abs(l.y-t.Y) <= math.Max(1, 0.3*math.Max(l.size, t.FontSize)) {
				line = l
				break
			}
		}
		if line == nil {
			line = &textLine{y: t.Y, size: t.FontSize}
			lines = append(lines, line)
		}
		line.items = append(line.items, t)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sort.SliceStable(l.items, func(a, b int) bool { return l.items[a].X < l.items[b].X })
		var line strings.Builder
		var prev *lpdf.Text
		for k := range l.items {
			t := &l.items[k]
			if prev != nil && needsSpace(*prev, *t, line.String()) {
				line.WriteByte(' ')
			}
			line.WriteString(t.S)
			prev = t
		}
		sb.WriteString(strings.TrimRightFunc(line.String(), unicode.IsSpace))
	}
	return sb.String()
}

func needsSpace(prev, next lpdf.Text, soFar string) bool {
	if strings.HasSuffix(soFar, " ") || strings.HasPrefix(next.S, " ") {
		return false
	}
	w := prev.W
	if w == 0 && builder.IsStandardFont(prev.Font) {
		w = builder.TextWidth(prev.S, prev.Font, prev.FontSize)
	}
	size := math.Max(prev.FontSize, next.FontSize)
	if size <= 0 {
		size = 10
	}
	return next.X-(prev.X+w) > 0.2*size
}
