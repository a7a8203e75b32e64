package convert

import (
	"context"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/layout"
	"github.com/wudi/docxform/recovery"
)

// SourceKind is a document format that can be laid out as PDF.
type SourceKind string

const (
	Word       SourceKind = "docx"
	Excel      SourceKind = "xlsx"
	PowerPoint SourceKind = "pptx"
	HTML       SourceKind = "html"
	Markdown   SourceKind = "markdown"
	Text       SourceKind = "text"
)

var extensionKinds = map[string]SourceKind{
	"docx":     Word,
	"xlsx":     Excel,
	"pptx":     PowerPoint,
	"html":     HTML,
	"htm":      HTML,
	"xhtml":    HTML,
	"md":       Markdown,
	"markdown": Markdown,
	"txt":      Text,
	"text":     Text,
	"log":      Text,
	"csv":      Text,
}

var mimeKinds = map[string]SourceKind{
	DocxMIME: Word,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         Excel,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": PowerPoint,
	"text/html":     HTML,
	"text/markdown": Markdown,
	"text/plain":    Text,
}

// DetectSource picks the source kind from the file extension, falling
// back to the media type.
func DetectSource(name, mime string) (SourceKind, bool) {
	if k, ok := extensionKinds[File{Name: name}.Ext()]; ok {
		return k, true
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	k, ok := mimeKinds[strings.TrimSpace(strings.ToLower(mime))]
	return k, ok
}

// LayoutOptions controls how text documents are paginated.
type LayoutOptions struct {
	Paper    builder.PaperSize // default A4
	FontSize float64           // default 12
	Margin   float64           // default 50
	Pages    PageOptions       // slide images of presentations
}

func (o LayoutOptions) engineOptions() []layout.Option {
	var opts []layout.Option
	if o.Paper.Width > 0 && o.Paper.Height > 0 {
		opts = append(opts, layout.WithPaperSize(o.Paper))
	}
	if o.FontSize > 0 {
		opts = append(opts, layout.WithDefaultFontSize(o.FontSize))
	}
	if o.Margin > 0 {
		opts = append(opts, layout.WithMargins(layout.Margins{Top: o.Margin, Right: o.Margin, Bottom: o.Margin, Left: o.Margin}))
	}
	return opts
}

// ToPDF lays out a Word, Excel, PowerPoint, HTML, Markdown or plain text
// file as PDF.
func ToPDF(ctx context.Context, f File, kind SourceKind, opts LayoutOptions, progress Progress) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind == PowerPoint {
		return PresentationToPDF(ctx, f, opts.Pages, progress)
	}
	b := builder.NewBuilder()
	e := layout.NewEngine(b, opts.engineOptions()...)
	op := "convert." + string(kind)
	err := recovery.Guard(op, func() error {
		var err error
		switch kind {
		case Word:
			err = e.RenderDocx(f.Data)
		case Excel:
			err = e.RenderXlsx(f.Data)
		case HTML:
			err = e.RenderHTML(decodeText(f.Data))
		case Markdown:
			err = e.RenderMarkdown(decodeText(f.Data))
		case Text:
			err = e.RenderText(decodeText(f.Data))
		default:
			return docerr.New(docerr.UnsupportedContent, op, "cannot convert %q", f.Name)
		}
		return docerr.Wrap(docerr.CorruptDocument, op, err)
	})
	if err != nil {
		return nil, err
	}
	progress.step(1, 1)
	return buildPDF(op, b)
}

// decodeText returns data as UTF-8. A UTF-16 byte order mark selects
// UTF-16; input that is not valid UTF-8 is read as Windows-1252.
func decodeText(data []byte) string {
	if len(data) >= 2 && (data[0] == 0xff && data[1] == 0xfe || data[0] == 0xfe && data[1] == 0xff) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		if out, _, err := transform.Bytes(dec, data); err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "\ufffd")
	}
	return string(out)
}
