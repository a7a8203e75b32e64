// Package editor implements the structural PDF operations: merge, split,
// organize, rotate, crop, encryption, metadata, stamping, watermarks, page
// numbers, redaction and compression.
//
// Every operation parses the original bytes of its input documents into a
// fresh pdfcpu object graph and returns newly written bytes. Inputs are
// never modified.
package editor

import (
	"bytes"
	"context"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/optimize"
)

// Margins are distances in points from the edges of the page as displayed.
type Margins struct {
	Top, Right, Bottom, Left float64
}

// Metadata holds information dictionary values. Empty fields are left as
// they are in the document.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
}

func (m Metadata) properties() map[string]string {
	props := make(map[string]string)
	for k, v := range map[string]string{
		"Title":    m.Title,
		"Author":   m.Author,
		"Subject":  m.Subject,
		"Keywords": m.Keywords,
		"Creator":  m.Creator,
	} {
		if v != "" {
			props[k] = v
		}
	}
	return props
}

// Merge concatenates the pages of docs in order.
func Merge(ctx context.Context, docs []*document.Document) ([]byte, error) {
	if len(docs) < 2 {
		return nil, docerr.New(docerr.Validation, "editor.merge", "need at least 2 documents, got %d", len(docs))
	}
	dest, err := plainContext(docs[0])
	if err != nil {
		return nil, err
	}
	dest.Cmd = model.MERGECREATE
	dest.CreateBookmarks = false
	dest.EnsureVersionForWriting()
	for _, d := range docs[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := plainContext(d)
		if err != nil {
			return nil, err
		}
		if err := pdfcpu.MergeXRefTables(d.Name, src, dest, false, false); err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "editor.merge", err)
		}
	}
	return write("editor.merge", dest)
}

// plainContext parses doc without its encryption so pages can move into
// another document.
func plainContext(doc *document.Document) (*model.Context, error) {
	if !doc.Encrypted() {
		return doc.Context()
	}
	var buf bytes.Buffer
	if err := api.Decrypt(doc.Reader(), &buf, doc.Configuration()); err != nil {
		return nil, document.ClassifyRead("editor.decrypt", err)
	}
	return reopen("editor.decrypt", buf.Bytes())
}

// Rotate turns every page by delta degrees clockwise. delta must be a
// multiple of 90; the stored rotation stays in {0, 90, 180, 270}.
func Rotate(doc *document.Document, delta int) ([]byte, error) {
	if delta%90 != 0 {
		return nil, docerr.New(docerr.Validation, "editor.rotate", "rotation %d is not a multiple of 90", delta)
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	for nr := 1; nr <= pdf.PageCount; nr++ {
		if err := rotatePage(pdf, nr, delta); err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, "editor.rotate", err)
		}
	}
	return write("editor.rotate", pdf)
}

// rotatePage adds delta to the effective rotation of page nr and stores the
// normalized result on the page itself.
func rotatePage(pdf *model.Context, nr, delta int) error {
	pageDict, _, inh, err := pdf.PageDict(nr, false)
	if err != nil {
		return err
	}
	if pageDict == nil || inh == nil {
		return docerr.New(docerr.CorruptDocument, "editor.rotate", "page %d not found", nr)
	}
	r := document.NormalizeRotation(inh.Rotate + delta)
	if r == 0 {
		if _, has := pageDict.Find("Rotate"); has || inh.Rotate != 0 {
			pageDict.Update("Rotate", types.Integer(0))
		}
		return nil
	}
	pageDict.Update("Rotate", types.Integer(r))
	return nil
}

// SetCropBox shrinks the visible box of every page by m. Margins refer to
// the page as displayed, so a rotated page is cropped on the sides the
// reader sees.
func SetCropBox(doc *document.Document, m Margins) ([]byte, error) {
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return nil, docerr.New(docerr.Validation, "editor.crop", "margins must not be negative")
	}
	for _, p := range doc.Pages() {
		u := userMargins(m, p.Rotation)
		if p.Width-u.Left-u.Right <= 0 || p.Height-u.Top-u.Bottom <= 0 {
			return nil, docerr.New(docerr.Validation, "editor.crop", "margins leave page %d empty", p.Index+1)
		}
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	pages, err := document.PagesOf(pdf)
	if err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "editor.crop", err)
	}
	for _, p := range pages {
		pageDict, _, _, err := pdf.PageDict(p.Index+1, false)
		if err != nil || pageDict == nil {
			return nil, docerr.New(docerr.CorruptDocument, "editor.crop", "page %d not found", p.Index+1)
		}
		u := userMargins(m, p.Rotation)
		box := types.NewRectangle(
			p.OriginX+u.Left,
			p.OriginY+u.Bottom,
			p.OriginX+p.Width-u.Right,
			p.OriginY+p.Height-u.Top,
		)
		pageDict.Update("CropBox", box.Array())
	}
	return write("editor.crop", pdf)
}

// userMargins maps margins of the displayed page onto the unrotated box.
func userMargins(m Margins, rotation int) Margins {
	switch rotation {
	case 90:
		return Margins{Left: m.Top, Right: m.Bottom, Bottom: m.Left, Top: m.Right}
	case 180:
		return Margins{Left: m.Right, Right: m.Left, Top: m.Bottom, Bottom: m.Top}
	case 270:
		return Margins{Right: m.Top, Left: m.Bottom, Top: m.Left, Bottom: m.Right}
	}
	return m
}

// SetMetadata writes the non-empty fields of meta into the information
// dictionary.
func SetMetadata(doc *document.Document, meta Metadata) ([]byte, error) {
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	if props := meta.properties(); len(props) > 0 {
		if err := pdfcpu.PropertiesAdd(pdf, props); err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "editor.metadata", err)
		}
	}
	return write("editor.metadata", pdf)
}

// Compress runs the optimizer at level. When the result is not smaller than
// the input the original bytes are returned.
func Compress(ctx context.Context, doc *document.Document, level optimize.Level) ([]byte, optimize.Report, error) {
	conf, err := optimize.ConfigFor(level)
	if err != nil {
		return nil, optimize.Report{}, err
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, optimize.Report{}, err
	}
	report, err := optimize.New(conf).Optimize(ctx, pdf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, report, err
		}
		return nil, report, docerr.Wrap(docerr.ProcessingFault, "editor.compress", err)
	}
	data, err := write("editor.compress", pdf)
	if err != nil {
		return nil, report, err
	}
	if len(data) >= doc.Size() {
		return bytes.Clone(doc.Bytes()), report, nil
	}
	return data, report, nil
}

func write(op string, pdf *model.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.WriteContext(pdf, &buf); err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, op, err)
	}
	return buf.Bytes(), nil
}

// reopen parses bytes this package just wrote.
func reopen(op string, data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdf, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, op, err)
	}
	if err := pdf.EnsurePageCount(); err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, op, err)
	}
	return pdf, nil
}
