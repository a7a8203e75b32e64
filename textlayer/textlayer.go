// Package textlayer makes scanned documents searchable. Each page is
// rasterized, run through an OCR engine, and rebuilt as an image page with
// the recognized words laid over it as invisible text.
package textlayer

import (
	"context"
	"math"
	"strings"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/observability"
	"github.com/wudi/docxform/ocr"
	"github.com/wudi/docxform/render"
)

const (
	// MinScale is the lowest rasterization scale OCR runs at.
	MinScale = 2.0
	// DefaultMinConfidence drops words recognized with less confidence.
	DefaultMinConfidence = 50.0
)

// Options configures Build.
type Options struct {
	Scale         float64 // pixels per point, raised to MinScale
	MinConfidence float64
	Languages     []string
	Quality       int // JPEG quality of the page images
	Tracer        observability.Tracer
}

func (o Options) normalized() Options {
	if o.Scale < MinScale {
		o.Scale = MinScale
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 85
	}
	if o.Tracer == nil {
		o.Tracer = observability.NopTracer()
	}
	return o
}

// winAnsiLanguages are the tesseract languages whose alphabet the
// standard-14 fonts of the invisible text layer can encode.
var winAnsiLanguages = map[string]bool{
	"afr": true, "bre": true, "cat": true, "cos": true, "dan": true,
	"deu": true, "eng": true, "enm": true, "est": true, "eus": true,
	"fao": true, "fil": true, "fin": true, "fra": true, "frk": true,
	"frm": true, "fry": true, "gla": true, "gle": true, "glg": true,
	"ind": true, "isl": true, "ita": true, "ita_old": true, "lat": true,
	"ltz": true, "msa": true, "nld": true, "nor": true, "oci": true,
	"por": true, "que": true, "spa": true, "spa_old": true, "sqi": true,
	"swa": true, "swe": true, "tgl": true,
}

// CheckLanguages rejects languages, given alone or joined "eng+deu"
// style, whose text the searchable layer cannot encode.
func CheckLanguages(langs ...string) error {
	for _, l := range langs {
		for _, code := range strings.Split(l, "+") {
			code = strings.ToLower(strings.TrimSpace(code))
			if code == "" {
				continue
			}
			if !winAnsiLanguages[code] {
				return docerr.New(docerr.Validation, "textlayer", "language %q is not supported by the text layer", code)
			}
		}
	}
	return nil
}

// Place converts OCR words of page (0-based) into invisible text runs in
// points. heightPx is the raster height and scale its pixels per point.
// A word's baseline sits at the bottom of its box and its font size is the
// box height.
func Place(words []ocr.Word, page, heightPx int, scale, minConfidence float64) []editor.TextRun {
	var runs []editor.TextRun
	for _, w := range words {
		if w.Confidence < minConfidence || w.Text == "" || w.Box.Empty() {
			continue
		}
		runs = append(runs, editor.TextRun{
			Page:     page,
			Text:     w.Text,
			X:        w.Box.X / scale,
			Y:        (float64(heightPx) - w.Box.Bottom()) / scale,
			FontSize: w.Box.H / scale,
			Width:    w.Box.W / scale,
		})
	}
	return runs
}

// Build returns a searchable copy of doc. progress, when non-nil, is
// called after each page with the number of pages done.
func Build(ctx context.Context, doc *document.Document, r *render.Renderer, engine ocr.Engine, opts Options, progress func(done, total int)) ([]byte, error) {
	if engine == nil {
		engine = ocr.DefaultEngine()
	}
	if engine == nil {
		return nil, docerr.New(docerr.UnsupportedContent, "textlayer", "no text recognition engine is available")
	}
	if err := CheckLanguages(opts.Languages...); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	total := doc.PageCount()
	b := builder.NewBuilder()
	var runs []editor.TextRun
	for _, p := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := r.Render(ctx, doc, p.Index, opts.Scale)
		if err != nil {
			return nil, err
		}
		page, err := ocr.NewPage(s, p.Index,
			ocr.WithLanguages(opts.Languages...),
			ocr.WithDPI(int(math.Round(72*opts.Scale))),
		)
		if err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "textlayer", err)
		}
		res, err := recognize(ctx, opts.Tracer, engine, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, docerr.Wrap(docerr.ProcessingFault, "textlayer.ocr", err)
		}
		runs = append(runs, Place(res.Words(), p.Index, s.Height(), opts.Scale, opts.MinConfidence)...)

		img, err := builder.EncodeJPEG(s.Image(), opts.Quality)
		if err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "textlayer", err)
		}
		dw, dh := p.RenderedSize()
		b.NewPage(dw, dh).DrawImage(img, 0, 0, dw, dh, builder.ImageOptions{})
		if progress != nil {
			progress(p.Index+1, total)
		}
	}
	m := doc.Metadata()
	b.SetInfo(builder.Info{Title: m.Title, Author: m.Author, Subject: m.Subject, Keywords: m.Keywords, Creator: m.Creator})
	data, err := b.Build()
	if err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "textlayer", err)
	}
	if len(runs) == 0 {
		return data, nil
	}
	scanned, err := document.Load(doc.Name, data, "")
	if err != nil {
		return nil, err
	}
	return editor.EmbedInvisibleText(scanned, runs)
}

func recognize(ctx context.Context, tr observability.Tracer, e ocr.Engine, p ocr.Page) (ocr.Result, error) {
	ctx, span := tr.StartSpan(ctx, observability.SpanRecognize)
	defer span.Finish()
	span.SetTag("engine", e.Name())
	span.SetTag("page", p.Index+1)
	res, err := e.Recognize(ctx, p)
	if err != nil {
		span.SetError(err)
		return ocr.Result{}, err
	}
	span.SetTag("words", len(res.Words()))
	return res, nil
}
