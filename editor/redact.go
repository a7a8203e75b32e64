package editor

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/render"
)

// Area is a rectangle to black out, in points of the displayed page with
// the origin at its lower left corner. Page is 0-based.
type Area struct {
	Page   int
	X, Y   float64
	Width  float64
	Height float64
}

// RedactOptions controls the rasters the redacted document is rebuilt from.
type RedactOptions struct {
	Scale   float64 // pixels per point, default 2
	Quality int     // JPEG quality, default 90
}

// Redact renders every page, paints the areas black and rebuilds the
// document from the flattened rasters, so nothing under an area survives
// as text or vector content.
func Redact(ctx context.Context, doc *document.Document, r *render.Renderer, areas []Area, opts RedactOptions) ([]byte, error) {
	if len(areas) == 0 {
		return nil, docerr.New(docerr.Validation, "editor.redact", "no areas to redact")
	}
	for _, a := range areas {
		if err := checkPage("editor.redact", doc, a.Page); err != nil {
			return nil, err
		}
		if a.Width <= 0 || a.Height <= 0 {
			return nil, docerr.New(docerr.Validation, "editor.redact", "empty area on page %d", a.Page+1)
		}
	}
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 90
	}
	byPage := make(map[int][]Area)
	for _, a := range areas {
		byPage[a.Page] = append(byPage[a.Page], a)
	}

	b := builder.NewBuilder()
	for _, p := range doc.Pages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := r.Render(ctx, doc, p.Index, opts.Scale)
		if err != nil {
			return nil, err
		}
		dw, dh := p.RenderedSize()
		for _, a := range byPage[p.Index] {
			s.FillRect(areaRect(a, dh, opts.Scale), color.Black)
		}
		img, err := builder.EncodeJPEG(s.Image(), opts.Quality)
		if err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "editor.redact", err)
		}
		b.NewPage(dw, dh).DrawImage(img, 0, 0, dw, dh, builder.ImageOptions{})
	}
	m := doc.Metadata()
	b.SetInfo(builder.Info{Title: m.Title, Author: m.Author, Subject: m.Subject, Keywords: m.Keywords, Creator: m.Creator})
	data, err := b.Build()
	if err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "editor.redact", err)
	}
	return data, nil
}

// areaRect converts a in points to the pixel rectangle covering it on a
// raster of a page dh points high, rounding outwards.
func areaRect(a Area, dh, scale float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(a.X*scale)),
		int(math.Floor((dh-a.Y-a.Height)*scale)),
		int(math.Ceil((a.X+a.Width)*scale)),
		int(math.Ceil((dh-a.Y)*scale)),
	)
}
