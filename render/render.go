// Package render rasterizes PDF pages onto raster surfaces.
//
// The renderer interprets page content streams over the pdfcpu object graph:
// paths, colours, clipping, text with embedded or substituted fonts, image
// and form XObjects. Output depends only on the document bytes, the page and
// the scale.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/observability"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/recovery"
)

// Options configures a Renderer.
type Options struct {
	// Strategy decides what happens with operators that fail. Defaults to
	// a lenient strategy that skips them.
	Strategy   recovery.Strategy
	Logger     observability.Logger
	Tracer     observability.Tracer
	Background color.Color
	// MaxFormDepth bounds nested form XObjects.
	MaxFormDepth int
}

type Option func(*Options)

func WithStrategy(s recovery.Strategy) Option { return func(o *Options) { o.Strategy = s } }
func WithLogger(l observability.Logger) Option  { return func(o *Options) { o.Logger = l } }
func WithTracer(t observability.Tracer) Option  { return func(o *Options) { o.Tracer = t } }
func WithBackground(c color.Color) Option        { return func(o *Options) { o.Background = c } }

// Renderer turns pages into surfaces. It is safe for concurrent use.
type Renderer struct {
	opts Options
}

func New(opts ...Option) *Renderer {
	o := Options{Background: color.White, MaxFormDepth: 12}
	for _, opt := range opts {
		opt(&o)
	}
	o.Logger = observability.OrNop(o.Logger)
	if o.Tracer == nil {
		o.Tracer = observability.NopTracer()
	}
	if o.Strategy == nil {
		o.Strategy = recovery.NewLenientStrategy(o.Logger)
	}
	if o.Background == nil {
		o.Background = color.White
	}
	if o.MaxFormDepth <= 0 {
		o.MaxFormDepth = 12
	}
	return &Renderer{opts: o}
}

// Render rasterizes page pageIndex (0-based) of doc at scale pixels per
// point. Results are cached on the document; every call returns a surface
// the caller owns.
func (r *Renderer) Render(ctx context.Context, doc *document.Document, pageIndex int, scale float64) (*raster.Surface, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	page, err := doc.Page(pageIndex)
	if err != nil {
		return nil, err
	}
	if s, ok := doc.CachedRaster(pageIndex, scale); ok {
		return s, nil
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	ctx, span := r.opts.Tracer.StartSpan(ctx, observability.SpanRender)
	defer span.Finish()
	span.SetTag("page", pageIndex+1)
	span.SetTag("scale", scale)
	start := time.Now()
	s, err := r.RenderPage(ctx, pdf, page, scale)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	r.opts.Logger.Debug("page rendered",
		observability.Int("page", pageIndex+1),
		observability.Float64("scale", scale),
		observability.Duration(observability.MetricRenderTime, time.Since(start)))
	doc.StoreRaster(pageIndex, scale, s)
	return s, nil
}

// RenderAll renders every page of doc, checking ctx between pages.
func (r *Renderer) RenderAll(ctx context.Context, doc *document.Document, scale float64) ([]*raster.Surface, error) {
	out := make([]*raster.Surface, 0, doc.PageCount())
	for i := 0; i < doc.PageCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := r.Render(ctx, doc, i, scale)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// RenderPage rasterizes one page of an already parsed document. It does
// not touch any cache.
func (r *Renderer) RenderPage(ctx context.Context, pdf *model.Context, page document.Page, scale float64) (*raster.Surface, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	var out *raster.Surface
	err := recovery.Guard("render", func() error {
		s, err := r.renderPage(ctx, pdf, page, scale)
		out = s
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, docerr.Wrap(docerr.CorruptDocument, "render", err)
	}
	return out, nil
}

func (r *Renderer) renderPage(ctx context.Context, pdf *model.Context, page document.Page, scale float64) (*raster.Surface, error) {
	nr := page.Index + 1
	pageDict, _, inh, err := pdf.PageDict(nr, false)
	if err != nil {
		return nil, err
	}
	if pageDict == nil || inh == nil {
		return nil, fmt.Errorf("page %d not found", nr)
	}
	dw, dh := page.RenderedSize()
	w, h := PixelSize(dw, scale), PixelSize(dh, scale)
	s, err := raster.NewFilled(w, h, r.opts.Background)
	if err != nil {
		return nil, err
	}

	content, err := document.ContentOf(pdf.XRefTable, pageDict)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return s, nil
	}

	in := &interpreter{
		ctx:      ctx,
		pdf:      pdf,
		xref:     pdf.XRefTable,
		surface:  s,
		opts:     r.opts,
		pageNr:   nr,
		fonts:    make(map[types.IndirectRef]*pdfFont),
		images:   make(map[types.IndirectRef]*decodedImage),
		maxDepth: r.opts.MaxFormDepth,
	}
	base := PageTransform(page, scale)
	if err := in.run(content, inh.Resources, newState(base), 0); err != nil {
		return nil, err
	}
	return s, nil
}

// PageTransform maps the user space of page onto surface pixels at scale:
// the visible box is moved to the origin, /Rotate is applied and y is
// flipped so that the top of the displayed page is row 0.
func PageTransform(page document.Page, scale float64) coords.Matrix {
	toUser, _, dh := coords.DisplayToUser(page.Width, page.Height, page.Rotation)
	toDisplay, err := toUser.Inverse()
	if err != nil {
		toDisplay = coords.Identity()
	}
	return coords.Translate(-page.OriginX, -page.OriginY).
		Multiply(toDisplay).
		Multiply(coords.Matrix{scale, 0, 0, -scale, 0, dh * scale})
}

// PixelSize is the surface extent for length points at scale, never less
// than one pixel.
func PixelSize(length, scale float64) int {
	n := int(math.Ceil(length*scale - 1e-6))
	if n < 1 {
		n = 1
	}
	return n
}

func checkScale(scale float64) error {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return docerr.New(docerr.Validation, "render", "invalid scale %v", scale)
	}
	return nil
}
