package ocr

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	"github.com/wudi/docxform/raster"
)

// Page is one image submitted for recognition.
type Page struct {
	Index     int    // 0-based page in the source document
	PNG       []byte // encoded page raster
	DPI       int    // 0 when unknown
	Languages []string
	// Area limits recognition to part of the image. The zero Box means
	// the whole image.
	Area Box
	// Variables are passed to the engine verbatim, e.g. tesseract's
	// tessedit_pageseg_mode.
	Variables map[string]string
}

// PageOption adjusts a Page built by NewPage.
type PageOption func(*Page)

// WithLanguages sets the trained-data languages to try, in order.
func WithLanguages(langs ...string) PageOption {
	return func(p *Page) { p.Languages = append([]string(nil), langs...) }
}

// WithDPI records the resolution the page was rasterized at.
func WithDPI(dpi int) PageOption {
	return func(p *Page) { p.DPI = dpi }
}

// WithArea restricts recognition to b.
func WithArea(b Box) PageOption {
	return func(p *Page) { p.Area = b }
}

// WithVariables merges engine variables into the page.
func WithVariables(vars map[string]string) PageOption {
	return func(p *Page) {
		if len(vars) == 0 {
			return
		}
		if p.Variables == nil {
			p.Variables = make(map[string]string, len(vars))
		}
		maps.Copy(p.Variables, vars)
	}
}

// WithSegmentation selects tesseract's page segmentation mode.
func WithSegmentation(mode int) PageOption {
	return WithVariables(map[string]string{"tessedit_pageseg_mode": strconv.Itoa(mode)})
}

// WithWhitelist limits recognition to chars.
func WithWhitelist(chars string) PageOption {
	return WithVariables(map[string]string{"tessedit_char_whitelist": chars})
}

// NewPage encodes s as PNG for page index.
func NewPage(s *raster.Surface, index int, opts ...PageOption) (Page, error) {
	data, err := s.Bytes(raster.PNG, 0)
	if err != nil {
		return Page{}, fmt.Errorf("encode page %d: %w", index+1, err)
	}
	p := Page{Index: index, PNG: data}
	for _, opt := range opts {
		opt(&p)
	}
	return p, nil
}

// RecognizeAll runs e over pages, in one call for a BatchEngine and page
// by page otherwise.
func RecognizeAll(ctx context.Context, e Engine, pages []Page) ([]Result, error) {
	if b, ok := e.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, pages)
	}
	out := make([]Result, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.Recognize(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p.Index+1, err)
		}
		out = append(out, res)
	}
	return out, nil
}
