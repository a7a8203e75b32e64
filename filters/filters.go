// Package filters implements per-pixel image filters applied to scanned
// pages before they are packed into a PDF.
package filters

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/raster"
)

// Filter transforms a surface. Implementations never modify their input;
// they return a new surface.
type Filter interface {
	Name() string
	Apply(ctx context.Context, src *raster.Surface) (*raster.Surface, error)
}

// Pipeline applies filters in order.
type Pipeline struct {
	filters []Filter
}

// NewPipeline constructs a pipeline with the provided filters.
func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

// Names lists the filters in application order.
func (p *Pipeline) Names() []string {
	out := make([]string, 0, len(p.filters))
	for _, f := range p.filters {
		out = append(out, f.Name())
	}
	return out
}

func (p *Pipeline) Apply(ctx context.Context, src *raster.Surface) (*raster.Surface, error) {
	cur := src
	for _, f := range p.filters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := f.Apply(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name(), err)
		}
		cur = out
	}
	if cur == src {
		return src.Clone(), nil
	}
	return cur, nil
}

// Registry resolves filters by name.
type Registry struct{ filters map[string]Filter }

func (r *Registry) Register(f Filter) {
	if r.filters == nil {
		r.filters = make(map[string]Filter)
	}
	r.filters[f.Name()] = f
}

func (r *Registry) Get(name string) (Filter, bool) { f, ok := r.filters[name]; return f, ok }

// Names returns the registered filter names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.filters))
	for n := range r.filters {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry holds the scan filters offered to users.
func DefaultRegistry() *Registry {
	r := &Registry{}
	r.Register(NewLighten(DefaultLightenOffset))
	r.Register(NewMagicColor(DefaultContrast))
	r.Register(NewThreshold(DefaultCutoff))
	r.Register(NewGrayscale())
	return r
}

// ByName builds a pipeline for a scan filter name. "none" and "" yield an
// empty pipeline.
func ByName(name string) (*Pipeline, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "none", "original":
		return NewPipeline(), nil
	case "magic":
		n = "magic_color"
	case "bw", "black_white", "threshold":
		n = "bw"
	case "gray", "grey", "greyscale":
		n = "grayscale"
	}
	f, ok := DefaultRegistry().Get(n)
	if !ok {
		return nil, docerr.New(docerr.Validation, "filters", "unknown filter %q", name)
	}
	return NewPipeline(f), nil
}

const (
	DefaultLightenOffset = 25
	DefaultContrast      = 40
	DefaultCutoff        = 128
)

// Tint is applied per channel after the MagicColor contrast stretch.
var Tint = [3]float64{1.05, 1.02, 0.95}

type lighten struct{ offset int }

// NewLighten adds offset to every color channel, clamped to 0..255.
func NewLighten(offset int) Filter { return lighten{offset: offset} }

func (lighten) Name() string { return "lighten" }

func (f lighten) Apply(_ context.Context, src *raster.Surface) (*raster.Surface, error) {
	return mapPixels(src, func(r, g, b float64) (float64, float64, float64) {
		o := float64(f.offset)
		return r + o, g + o, b + o
	}), nil
}

type magicColor struct {
	factor float64
}

// NewMagicColor stretches contrast by c around the midpoint 128 and then
// applies Tint.
func NewMagicColor(c float64) Filter {
	return magicColor{factor: ContrastFactor(c)}
}

// ContrastFactor is 259*(c+255) / (255*(259-c)).
func ContrastFactor(c float64) float64 {
	return 259 * (c + 255) / (255 * (259 - c))
}

func (magicColor) Name() string { return "magic_color" }

func (f magicColor) Apply(_ context.Context, src *raster.Surface) (*raster.Surface, error) {
	return mapPixels(src, func(r, g, b float64) (float64, float64, float64) {
		r = clamp(f.factor*(r-128) + 128)
		g = clamp(f.factor*(g-128) + 128)
		b = clamp(f.factor*(b-128) + 128)
		return r * Tint[0], g * Tint[1], b * Tint[2]
	}), nil
}

type threshold struct{ cutoff float64 }

// NewThreshold maps every pixel to black or white by luma.
func NewThreshold(cutoff float64) Filter { return threshold{cutoff: cutoff} }

func (threshold) Name() string { return "bw" }

func (f threshold) Apply(_ context.Context, src *raster.Surface) (*raster.Surface, error) {
	return mapPixels(src, func(r, g, b float64) (float64, float64, float64) {
		if Luma(r, g, b) >= f.cutoff {
			return 255, 255, 255
		}
		return 0, 0, 0
	}), nil
}

type grayscale struct{}

// NewGrayscale sets each channel to the pixel's luma.
func NewGrayscale() Filter { return grayscale{} }

func (grayscale) Name() string { return "grayscale" }

func (grayscale) Apply(_ context.Context, src *raster.Surface) (*raster.Surface, error) {
	return mapPixels(src, func(r, g, b float64) (float64, float64, float64) {
		l := Luma(r, g, b)
		return l, l, l
	}), nil
}

// Luma is the Rec. 601 weighted brightness.
func Luma(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}
