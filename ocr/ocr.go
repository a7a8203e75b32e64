// Package ocr is the contract between page rasters and text recognizers.
// An engine gets one PNG-encoded page and answers with the words it found,
// boxed in pixels from the top left corner, each with a confidence between
// 0 and 100. The tesseract subpackage registers itself as the default.
package ocr

import (
	"context"
	"math"
	"strings"
	"sync"
)

// Box is a pixel rectangle with its origin at the top left of the image.
type Box struct {
	X, Y, W, H float64
}

// Empty reports whether b covers no pixels.
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// Bottom is the y coordinate of the lower edge.
func (b Box) Bottom() float64 { return b.Y + b.H }

// Union returns the smallest box holding b and o. Empty boxes are ignored.
func (b Box) Union(o Box) Box {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	x0, y0 := math.Min(b.X, o.X), math.Min(b.Y, o.Y)
	x1, y1 := math.Max(b.X+b.W, o.X+o.W), math.Max(b.Bottom(), o.Bottom())
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Word is one recognized token.
type Word struct {
	Text       string
	Box        Box
	Confidence float64
}

// Line is a run of words sharing a baseline, in reading order.
type Line struct {
	Words []Word
}

// Text joins the words of l with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Bounds is the union of the word boxes.
func (l Line) Bounds() Box {
	var b Box
	for _, w := range l.Words {
		b = b.Union(w.Box)
	}
	return b
}

// Confidence is the mean word confidence, 0 for an empty line.
func (l Line) Confidence() float64 {
	if len(l.Words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range l.Words {
		sum += w.Confidence
	}
	return sum / float64(len(l.Words))
}

// Result is what an engine recognized on one page.
type Result struct {
	Page     int // 0-based index echoed from the Page
	Text     string
	Lines    []Line
	Language string
}

// Words flattens the lines of r.
func (r Result) Words() []Word {
	var out []Word
	for _, l := range r.Lines {
		out = append(out, l.Words...)
	}
	return out
}

// Engine recognizes text on a single page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, page Page) (Result, error)
}

// BatchEngine recognizes several pages in one call.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, pages []Page) ([]Result, error)
}

var (
	defaultMu     sync.RWMutex
	defaultEngine Engine
)

// DefaultEngine returns the registered engine, or nil when no engine
// package is linked into the binary.
func DefaultEngine() Engine {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultEngine
}

// Register makes e the default engine.
func Register(e Engine) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultEngine = e
}
