// Package tesseract recognizes page text with the tesseract library through
// gosseract. Importing it registers the engine as ocr.DefaultEngine.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/docxform/ocr"
)

func init() {
	ocr.Register(New())
}

// Engine runs every page on a fresh gosseract client so variables set for
// one page never leak into the next.
type Engine struct {
	newClient func() *gosseract.Client
}

// New returns a tesseract engine.
func New() *Engine {
	return &Engine{newClient: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize runs tesseract over one page.
func (e *Engine) Recognize(ctx context.Context, p ocr.Page) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	c := e.newClient()
	defer c.Close()

	img, offset, err := crop(p.PNG, p.Area)
	if err != nil {
		return ocr.Result{}, err
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(p.Languages) > 0 {
		if err := c.SetLanguage(p.Languages...); err != nil {
			return ocr.Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	vars := map[string]string{}
	if p.DPI > 0 {
		vars["user_defined_dpi"] = strconv.Itoa(p.DPI)
	}
	for k, v := range p.Variables {
		vars[k] = v
	}
	for k, v := range vars {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, fmt.Errorf("set %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize: %w", err)
	}
	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("word boxes: %w", err)
	}
	res := ocr.Result{
		Page:  p.Index,
		Text:  strings.TrimSpace(text),
		Lines: lines(boxes, offset),
	}
	if len(p.Languages) > 0 {
		res.Language = p.Languages[0]
	}
	return res, nil
}

// RecognizeBatch runs the pages in order, stopping at the first failure.
func (e *Engine) RecognizeBatch(ctx context.Context, pages []ocr.Page) ([]ocr.Result, error) {
	out := make([]ocr.Result, 0, len(pages))
	for _, p := range pages {
		res, err := e.Recognize(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p.Index+1, err)
		}
		out = append(out, res)
	}
	return out, nil
}

type lineKey struct{ block, par, line int }

// lines groups word boxes by the block, paragraph and line numbers
// tesseract assigns, shifting them by offset.
func lines(boxes []gosseract.BoundingBox, offset image.Point) []ocr.Line {
	var out []ocr.Line
	var last lineKey
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		r := b.Box.Add(offset)
		w := ocr.Word{
			Text:       b.Word,
			Box:        ocr.Box{X: float64(r.Min.X), Y: float64(r.Min.Y), W: float64(r.Dx()), H: float64(r.Dy())},
			Confidence: b.Confidence,
		}
		key := lineKey{b.BlockNum, b.ParNum, b.LineNum}
		if len(out) == 0 || key != last {
			out = append(out, ocr.Line{})
			last = key
		}
		out[len(out)-1].Words = append(out[len(out)-1].Words, w)
	}
	return out
}

// crop cuts area out of an encoded image and returns the crop with the
// position of its top left corner.
func crop(data []byte, area ocr.Box) ([]byte, image.Point, error) {
	if area.Empty() {
		return data, image.Point{}, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode page image: %w", err)
	}
	r := image.Rect(
		int(math.Round(area.X)), int(math.Round(area.Y)),
		int(math.Round(area.X+area.W)), int(math.Round(area.Bottom())),
	).Intersect(img.Bounds())
	if r.Empty() {
		return nil, image.Point{}, errors.New("area outside the page image")
	}
	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, image.Point{}, fmt.Errorf("cannot crop %T", img)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sub.SubImage(r)); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), r.Min.Sub(img.Bounds().Min), nil
}
