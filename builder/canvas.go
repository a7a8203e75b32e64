package builder

import (
	"fmt"
	"math"

	pdffont "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/coords"
)

// docResources are the indirect objects shared by every page of one
// document: one font dict per base font and one XObject per image.
type docResources struct {
	xref   *model.XRefTable
	fonts  map[string]*types.IndirectRef
	images map[*Image]*types.IndirectRef
}

func newDocResources(xref *model.XRefTable) *docResources {
	return &docResources{
		xref:   xref,
		fonts:  make(map[string]*types.IndirectRef),
		images: make(map[*Image]*types.IndirectRef),
	}
}

func (d *docResources) font(base string) (*types.IndirectRef, error) {
	if ref, ok := d.fonts[base]; ok {
		return ref, nil
	}
	ref, err := pdffont.EnsureFontDict(d.xref, base, "", "", false, nil)
	if err != nil {
		return nil, err
	}
	d.fonts[base] = ref
	return ref, nil
}

func (d *docResources) image(img *Image) (*types.IndirectRef, error) {
	if ref, ok := d.images[img]; ok {
		return ref, nil
	}
	sd, err := img.streamDict(d.xref)
	if err != nil {
		return nil, err
	}
	ref, err := d.xref.IndRefForNewObject(*sd)
	if err != nil {
		return nil, err
	}
	d.images[img] = ref
	return ref, nil
}

func (d *docResources) contentStream(content []byte) (*types.IndirectRef, error) {
	sd, err := d.xref.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return d.xref.IndRefForNewObject(*sd)
}

// canvas records drawing operations and the resource names they use.
// Objects are only created when the canvas is attached to a document.
type canvas struct {
	w      *contentstream.Writer
	fonts  map[string]string // base font -> resource name
	images map[*Image]string
	alphas map[[2]float64]string
	err    error
}

func newCanvas() *canvas {
	return &canvas{
		w:      contentstream.NewWriter(),
		fonts:  make(map[string]string),
		images: make(map[*Image]string),
		alphas: make(map[[2]float64]string),
	}
}

func (c *canvas) fontName(base string) string {
	if base == "" {
		base = defaultBaseFont
	}
	if !IsStandardFont(base) {
		c.setErr(fmt.Errorf("font %q is not a standard font", base))
		base = defaultBaseFont
	}
	if n, ok := c.fonts[base]; ok {
		return n
	}
	n := fmt.Sprintf("F%d", len(c.fonts)+1)
	c.fonts[base] = n
	return n
}

func (c *canvas) imageName(img *Image) string {
	if n, ok := c.images[img]; ok {
		return n
	}
	n := fmt.Sprintf("Im%d", len(c.images)+1)
	c.images[img] = n
	return n
}

// alpha selects an ExtGState for fill and stroke opacity. Opacity 0 is
// treated as unset.
func (c *canvas) alpha(fill, stroke float64) {
	if fill <= 0 || fill > 1 {
		fill = 1
	}
	if stroke <= 0 || stroke > 1 {
		stroke = 1
	}
	if fill == 1 && stroke == 1 {
		return
	}
	key := [2]float64{fill, stroke}
	n, ok := c.alphas[key]
	if !ok {
		n = fmt.Sprintf("GS%d", len(c.alphas)+1)
		c.alphas[key] = n
	}
	c.w.ExtGState(n)
}

func (c *canvas) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *canvas) fillColor(col Color)   { c.w.FillRGB(col.R, col.G, col.B) }
func (c *canvas) strokeColor(col Color) { c.w.StrokeRGB(col.R, col.G, col.B) }

func (c *canvas) drawText(text string, x, y float64, o TextOptions) {
	if text == "" {
		return
	}
	size := o.FontSize
	if size <= 0 {
		size = 12
	}
	font := o.Font
	if font == "" {
		font = defaultBaseFont
	}
	name := c.fontName(font)
	c.w.Save()
	c.alpha(o.Opacity, o.Opacity)
	c.w.BeginText().Font(name, size)
	if o.CharSpacing != 0 {
		c.w.Op("Tc", contentstream.Number(o.CharSpacing))
	}
	scaling := o.HorizScaling
	if o.Width > 0 {
		if natural := TextWidth(text, font, size); natural > 0 {
			scaling = o.Width / natural * 100
		}
	}
	if scaling != 0 && scaling != 100 {
		c.w.HorizontalScaling(scaling)
	}
	if o.RenderMode != contentstream.TextFill {
		c.w.RenderMode(o.RenderMode)
	}
	c.fillColor(o.Color)
	if o.RenderMode.Strokes() {
		c.strokeColor(o.Color)
	}
	m := coords.Translate(x, y)
	if o.Rotate != 0 {
		m = coords.Rotate(coords.Degrees(o.Rotate)).Multiply(m)
	}
	c.w.TextMatrix(m).ShowText(text).EndText().Restore()
}

func (c *canvas) drawImage(img *Image, x, y, w, h float64, o ImageOptions) {
	if img == nil {
		return
	}
	if w == 0 {
		w = float64(img.Width)
	}
	if h == 0 {
		h = float64(img.Height)
	}
	name := c.imageName(img)
	m := coords.Scale(w, h).Multiply(coords.Translate(x, y))
	if o.Rotate != 0 {
		m = coords.Scale(w, h).
			Multiply(coords.Translate(-w/2, -h/2)).
			Multiply(coords.Rotate(coords.Degrees(o.Rotate))).
			Multiply(coords.Translate(x+w/2, y+h/2))
	}
	c.w.Save()
	c.alpha(o.Opacity, o.Opacity)
	c.w.Concat(m).XObject(name).Restore()
}

func (c *canvas) drawRect(x, y, w, h float64, o PathOptions) {
	if !o.Fill && !o.Stroke {
		o.Stroke = true
	}
	c.w.Save()
	c.alpha(o.Opacity, o.Opacity)
	c.pathState(o)
	c.w.Rect(x, y, w, h)
	c.paint(o.Fill, o.Stroke)
	c.w.Restore()
}

func (c *canvas) drawLine(x1, y1, x2, y2 float64, o LineOptions) {
	c.w.Save()
	c.alpha(1, o.Opacity)
	c.pathState(PathOptions{Stroke: true, StrokeColor: o.StrokeColor, LineWidth: o.LineWidth})
	c.w.MoveTo(x1, y1).LineTo(x2, y2).Stroke().Restore()
}

func (c *canvas) pathState(o PathOptions) {
	if o.LineWidth > 0 {
		c.w.LineWidth(o.LineWidth)
	}
	if o.Fill {
		c.fillColor(o.FillColor)
	}
	if o.Stroke {
		c.strokeColor(o.StrokeColor)
	}
}

func (c *canvas) paint(fill, stroke bool) {
	switch {
	case fill && stroke:
		c.w.FillStroke()
	case fill:
		c.w.Fill()
	default:
		c.w.Stroke()
	}
}

// resourceDict creates the indirect objects the canvas refers to in shared
// and returns the matching resource dictionary.
func (c *canvas) resourceDict(shared *docResources) (types.Dict, error) {
	res := types.NewDict()
	if len(c.fonts) > 0 {
		fd := types.NewDict()
		for base, name := range c.fonts {
			ref, err := shared.font(base)
			if err != nil {
				return nil, fmt.Errorf("font %s: %w", base, err)
			}
			fd.Insert(name, *ref)
		}
		res.Insert("Font", fd)
	}
	if len(c.images) > 0 {
		xd := types.NewDict()
		for img, name := range c.images {
			ref, err := shared.image(img)
			if err != nil {
				return nil, fmt.Errorf("image %s: %w", name, err)
			}
			xd.Insert(name, *ref)
		}
		res.Insert("XObject", xd)
	}
	if len(c.alphas) > 0 {
		gd := types.NewDict()
		for a, name := range c.alphas {
			gd.Insert(name, types.Dict(map[string]types.Object{
				"Type": types.Name("ExtGState"),
				"ca":   types.Float(round4(a[0])),
				"CA":   types.Float(round4(a[1])),
			}))
		}
		res.Insert("ExtGState", gd)
	}
	return res, nil
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
