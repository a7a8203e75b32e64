package editor

import (
	"context"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/fonts"
	"github.com/wudi/docxform/raster"
)

type WatermarkKind string

const (
	WatermarkText  WatermarkKind = "text"
	WatermarkImage WatermarkKind = "image"
)

// WatermarkOptions describes a text or image watermark. Rotation is in
// degrees counter-clockwise. Sizes are in points; a nil Opacity means 0.5.
type WatermarkOptions struct {
	Kind       WatermarkKind
	Text       string
	FontSize   float64
	Color      color.Color
	Image      image.Image
	ImageWidth float64
	Opacity    *float64
	Rotation   float64
	Tiled      bool
}

func (o WatermarkOptions) withDefaults() WatermarkOptions {
	if o.FontSize <= 0 {
		o.FontSize = 48
	}
	if o.Color == nil {
		o.Color = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	}
	if o.ImageWidth <= 0 {
		o.ImageWidth = 200
	}
	return o
}

// Opacity returns a pointer to v for WatermarkOptions.Opacity.
func Opacity(v float64) *float64 { return &v }

// Alpha is the opacity the watermark is drawn with.
func (o WatermarkOptions) Alpha() float64 {
	if o.Opacity == nil {
		return 0.5
	}
	return *o.Opacity
}

func (o WatermarkOptions) Validate() error {
	switch o.Kind {
	case WatermarkText:
		if strings.TrimSpace(o.Text) == "" {
			return docerr.New(docerr.Validation, "watermark", "watermark text is empty")
		}
	case WatermarkImage:
		if o.Image == nil || o.Image.Bounds().Empty() {
			return docerr.New(docerr.Validation, "watermark", "watermark image is missing")
		}
	default:
		return docerr.New(docerr.Validation, "watermark", "unknown watermark kind %q", o.Kind)
	}
	if a := o.Alpha(); a < 0 || a > 1 {
		return docerr.New(docerr.Validation, "watermark", "opacity %g outside [0, 1]", a)
	}
	if o.Rotation < -180 || o.Rotation > 180 {
		return docerr.New(docerr.Validation, "watermark", "rotation %g outside [-180, 180]", o.Rotation)
	}
	return nil
}

// Tile is the rendered watermark: pixels plus the size they cover in
// points. Tiled watermarks include a transparent margin on every side.
type Tile struct {
	Surface *raster.Surface
	Width   float64
	Height  float64
}

// Tile renders the watermark at pxPerPt pixels per point.
func (o WatermarkOptions) Tile(pxPerPt float64) (Tile, error) {
	if err := o.Validate(); err != nil {
		return Tile{}, err
	}
	o = o.withDefaults()
	if pxPerPt <= 0 {
		pxPerPt = 1
	}
	if o.Kind == WatermarkText {
		st := raster.TextStyle{Face: fonts.Bold(), Size: o.FontSize * pxPerPt, Color: o.Color}
		tw, th, asc := raster.TextBox(o.Text, st)
		m := o.FontSize * pxPerPt / 2
		w, h := int(math.Ceil(tw+2*m)), int(math.Ceil(th+2*m))
		s, err := raster.New(w, h)
		if err != nil {
			return Tile{}, docerr.Wrap(docerr.Validation, "watermark", err)
		}
		s.DrawText(o.Text, m, m+asc, st)
		return Tile{Surface: s, Width: float64(w) / pxPerPt, Height: float64(h) / pxPerPt}, nil
	}

	b := o.Image.Bounds()
	ptPerPx := o.ImageWidth / float64(b.Dx())
	m := 0
	if o.Tiled {
		m = int(math.Round(float64(b.Dx()) * 0.1))
	}
	s, err := raster.New(b.Dx()+2*m, b.Dy()+2*m)
	if err != nil {
		return Tile{}, docerr.Wrap(docerr.Validation, "watermark", err)
	}
	s.DrawImage(o.Image, image.Rect(m, m, m+b.Dx(), m+b.Dy()), 1)
	return Tile{
		Surface: s,
		Width:   float64(s.Width()) * ptPerPx,
		Height:  float64(s.Height()) * ptPerPx,
	}, nil
}

// Placements returns the tile centres on a w x h page, in the page's own
// coordinates with y up. Single watermarks sit in the middle of the page.
func (t Tile) Placements(w, h, rotation float64, tiled bool) []coords.Point {
	if !tiled {
		return []coords.Point{{X: w / 2, Y: h / 2}}
	}
	return coords.TileGrid(w, h, t.Width, t.Height, rotation).Centers
}

const watermarkResolution = 2

// Watermark draws the watermark described by opts on every page.
func Watermark(ctx context.Context, doc *document.Document, opts WatermarkOptions) ([]byte, error) {
	tile, err := opts.Tile(watermarkResolution)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	if opts.Alpha() == 0 {
		return write("editor.watermark", pdf)
	}
	img := builder.FromImage(tile.Surface.Image())
	ov := newOverlays(pdf)
	for i := 0; i < doc.PageCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o, err := ov.page(i)
		if err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, "editor.watermark", err)
		}
		w, h := o.Size()
		tw, th := tile.Width, tile.Height
		if !opts.Tiled {
			// A single mark never spills over the page.
			if f := math.Min(w/tw, h/th); f < 1 {
				tw, th = tw*f, th*f
			}
		}
		for _, c := range tile.Placements(w, h, opts.Rotation, opts.Tiled) {
			o.DrawImage(img, c.X-tw/2, c.Y-th/2, tw, th, builder.ImageOptions{
				Opacity: opts.Alpha(),
				Rotate:  opts.Rotation,
			})
		}
	}
	if err := ov.commit(); err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "editor.watermark", err)
	}
	return write("editor.watermark", pdf)
}
