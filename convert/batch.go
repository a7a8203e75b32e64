package convert

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/image/math/f64"

	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/raster"
)

// Unit selects how resize dimensions are read.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitPixels  Unit = "pixels"
)

// ResizeOptions describes a resize. With UnitPercent, Width is the scale in
// percent and Height is used only when KeepAspect is off. With UnitPixels and
// KeepAspect, a missing side follows the aspect ratio and two given sides
// form a box the image is fitted into. Format "" keeps the source format.
type ResizeOptions struct {
	Unit       Unit
	Width      float64
	Height     float64
	KeepAspect bool
	Format     string
	Quality    int
}

// Validate reports option errors that do not depend on the image.
func (o ResizeOptions) Validate() error {
	switch o.Unit {
	case UnitPercent:
		if o.Width <= 0 || (!o.KeepAspect && o.Height <= 0) {
			return docerr.New(docerr.Validation, "convert.resize", "percentages must be positive")
		}
	case UnitPixels:
		if o.Width < 0 || o.Height < 0 || (o.Width == 0 && o.Height == 0) {
			return docerr.New(docerr.Validation, "convert.resize", "width or height required")
		}
		if !o.KeepAspect && (o.Width == 0 || o.Height == 0) {
			return docerr.New(docerr.Validation, "convert.resize", "width and height required without aspect ratio")
		}
	default:
		return docerr.New(docerr.Validation, "convert.resize", "unknown unit %q", o.Unit)
	}
	return validQuality("convert.resize", o.Quality)
}

// Size computes the output size for a w x h image.
func (o ResizeOptions) Size(w, h int) (int, int) {
	fw, fh := float64(w), float64(h)
	var nw, nh float64
	switch o.Unit {
	case UnitPercent:
		nw = fw * o.Width / 100
		nh = fh * o.Width / 100
		if !o.KeepAspect {
			nh = fh * o.Height / 100
		}
	default:
		nw, nh = o.Width, o.Height
		if o.KeepAspect {
			switch {
			case o.Width == 0:
				nw = fw * o.Height / fh
			case o.Height == 0:
				nh = fh * o.Width / fw
			default:
				f := math.Min(o.Width/fw, o.Height/fh)
				nw, nh = fw*f, fh*f
			}
		}
	}
	return int(math.Max(1, math.Round(nw))), int(math.Max(1, math.Round(nh)))
}

func validQuality(op string, q int) error {
	if q < 0 || q > 100 {
		return docerr.New(docerr.Validation, op, "quality %d outside [1, 100]", q)
	}
	return nil
}

// outputFormat resolves a requested format against the source. Formats
// that cannot be written fall back to PNG.
func outputFormat(requested string, src raster.Format) (raster.Format, error) {
	f := src
	if requested != "" {
		var err error
		if f, err = raster.ParseFormat(requested); err != nil {
			return "", err
		}
		if f == raster.WEBP {
			return "", docerr.New(docerr.Validation, "convert", "webp output is not supported")
		}
	}
	if f == raster.WEBP || f == "" {
		f = raster.PNG
	}
	return f, nil
}

// OutputName is "{base}_{suffix}.{ext}".
func OutputName(base, suffix string, f raster.Format) string {
	return fmt.Sprintf("%s_%s.%s", base, suffix, f.Ext())
}

// Resize scales one image.
func Resize(ctx context.Context, f File, opts ResizeOptions) (File, error) {
	if err := opts.Validate(); err != nil {
		return File{}, err
	}
	s, src, err := raster.Decode(f.Data)
	if err != nil {
		return File{}, err
	}
	format, err := outputFormat(opts.Format, src)
	if err != nil {
		return File{}, err
	}
	w, h := opts.Size(s.Width(), s.Height())
	if err := raster.CheckBounds(w, h); err != nil {
		return File{}, err
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	if w != s.Width() || h != s.Height() {
		if s, err = s.Resize(w, h); err != nil {
			return File{}, err
		}
	}
	return encodeFile(f.Base(), "resized", s, format, opts.Quality)
}

// ConvertFormat re-encodes one image in another format.
func ConvertFormat(ctx context.Context, f File, format string, quality int) (File, error) {
	if format == "" {
		return File{}, docerr.New(docerr.Validation, "convert.format", "target format required")
	}
	if err := validQuality("convert.format", quality); err != nil {
		return File{}, err
	}
	s, src, err := raster.Decode(f.Data)
	if err != nil {
		return File{}, err
	}
	out, err := outputFormat(format, src)
	if err != nil {
		return File{}, err
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	return encodeFile(f.Base(), "converted", s, out, quality)
}

// Compress re-encodes one image at quality. Opaque images become JPEG,
// images with transparency stay PNG. The original bytes are kept when
// re-encoding would not make the file smaller.
func Compress(ctx context.Context, f File, quality int) (File, error) {
	if quality <= 0 || quality > 100 {
		return File{}, docerr.New(docerr.Validation, "convert.compress", "quality %d outside [1, 100]", quality)
	}
	s, src, err := raster.Decode(f.Data)
	if err != nil {
		return File{}, err
	}
	format := raster.JPEG
	if !isOpaque(s) {
		format = raster.PNG
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	out, err := encodeFile(f.Base(), "compressed", s, format, quality)
	if err != nil {
		return File{}, err
	}
	if len(out.Data) >= len(f.Data) && src != raster.WEBP {
		out.Name = OutputName(f.Base(), "compressed", src)
		out.Data = f.Data
	}
	return out, nil
}

// pxPerPt maps watermark sizes, given in points, onto an image: the long
// side of the image counts as the long side of an A4 page.
func pxPerPt(w, h int) float64 {
	return math.Max(float64(w), float64(h)) / 841.89
}

// WatermarkImage draws a text or image watermark over one image, single
// and centred or tiled over a rotated grid covering the whole image.
func WatermarkImage(ctx context.Context, f File, opts editor.WatermarkOptions, quality int) (File, error) {
	if err := opts.Validate(); err != nil {
		return File{}, err
	}
	s, src, err := raster.Decode(f.Data)
	if err != nil {
		return File{}, err
	}
	format, err := outputFormat("", src)
	if err != nil {
		return File{}, err
	}
	scale := pxPerPt(s.Width(), s.Height())
	tile, err := opts.Tile(scale)
	if err != nil {
		return File{}, err
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	drawTiles(s, tile, scale, opts)
	return encodeFile(f.Base(), "watermarked", s, format, quality)
}

// drawTiles paints tile over s. The image is y down, so the
// counter-clockwise rotation is applied with the opposite sign.
func drawTiles(s *raster.Surface, tile editor.Tile, scale float64, opts editor.WatermarkOptions) {
	opacity := opts.Alpha()
	if opacity == 0 {
		return
	}
	w, h := float64(s.Width()), float64(s.Height())
	tw, th := tile.Width*scale, tile.Height*scale
	if !opts.Tiled {
		if f := math.Min(w/tw, h/th); f < 1 {
			tw, th = tw*f, th*f
		}
	}
	centers := []coords.Point{{X: w / 2, Y: h / 2}}
	if opts.Tiled {
		centers = coords.TileGrid(w, h, tw, th, -opts.Rotation).Centers
	}
	src := tile.Surface.Image()
	sw, sh := float64(tile.Surface.Width()), float64(tile.Surface.Height())
	for _, c := range centers {
		m := coords.Scale(tw/sw, th/sh).
			Multiply(coords.Translate(-tw/2, -th/2)).
			Multiply(coords.Rotate(coords.Degrees(-opts.Rotation))).
			Multiply(coords.Translate(c.X, c.Y))
		s.DrawTransformed(src, aff3(m), opacity, nil)
	}
}

func aff3(m coords.Matrix) f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

func encodeFile(base, suffix string, s *raster.Surface, f raster.Format, quality int) (File, error) {
	data, err := s.Bytes(f, quality)
	if err != nil {
		return File{}, docerr.Wrap(docerr.ProcessingFault, "convert", err)
	}
	return File{Name: OutputName(base, suffix, f), Data: data}, nil
}

// Batch applies fn to every file in order.
func Batch(ctx context.Context, files []File, fn func(context.Context, File) (File, error), progress Progress) ([]File, error) {
	if len(files) == 0 {
		return nil, docerr.New(docerr.Validation, "convert.batch", "no images")
	}
	out := make([]File, len(files))
	err := each(ctx, len(files), progress, func(i int) error {
		r, err := fn(ctx, files[i])
		if err != nil {
			return fmt.Errorf("%s: %w", files[i].Name, err)
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
