package render

import (
	"fmt"
	"image"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/math/f64"

	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/raster"
)

// decodedImage is an image XObject ready for compositing. Stencil masks
// carry only coverage and take the fill colour when drawn.
type decodedImage struct {
	img     image.Image
	stencil *image.Alpha
}

func (d *decodedImage) bounds() image.Rectangle {
	if d.stencil != nil {
		return d.stencil.Rect
	}
	return d.img.Bounds()
}

func (r *runner) opXObject(op contentstream.Operation) error {
	name, err := op.Name(0)
	if err != nil {
		return err
	}
	obj, err := r.resource("XObject", name)
	if err != nil {
		return err
	}
	sd, _, err := r.xref.DereferenceStreamDict(obj)
	if err != nil {
		return err
	}
	if sd == nil {
		return nil
	}
	subtype := ""
	if s := sd.NameEntry("Subtype"); s != nil {
		subtype = *s
	}
	switch subtype {
	case "Image":
		return r.drawImage(obj, sd)
	case "Form":
		return r.drawForm(sd)
	}
	return nil
}

func (r *runner) drawImage(obj types.Object, sd *types.StreamDict) error {
	ref, cacheable := obj.(types.IndirectRef)
	var di *decodedImage
	if cacheable {
		di = r.images[ref]
	}
	if di == nil {
		objNr := 0
		if cacheable {
			objNr = ref.ObjectNumber.Value()
		}
		var err error
		di, err = r.decodeImage(sd, objNr)
		if err != nil {
			return err
		}
		if cacheable {
			r.images[ref] = di
		}
	}

	b := di.bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w == 0 || h == 0 {
		return nil
	}
	m := r.gs.ctm
	if math.Abs(m[0]*m[3]-m[1]*m[2]) < 1e-12 {
		return nil
	}
	// Image space has its origin top-left and maps onto the unit square.
	aff := f64.Aff3{
		m[0] / w, -m[2] / h, m[2] + m[4],
		m[1] / w, -m[3] / h, m[3] + m[5],
	}
	src := di.img
	if di.stencil != nil {
		if r.gs.fill.pattern {
			return nil
		}
		masked := image.NewNRGBA(b)
		fc := r.gs.fill.c
		for i, a := range di.stencil.Pix {
			masked.Pix[4*i] = fc.R
			masked.Pix[4*i+1] = fc.G
			masked.Pix[4*i+2] = fc.B
			masked.Pix[4*i+3] = a
		}
		src = masked
	}
	r.surface.DrawTransformed(src, aff, r.gs.fillAlpha, r.gs.clip)
	return nil
}

func (r *runner) decodeImage(sd *types.StreamDict, objNr int) (*decodedImage, error) {
	w, h := 0, 0
	if v, ok := r.number(sd.Dict, "Width"); ok {
		w = int(v)
	}
	if v, ok := r.number(sd.Dict, "Height"); ok {
		h = int(v)
	}
	if err := raster.CheckBounds(w, h); err != nil {
		return nil, err
	}
	if im := sd.BooleanEntry("ImageMask"); im != nil && *im {
		return r.decodeStencil(sd, w, h)
	}
	cp := *sd
	mi, err := pdfcpu.ExtractImage(r.pdf, &cp, false, "", objNr, false)
	if err != nil {
		return nil, err
	}
	if mi == nil || mi.Reader == nil {
		return nil, fmt.Errorf("image %d: unsupported encoding", objNr)
	}
	img, _, err := image.Decode(mi.Reader)
	if err != nil {
		return nil, fmt.Errorf("image %d (%s): %w", objNr, mi.FileType, err)
	}
	return &decodedImage{img: img}, nil
}

// decodeStencil unpacks a one bit image mask. Samples of 0 paint unless
// the Decode array inverts them.
func (r *runner) decodeStencil(sd *types.StreamDict, w, h int) (*decodedImage, error) {
	data, err := document.StreamContent(sd)
	if err != nil {
		return nil, err
	}
	paintBit := byte(0)
	if dec := sd.ArrayEntry("Decode"); len(dec) == 2 {
		if v, err := r.xref.DereferenceNumber(dec[0]); err == nil && v == 1 {
			paintBit = 1
		}
	}
	stride := (w + 7) / 8
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := y * stride
		if row >= len(data) {
			break
		}
		for x := 0; x < w; x++ {
			i := row + x/8
			if i >= len(data) {
				break
			}
			bit := (data[i] >> (7 - uint(x%8))) & 1
			if bit == paintBit {
				mask.Pix[y*mask.Stride+x] = 0xFF
			}
		}
	}
	return &decodedImage{stencil: mask}, nil
}

func (r *runner) drawForm(sd *types.StreamDict) error {
	if r.depth >= r.maxDepth {
		return fmt.Errorf("form XObjects nested deeper than %d", r.maxDepth)
	}
	content, err := document.StreamContent(sd)
	if err != nil {
		return err
	}
	st := r.gs
	if arr := r.numbers(sd.Dict, "Matrix"); len(arr) == 6 {
		st.ctm = coords.Matrix{arr[0], arr[1], arr[2], arr[3], arr[4], arr[5]}.Multiply(st.ctm)
	}
	if bb := r.numbers(sd.Dict, "BBox"); len(bb) == 4 {
		p := raster.NewPath()
		x0, y0, x1, y1 := bb[0], bb[1], bb[2], bb[3]
		for i, pt := range [][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}} {
			px, py := st.ctm.Apply(pt[0], pt[1])
			if i == 0 {
				p.MoveTo(px, py)
			} else {
				p.LineTo(px, py)
			}
		}
		p.Close()
		st.clip = intersectClip(st.clip, p.Coverage(r.surface.Bounds()))
	}
	res := r.res
	if obj, ok := sd.Find("Resources"); ok {
		if d, err := r.xref.DereferenceDict(obj); err == nil && d != nil {
			res = d
		}
	}
	return r.interpreter.run(content, res, st, r.depth+1)
}

// numbers reads an array of numbers from d.
func (r *runner) numbers(d types.Dict, key string) []float64 {
	obj, ok := d.Find(key)
	if !ok {
		return nil
	}
	arr, err := r.xref.DereferenceArray(obj)
	if err != nil {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, o := range arr {
		v, err := r.xref.DereferenceNumber(o)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}
