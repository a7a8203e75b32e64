package optimize

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/wudi/docxform/contentstream"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/document"
)

type imageUsage struct {
	maxWidth  float64 // in points
	maxHeight float64 // in points
}

func (o *Optimizer) optimizeImages(ctx context.Context, pdf *model.Context) (int, error) {
	// 1. Analyze usage to determine maximum display dimensions
	usageMap := o.collectImageUsage(pdf)

	// 2. Soft masks stay as they are; they are rewritten with their image
	masks := make(map[int]bool)
	for _, nr := range objectNumbers(pdf.XRefTable) {
		if sd, ok := pdf.Table[nr].Object.(types.StreamDict); ok {
			if ref := sd.IndirectRefEntry("SMask"); ref != nil {
				masks[ref.ObjectNumber.Value()] = true
			}
		}
	}

	n := 0
	for _, nr := range objectNumbers(pdf.XRefTable) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		e := pdf.Table[nr]
		sd, ok := e.Object.(types.StreamDict)
		if !ok || masks[nr] || !isPlainImage(sd) {
			continue
		}
		optimized, ok := o.processImage(pdf, nr, sd, usageMap)
		if !ok {
			continue
		}
		e.Object = *optimized
		n++
	}
	return n, nil
}

// isPlainImage accepts image XObjects whose colours a JPEG can carry.
func isPlainImage(sd types.StreamDict) bool {
	if st := sd.Subtype(); st == nil || *st != "Image" {
		return false
	}
	if b := sd.BooleanEntry("ImageMask"); b != nil && *b {
		return false
	}
	for _, k := range []string{"SMask", "Mask", "Decode"} {
		if _, has := sd.Find(k); has {
			return false
		}
	}
	return sd.Raw != nil
}

// collectImageUsage records the largest size in points each image
// XObject is painted at directly from page content.
func (o *Optimizer) collectImageUsage(pdf *model.Context) map[int]imageUsage {
	usageMap := make(map[int]imageUsage)
	if err := pdf.EnsurePageCount(); err != nil {
		return usageMap
	}
	for nr := 1; nr <= pdf.PageCount; nr++ {
		pageDict, _, inh, err := pdf.PageDict(nr, false)
		if err != nil || pageDict == nil || inh == nil || inh.Resources == nil {
			continue
		}
		xobjs, err := pdf.DereferenceDict(inh.Resources["XObject"])
		if err != nil || xobjs == nil {
			continue
		}
		content, err := document.ContentOf(pdf.XRefTable, pageDict)
		if err != nil {
			continue
		}
		ops, err := contentstream.Parse(content)
		if err != nil {
			// Skip pages with errors
			continue
		}

		ctm := coords.Identity()
		var stack []coords.Matrix
		for _, op := range ops {
			switch op.Operator {
			case "q":
				stack = append(stack, ctm)
			case "Q":
				if len(stack) > 0 {
					ctm = stack[len(stack)-1]
					stack = stack[:len(stack)-1]
				}
			case "cm":
				v, err := op.Floats(6)
				if err != nil {
					continue
				}
				ctm = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(ctm)
			case "Do":
				name, err := op.Name(0)
				if err != nil {
					continue
				}
				ref, ok := xobjs[name].(types.IndirectRef)
				if !ok {
					continue
				}
				w := math.Hypot(ctm[0], ctm[1])
				h := math.Hypot(ctm[2], ctm[3])
				objNr := ref.ObjectNumber.Value()
				curr := usageMap[objNr]
				if w > curr.maxWidth {
					curr.maxWidth = w
				}
				if h > curr.maxHeight {
					curr.maxHeight = h
				}
				usageMap[objNr] = curr
			}
		}
	}
	return usageMap
}

func (o *Optimizer) processImage(pdf *model.Context, objNr int, sd types.StreamDict, usageMap map[int]imageUsage) (*types.StreamDict, bool) {
	isJPEG := len(sd.FilterPipeline) > 0 && sd.FilterPipeline[len(sd.FilterPipeline)-1].Name == "DCTDecode"

	w, h := 0, 0
	if v := sd.IntEntry("Width"); v != nil {
		w = *v
	}
	if v := sd.IntEntry("Height"); v != nil {
		h = *v
	}
	if w <= 0 || h <= 0 {
		return nil, false
	}

	// Determine if we need to resize
	needsResize := false
	targetW, targetH := w, h
	if o.config.ImageUpperPPI > 0 {
		if usage, ok := usageMap[objNr]; ok {
			// Pixels = PPI * Points / 72
			maxW := o.config.ImageUpperPPI * usage.maxWidth / 72.0
			maxH := o.config.ImageUpperPPI * usage.maxHeight / 72.0
			if maxW > 0 && maxH > 0 && (float64(w) > maxW*1.2 || float64(h) > maxH*1.2) { // 20% buffer
				needsResize = true
				scale := math.Min(maxW/float64(w), maxH/float64(h))
				targetW = max(int(float64(w)*scale), 1)
				targetH = max(int(float64(h)*scale), 1)
			}
		}
	}

	// Existing JPEGs are only re-encoded when they shrink in size.
	if isJPEG && !needsResize {
		return nil, false
	}
	if o.config.ImageQuality <= 0 && !needsResize {
		return nil, false
	}

	cp := sd
	extracted, err := pdfcpu.ExtractImage(pdf, &cp, false, "", objNr, false)
	if err != nil || extracted == nil {
		return nil, false
	}
	img, _, err := image.Decode(extracted)
	if err != nil {
		return nil, false
	}

	if needsResize {
		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}

	quality := o.config.ImageQuality
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, false
	}
	if buf.Len() >= len(sd.Raw) {
		return nil, false
	}

	cs := model.DeviceRGBCS
	if isGray(img) {
		cs = model.DeviceGrayCS
	}
	b := img.Bounds()
	out, err := model.CreateDCTImageStreamDict(pdf.XRefTable, buf.Bytes(), b.Dx(), b.Dy(), 8, cs)
	if err != nil {
		return nil, false
	}
	if v, ok := sd.Find("Interpolate"); ok {
		out.Insert("Interpolate", v)
	}
	return out, true
}

func isGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}
