package builder

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Image is a raster placed on pages as an image XObject. The same *Image
// drawn several times is embedded once per document.
type Image struct {
	Width, Height int

	rgb   []byte
	alpha []byte // nil when fully opaque
	jpeg  []byte
	cs    string
}

// FromImage converts src to an image XObject source. Transparent pixels
// become a soft mask.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])
		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}
	img := &Image{Width: w, Height: h, rgb: pixels}
	if hasAlpha {
		img.alpha = alpha
	}
	return img
}

// FromJPEG wraps already encoded baseline JPEG data, embedded as is.
func FromJPEG(data []byte) (*Image, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	cs := model.DeviceRGBCS
	switch cfg.ColorModel {
	case color.GrayModel:
		cs = model.DeviceGrayCS
	case color.CMYKModel:
		cs = model.DeviceCMYKCS
	}
	return &Image{Width: cfg.Width, Height: cfg.Height, jpeg: data, cs: cs}, nil
}

// EncodeJPEG converts src to a JPEG backed image at quality (1..100).
// Transparency is flattened onto white.
func EncodeJPEG(src image.Image, quality int) (*Image, error) {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Over)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return &Image{Width: b.Dx(), Height: b.Dy(), jpeg: buf.Bytes(), cs: model.DeviceRGBCS}, nil
}

// HasAlpha reports whether the image carries a soft mask.
func (img *Image) HasAlpha() bool { return img.alpha != nil }

func (img *Image) streamDict(xref *model.XRefTable) (*types.StreamDict, error) {
	if img.jpeg != nil {
		return model.CreateDCTImageStreamDict(xref, img.jpeg, img.Width, img.Height, 8, img.cs)
	}
	return model.CreateFlateImageStreamDict(xref, img.rgb, img.alpha, img.Width, img.Height, 8, model.DeviceRGBCS)
}
