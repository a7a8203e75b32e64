package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wudi/docxform/docerr"
)

// Format is an encoded image container.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	WEBP Format = "webp"
)

// ParseFormat maps a user supplied name or extension ("jpg", ".PNG") to a
// Format.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "gif":
		return GIF, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	case "webp":
		return WEBP, nil
	}
	return "", docerr.New(docerr.Validation, "raster", "unknown image format %q", name)
}

// Ext returns the conventional file extension, without the dot.
func (f Format) Ext() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// MIME returns the media type.
func (f Format) MIME() string {
	return "image/" + string(f)
}

// Decode reads any registered image format. Sizes are checked against the
// limits before pixels are decoded.
func Decode(data []byte) (*Surface, Format, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", docerr.Wrap(docerr.CorruptDocument, "decode image", err)
	}
	if err := CheckBounds(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", docerr.Wrap(docerr.CorruptDocument, "decode image", err)
	}
	s, err := FromImage(img)
	if err != nil {
		return nil, "", err
	}
	return s, Format(name), nil
}

// Encode writes s in format f. quality (1..100) applies to JPEG only.
// JPEG drops transparency by flattening onto white.
func (s *Surface) Encode(w io.Writer, f Format, quality int) error {
	switch f {
	case PNG:
		return png.Encode(w, s.img)
	case JPEG:
		if quality <= 0 || quality > 100 {
			quality = 92
		}
		return jpeg.Encode(w, s.Flatten(color.White).img, &jpeg.Options{Quality: quality})
	case GIF:
		return gif.Encode(w, s.img, &gif.Options{NumColors: 256})
	case BMP:
		return bmp.Encode(w, s.img)
	case TIFF:
		return tiff.Encode(w, s.img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return docerr.New(docerr.UnsupportedContent, "raster", "cannot encode %s", f)
}

// Bytes encodes s into a new buffer.
func (s *Surface) Bytes(f Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf, f, quality); err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	return buf.Bytes(), nil
}
