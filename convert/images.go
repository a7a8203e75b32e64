package convert

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"math"

	"github.com/wudi/docxform/archive"
	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/filters"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/render"
)

// ExportOptions controls PDFToImages.
type ExportOptions struct {
	Format  raster.Format // PNG or JPEG, default PNG
	Scale   float64       // pixels per point, default 2
	Quality int           // JPEG quality
}

// PageImageName names the image of page n (1-based).
func PageImageName(base string, n int, f raster.Format) string {
	return fmt.Sprintf("%s_page_%d.%s", base, n, f.Ext())
}

// PDFToImages renders every page and returns them zipped.
func PDFToImages(ctx context.Context, doc *document.Document, r *render.Renderer, opts ExportOptions, progress Progress) ([]byte, error) {
	if opts.Format == "" {
		opts.Format = raster.PNG
	}
	if opts.Format != raster.PNG && opts.Format != raster.JPEG {
		return nil, docerr.New(docerr.Validation, "convert.images", "page images must be png or jpeg, not %s", opts.Format)
	}
	if opts.Scale <= 0 {
		opts.Scale = 2
	}
	entries := make([]archive.Entry, doc.PageCount())
	err := each(ctx, doc.PageCount(), progress, func(i int) error {
		s, err := r.Render(ctx, doc, i, opts.Scale)
		if err != nil {
			return err
		}
		data, err := s.Bytes(opts.Format, opts.Quality)
		if err != nil {
			return docerr.Wrap(docerr.ProcessingFault, "convert.images", err)
		}
		entries[i] = archive.Entry{Name: PageImageName(doc.Base(), i+1, opts.Format), Data: data}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archive.Pack(entries)
}

// PageFit decides the page size of an image page.
type PageFit string

const (
	// FitImage sizes the page to the image at 72 dpi.
	FitImage PageFit = "image"
	// FitA4 centres the image on an A4 page turned to match its aspect,
	// scaled to fill the area inside the margin.
	FitA4 PageFit = "a4"
)

// PageOptions controls ImagesToPDF and ScanToPDF.
type PageOptions struct {
	Fit     PageFit
	Margin  float64 // points, FitA4 only
	Quality int     // JPEG quality for re-encoded images
}

// ImagesToPDF makes one page per image, in order.
func ImagesToPDF(ctx context.Context, files []File, opts PageOptions, progress Progress) ([]byte, error) {
	if len(files) == 0 {
		return nil, docerr.New(docerr.Validation, "convert.images_to_pdf", "no images")
	}
	b := builder.NewBuilder()
	err := each(ctx, len(files), progress, func(i int) error {
		img, err := pdfImage(files[i].Data, opts.Quality)
		if err != nil {
			return fmt.Errorf("%s: %w", files[i].Name, err)
		}
		addImagePage(b, img, opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildPDF("convert.images_to_pdf", b)
}

// ScanToPDF runs each image through the named scan filter before making
// it a page. Filtered pages are stored as JPEG.
func ScanToPDF(ctx context.Context, files []File, filter string, opts PageOptions, progress Progress) ([]byte, error) {
	if len(files) == 0 {
		return nil, docerr.New(docerr.Validation, "convert.scan", "no images")
	}
	pipeline, err := filters.ByName(filter)
	if err != nil {
		return nil, err
	}
	b := builder.NewBuilder()
	err = each(ctx, len(files), progress, func(i int) error {
		s, _, err := raster.Decode(files[i].Data)
		if err != nil {
			return fmt.Errorf("%s: %w", files[i].Name, err)
		}
		s, err = pipeline.Apply(ctx, s)
		if err != nil {
			return err
		}
		img, err := builder.EncodeJPEG(s.Image(), opts.Quality)
		if err != nil {
			return docerr.Wrap(docerr.ProcessingFault, "convert.scan", err)
		}
		addImagePage(b, img, opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildPDF("convert.scan", b)
}

// pdfImage embeds JPEG data as is and decodes everything else.
func pdfImage(data []byte, quality int) (*builder.Image, error) {
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
		if err := raster.CheckBounds(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
		if img, err := builder.FromJPEG(data); err == nil {
			return img, nil
		}
	}
	s, _, err := raster.Decode(data)
	if err != nil {
		return nil, err
	}
	if isOpaque(s) && quality > 0 {
		img, err := builder.EncodeJPEG(s.Image(), quality)
		if err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "convert", err)
		}
		return img, nil
	}
	return builder.FromImage(s.Image()), nil
}

func isOpaque(s *raster.Surface) bool {
	pix, _ := s.Pix()
	for i := 3; i < len(pix); i += 4 {
		if pix[i] != 0xff {
			return false
		}
	}
	return true
}

func addImagePage(b builder.PDFBuilder, img *builder.Image, opts PageOptions) {
	iw, ih := float64(img.Width), float64(img.Height)
	if opts.Fit != FitA4 {
		b.NewPage(iw, ih).DrawImage(img, 0, 0, iw, ih, builder.ImageOptions{}).Finish()
		return
	}
	paper := builder.A4
	if iw > ih {
		paper = paper.Landscape()
	}
	m := math.Min(math.Max(0, opts.Margin), paper.Width/4)
	aw, ah := paper.Width-2*m, paper.Height-2*m
	f := math.Min(aw/iw, ah/ih)
	w, h := iw*f, ih*f
	b.NewPage(paper.Width, paper.Height).
		DrawImage(img, (paper.Width-w)/2, (paper.Height-h)/2, w, h, builder.ImageOptions{}).
		Finish()
}

func buildPDF(op string, b builder.PDFBuilder) ([]byte, error) {
	data, err := b.Build()
	if err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, op, err)
	}
	return data, nil
}
