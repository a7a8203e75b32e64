package engine

import (
	"strings"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/convert"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/filters"
	"github.com/wudi/docxform/optimize"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/textlayer"
	"github.com/wudi/docxform/workspace"
)

// Tool identifies a transformation.
type Tool string

const (
	ToolMerge           Tool = "merge"
	ToolSplit           Tool = "split"
	ToolCompress        Tool = "compress"
	ToolRotate          Tool = "rotate"
	ToolPDFToImages     Tool = "pdf-to-images"
	ToolProtect         Tool = "protect"
	ToolUnlock          Tool = "unlock"
	ToolWatermark       Tool = "watermark"
	ToolCrop            Tool = "crop"
	ToolOrganize        Tool = "organize"
	ToolEdit            Tool = "edit"
	ToolRedact          Tool = "redact"
	ToolOCR             Tool = "ocr"
	ToolCompare         Tool = "compare"
	ToolPageNumbers     Tool = "page-numbers"
	ToolMetadata        Tool = "metadata"
	ToolPDFToText       Tool = "pdf-to-text"
	ToolPDFToWord       Tool = "pdf-to-word"
	ToolToPDF           Tool = "to-pdf"
	ToolImagesToPDF     Tool = "images-to-pdf"
	ToolScanToPDF       Tool = "scan-to-pdf"
	ToolResizeImages    Tool = "resize-images"
	ToolConvertImages   Tool = "convert-images"
	ToolCompressImages  Tool = "compress-images"
	ToolWatermarkImages Tool = "watermark-images"
)

// Options is the tool specific part of a Request. The set of
// implementations is closed; each one names its tool.
type Options interface {
	Tool() Tool
	validate() error
}

func invalid(tool Tool, format string, args ...interface{}) error {
	return docerr.New(docerr.Validation, "engine."+string(tool), format, args...)
}

func checkQuality(tool Tool, q int) error {
	if q < 0 || q > 100 {
		return invalid(tool, "quality %d outside 1..100", q)
	}
	return nil
}

type MergeOptions struct{}

func (MergeOptions) Tool() Tool      { return ToolMerge }
func (MergeOptions) validate() error { return nil }

type SplitOptions struct {
	editor.SplitOptions
}

func (SplitOptions) Tool() Tool { return ToolSplit }

func (o SplitOptions) validate() error {
	switch o.Mode {
	case "", editor.SplitAll:
	case editor.SplitRanges:
		if strings.TrimSpace(o.Ranges) == "" {
			return invalid(ToolSplit, "no page ranges")
		}
	case editor.SplitFixed:
		if o.FixedSize < 1 {
			return invalid(ToolSplit, "fixed size %d below 1", o.FixedSize)
		}
	default:
		return invalid(ToolSplit, "unknown split mode %q", o.Mode)
	}
	return nil
}

type CompressOptions struct {
	Level optimize.Level
}

func (CompressOptions) Tool() Tool { return ToolCompress }

func (o CompressOptions) validate() error {
	_, err := optimize.ConfigFor(o.Level)
	return err
}

// RotateOptions turns every page clockwise by Degrees, a multiple of 90.
type RotateOptions struct {
	Degrees int
}

func (RotateOptions) Tool() Tool { return ToolRotate }

func (o RotateOptions) validate() error {
	if o.Degrees%90 != 0 {
		return invalid(ToolRotate, "rotation %d is not a multiple of 90", o.Degrees)
	}
	return nil
}

// PDFToImagesOptions exports every page as png or jpeg. Scale 0 uses the
// session's export scale.
type PDFToImagesOptions struct {
	Format  string
	Scale   float64
	Quality int
}

func (PDFToImagesOptions) Tool() Tool { return ToolPDFToImages }

func (o PDFToImagesOptions) validate() error {
	if o.Format != "" {
		f, err := raster.ParseFormat(o.Format)
		if err != nil || (f != raster.PNG && f != raster.JPEG) {
			return invalid(ToolPDFToImages, "pages can be exported as png or jpeg, not %q", o.Format)
		}
	}
	if o.Scale < 0 {
		return invalid(ToolPDFToImages, "negative scale")
	}
	return checkQuality(ToolPDFToImages, o.Quality)
}

type ProtectOptions struct {
	Password       string
	AllowPrinting  bool
	AllowCopying   bool
	AllowModifying bool
}

func (ProtectOptions) Tool() Tool { return ToolProtect }

func (o ProtectOptions) validate() error {
	if o.Password == "" {
		return invalid(ToolProtect, "password is empty")
	}
	return nil
}

// UnlockOptions carries the password of the encrypted input.
type UnlockOptions struct {
	Password string
}

func (UnlockOptions) Tool() Tool { return ToolUnlock }

func (o UnlockOptions) validate() error {
	if o.Password == "" {
		return invalid(ToolUnlock, "password is empty")
	}
	return nil
}

type WatermarkOptions struct {
	editor.WatermarkOptions
}

func (WatermarkOptions) Tool() Tool        { return ToolWatermark }
func (o WatermarkOptions) validate() error { return o.WatermarkOptions.Validate() }

type CropOptions struct {
	Margins editor.Margins
}

func (CropOptions) Tool() Tool { return ToolCrop }

func (o CropOptions) validate() error {
	m := o.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return invalid(ToolCrop, "negative margin")
	}
	return nil
}

// OrganizeOptions lists the pages of the result in order.
type OrganizeOptions struct {
	Pages []editor.PageSpec
}

func (OrganizeOptions) Tool() Tool { return ToolOrganize }

func (o OrganizeOptions) validate() error {
	if len(o.Pages) == 0 {
		return invalid(ToolOrganize, "no pages")
	}
	for _, p := range o.Pages {
		if p.Source < 0 {
			return invalid(ToolOrganize, "negative page index %d", p.Source)
		}
		if p.Rotate%90 != 0 {
			return invalid(ToolOrganize, "rotation %d is not a multiple of 90", p.Rotate)
		}
	}
	return nil
}

// EditOptions places items drawn on the rendered surface described by
// Layout. An empty Layout means the pages stacked at the session's preview
// scale.
type EditOptions struct {
	Items  []workspace.CanvasItem
	Layout coords.Layout
}

func (EditOptions) Tool() Tool { return ToolEdit }

func (o EditOptions) validate() error {
	if len(o.Items) == 0 {
		return invalid(ToolEdit, "nothing to add")
	}
	return nil
}

// RedactOptions blacks out areas marked on the surface described by Layout.
type RedactOptions struct {
	Areas  []workspace.RedactionArea
	Layout coords.Layout
}

func (RedactOptions) Tool() Tool { return ToolRedact }

func (o RedactOptions) validate() error {
	if len(o.Areas) == 0 {
		return invalid(ToolRedact, "no areas to redact")
	}
	return nil
}

// OCROptions selects the recognition language, "eng+deu" style. Empty
// uses the session default.
type OCROptions struct {
	Language string
}

func (OCROptions) Tool() Tool { return ToolOCR }

func (o OCROptions) validate() error { return textlayer.CheckLanguages(o.Language) }

type CompareOptions struct{}

func (CompareOptions) Tool() Tool      { return ToolCompare }
func (CompareOptions) validate() error { return nil }

type PageNumbersOptions struct {
	editor.PageNumberOptions
}

func (PageNumbersOptions) Tool() Tool { return ToolPageNumbers }

func (o PageNumbersOptions) validate() error {
	switch o.Position {
	case "", editor.TopLeft, editor.TopCenter, editor.TopRight,
		editor.BottomLeft, editor.BottomCenter, editor.BottomRight:
		return nil
	}
	return invalid(ToolPageNumbers, "unknown position %q", o.Position)
}

type MetadataOptions struct {
	editor.Metadata
}

func (MetadataOptions) Tool() Tool      { return ToolMetadata }
func (MetadataOptions) validate() error { return nil }

type PDFToTextOptions struct{}

func (PDFToTextOptions) Tool() Tool      { return ToolPDFToText }
func (PDFToTextOptions) validate() error { return nil }

type PDFToWordOptions struct{}

func (PDFToWordOptions) Tool() Tool      { return ToolPDFToWord }
func (PDFToWordOptions) validate() error { return nil }

// ToPDFOptions lays out an office, HTML, Markdown or text document.
type ToPDFOptions struct {
	Paper    builder.PaperSize
	FontSize float64
	Margin   float64
}

func (ToPDFOptions) Tool() Tool { return ToolToPDF }

func (o ToPDFOptions) validate() error {
	if o.FontSize < 0 || o.Margin < 0 {
		return invalid(ToolToPDF, "negative font size or margin")
	}
	return nil
}

type ImagesToPDFOptions struct {
	Fit    convert.PageFit
	Margin float64
}

func (ImagesToPDFOptions) Tool() Tool { return ToolImagesToPDF }

func (o ImagesToPDFOptions) validate() error { return checkFit(ToolImagesToPDF, o.Fit, o.Margin) }

func checkFit(tool Tool, fit convert.PageFit, margin float64) error {
	switch fit {
	case "", convert.FitImage, convert.FitA4:
	default:
		return invalid(tool, "unknown page fit %q", fit)
	}
	if margin < 0 {
		return invalid(tool, "negative margin")
	}
	return nil
}

// ScanOptions applies Filter ("original", "magic", "bw", "grayscale",
// "lighten") to every image before building the document.
type ScanOptions struct {
	Filter string
	Fit    convert.PageFit
	Margin float64
}

func (ScanOptions) Tool() Tool { return ToolScanToPDF }

func (o ScanOptions) validate() error {
	if _, err := filters.ByName(o.Filter); err != nil {
		return err
	}
	return checkFit(ToolScanToPDF, o.Fit, o.Margin)
}

type ResizeImagesOptions struct {
	convert.ResizeOptions
}

func (ResizeImagesOptions) Tool() Tool        { return ToolResizeImages }
func (o ResizeImagesOptions) validate() error { return o.ResizeOptions.Validate() }

type ConvertImagesOptions struct {
	Format  string
	Quality int
}

func (ConvertImagesOptions) Tool() Tool { return ToolConvertImages }

func (o ConvertImagesOptions) validate() error {
	if o.Format == "" {
		return invalid(ToolConvertImages, "no target format")
	}
	if _, err := raster.ParseFormat(o.Format); err != nil {
		return invalid(ToolConvertImages, "unknown format %q", o.Format)
	}
	return checkQuality(ToolConvertImages, o.Quality)
}

type CompressImagesOptions struct {
	Quality int
}

func (CompressImagesOptions) Tool() Tool        { return ToolCompressImages }
func (o CompressImagesOptions) validate() error { return checkQuality(ToolCompressImages, o.Quality) }

type WatermarkImagesOptions struct {
	editor.WatermarkOptions
	Quality int
}

func (WatermarkImagesOptions) Tool() Tool { return ToolWatermarkImages }

func (o WatermarkImagesOptions) validate() error {
	if err := o.WatermarkOptions.Validate(); err != nil {
		return err
	}
	return checkQuality(ToolWatermarkImages, o.Quality)
}
