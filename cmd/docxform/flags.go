package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/convert"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/engine"
	"github.com/wudi/docxform/optimize"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/workspace"
)

type options struct {
	tool     engine.Tool
	paths    []string
	output   string
	password string
	progress bool

	logLevel  string
	logFormat string

	ocrLang       string
	jpegQuality   int
	scale         float64
	diffThreshold float64

	level       string
	degrees     int
	mode        string
	ranges      string
	chunk       int
	newPassword string
	allowPrint  bool
	allowCopy   bool
	allowModify bool

	watermarkText  string
	watermarkImage string
	opacity        float64
	rotation       float64
	tiled          bool

	margins  string
	pages    string
	title    string
	author   string
	subject  string
	keywords string
	creator  string

	position     string
	start        int
	numberFormat string

	imageFormat string
	quality     int
	filter      string
	fit         string
	unit        string
	width       float64
	height      float64
	keepAspect  bool
	paper       string
	fontSize    float64

	redact   string
	textItem string
}

func parseArgs(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("docxform", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: docxform -tool <tool> [flags] <file>...\n")
		fs.PrintDefaults()
	}
	tool := fs.String("tool", "", "Tool to run (merge, split, compress, rotate, pdf-to-images, protect, unlock, watermark, crop, organize, redact, ocr, compare, page-numbers, metadata, pdf-to-text, pdf-to-word, to-pdf, images-to-pdf, scan-to-pdf, resize-images, convert-images, compress-images, watermark-images, edit)")
	fs.StringVar(&o.output, "o", "", "Output file or directory (default: artifact name in the current directory)")
	fs.StringVar(&o.password, "password", "", "Password to open encrypted inputs")
	fs.BoolVar(&o.progress, "progress", false, "Print progress to stderr")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "text", "Log format (text, json)")

	fs.StringVar(&o.ocrLang, "ocr-lang", "eng", "OCR language, e.g. eng+deu")
	fs.IntVar(&o.jpegQuality, "jpeg-quality", 85, "JPEG quality of rasterized pages")
	fs.Float64Var(&o.scale, "scale", 2, "Pixels per point for exported page images")
	fs.Float64Var(&o.diffThreshold, "diff-threshold", 0.1, "Colour distance treated as a difference (0..1)")

	fs.StringVar(&o.level, "level", "recommended", "Compression level (low, recommended, high)")
	fs.IntVar(&o.degrees, "degrees", 90, "Clockwise rotation, a multiple of 90")
	fs.StringVar(&o.mode, "mode", "all", "Split mode (all, ranges, fixed)")
	fs.StringVar(&o.ranges, "ranges", "", "Split ranges, e.g. 1,3-4")
	fs.IntVar(&o.chunk, "chunk", 1, "Pages per file for fixed splits")
	fs.StringVar(&o.newPassword, "new-password", "", "Password set by protect")
	fs.BoolVar(&o.allowPrint, "allow-print", false, "Protected files may be printed")
	fs.BoolVar(&o.allowCopy, "allow-copy", false, "Protected files allow copying text")
	fs.BoolVar(&o.allowModify, "allow-modify", false, "Protected files may be modified")

	fs.StringVar(&o.watermarkText, "text", "", "Watermark text")
	fs.StringVar(&o.watermarkImage, "image", "", "Watermark image file")
	fs.Float64Var(&o.opacity, "opacity", 0.5, "Watermark opacity (0..1)")
	fs.Float64Var(&o.rotation, "rotation", 45, "Watermark rotation in degrees (-180..180)")
	fs.BoolVar(&o.tiled, "tiled", false, "Repeat the watermark over the page")

	fs.StringVar(&o.margins, "margins", "", "Crop margins in points: top,right,bottom,left")
	fs.StringVar(&o.pages, "pages", "", "Organized page order, 1-based with optional rotation: 3,1:90,2")
	fs.StringVar(&o.title, "title", "", "Document title")
	fs.StringVar(&o.author, "author", "", "Document author")
	fs.StringVar(&o.subject, "subject", "", "Document subject")
	fs.StringVar(&o.keywords, "keywords", "", "Document keywords")
	fs.StringVar(&o.creator, "creator", "", "Creating application")

	fs.StringVar(&o.position, "position", "bottom-center", "Page number position")
	fs.IntVar(&o.start, "start", 1, "First page number")
	fs.StringVar(&o.numberFormat, "number-format", "{n}", "Page number label, {n} and {total} are replaced")

	fs.StringVar(&o.imageFormat, "format", "", "Image format (png, jpeg, gif, bmp, tiff)")
	fs.IntVar(&o.quality, "quality", 0, "Image quality 1..100 (0 uses the default)")
	fs.StringVar(&o.filter, "filter", "original", "Scan filter (original, magic, bw, grayscale, lighten)")
	fs.StringVar(&o.fit, "fit", "a4", "Image page size (image, a4)")
	fs.StringVar(&o.unit, "unit", "percent", "Resize unit (percent, pixels)")
	fs.Float64Var(&o.width, "width", 50, "Resize width")
	fs.Float64Var(&o.height, "height", 0, "Resize height")
	fs.BoolVar(&o.keepAspect, "keep-aspect", true, "Keep the aspect ratio when resizing")
	fs.StringVar(&o.paper, "paper", "a4", "Paper size for to-pdf (a3, a4, a5, letter, legal)")
	fs.Float64Var(&o.fontSize, "font-size", 0, "Body font size for to-pdf")

	fs.StringVar(&o.redact, "areas", "", "Redaction areas in preview pixels: x,y,w,h;x,y,w,h")
	fs.StringVar(&o.textItem, "add-text", "", "Text to place in preview pixels: x,y,size,text")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.tool = engine.Tool(*tool)
	o.paths = fs.Args()
	if o.tool == "" {
		fs.Usage()
		return o, fmt.Errorf("missing -tool")
	}
	if len(o.paths) == 0 {
		fs.Usage()
		return o, fmt.Errorf("no input files")
	}
	return o, nil
}

// request turns the flags into the options of the selected tool.
func (o options) request(inputs []engine.Input) (engine.Request, error) {
	opts, err := o.toolOptions()
	if err != nil {
		return engine.Request{}, err
	}
	return engine.Request{Tool: o.tool, Options: opts, Inputs: inputs}, nil
}

func (o options) toolOptions() (engine.Options, error) {
	switch o.tool {
	case engine.ToolMerge:
		return engine.MergeOptions{}, nil
	case engine.ToolSplit:
		return engine.SplitOptions{SplitOptions: editor.SplitOptions{Mode: editor.SplitMode(o.mode), Ranges: o.ranges, FixedSize: o.chunk}}, nil
	case engine.ToolCompress:
		return engine.CompressOptions{Level: optimize.Level(o.level)}, nil
	case engine.ToolRotate:
		return engine.RotateOptions{Degrees: o.degrees}, nil
	case engine.ToolPDFToImages:
		return engine.PDFToImagesOptions{Format: o.imageFormat, Scale: o.scale, Quality: o.quality}, nil
	case engine.ToolProtect:
		return engine.ProtectOptions{Password: o.newPassword, AllowPrinting: o.allowPrint, AllowCopying: o.allowCopy, AllowModifying: o.allowModify}, nil
	case engine.ToolUnlock:
		return engine.UnlockOptions{Password: o.password}, nil
	case engine.ToolWatermark:
		wm, err := o.watermark()
		return engine.WatermarkOptions{WatermarkOptions: wm}, err
	case engine.ToolCrop:
		m, err := parseMargins(o.margins)
		return engine.CropOptions{Margins: m}, err
	case engine.ToolOrganize:
		specs, err := parsePageSpecs(o.pages)
		return engine.OrganizeOptions{Pages: specs}, err
	case engine.ToolEdit:
		item, err := parseTextItem(o.textItem)
		return engine.EditOptions{Items: []workspace.CanvasItem{item}}, err
	case engine.ToolRedact:
		areas, err := parseAreas(o.redact)
		return engine.RedactOptions{Areas: areas}, err
	case engine.ToolOCR:
		return engine.OCROptions{Language: o.ocrLang}, nil
	case engine.ToolCompare:
		return engine.CompareOptions{}, nil
	case engine.ToolPageNumbers:
		return engine.PageNumbersOptions{PageNumberOptions: editor.PageNumberOptions{
			Position: editor.Position(o.position), Start: o.start, Format: o.numberFormat,
		}}, nil
	case engine.ToolMetadata:
		return engine.MetadataOptions{Metadata: editor.Metadata{
			Title: o.title, Author: o.author, Subject: o.subject, Keywords: o.keywords, Creator: o.creator,
		}}, nil
	case engine.ToolPDFToText:
		return engine.PDFToTextOptions{}, nil
	case engine.ToolPDFToWord:
		return engine.PDFToWordOptions{}, nil
	case engine.ToolToPDF:
		paper, err := parsePaper(o.paper)
		return engine.ToPDFOptions{Paper: paper, FontSize: o.fontSize}, err
	case engine.ToolImagesToPDF:
		return engine.ImagesToPDFOptions{Fit: convert.PageFit(o.fit)}, nil
	case engine.ToolScanToPDF:
		return engine.ScanOptions{Filter: o.filter, Fit: convert.PageFit(o.fit)}, nil
	case engine.ToolResizeImages:
		return engine.ResizeImagesOptions{ResizeOptions: convert.ResizeOptions{
			Unit: convert.Unit(o.unit), Width: o.width, Height: o.height, KeepAspect: o.keepAspect,
			Format: o.imageFormat, Quality: o.quality,
		}}, nil
	case engine.ToolConvertImages:
		return engine.ConvertImagesOptions{Format: o.imageFormat, Quality: o.quality}, nil
	case engine.ToolCompressImages:
		return engine.CompressImagesOptions{Quality: o.quality}, nil
	case engine.ToolWatermarkImages:
		wm, err := o.watermark()
		return engine.WatermarkImagesOptions{WatermarkOptions: wm, Quality: o.quality}, err
	}
	return nil, fmt.Errorf("unknown tool %q", o.tool)
}

func (o options) watermark() (editor.WatermarkOptions, error) {
	wm := editor.WatermarkOptions{
		Kind:     editor.WatermarkText,
		Text:     o.watermarkText,
		Opacity:  editor.Opacity(o.opacity),
		Rotation: o.rotation,
		Tiled:    o.tiled,
	}
	if o.watermarkImage == "" {
		return wm, nil
	}
	data, err := os.ReadFile(o.watermarkImage)
	if err != nil {
		return wm, fmt.Errorf("read watermark image: %w", err)
	}
	s, _, err := raster.Decode(data)
	if err != nil {
		return wm, fmt.Errorf("decode watermark image: %w", err)
	}
	wm.Kind, wm.Image = editor.WatermarkImage, s.Image()
	return wm, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%q: want %d comma separated numbers", s, n)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseMargins(s string) (editor.Margins, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return editor.Margins{}, fmt.Errorf("margins %w", err)
	}
	return editor.Margins{Top: v[0], Right: v[1], Bottom: v[2], Left: v[3]}, nil
}

// parsePageSpecs reads "3,1:90,2": 1-based pages, each with an optional
// clockwise rotation.
func parsePageSpecs(s string) ([]editor.PageSpec, error) {
	var specs []editor.PageSpec
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		page, rot, _ := strings.Cut(item, ":")
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("page %q: want a page number from 1", item)
		}
		spec := editor.PageSpec{Source: n - 1}
		if rot != "" {
			if spec.Rotate, err = strconv.Atoi(rot); err != nil {
				return nil, fmt.Errorf("page %q: bad rotation", item)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseAreas(s string) ([]workspace.RedactionArea, error) {
	var areas []workspace.RedactionArea
	for _, item := range strings.Split(s, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		v, err := parseFloats(item, 4)
		if err != nil {
			return nil, fmt.Errorf("area %w", err)
		}
		areas = append(areas, workspace.RedactionArea{X: v[0], Y: v[1], Width: v[2], Height: v[3]})
	}
	return areas, nil
}

// parseTextItem reads "x,y,size,text". The box is sized for one line.
func parseTextItem(s string) (workspace.CanvasItem, error) {
	parts := strings.SplitN(s, ",", 4)
	if len(parts) != 4 || parts[3] == "" {
		return workspace.CanvasItem{}, fmt.Errorf("text item %q: want x,y,size,text", s)
	}
	v, err := parseFloats(strings.Join(parts[:3], ","), 3)
	if err != nil {
		return workspace.CanvasItem{}, fmt.Errorf("text item %w", err)
	}
	size := v[2]
	width := builder.TextWidth(parts[3], "Helvetica", size)
	return workspace.CanvasItem{Kind: workspace.TextItem, Text: parts[3], X: v[0], Y: v[1], Width: width, Height: size * 1.2, FontSize: size}, nil
}

var papers = map[string]builder.PaperSize{
	"a3":     builder.A3,
	"a4":     builder.A4,
	"a5":     builder.A5,
	"letter": builder.Letter,
	"legal":  builder.Legal,
}

// parsePaper reads a paper name, "-landscape" turns it.
func parsePaper(s string) (builder.PaperSize, error) {
	name, landscape := strings.CutSuffix(strings.ToLower(s), "-landscape")
	p, ok := papers[name]
	if !ok {
		return builder.PaperSize{}, fmt.Errorf("unknown paper size %q", s)
	}
	if landscape {
		p = p.Landscape()
	}
	return p, nil
}
