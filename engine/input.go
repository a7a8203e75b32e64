package engine

import (
	"net/http"
	"path"
	"strings"

	"github.com/wudi/docxform/convert"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
)

// Input is one user supplied file. An empty MIME is sniffed from the
// content and the extension. Password opens an encrypted PDF.
type Input struct {
	Name     string
	Data     []byte
	MIME     string
	Password string
}

// Request asks a session to run one tool. Options must belong to Tool.
type Request struct {
	Tool    Tool
	Options Options
	Inputs  []Input
}

// Artifact is the single result of a request.
type Artifact struct {
	Name string
	MIME string
	Data []byte
}

const (
	pdfMIME  = "application/pdf"
	zipMIME  = "application/zip"
	textMIME = "text/plain; charset=utf-8"
)

var extensionMIME = map[string]string{
	"pdf":      pdfMIME,
	"png":      "image/png",
	"jpg":      "image/jpeg",
	"jpeg":     "image/jpeg",
	"gif":      "image/gif",
	"bmp":      "image/bmp",
	"tif":      "image/tiff",
	"tiff":     "image/tiff",
	"webp":     "image/webp",
	"docx":     convert.DocxMIME,
	"xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pptx":     "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"html":     "text/html; charset=utf-8",
	"htm":      "text/html; charset=utf-8",
	"md":       "text/markdown; charset=utf-8",
	"markdown": "text/markdown; charset=utf-8",
	"txt":      textMIME,
	"csv":      "text/csv; charset=utf-8",
	"zip":      zipMIME,
}

// generic sniffing results that the extension may refine.
var vague = map[string]bool{
	"application/octet-stream": true,
	"application/zip":          true,
	"text/plain":               true,
	"text/xml":                 true,
}

// extMIME returns the media type for the extension of name, or "".
func extMIME(name string) string {
	return extensionMIME[strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))]
}

// MediaType returns in.MIME, or sniffs it: the content decides unless it
// only looks like generic text, XML, a zip container or unknown bytes, in
// which case a known extension wins.
func (in Input) MediaType() string {
	if in.MIME != "" {
		return in.MIME
	}
	sniffed := http.DetectContentType(in.Data)
	if vague[essence(sniffed)] {
		if byExt := extMIME(in.Name); byExt != "" {
			return byExt
		}
	}
	return sniffed
}

// essence strips parameters and case from a media type.
func essence(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

type inputKind int

const (
	pdfInput inputKind = iota
	imageInput
	sourceInput // anything convert.ToPDF can lay out
)

func (k inputKind) String() string {
	switch k {
	case imageInput:
		return "image"
	case sourceInput:
		return "document"
	default:
		return "PDF"
	}
}

func (k inputKind) accepts(in Input) bool {
	mt := essence(in.MediaType())
	switch k {
	case pdfInput:
		return mt == pdfMIME
	case imageInput:
		return strings.HasPrefix(mt, "image/") && mt != "image/svg+xml"
	default:
		_, ok := convert.DetectSource(in.Name, mt)
		return ok
	}
}

// contract is the input cardinality of a tool. max 0 means unbounded.
type contract struct {
	kind     inputKind
	min, max int
}

var contracts = map[Tool]contract{
	ToolMerge:           {pdfInput, 2, 0},
	ToolSplit:           {pdfInput, 1, 1},
	ToolCompress:        {pdfInput, 1, 1},
	ToolRotate:          {pdfInput, 1, 1},
	ToolPDFToImages:     {pdfInput, 1, 1},
	ToolProtect:         {pdfInput, 1, 1},
	ToolUnlock:          {pdfInput, 1, 1},
	ToolWatermark:       {pdfInput, 1, 1},
	ToolCrop:            {pdfInput, 1, 1},
	ToolOrganize:        {pdfInput, 1, 1},
	ToolEdit:            {pdfInput, 1, 1},
	ToolRedact:          {pdfInput, 1, 1},
	ToolOCR:             {pdfInput, 1, 1},
	ToolCompare:         {pdfInput, 2, 2},
	ToolPageNumbers:     {pdfInput, 1, 1},
	ToolMetadata:        {pdfInput, 1, 1},
	ToolPDFToText:       {pdfInput, 1, 1},
	ToolPDFToWord:       {pdfInput, 1, 1},
	ToolToPDF:           {sourceInput, 1, 1},
	ToolImagesToPDF:     {imageInput, 1, 0},
	ToolScanToPDF:       {imageInput, 1, 0},
	ToolResizeImages:    {imageInput, 1, 0},
	ToolConvertImages:   {imageInput, 1, 0},
	ToolCompressImages:  {imageInput, 1, 0},
	ToolWatermarkImages: {imageInput, 1, 0},
}

// validate checks the request against its tool's contract and the limits
// of cfg.
func (r Request) validate(cfg Config) (contract, error) {
	op := "engine." + string(r.Tool)
	c, ok := contracts[r.Tool]
	if !ok {
		return c, docerr.New(docerr.Validation, "engine.submit", "unknown tool %q", r.Tool)
	}
	if r.Options == nil {
		return c, docerr.New(docerr.Validation, op, "no options")
	}
	if r.Options.Tool() != r.Tool {
		return c, docerr.New(docerr.Validation, op, "options for %s", r.Options.Tool())
	}
	n := len(r.Inputs)
	switch {
	case n < c.min && c.min == c.max:
		return c, docerr.New(docerr.Validation, op, "needs exactly %d %s file(s), got %d", c.min, c.kind, n)
	case n < c.min:
		return c, docerr.New(docerr.Validation, op, "needs at least %d %s file(s), got %d", c.min, c.kind, n)
	case c.max > 0 && n > c.max:
		return c, docerr.New(docerr.Validation, op, "accepts at most %d %s file(s), got %d", c.max, c.kind, n)
	case cfg.MaxInputs > 0 && n > cfg.MaxInputs:
		return c, docerr.New(docerr.Validation, op, "%d files exceed the limit of %d", n, cfg.MaxInputs)
	}
	for _, in := range r.Inputs {
		if len(in.Data) == 0 {
			return c, docerr.New(docerr.Validation, op, "%s is empty", displayName(in))
		}
		if cfg.MaxInputBytes > 0 && int64(len(in.Data)) > cfg.MaxInputBytes {
			return c, docerr.New(docerr.Validation, op, "%s is larger than %d bytes", displayName(in), cfg.MaxInputBytes)
		}
		if !c.kind.accepts(in) {
			return c, docerr.New(docerr.Validation, op, "%s is not a supported %s (%s)", displayName(in), c.kind, in.MediaType())
		}
	}
	return c, r.Options.validate()
}

func displayName(in Input) string {
	if in.Name == "" {
		return "unnamed file"
	}
	return in.Name
}

func files(inputs []Input) []convert.File {
	out := make([]convert.File, len(inputs))
	for i, in := range inputs {
		out[i] = convert.File{Name: in.Name, Data: in.Data}
	}
	return out
}

// pdfArtifact names a PDF result after its source: "{base}_{suffix}.pdf".
func pdfArtifact(doc *document.Document, suffix string, data []byte) Artifact {
	return Artifact{Name: doc.Base() + "_" + suffix + ".pdf", MIME: pdfMIME, Data: data}
}

// fileArtifact returns a converted file with the media type of its name.
func fileArtifact(f convert.File) Artifact {
	mt := extMIME(f.Name)
	if mt == "" {
		mt = "application/octet-stream"
	}
	return Artifact{Name: f.Name, MIME: mt, Data: f.Data}
}
