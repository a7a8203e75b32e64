package editor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
)

type SplitMode string

const (
	SplitAll    SplitMode = "all"
	SplitRanges SplitMode = "ranges"
	SplitFixed  SplitMode = "fixed"
)

// SplitOptions selects how Split cuts a document.
//
// SplitAll writes one file per page. SplitRanges writes one file per comma
// separated item of Ranges ("1,3-4"). SplitFixed writes files of FixedSize
// pages, the last one possibly shorter.
type SplitOptions struct {
	Mode      SplitMode
	Ranges    string
	FixedSize int
}

// PageRange is an inclusive span of 1-based page numbers.
type PageRange struct {
	From, Thru int
}

func (r PageRange) pages() []int {
	out := make([]int, 0, r.Thru-r.From+1)
	for p := r.From; p <= r.Thru; p++ {
		out = append(out, p)
	}
	return out
}

// Part is one output of Split.
type Part struct {
	PageRange
	Data []byte
}

// Name returns the file name of the part for a document named base.
func (p Part) Name(base string) string {
	if p.From == p.Thru {
		return fmt.Sprintf("%s_%d.pdf", base, p.From)
	}
	return fmt.Sprintf("%s_%d-%d.pdf", base, p.From, p.Thru)
}

// ParseRanges parses a comma separated list of pages ("3") and spans
// ("2-5") against a document of pageCount pages.
func ParseRanges(s string, pageCount int) ([]PageRange, error) {
	if strings.TrimSpace(s) == "" {
		return nil, docerr.New(docerr.Validation, "editor.ranges", "no page ranges given")
	}
	var out []PageRange
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		var r PageRange
		from, thru, isSpan := strings.Cut(item, "-")
		a, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, docerr.New(docerr.Validation, "editor.ranges", "malformed range %q", item)
		}
		r.From, r.Thru = a, a
		if isSpan {
			b, err := strconv.Atoi(strings.TrimSpace(thru))
			if err != nil {
				return nil, docerr.New(docerr.Validation, "editor.ranges", "malformed range %q", item)
			}
			r.Thru = b
		}
		if r.From < 1 || r.Thru > pageCount || r.From > r.Thru {
			return nil, docerr.New(docerr.Validation, "editor.ranges", "range %q outside pages 1-%d", item, pageCount)
		}
		out = append(out, r)
	}
	return out, nil
}

func (o SplitOptions) ranges(pageCount int) ([]PageRange, error) {
	switch o.Mode {
	case SplitAll, "":
		out := make([]PageRange, pageCount)
		for i := range out {
			out[i] = PageRange{From: i + 1, Thru: i + 1}
		}
		return out, nil
	case SplitRanges:
		return ParseRanges(o.Ranges, pageCount)
	case SplitFixed:
		if o.FixedSize < 1 {
			return nil, docerr.New(docerr.Validation, "editor.split", "fixed size must be at least 1, got %d", o.FixedSize)
		}
		var out []PageRange
		for from := 1; from <= pageCount; from += o.FixedSize {
			out = append(out, PageRange{From: from, Thru: min(from+o.FixedSize-1, pageCount)})
		}
		return out, nil
	}
	return nil, docerr.New(docerr.Validation, "editor.split", "unknown split mode %q", o.Mode)
}

// Split cuts doc into parts according to opts, in page order.
func Split(ctx context.Context, doc *document.Document, opts SplitOptions) ([]Part, error) {
	ranges, err := opts.ranges(doc.PageCount())
	if err != nil {
		return nil, err
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	if err := pinInherited(pdf); err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "editor.split", err)
	}
	parts := make([]Part, 0, len(ranges))
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := extract("editor.split", pdf, r.pages())
		if err != nil {
			return nil, err
		}
		parts = append(parts, Part{PageRange: r, Data: data})
	}
	return parts, nil
}

// PageSpec is one page of an organized document: the 0-based index of the
// source page and an extra clockwise rotation.
type PageSpec struct {
	Source int
	Rotate int
}

// Organize builds a document from the pages of doc listed in specs. Pages
// may be reordered, left out or repeated.
func Organize(doc *document.Document, specs []PageSpec) ([]byte, error) {
	if len(specs) == 0 {
		return nil, docerr.New(docerr.Validation, "editor.organize", "the result would have no pages")
	}
	nrs := make([]int, len(specs))
	for i, s := range specs {
		if s.Source < 0 || s.Source >= doc.PageCount() {
			return nil, docerr.New(docerr.Validation, "editor.organize", "page %d out of range [1, %d]", s.Source+1, doc.PageCount())
		}
		if s.Rotate%90 != 0 {
			return nil, docerr.New(docerr.Validation, "editor.organize", "rotation %d is not a multiple of 90", s.Rotate)
		}
		nrs[i] = s.Source + 1
	}
	pdf, err := doc.Context()
	if err != nil {
		return nil, err
	}
	if err := pinInherited(pdf); err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "editor.organize", err)
	}
	data, err := extract("editor.organize", pdf, nrs)
	if err != nil {
		return nil, err
	}
	out, err := reopen("editor.organize", data)
	if err != nil {
		return nil, err
	}
	for i, s := range specs {
		if s.Rotate == 0 {
			continue
		}
		if err := rotatePage(out, i+1, s.Rotate); err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "editor.organize", err)
		}
	}
	if props := metadataOf(doc).properties(); len(props) > 0 {
		if err := pdfcpu.PropertiesAdd(out, props); err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "editor.organize", err)
		}
	}
	return write("editor.organize", out)
}

func metadataOf(doc *document.Document) Metadata {
	m := doc.Metadata()
	return Metadata{Title: m.Title, Author: m.Author, Subject: m.Subject, Keywords: m.Keywords, Creator: m.Creator}
}

// extract writes the pages nrs (1-based, repeats allowed) of pdf as a new
// document.
func extract(op string, pdf *model.Context, nrs []int) ([]byte, error) {
	sub, err := pdfcpu.ExtractPages(pdf, nrs, false)
	if err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, op, err)
	}
	return write(op, sub)
}

// pinInherited copies an inherited CropBox onto each page dict; page
// extraction only carries over the inherited MediaBox.
func pinInherited(pdf *model.Context) error {
	for nr := 1; nr <= pdf.PageCount; nr++ {
		pageDict, _, inh, err := pdf.PageDict(nr, false)
		if err != nil {
			return err
		}
		if pageDict == nil || inh == nil || inh.CropBox == nil {
			continue
		}
		if _, has := pageDict.Find("CropBox"); !has {
			pageDict.Insert("CropBox", inh.CropBox.Array())
		}
	}
	return nil
}
