package convert

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/layout"
)

const presentationPart = "ppt/presentation.xml"

// SlideImages returns the raster images placed on the slides of a
// presentation, slide by slide in presentation order and in drawing order
// within a slide. Vector media (EMF, WMF, SVG) and links to missing parts
// are skipped.
func SlideImages(data []byte) ([]File, error) {
	zr, err := layout.OpenPackage(data)
	if err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
	}
	pres, err := layout.ReadPart(zr, presentationPart)
	if err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
	}
	presRels, err := layout.Relationships(zr, presentationPart)
	if err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
	}
	slideIDs, err := relIDs(pres, "sldId", "id")
	if err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
	}

	var out []File
	for n, id := range slideIDs {
		slide, ok := presRels[id]
		if !ok {
			continue
		}
		body, err := layout.ReadPart(zr, slide)
		if err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
		}
		rels, err := layout.Relationships(zr, slide)
		if err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
		}
		embeds, err := relIDs(body, "blip", "embed")
		if err != nil {
			return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
		}
		for k, rid := range embeds {
			target, ok := rels[rid]
			if !ok || !rasterMedia(target) {
				continue
			}
			media, err := layout.ReadPart(zr, target)
			if errors.Is(err, layout.ErrMissingPart) {
				continue
			}
			if err != nil {
				return nil, docerr.Wrap(docerr.CorruptDocument, "convert.pptx", err)
			}
			out = append(out, File{Name: fmt.Sprintf("slide%d_%d%s", n+1, k+1, path.Ext(target)), Data: media})
		}
	}
	return out, nil
}

// PresentationToPDF turns every slide image into a page. A presentation
// without raster images is UnsupportedContent.
func PresentationToPDF(ctx context.Context, f File, opts PageOptions, progress Progress) ([]byte, error) {
	images, err := SlideImages(f.Data)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, docerr.New(docerr.UnsupportedContent, "convert.pptx", "%s has no slide images", f.Name)
	}
	return ImagesToPDF(ctx, images, opts, progress)
}

func rasterMedia(target string) bool {
	switch strings.ToLower(path.Ext(target)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

// relIDs collects, in document order, the relationship-namespace attribute
// attr of every element with local name elem.
func relIDs(data []byte, elem, attr string) ([]string, error) {
	const relNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	dec := xml.NewDecoder(bytes.NewReader(data))
	var ids []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != elem {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Space == relNS && a.Name.Local == attr {
				ids = append(ids, a.Value)
			}
		}
	}
}
