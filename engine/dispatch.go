package engine

import (
	"context"

	"github.com/wudi/docxform/archive"
	"github.com/wudi/docxform/convert"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/diff"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/observability"
	"github.com/wudi/docxform/ocr"
	"github.com/wudi/docxform/raster"
	"github.com/wudi/docxform/textlayer"
	"github.com/wudi/docxform/workspace"
)

// dispatch runs the tool selected by opts. docs holds the parsed inputs of
// PDF tools, in input order.
func (s *Session) dispatch(ctx context.Context, opts Options, inputs []Input, docs []*document.Document, rel *relay) (outcome, error) {
	var doc *document.Document
	if len(docs) > 0 {
		doc = docs[0]
	}
	single := func(suffix string, data []byte, err error) (outcome, error) {
		if err != nil {
			return outcome{}, err
		}
		return outcome{artifact: pdfArtifact(doc, suffix, data)}, nil
	}
	rel.emit(loadShare, "Processing")

	switch o := opts.(type) {
	case MergeOptions:
		data, err := editor.Merge(ctx, docs)
		if err != nil {
			return outcome{}, err
		}
		return outcome{artifact: Artifact{Name: "merged.pdf", MIME: pdfMIME, Data: data}}, nil

	case SplitOptions:
		parts, err := editor.Split(ctx, doc, o.SplitOptions)
		if err != nil {
			return outcome{}, err
		}
		entries := make([]archive.Entry, len(parts))
		for i, p := range parts {
			entries[i] = archive.Entry{Name: p.Name(doc.Base()), Data: p.Data}
		}
		return packed(rel, "split_files.zip", entries)

	case CompressOptions:
		data, rep, err := editor.Compress(ctx, doc, o.Level)
		if err == nil {
			s.cfg.Logger.Info("compressed",
				observability.Int("before", doc.Size()),
				observability.Int("after", len(data)),
				observability.Int("images", rep.RecompressedImages),
				observability.Int("duplicates", rep.DuplicateStreams))
		}
		return single("compressed", data, err)

	case RotateOptions:
		data, err := editor.Rotate(doc, o.Degrees)
		return single("rotated", data, err)

	case PDFToImagesOptions:
		return s.pdfToImages(ctx, doc, o, rel)

	case ProtectOptions:
		data, err := editor.Encrypt(doc, o.Password, editor.Permissions{
			Print:  o.AllowPrinting,
			Copy:   o.AllowCopying,
			Modify: o.AllowModifying,
		})
		return single("protected", data, err)

	case UnlockOptions:
		data, err := editor.Decrypt(doc, o.Password)
		return single("unlocked", data, err)

	case WatermarkOptions:
		data, err := editor.Watermark(ctx, doc, o.WatermarkOptions)
		return single("watermarked", data, err)

	case CropOptions:
		data, err := editor.SetCropBox(doc, o.Margins)
		return single("cropped", data, err)

	case OrganizeOptions:
		data, err := editor.Organize(doc, o.Pages)
		if err != nil {
			return outcome{}, err
		}
		if err := s.replace(doc, data); err != nil {
			return outcome{}, err
		}
		return single("organized", data, nil)

	case EditOptions:
		w := s.transientWorkspace(doc, o.Layout)
		for _, it := range o.Items {
			if _, err := w.AddItem(it); err != nil {
				return outcome{}, err
			}
		}
		stamps, runs, err := w.Edits()
		if err != nil {
			return outcome{}, err
		}
		data, err := editor.Edit(doc, stamps, runs)
		return single("edited", data, err)

	case RedactOptions:
		w := s.transientWorkspace(doc, o.Layout)
		for _, a := range o.Areas {
			if _, err := w.AddRedaction(a); err != nil {
				return outcome{}, err
			}
		}
		areas, err := w.Areas()
		if err != nil {
			return outcome{}, err
		}
		data, err := editor.Redact(ctx, doc, s.renderer, areas, editor.RedactOptions{
			Scale:   s.cfg.ExportScale,
			Quality: s.cfg.JPEGQuality,
		})
		return single("redacted", data, err)

	case OCROptions:
		return s.ocr(ctx, doc, o, rel)

	case CompareOptions:
		return s.compare(ctx, docs[0], docs[1], rel)

	case PageNumbersOptions:
		data, err := editor.PageNumbers(ctx, doc, o.PageNumberOptions)
		return single("numbered", data, err)

	case MetadataOptions:
		data, err := editor.SetMetadata(doc, o.Metadata)
		return single("metadata", data, err)

	case PDFToTextOptions:
		data, err := convert.PDFToText(ctx, doc, rel.steps("page"))
		if err != nil {
			return outcome{}, err
		}
		return outcome{artifact: Artifact{Name: doc.Base() + ".txt", MIME: textMIME, Data: data}}, nil

	case PDFToWordOptions:
		data, err := convert.PDFToDocx(ctx, doc, rel.steps("page"))
		if err != nil {
			return outcome{}, err
		}
		return outcome{artifact: Artifact{Name: doc.Base() + ".docx", MIME: convert.DocxMIME, Data: data}}, nil

	case ToPDFOptions:
		in := inputs[0]
		kind, _ := convert.DetectSource(in.Name, in.MediaType())
		f := convert.File{Name: in.Name, Data: in.Data}
		data, err := convert.ToPDF(ctx, f, kind, convert.LayoutOptions{
			Paper:    o.Paper,
			FontSize: o.FontSize,
			Margin:   o.Margin,
			Pages:    convert.PageOptions{Fit: convert.FitA4, Quality: s.cfg.JPEGQuality},
		}, rel.steps("slide"))
		if err != nil {
			return outcome{}, err
		}
		return outcome{artifact: Artifact{Name: f.Base() + ".pdf", MIME: pdfMIME, Data: data}}, nil

	case ImagesToPDFOptions:
		data, err := convert.ImagesToPDF(ctx, files(inputs), s.pageOptions(o.Fit, o.Margin), rel.steps("image"))
		if err != nil {
			return outcome{}, err
		}
		return outcome{artifact: Artifact{Name: "images.pdf", MIME: pdfMIME, Data: data}}, nil

	case ScanOptions:
		data, err := convert.ScanToPDF(ctx, files(inputs), o.Filter, s.pageOptions(o.Fit, o.Margin), rel.steps("image"))
		if err != nil {
			return outcome{}, err
		}
		return outcome{artifact: Artifact{Name: "scan.pdf", MIME: pdfMIME, Data: data}}, nil

	case ResizeImagesOptions:
		return batch(ctx, inputs, rel, "resized_images.zip", func(ctx context.Context, f convert.File) (convert.File, error) {
			return convert.Resize(ctx, f, o.ResizeOptions)
		})

	case ConvertImagesOptions:
		q := s.quality(o.Quality)
		return batch(ctx, inputs, rel, "converted_images.zip", func(ctx context.Context, f convert.File) (convert.File, error) {
			return convert.ConvertFormat(ctx, f, o.Format, q)
		})

	case CompressImagesOptions:
		q := s.quality(o.Quality)
		return batch(ctx, inputs, rel, "compressed_images.zip", func(ctx context.Context, f convert.File) (convert.File, error) {
			return convert.Compress(ctx, f, q)
		})

	case WatermarkImagesOptions:
		q := s.quality(o.Quality)
		return batch(ctx, inputs, rel, "watermarked_images.zip", func(ctx context.Context, f convert.File) (convert.File, error) {
			return convert.WatermarkImage(ctx, f, o.WatermarkOptions, q)
		})
	}
	return outcome{}, docerr.New(docerr.Validation, "engine.dispatch", "unsupported options %T", opts)
}

func (s *Session) quality(q int) int {
	if q == 0 {
		return s.cfg.JPEGQuality
	}
	return q
}

func (s *Session) pageOptions(fit convert.PageFit, margin float64) convert.PageOptions {
	return convert.PageOptions{Fit: fit, Margin: margin, Quality: s.cfg.JPEGQuality}
}

// transientWorkspace maps request annotations against l, or against the
// pages of doc stacked at the preview scale when l is empty.
func (s *Session) transientWorkspace(doc *document.Document, l coords.Layout) *workspace.Workspace {
	if len(l.Pages) == 0 {
		l = workspace.StackDocument(doc, s.cfg.PreviewScale, s.cfg.PageGap)
	}
	w := workspace.New(nil, 0, s.cfg.Logger)
	w.SetLayout(l)
	return w
}

// replace swaps doc for the document parsed from data in the arena, which
// drops annotations made against the old page set.
func (s *Session) replace(doc *document.Document, data []byte) error {
	next, err := document.Load(doc.Name, data, "")
	if err != nil {
		return err
	}
	for slot, d := range s.arena.Documents() {
		if d == doc {
			return s.arena.Replace(slot, next)
		}
	}
	return nil
}

func (s *Session) pdfToImages(ctx context.Context, doc *document.Document, o PDFToImagesOptions, rel *relay) (outcome, error) {
	format := raster.PNG
	if o.Format != "" {
		f, err := raster.ParseFormat(o.Format)
		if err != nil {
			return outcome{}, err
		}
		format = f
	}
	scale := o.Scale
	if scale == 0 {
		scale = s.cfg.ExportScale
	}
	data, err := convert.PDFToImages(ctx, doc, s.renderer, convert.ExportOptions{
		Format:  format,
		Scale:   scale,
		Quality: s.quality(o.Quality),
	}, rel.steps("page"))
	if err != nil {
		return outcome{}, err
	}
	return outcome{artifact: Artifact{Name: doc.Base() + "_images.zip", MIME: zipMIME, Data: data}}, nil
}

func (s *Session) ocr(ctx context.Context, doc *document.Document, o OCROptions, rel *relay) (outcome, error) {
	eng := s.cfg.OCREngine
	if eng == nil {
		eng = ocr.DefaultEngine()
	}
	if eng == nil {
		return outcome{}, docerr.New(docerr.UnsupportedContent, "engine.ocr", "no text recognition engine is available")
	}
	lang := o.Language
	if lang == "" {
		lang = s.cfg.OCRLanguage
	}
	data, err := textlayer.Build(ctx, doc, s.renderer, eng, textlayer.Options{
		Scale:         s.cfg.OCRScale,
		MinConfidence: s.cfg.OCRMinConfidence,
		Languages:     []string{lang},
		Quality:       s.cfg.JPEGQuality,
		Tracer:        s.cfg.Tracer,
	}, rel.steps("page"))
	if err != nil {
		return outcome{}, err
	}
	return outcome{artifact: pdfArtifact(doc, "ocr", data)}, nil
}

func (s *Session) compare(ctx context.Context, a, b *document.Document, rel *relay) (outcome, error) {
	results, err := diff.Compare(ctx, s.renderer, a, b, s.cfg.DiffScale, s.cfg.DiffOptions, rel.steps("page"))
	if err != nil {
		return outcome{}, err
	}
	entries := make([]archive.Entry, 0, len(results)+1)
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return outcome{}, err
		}
		png, err := r.Encode()
		if err != nil {
			return outcome{}, docerr.Wrap(docerr.ProcessingFault, "engine.compare", err)
		}
		entries = append(entries, archive.Entry{Name: diff.ImageName(r.Page), Data: png})
	}
	summary, err := diff.Summarize(results).JSON()
	if err != nil {
		return outcome{}, docerr.Wrap(docerr.ProcessingFault, "engine.compare", err)
	}
	entries = append(entries, archive.Entry{Name: "summary.json", Data: summary})
	out, err := packed(rel, "comparison.zip", entries)
	out.comparison = results
	return out, err
}

// batch runs fn over every image input. One input gives the converted file
// itself, several give a zip named archiveName.
func batch(ctx context.Context, inputs []Input, rel *relay, archiveName string, fn func(context.Context, convert.File) (convert.File, error)) (outcome, error) {
	out, err := convert.Batch(ctx, files(inputs), fn, rel.steps("image"))
	if err != nil {
		return outcome{}, err
	}
	if len(out) == 1 {
		return outcome{artifact: fileArtifact(out[0])}, nil
	}
	entries := make([]archive.Entry, len(out))
	for i, f := range out {
		entries[i] = archive.Entry{Name: f.Name, Data: f.Data}
	}
	return packed(rel, archiveName, entries)
}

func packed(rel *relay, name string, entries []archive.Entry) (outcome, error) {
	rel.emit(workShare, "Packaging")
	data, err := archive.Pack(entries)
	if err != nil {
		return outcome{}, err
	}
	return outcome{artifact: Artifact{Name: name, MIME: zipMIME, Data: data}}, nil
}
