package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"strings"
	"time"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
)

const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`

	packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`

	documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	documentTail = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr></w:body></w:document>`

	pageBreak = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`
)

// DocxMIME is the media type of Word documents.
const DocxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// PDFToDocx writes the page texts of doc as a Word document: one paragraph
// per text line and a page break between pages. The document title and
// author are carried into the core properties.
func PDFToDocx(ctx context.Context, doc *document.Document, progress Progress) ([]byte, error) {
	pages, err := PageTexts(ctx, doc, progress)
	if err != nil {
		return nil, err
	}
	data, err := WriteDocx(pages, doc.Metadata())
	if err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "convert.docx", err)
	}
	return data, nil
}

// WriteDocx packages pages of plain text as a WordprocessingML document.
func WriteDocx(pages []string, meta document.Metadata) ([]byte, error) {
	var body bytes.Buffer
	body.WriteString(documentHead)
	for i, page := range pages {
		if i > 0 {
			body.WriteString(pageBreak)
		}
		for _, line := range strings.Split(page, "\n") {
			if err := writeParagraph(&body, line); err != nil {
				return nil, err
			}
		}
	}
	body.WriteString(documentTail)

	core, err := coreXML(meta)
	if err != nil {
		return nil, err
	}
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"word/document.xml", body.Bytes()},
		{"docProps/core.xml", core},
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeParagraph(buf *bytes.Buffer, line string) error {
	if strings.TrimSpace(line) == "" {
		buf.WriteString(`<w:p/>`)
		return nil
	}
	buf.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
	if err := xml.EscapeText(buf, []byte(line)); err != nil {
		return err
	}
	buf.WriteString(`</w:t></w:r></w:p>`)
	return nil
}

func coreXML(meta document.Metadata) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">`)
	for _, f := range []struct{ tag, value string }{
		{"dc:title", meta.Title},
		{"dc:creator", meta.Author},
		{"dc:subject", meta.Subject},
		{"cp:keywords", meta.Keywords},
	} {
		if f.value == "" {
			continue
		}
		buf.WriteString("<" + f.tag + ">")
		if err := xml.EscapeText(&buf, []byte(f.value)); err != nil {
			return nil, err
		}
		buf.WriteString("</" + f.tag + ">")
	}
	buf.WriteString(`</cp:coreProperties>`)
	return buf.Bytes(), nil
}
