package layout

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func officePackage(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<w:body>
  <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Report</w:t></w:r></w:p>
  <w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr>
    <w:r><w:t xml:space="preserve">Plain </w:t></w:r>
    <w:r><w:rPr><w:b/></w:rPr><w:t>heavy</w:t></w:r>
    <w:r><w:rPr><w:b w:val="0"/><w:i/></w:rPr><w:t xml:space="preserve"> slanted</w:t></w:r>
    <w:hyperlink r:id="rId5"><w:r><w:t xml:space="preserve"> site</w:t></w:r></w:hyperlink>
  </w:p>
  <w:p><w:pPr><w:numPr><w:ilvl w:val="1"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>bullet</w:t></w:r></w:p>
  <w:tbl>
    <w:tr><w:tc><w:p><w:r><w:t>A1</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>B1</w:t></w:r></w:p><w:p><w:r><w:t>more</w:t></w:r></w:p></w:tc></w:tr>
    <w:tr><w:tc><w:p><w:r><w:t>A2</w:t></w:r></w:p></w:tc><w:tc><w:p/></w:tc></w:tr>
  </w:tbl>
  <w:sectPr/>
</w:body>
</w:document>`

const docxRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>
</Relationships>`

const coreXML = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
  xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>Quarterly</dc:title><dc:creator>Finance</dc:creator>
</cp:coreProperties>`

func TestParseDocx(t *testing.T) {
	blocks, err := parseDocx([]byte(docxBody), map[string]string{"rId5": "https://example.com"})
	if err != nil {
		t.Fatalf("parseDocx: %v", err)
	}
	if len(blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(blocks))
	}
	if blocks[0].heading != 1 || plain(blocks[0].spans) != "Report" {
		t.Errorf("heading block = %+v", blocks[0])
	}
	want := []TextSpan{
		{Text: "Plain "},
		{Text: "heavy", Bold: true},
		{Text: " slanted", Italic: true},
		{Text: " site", Link: "https://example.com"},
	}
	if diff := cmp.Diff(want, blocks[1].spans); diff != "" {
		t.Errorf("paragraph spans (-want +got):\n%s", diff)
	}
	if !blocks[2].list || blocks[2].level != 1 {
		t.Errorf("list block = %+v", blocks[2])
	}
	if diff := cmp.Diff([][]string{{"A1", "B1 more"}, {"A2", ""}}, blocks[3].table); diff != "" {
		t.Errorf("table (-want +got):\n%s", diff)
	}
}

func TestRenderDocx(t *testing.T) {
	data := officePackage(t, map[string]string{
		"word/document.xml":            docxBody,
		"word/_rels/document.xml.rels": docxRels,
		"docProps/core.xml":            coreXML,
	})
	mb := &MockBuilder{}
	if err := NewEngine(mb).RenderDocx(data); err != nil {
		t.Fatalf("RenderDocx: %v", err)
	}
	if mb.Info.Title != "Quarterly" || mb.Info.Author != "Finance" {
		t.Errorf("info = %+v", mb.Info)
	}
	if dt, ok := mb.find("Report"); !ok || dt.Opts.FontSize != 24 {
		t.Errorf("heading = %+v", dt)
	}
	if dt, ok := mb.find("site"); !ok || dt.Opts.Color != linkColor {
		t.Errorf("hyperlink = %+v", dt)
	}
	if len(mb.Tables()) != 2 {
		t.Errorf("tables = %d, want 2", len(mb.Tables()))
	}
}

func TestRenderDocxMissingBody(t *testing.T) {
	data := officePackage(t, map[string]string{"docProps/core.xml": coreXML})
	err := NewEngine(&MockBuilder{}).RenderDocx(data)
	if !errors.Is(err, ErrMissingPart) {
		t.Fatalf("error = %v, want ErrMissingPart", err)
	}
	if err := NewEngine(&MockBuilder{}).RenderDocx([]byte("not a zip")); err == nil {
		t.Fatalf("expected error for non-zip input")
	}
}

const workbookXML = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets>
    <sheet name="Sales" sheetId="1" r:id="rId1"/>
    <sheet name="Empty" sheetId="2" r:id="rId2"/>
  </sheets>
</workbook>`

const workbookRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="worksheet" Target="worksheets/sheet1.xml"/>
  <Relationship Id="rId2" Type="worksheet" Target="/xl/worksheets/sheet2.xml"/>
</Relationships>`

const sharedXML = `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <si><t>Item</t></si>
  <si><t>Total</t></si>
  <si><r><t>Rich </t></r><r><t>text</t></r></si>
</sst>`

const sheet1XML = `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData>
    <row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
    <row r="2"><c r="A2" t="s"><v>2</v></c><c r="C2"><v>42.5</v></c></row>
    <row r="3"><c r="A3"/></row>
    <row r="4"><c r="B4" t="b"><v>1</v></c><c r="D4" t="inlineStr"><is><t>inline</t></is></c></row>
  </sheetData>
</worksheet>`

const sheet2XML = `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData/></worksheet>`

func xlsxPackage(t *testing.T) []byte {
	return officePackage(t, map[string]string{
		"xl/workbook.xml":            workbookXML,
		"xl/_rels/workbook.xml.rels": workbookRels,
		"xl/sharedStrings.xml":       sharedXML,
		"xl/worksheets/sheet1.xml":   sheet1XML,
		"xl/worksheets/sheet2.xml":   sheet2XML,
	})
}

func TestReadWorkbook(t *testing.T) {
	zr, err := OpenPackage(xlsxPackage(t))
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	sheets, err := ReadWorkbook(zr)
	if err != nil {
		t.Fatalf("ReadWorkbook: %v", err)
	}
	want := []Sheet{
		{Name: "Sales", Rows: [][]string{
			{"Item", "Total"},
			{"Rich text", "", "42.5"},
			{"", "TRUE", "", "inline"},
		}},
		{Name: "Empty"},
	}
	if diff := cmp.Diff(want, sheets); diff != "" {
		t.Fatalf("sheets (-want +got):\n%s", diff)
	}
}

func TestRenderXlsx(t *testing.T) {
	mb := &MockBuilder{}
	if err := NewEngine(mb).RenderXlsx(xlsxPackage(t)); err != nil {
		t.Fatalf("RenderXlsx: %v", err)
	}
	if _, ok := mb.find("Sales"); !ok {
		t.Errorf("sheet heading missing")
	}
	if _, ok := mb.find("(empty)"); !ok {
		t.Errorf("empty sheet marker missing")
	}
	tables := mb.Tables()
	if len(tables) != 3 || tables[0].HeaderRows != 1 {
		t.Fatalf("tables = %+v", tables)
	}
	if got := len(tables[0].Rows[0].Cells); got != 4 {
		t.Errorf("columns = %d, want 4", got)
	}
}

func TestColumnIndex(t *testing.T) {
	tests := map[string]int{"A1": 0, "B7": 1, "Z3": 25, "AA10": 26, "ab2": 27, "": 0}
	for ref, want := range tests {
		if got := columnIndex(ref); got != want {
			t.Errorf("columnIndex(%q) = %d, want %d", ref, got, want)
		}
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := map[string]int{"Heading1": 1, "heading 3": 3, "Heading9": 6, "Title": 1, "Subtitle": 2, "Normal": 0, "HeadingX": 0}
	for style, want := range tests {
		if got := headingLevel(style); got != want {
			t.Errorf("headingLevel(%q) = %d, want %d", style, got, want)
		}
	}
}
