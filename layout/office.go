package layout

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/wudi/docxform/builder"
)

// maxPartSize bounds a single decompressed package part.
const maxPartSize = 64 << 20

// ErrMissingPart is returned when an office package lacks a required part.
var ErrMissingPart = errors.New("layout: missing package part")

// OpenPackage opens an Office Open XML package.
func OpenPackage(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("layout: open package: %w", err)
	}
	return zr, nil
}

// ReadPart returns the decompressed bytes of the named part.
func ReadPart(zr *zip.Reader, name string) ([]byte, error) {
	name = strings.TrimPrefix(name, "/")
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("layout: open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
		if err != nil {
			return nil, fmt.Errorf("layout: read %s: %w", name, err)
		}
		if len(data) > maxPartSize {
			return nil, fmt.Errorf("layout: %s exceeds %d bytes", name, maxPartSize)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingPart, name)
}

// Relationships maps relationship ids of a part to their resolved targets.
// Targets are package paths without a leading slash; external targets are
// kept as written.
func Relationships(zr *zip.Reader, part string) (map[string]string, error) {
	relsName := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	data, err := ReadPart(zr, relsName)
	if errors.Is(err, ErrMissingPart) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var rels struct {
		Items []struct {
			ID         string `xml:"Id,attr"`
			Target     string `xml:"Target,attr"`
			TargetMode string `xml:"TargetMode,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("layout: parse %s: %w", relsName, err)
	}
	out := make(map[string]string, len(rels.Items))
	for _, r := range rels.Items {
		switch {
		case r.TargetMode == "External":
			out[r.ID] = r.Target
		case strings.HasPrefix(r.Target, "/"):
			out[r.ID] = strings.TrimPrefix(r.Target, "/")
		default:
			out[r.ID] = path.Join(path.Dir(part), r.Target)
		}
	}
	return out, nil
}

// CoreProperties reads title, author, subject and keywords from
// docProps/core.xml. A package without the part yields an empty Info.
func CoreProperties(zr *zip.Reader) builder.Info {
	data, err := ReadPart(zr, "docProps/core.xml")
	if err != nil {
		return builder.Info{}
	}
	var core struct {
		Title    string `xml:"title"`
		Creator  string `xml:"creator"`
		Subject  string `xml:"subject"`
		Keywords string `xml:"keywords"`
	}
	if xml.Unmarshal(data, &core) != nil {
		return builder.Info{}
	}
	return builder.Info{
		Title:    strings.TrimSpace(core.Title),
		Author:   strings.TrimSpace(core.Creator),
		Subject:  strings.TrimSpace(core.Subject),
		Keywords: strings.TrimSpace(core.Keywords),
	}
}

type docxBlock struct {
	heading int // 0 for body text
	list    bool
	level   int
	spans   []TextSpan
	table   [][]string
}

// RenderDocx lays out the body of a word processing document: headings,
// paragraphs with bold, italic, underline and strike runs, list items,
// hyperlinks and tables. Images, headers and footers are not reproduced.
func (e *Engine) RenderDocx(data []byte) error {
	zr, err := OpenPackage(data)
	if err != nil {
		return err
	}
	const docPart = "word/document.xml"
	body, err := ReadPart(zr, docPart)
	if err != nil {
		return err
	}
	rels, err := Relationships(zr, docPart)
	if err != nil {
		return err
	}
	blocks, err := parseDocx(body, rels)
	if err != nil {
		return err
	}
	if info := CoreProperties(zr); info != (builder.Info{}) {
		e.b.SetInfo(info)
	}
	for _, b := range blocks {
		switch {
		case b.table != nil:
			e.Table(b.table, 0)
		case b.heading > 0:
			e.Heading(b.heading, b.spans)
		case b.list:
			e.Indent(float64(b.level) * listIndent)
			e.ListItem("•", b.spans)
			e.Indent(-float64(b.level) * listIndent)
		default:
			e.Paragraph(b.spans)
		}
	}
	e.Close()
	return nil
}

type runStyle struct {
	bold, italic, underline, strike bool
}

// parseDocx streams word/document.xml into blocks. Paragraphs inside table
// cells become cell text; nested tables are flattened into their cell.
func parseDocx(data []byte, rels map[string]string) ([]docxBlock, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	var (
		blocks    []docxBlock
		para      *docxBlock
		run       runStyle
		inRPr     bool
		inPPr     bool
		inText    bool
		link      string
		tableDeep int
		table     [][]string
		cell      strings.Builder
	)
	on := func(se xml.StartElement) bool {
		v := attrLocal(se, "val")
		return v != "0" && v != "false" && v != "none"
	}
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("layout: parse document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDeep++
				if tableDeep == 1 {
					table = [][]string{}
				}
			case "tr":
				if tableDeep == 1 {
					table = append(table, nil)
				}
			case "tc":
				if tableDeep == 1 {
					cell.Reset()
				}
			case "p":
				para = &docxBlock{}
			case "pStyle":
				if para != nil {
					para.heading = headingLevel(attrLocal(t, "val"))
				}
			case "numPr":
				if para != nil {
					para.list = true
				}
			case "ilvl":
				if para != nil {
					para.level, _ = strconv.Atoi(attrLocal(t, "val"))
				}
			case "hyperlink":
				link = rels[attrLocal(t, "id")]
				if link == "" && attrLocal(t, "anchor") != "" {
					link = "#" + attrLocal(t, "anchor")
				}
			case "r":
				run = runStyle{}
			case "rPr":
				inRPr = true
			case "pPr":
				inPPr = true
			case "b":
				if inRPr {
					run.bold = on(t)
				}
			case "i":
				if inRPr {
					run.italic = on(t)
				}
			case "u":
				if inRPr {
					run.underline = on(t)
				}
			case "strike", "dstrike":
				if inRPr {
					run.strike = on(t)
				}
			case "t":
				inText = true
			case "tab":
				if para != nil && !inPPr {
					para.spans = append(para.spans, TextSpan{Text: " "})
				}
			case "br", "cr":
				if para != nil {
					para.spans = append(para.spans, TextSpan{Text: "\n"})
				}
			}
		case xml.CharData:
			if inText && para != nil {
				para.spans = append(para.spans, TextSpan{
					Text:          string(t),
					Bold:          run.bold,
					Italic:        run.italic,
					Underline:     run.underline,
					Strikethrough: run.strike,
					Link:          link,
				})
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "rPr":
				inRPr = false
			case "pPr":
				inPPr = false
			case "hyperlink":
				link = ""
			case "p":
				if para == nil {
					continue
				}
				if tableDeep > 0 {
					if text := strings.TrimSpace(plain(para.spans)); text != "" {
						if cell.Len() > 0 {
							cell.WriteByte(' ')
						}
						cell.WriteString(text)
					}
				} else {
					if para.heading > 0 && para.list {
						para.list = false
					}
					blocks = append(blocks, *para)
				}
				para = nil
			case "tc":
				if tableDeep == 1 && len(table) > 0 {
					last := len(table) - 1
					table[last] = append(table[last], cell.String())
				}
			case "tbl":
				tableDeep--
				if tableDeep == 0 {
					blocks = append(blocks, docxBlock{table: table})
					table = nil
				}
			}
		}
	}
	return blocks, nil
}

// headingLevel maps paragraph style ids such as "Heading2" or "Title" to a
// heading level, 0 for body styles.
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch s {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	if rest, ok := strings.CutPrefix(s, "heading"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 1 {
			return min(n, 6)
		}
	}
	return 0
}

func attrLocal(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// RenderXlsx lays out every worksheet of a spreadsheet as a heading with
// the sheet name followed by a table of cell values. The first row is
// treated as the header.
func (e *Engine) RenderXlsx(data []byte) error {
	zr, err := OpenPackage(data)
	if err != nil {
		return err
	}
	sheets, err := ReadWorkbook(zr)
	if err != nil {
		return err
	}
	if info := CoreProperties(zr); info != (builder.Info{}) {
		e.b.SetInfo(info)
	}
	for _, s := range sheets {
		e.Heading(2, []TextSpan{{Text: s.Name}})
		if len(s.Rows) == 0 {
			e.Paragraph([]TextSpan{{Text: "(empty)", Italic: true}})
			continue
		}
		e.Table(s.Rows, 1)
	}
	e.Close()
	return nil
}

// Sheet is a worksheet reduced to its cell values. Rows without values
// are dropped and trailing empty cells trimmed.
type Sheet struct {
	Name string
	Rows [][]string
}

type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		ID   string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxWorksheet struct {
	Rows []struct {
		Cells []struct {
			Ref    string       `xml:"r,attr"`
			Type   string       `xml:"t,attr"`
			Value  string       `xml:"v"`
			Inline xlsxRichText `xml:"is"`
		} `xml:"c"`
	} `xml:"sheetData>row"`
}

// xlsxRichText is a string item: plain text or a sequence of runs.
type xlsxRichText struct {
	Text string `xml:"t"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func (t xlsxRichText) String() string {
	if len(t.Runs) == 0 {
		return t.Text
	}
	var sb strings.Builder
	for _, r := range t.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

type xlsxSST struct {
	Items []xlsxRichText `xml:"si"`
}

// ReadWorkbook returns the worksheets of a spreadsheet package in workbook
// order.
func ReadWorkbook(zr *zip.Reader) ([]Sheet, error) {
	const wbName = "xl/workbook.xml"
	data, err := ReadPart(zr, wbName)
	if err != nil {
		return nil, err
	}
	var wb xlsxWorkbook
	if err := xml.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("layout: parse workbook: %w", err)
	}
	rels, err := Relationships(zr, wbName)
	if err != nil {
		return nil, err
	}
	shared, err := sharedStrings(zr)
	if err != nil {
		return nil, err
	}
	sheets := make([]Sheet, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		target, ok := rels[s.ID]
		if !ok {
			return nil, fmt.Errorf("%w: sheet %q", ErrMissingPart, s.Name)
		}
		raw, err := ReadPart(zr, target)
		if err != nil {
			return nil, err
		}
		var ws xlsxWorksheet
		if err := xml.Unmarshal(raw, &ws); err != nil {
			return nil, fmt.Errorf("layout: parse sheet %q: %w", s.Name, err)
		}
		sheet := Sheet{Name: s.Name}
		for _, row := range ws.Rows {
			var values []string
			for i, c := range row.Cells {
				col := i
				if c.Ref != "" {
					col = columnIndex(c.Ref)
				}
				for len(values) <= col {
					values = append(values, "")
				}
				values[col] = cellValue(c.Type, c.Value, c.Inline, shared)
			}
			for len(values) > 0 && strings.TrimSpace(values[len(values)-1]) == "" {
				values = values[:len(values)-1]
			}
			if len(values) > 0 {
				sheet.Rows = append(sheet.Rows, values)
			}
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func cellValue(typ, v string, inline xlsxRichText, shared []string) string {
	switch typ {
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || i < 0 || i >= len(shared) {
			return ""
		}
		return shared[i]
	case "inlineStr":
		return inline.String()
	case "b":
		if strings.TrimSpace(v) == "1" {
			return "TRUE"
		}
		return "FALSE"
	}
	return v
}

func sharedStrings(zr *zip.Reader) ([]string, error) {
	data, err := ReadPart(zr, "xl/sharedStrings.xml")
	if errors.Is(err, ErrMissingPart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sst xlsxSST
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, fmt.Errorf("layout: parse shared strings: %w", err)
	}
	out := make([]string, len(sst.Items))
	for i, si := range sst.Items {
		out[i] = si.String()
	}
	return out, nil
}

// columnIndex converts the letters of a cell reference such as "AB12" to
// a 0-based column.
func columnIndex(ref string) int {
	col := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			} else {
				break
			}
		}
		col = col*26 + int(r-'A'+1)
	}
	return max(col-1, 0)
}
