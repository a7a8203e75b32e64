package layout

import "strings"

// RenderText lays out plain text. Line breaks are kept, long lines wrap and
// form feeds start a new page.
func (e *Engine) RenderText(source string) error {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.TrimPrefix(source, "\ufeff")
	fontSize := e.DefaultFontSize
	lineHeight := fontSize * e.LineHeight
	for i, page := range strings.Split(source, "\f") {
		if i > 0 && e.currentPage != nil {
			e.currentPage.Finish()
			e.newPage()
		}
		e.ensurePage()
		for _, line := range strings.Split(page, "\n") {
			if strings.TrimSpace(line) == "" {
				e.checkPageBreak(lineHeight)
				e.cursorY -= lineHeight
				continue
			}
			e.renderTextWrapped(expandTabs(line), e.left(), fontSize, lineHeight)
		}
	}
	e.Close()
	return nil
}

func expandTabs(s string) string { return strings.ReplaceAll(s, "\t", "    ") }
