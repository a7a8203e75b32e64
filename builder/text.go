package builder

import (
	"strings"

	pdffont "github.com/pdfcpu/pdfcpu/pkg/font"

	"github.com/wudi/docxform/contentstream"
)

// IsStandardFont reports whether name is one of the 14 standard fonts.
func IsStandardFont(name string) bool { return pdffont.IsCoreFont(name) }

// TextWidth is the advance of text in points, measured with the metrics
// of a standard font over its WinAnsi encoding.
func TextWidth(text, font string, size float64) float64 {
	if !IsStandardFont(font) {
		font = defaultBaseFont
	}
	units := 0
	for _, b := range contentstream.EncodeWinAnsi(text) {
		units += pdffont.CharWidth(font, rune(b))
	}
	return float64(units) * size / 1000
}

// Ascent is the height above the baseline of a standard font at size.
func Ascent(font string, size float64) float64 {
	if !IsStandardFont(font) {
		font = defaultBaseFont
	}
	return scaled(pdffont.Ascent(font, 1000), size)
}

// Descent is the depth below the baseline of a standard font at size,
// as a positive number.
func Descent(font string, size float64) float64 {
	if !IsStandardFont(font) {
		font = defaultBaseFont
	}
	d := scaled(pdffont.Descent(font, 1000), size)
	if d < 0 {
		d = -d
	}
	return d
}

func scaled(per1000, size float64) float64 { return per1000 * size / 1000 }

// FitText shortens text with an ellipsis so that it fits into width.
func FitText(text, font string, size, width float64) string {
	if width <= 0 || TextWidth(text, font, size) <= width {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		s := strings.TrimRight(string(runes[:n]), " ") + "..."
		if TextWidth(s, font, size) <= width {
			return s
		}
	}
	return ""
}

// WrapText breaks text into lines no wider than width, splitting at spaces
// and, for words longer than a line, between characters. Explicit newlines
// are kept.
func WrapText(text, font string, size, width float64) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, w := range words {
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if TextWidth(candidate, font, size) <= width || width <= 0 {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			line = ""
			for TextWidth(w, font, size) > width {
				cut := breakWord(w, font, size, width)
				lines = append(lines, w[:cut])
				w = w[cut:]
			}
			line = w
		}
		lines = append(lines, line)
	}
	return lines
}

func breakWord(w, font string, size, width float64) int {
	cut := 0
	for i, r := range w {
		next := i + len(string(r))
		if TextWidth(w[:next], font, size) > width {
			break
		}
		cut = next
	}
	if cut == 0 {
		_, n := firstRune(w)
		return n
	}
	return cut
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}
