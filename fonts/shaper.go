package fonts

import (
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
)

// ShapedGlyph is one positioned glyph. Advances and offsets are in points
// for the size the run was shaped at.
type ShapedGlyph struct {
	ID       int
	Cluster  int
	XAdvance float64
	YAdvance float64
	XOffset  float64
	YOffset  float64
}

// Run is the result of shaping a string.
type Run struct {
	Glyphs  []ShapedGlyph
	Advance float64
	Ascent  float64
	Descent float64
	RTL     bool
}

// Shape shapes text with face at size points.
func (f *Face) Shape(text string, size float64) Run {
	runes := []rune(text)
	if len(runes) == 0 || size <= 0 {
		return Run{}
	}
	script := DetectScript(runes)
	dir := scriptDirection(script)

	f.mu.Lock()
	out := (&shaping.HarfbuzzShaper{}).Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      f.face,
		Size:      fixed.Int26_6(size * 64),
		Script:    script,
		Language:  language.DefaultLanguage(),
	})
	f.mu.Unlock()

	run := Run{
		Advance: fromFixed(out.Advance),
		Ascent:  fromFixed(out.LineBounds.Ascent),
		Descent: fromFixed(out.LineBounds.Descent),
		RTL:     dir == di.DirectionRTL,
	}
	for _, g := range out.Glyphs {
		run.Glyphs = append(run.Glyphs, ShapedGlyph{
			ID:       int(g.GlyphID),
			Cluster:  g.ClusterIndex,
			XAdvance: fromFixed(g.XAdvance),
			YAdvance: fromFixed(g.YAdvance),
			XOffset:  fromFixed(g.XOffset),
			YOffset:  fromFixed(g.YOffset),
		})
	}
	return run
}

// Measure returns the advance width of text at size points.
func (f *Face) Measure(text string, size float64) float64 {
	return f.Shape(text, size).Advance
}

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }

// DetectScript returns the dominant script of runes, Latin when none is
// recognised.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	bestScript := language.Latin

	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			bestScript = script
		}
	}
	return bestScript
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Thai, r):
		return language.Thai
	case unicode.Is(unicode.Devanagari, r):
		return language.Devanagari
	case unicode.Is(unicode.Bengali, r):
		return language.Bengali
	case unicode.Is(unicode.Gurmukhi, r):
		return language.Gurmukhi
	case unicode.Is(unicode.Gujarati, r):
		return language.Gujarati
	case unicode.Is(unicode.Oriya, r):
		return language.Oriya
	case unicode.Is(unicode.Tamil, r):
		return language.Tamil
	case unicode.Is(unicode.Telugu, r):
		return language.Telugu
	case unicode.Is(unicode.Kannada, r):
		return language.Kannada
	case unicode.Is(unicode.Malayalam, r):
		return language.Malayalam
	case unicode.Is(unicode.Sinhala, r):
		return language.Sinhala
	case unicode.Is(unicode.Lao, r):
		return language.Lao
	case unicode.Is(unicode.Tibetan, r):
		return language.Tibetan
	case unicode.Is(unicode.Myanmar, r):
		return language.Myanmar
	case unicode.Is(unicode.Khmer, r):
		return language.Khmer
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
