package fonts

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	gofont "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Face is a parsed OpenType/TrueType font. The underlying typesetting face
// keeps caches and is not safe for concurrent use, so every access goes
// through mu.
type Face struct {
	Name string

	mu   sync.Mutex
	face *gofont.Face
	upem float64
}

// Parse reads a TrueType or OpenType font program.
func Parse(name string, data []byte) (*Face, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("font %q: empty data", name)
	}
	f, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("font %q: %w", name, err)
	}
	upem := float64(f.Upem())
	if upem == 0 {
		upem = 1000
	}
	return &Face{Name: name, face: f, upem: upem}, nil
}

// Upem returns the font units per em.
func (f *Face) Upem() float64 { return f.upem }

// Glyph returns the glyph for r, or 0 (notdef) and false.
func (f *Face) Glyph(r rune) (gofont.GID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.face.NominalGlyph(r)
}

// Advance returns the horizontal advance of gid in em units.
func (f *Face) Advance(gid gofont.GID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(f.face.HorizontalAdvance(gid)) / f.upem
}

// Extents returns ascender and descender in em units. The descender is
// negative.
func (f *Face) Extents() (ascent, descent float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ext, ok := f.face.FontHExtents()
	if !ok {
		return 0.8, -0.2
	}
	return float64(ext.Ascender) / f.upem, float64(ext.Descender) / f.upem
}

type goFont struct {
	once sync.Once
	data []byte
	face *Face
	err  error
}

func (g *goFont) load(name string) *Face {
	g.once.Do(func() { g.face, g.err = Parse(name, g.data) })
	if g.err != nil {
		// The Go fonts are compiled in; failing to parse them is a build defect.
		panic(g.err)
	}
	return g.face
}

var (
	regular    = &goFont{data: goregular.TTF}
	bold       = &goFont{data: gobold.TTF}
	italic     = &goFont{data: goitalic.TTF}
	boldItalic = &goFont{data: gobolditalic.TTF}
	mono       = &goFont{data: gomono.TTF}
	monoBold   = &goFont{data: gomonobold.TTF}
)

// Regular returns the Go Regular face, the default for drawing text.
func Regular() *Face { return regular.load("Go-Regular") }

// Bold returns the Go Bold face.
func Bold() *Face { return bold.load("Go-Bold") }

// Mono returns the Go Mono face.
func Mono() *Face { return mono.load("Go-Mono") }

// Substitute picks a Go font standing in for a non-embedded PDF font, based
// on its base font name (for example "Helvetica-BoldOblique" or
// "ABCDEF+TimesNewRoman,Bold").
func Substitute(baseFont string) *Face {
	name := strings.ToLower(baseFont)
	if i := strings.IndexByte(name, '+'); i == 6 {
		name = name[i+1:]
	}
	isBold := strings.Contains(name, "bold") || strings.Contains(name, "black") || strings.Contains(name, "heavy")
	isItalic := strings.Contains(name, "italic") || strings.Contains(name, "oblique")
	isMono := strings.Contains(name, "courier") || strings.Contains(name, "mono")

	switch {
	case isMono && isBold:
		return monoBold.load("Go-Mono-Bold")
	case isMono:
		return Mono()
	case isBold && isItalic:
		return boldItalic.load("Go-Bold-Italic")
	case isBold:
		return Bold()
	case isItalic:
		return italic.load("Go-Italic")
	default:
		return Regular()
	}
}
