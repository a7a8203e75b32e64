// Package document holds the immutable input documents a session works on.
//
// A Document owns the original bytes and never changes them. The structural
// view (pages, metadata, encryption) is parsed once on Load; every editing
// operation asks for a fresh object graph through Context, so edits never
// leak back into the Document.
package document

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/crypto/blake2b"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/raster"
)

func init() {
	api.DisableConfigDir()
}

// Page is the geometry of one page in PDF points.
type Page struct {
	Index    int
	Width    float64 // visible box (CropBox, else MediaBox), unrotated
	Height   float64
	OriginX  float64 // lower left corner of the visible box
	OriginY  float64
	Rotation int // 0, 90, 180 or 270
}

// RenderedSize returns the page size after applying its rotation.
func (p Page) RenderedSize() (w, h float64) {
	if p.Rotation == 90 || p.Rotation == 270 {
		return p.Height, p.Width
	}
	return p.Width, p.Height
}

// Metadata is the document information dictionary.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

type cacheKey struct {
	page  int
	scale float64
}

// Document is a parsed PDF and its original bytes.
type Document struct {
	Name string

	data        []byte
	password    string
	fingerprint string
	pages       []Page
	meta        Metadata
	encrypted   bool

	mu    sync.Mutex
	cache map[cacheKey]*raster.Surface
}

// Load parses data as a PDF. password opens encrypted documents and may be
// empty. A bad password yields docerr.WrongPassword, anything unreadable
// docerr.CorruptDocument.
func Load(name string, data []byte, password string) (*Document, error) {
	if len(data) == 0 {
		return nil, docerr.New(docerr.CorruptDocument, "document.load", "%s is empty", name)
	}
	sum := blake2b.Sum256(data)
	d := &Document{
		Name:        name,
		data:        data,
		password:    password,
		fingerprint: hex.EncodeToString(sum[:]),
		cache:       make(map[cacheKey]*raster.Surface),
	}
	ctx, err := d.Context()
	if err != nil {
		return nil, err
	}
	d.encrypted = ctx.Encrypt != nil
	d.meta = Metadata{
		Title:    ctx.Title,
		Author:   ctx.Author,
		Subject:  ctx.Subject,
		Keywords: ctx.Keywords,
		Creator:  ctx.Creator,
		Producer: ctx.Producer,
	}
	if d.pages, err = PagesOf(ctx); err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "document.load", err)
	}
	if len(d.pages) == 0 {
		return nil, docerr.New(docerr.CorruptDocument, "document.load", "%s has no pages", name)
	}
	return d, nil
}

// Configuration returns a pdfcpu configuration carrying the document password.
func (d *Document) Configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if d.password != "" {
		conf.UserPW = d.password
		conf.OwnerPW = d.password
	}
	return conf
}

// Context parses the original bytes into a new, validated object graph.
// Callers own the result and may modify it freely.
func (d *Document) Context() (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(d.data), d.Configuration())
	if err != nil {
		return nil, ClassifyRead("document.read", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, ClassifyRead("document.validate", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, docerr.Wrap(docerr.CorruptDocument, "document.read", err)
	}
	return ctx, nil
}

// ClassifyRead maps a pdfcpu read failure onto WrongPassword or
// CorruptDocument.
func ClassifyRead(op string, err error) error {
	if errors.Is(err, pdfcpu.ErrWrongPassword) {
		return &docerr.Error{Kind: docerr.WrongPassword, Op: op, Err: err}
	}
	return docerr.Wrap(docerr.CorruptDocument, op, err)
}

// PagesOf reads the page geometry of ctx.
func PagesOf(ctx *model.Context) ([]Page, error) {
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	pages := make([]Page, 0, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		_, _, inh, err := ctx.PageDict(i, false)
		if err != nil {
			return nil, err
		}
		if inh == nil {
			return nil, fmt.Errorf("page %d has no attributes", i)
		}
		box := inh.CropBox
		if box == nil || !box.Visible() {
			box = inh.MediaBox
		}
		if box == nil || !box.Visible() {
			return nil, fmt.Errorf("page %d has no media box", i)
		}
		pages = append(pages, Page{
			Index:    i - 1,
			Width:    box.Width(),
			Height:   box.Height(),
			OriginX:  box.LL.X,
			OriginY:  box.LL.Y,
			Rotation: NormalizeRotation(inh.Rotate),
		})
	}
	return pages, nil
}

// NormalizeRotation maps any multiple of 90 onto 0, 90, 180 or 270.
func NormalizeRotation(deg int) int {
	r := deg % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// Bytes returns the original bytes. The slice must not be modified.
func (d *Document) Bytes() []byte { return d.data }

// Reader returns a fresh reader over the original bytes.
func (d *Document) Reader() *bytes.Reader { return bytes.NewReader(d.data) }

// Size is the byte length of the original file.
func (d *Document) Size() int { return len(d.data) }

// Password returns the password the document was opened with.
func (d *Document) Password() string { return d.password }

// Fingerprint is the hex BLAKE2b-256 digest of the original bytes.
func (d *Document) Fingerprint() string { return d.fingerprint }

// Encrypted reports whether the file carries an encryption dictionary.
func (d *Document) Encrypted() bool { return d.encrypted }

// Metadata returns the information dictionary read at load time.
func (d *Document) Metadata() Metadata { return d.meta }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Pages returns a copy of the page list.
func (d *Document) Pages() []Page {
	out := make([]Page, len(d.pages))
	copy(out, d.pages)
	return out
}

// Page returns page i (0-based).
func (d *Document) Page(i int) (Page, error) {
	if i < 0 || i >= len(d.pages) {
		return Page{}, docerr.New(docerr.Validation, "document.page", "page %d out of range [1, %d]", i+1, len(d.pages))
	}
	return d.pages[i], nil
}

// Base returns Name without directory and extension, used for artifact names.
func (d *Document) Base() string { return BaseName(d.Name) }

// BaseName strips directory and extension from name. An empty result
// becomes "document".
func BaseName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		return "document"
	}
	return base
}

// CachedRaster returns a copy of the cached raster of page at scale.
func (d *Document) CachedRaster(page int, scale float64) (*raster.Surface, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.cache[cacheKey{page, scale}]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// StoreRaster caches a copy of s for page at scale.
func (d *Document) StoreRaster(page int, scale float64, s *raster.Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[cacheKey{page, scale}] = s.Clone()
}

// DropRasters empties the raster cache.
func (d *Document) DropRasters() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[cacheKey]*raster.Surface)
}

// CachedRasters reports how many rasters are cached.
func (d *Document) CachedRasters() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cache)
}
