// Package workspace holds the interactive state of an editing session: the
// items placed on the rendered pages, the areas marked for redaction and
// the drag in progress. Positions live in surface pixels of the current
// coords.Layout and are mapped into document points only when the edit is
// applied.
package workspace

import (
	"image"
	"image/color"
	"sync"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/observability"
)

// ItemKind is the variant of a canvas item.
type ItemKind string

const (
	TextItem   ItemKind = "text"
	ImageItem  ItemKind = "image"
	UploadItem ItemKind = "upload"
)

// CanvasItem is text or a picture placed on a page. X and Y are the top
// left corner on the surface; FontSize is in surface pixels.
type CanvasItem struct {
	ID       int
	Kind     ItemKind
	Page     int
	X, Y     float64
	Width    float64
	Height   float64
	Text     string
	FontSize float64
	Color    color.Color
	Image    image.Image
}

func (it CanvasItem) validate() error {
	if it.Width <= 0 || it.Height <= 0 {
		return docerr.New(docerr.Validation, "workspace", "item has no size")
	}
	switch it.Kind {
	case TextItem:
		if it.Text == "" {
			return docerr.New(docerr.Validation, "workspace", "text item is empty")
		}
	case ImageItem, UploadItem:
		if it.Image == nil || it.Image.Bounds().Empty() {
			return docerr.New(docerr.Validation, "workspace", "%s item has no image", it.Kind)
		}
	default:
		return docerr.New(docerr.Validation, "workspace", "unknown item kind %q", it.Kind)
	}
	return nil
}

// RedactionArea is a rectangle on the surface, top left corner at X, Y.
type RedactionArea struct {
	ID     int
	Page   int
	X, Y   float64
	Width  float64
	Height float64
}

// Workspace tracks annotations for one document slot of an arena. When the
// slot's page set changes, every annotation is dropped and the layout must
// be measured again.
type Workspace struct {
	mu     sync.Mutex
	slot   int
	layout coords.Layout
	items  []CanvasItem
	areas  []RedactionArea
	nextID int
	drag   *DragSession
	logger observability.Logger
}

// New returns a workspace for slot and registers it with arena.
func New(arena *document.Arena, slot int, logger observability.Logger) *Workspace {
	w := &Workspace{slot: slot, logger: observability.OrNop(logger)}
	if arena != nil {
		arena.OnChange(w.onChange)
	}
	return w
}

func (w *Workspace) onChange(c document.Change) {
	if !c.PageSetChanged() || (c.Kind != document.Cleared && c.Slot != w.slot) {
		return
	}
	w.mu.Lock()
	n := len(w.items) + len(w.areas)
	w.resetLocked()
	w.mu.Unlock()
	w.logger.Info("workspace cleared",
		observability.String("change", c.Kind.String()),
		observability.Int("slot", c.Slot),
		observability.Int("dropped", n))
}

func (w *Workspace) resetLocked() {
	w.items = nil
	w.areas = nil
	w.layout = coords.Layout{}
	if w.drag != nil {
		w.drag.active = false
		w.drag = nil
	}
}

// Reset drops all annotations and the layout.
func (w *Workspace) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

// StackDocument measures the layout of doc rendered at scale with gap
// pixels between pages.
func StackDocument(doc *document.Document, scale, gap float64) coords.Layout {
	sizes := make([]coords.Size, 0, doc.PageCount())
	for _, p := range doc.Pages() {
		w, h := p.RenderedSize()
		sizes = append(sizes, coords.Size{Width: w, Height: h})
	}
	return coords.StackPages(sizes, scale, gap, 0)
}

// SetLayout records the geometry of the surface as currently rendered.
// Annotations on pages the new layout lacks are dropped.
func (w *Workspace) SetLayout(l coords.Layout) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.layout = l
	n := len(l.Pages)
	items := w.items[:0]
	for _, it := range w.items {
		if it.Page < n {
			items = append(items, it)
		}
	}
	w.items = items
	areas := w.areas[:0]
	for _, a := range w.areas {
		if a.Page < n {
			areas = append(areas, a)
		}
	}
	w.areas = areas
}

// Layout returns the current layout.
func (w *Workspace) Layout() coords.Layout {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layout
}

func (w *Workspace) pageAt(y float64) (int, error) {
	page, ok := w.layout.PageAt(y)
	if !ok {
		return 0, docerr.New(docerr.Validation, "workspace", "y=%.1f is not on a rendered page", y)
	}
	return page, nil
}

// AddItem places it on the page under its top edge and returns its id.
func (w *Workspace) AddItem(it CanvasItem) (int, error) {
	if err := it.validate(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	page, err := w.pageAt(it.Y)
	if err != nil {
		return 0, err
	}
	w.nextID++
	it.ID, it.Page = w.nextID, page
	w.items = append(w.items, it)
	return it.ID, nil
}

// AddRedaction marks an area and returns its id.
func (w *Workspace) AddRedaction(a RedactionArea) (int, error) {
	if a.Width <= 0 || a.Height <= 0 {
		return 0, docerr.New(docerr.Validation, "workspace", "redaction area has no size")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	page, err := w.pageAt(a.Y)
	if err != nil {
		return 0, err
	}
	w.nextID++
	a.ID, a.Page = w.nextID, page
	w.areas = append(w.areas, a)
	return a.ID, nil
}

// Remove deletes the item or area with id.
func (w *Workspace) Remove(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, it := range w.items {
		if it.ID == id {
			w.items = append(w.items[:i], w.items[i+1:]...)
			return true
		}
	}
	for i, a := range w.areas {
		if a.ID == id {
			w.areas = append(w.areas[:i], w.areas[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns a copy of the canvas items.
func (w *Workspace) Items() []CanvasItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]CanvasItem(nil), w.items...)
}

// Redactions returns a copy of the redaction areas.
func (w *Workspace) Redactions() []RedactionArea {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]RedactionArea(nil), w.areas...)
}

// toPoints maps a surface rectangle owned by page into its points. The
// rectangle may hang over the page edge; it still belongs to page.
func (w *Workspace) toPoints(page int, x, y, width, height float64) (coords.Placement, error) {
	if page < 0 || page >= len(w.layout.Pages) {
		return coords.Placement{}, docerr.New(docerr.Validation, "workspace", "page %d is not rendered", page)
	}
	p := w.layout.Pages[page]
	return w.layout.ToPage(page, x-p.OffsetLeft, y-p.OffsetTop, width, height)
}

// Edits maps the canvas items into document points: pictures become stamp
// items, text becomes visible runs with the baseline above the item's
// bottom edge by the font's descent.
func (w *Workspace) Edits() ([]editor.StampItem, []editor.TextRun, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var stamps []editor.StampItem
	var runs []editor.TextRun
	for _, it := range w.items {
		pl, err := w.toPoints(it.Page, it.X, it.Y, it.Width, it.Height)
		if err != nil {
			return nil, nil, err
		}
		if it.Kind != TextItem {
			stamps = append(stamps, editor.StampItem{Page: pl.Page, X: pl.X, Y: pl.Y, Width: pl.Width, Height: pl.Height, Image: it.Image})
			continue
		}
		size := it.FontSize / w.layout.Pages[it.Page].Scale()
		if size <= 0 {
			size = pl.Height
		}
		runs = append(runs, editor.TextRun{
			Page:     pl.Page,
			Text:     it.Text,
			X:        pl.X,
			Y:        pl.Y + builder.Descent("Helvetica", size),
			FontSize: size,
			Color:    it.Color,
		})
	}
	return stamps, runs, nil
}

// Areas maps the redaction areas into document points.
func (w *Workspace) Areas() ([]editor.Area, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]editor.Area, 0, len(w.areas))
	for _, a := range w.areas {
		pl, err := w.toPoints(a.Page, a.X, a.Y, a.Width, a.Height)
		if err != nil {
			return nil, err
		}
		out = append(out, editor.Area{Page: pl.Page, X: pl.X, Y: pl.Y, Width: pl.Width, Height: pl.Height})
	}
	return out, nil
}
