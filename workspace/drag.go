package workspace

import (
	"github.com/wudi/docxform/docerr"
)

// DragSession moves one canvas item or redaction area. A workspace has at
// most one active drag; it only changes in-memory positions.
type DragSession struct {
	w        *Workspace
	id       int
	grabX    float64 // pointer offset from the target's top left corner
	grabY    float64
	origX    float64
	origY    float64
	origPage int
	active   bool
}

// BeginDrag starts dragging the item or area id, grabbed at surface point
// (sx, sy).
func (w *Workspace) BeginDrag(id int, sx, sy float64) (*DragSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.drag != nil {
		return nil, docerr.New(docerr.Validation, "workspace.drag", "drag of %d already in progress", w.drag.id)
	}
	x, y, page, ok := w.positionLocked(id)
	if !ok {
		return nil, docerr.New(docerr.Validation, "workspace.drag", "no item %d", id)
	}
	d := &DragSession{w: w, id: id, grabX: sx - x, grabY: sy - y, origX: x, origY: y, origPage: page, active: true}
	w.drag = d
	return d, nil
}

// Dragging reports whether a drag is active.
func (w *Workspace) Dragging() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drag != nil
}

func (w *Workspace) positionLocked(id int) (x, y float64, page int, ok bool) {
	for _, it := range w.items {
		if it.ID == id {
			return it.X, it.Y, it.Page, true
		}
	}
	for _, a := range w.areas {
		if a.ID == id {
			return a.X, a.Y, a.Page, true
		}
	}
	return 0, 0, 0, false
}

func (w *Workspace) moveLocked(id int, x, y float64, page int) {
	for i := range w.items {
		if w.items[i].ID == id {
			w.items[i].X, w.items[i].Y, w.items[i].Page = x, y, page
			return
		}
	}
	for i := range w.areas {
		if w.areas[i].ID == id {
			w.areas[i].X, w.areas[i].Y, w.areas[i].Page = x, y, page
			return
		}
	}
}

// Move follows the pointer to (sx, sy). The target joins the page under
// its new top edge; off the pages it keeps its page.
func (d *DragSession) Move(sx, sy float64) error {
	d.w.mu.Lock()
	defer d.w.mu.Unlock()
	if !d.active {
		return docerr.New(docerr.Validation, "workspace.drag", "drag has ended")
	}
	x, y := sx-d.grabX, sy-d.grabY
	_, _, page, ok := d.w.positionLocked(d.id)
	if !ok {
		return docerr.New(docerr.Validation, "workspace.drag", "item %d was removed", d.id)
	}
	if p, on := d.w.layout.PageAt(y); on {
		page = p
	}
	d.w.moveLocked(d.id, x, y, page)
	return nil
}

// End finishes the drag, keeping the last position.
func (d *DragSession) End() {
	d.w.mu.Lock()
	defer d.w.mu.Unlock()
	d.finishLocked()
}

// Cancel finishes the drag and puts the target back where it started.
func (d *DragSession) Cancel() {
	d.w.mu.Lock()
	defer d.w.mu.Unlock()
	if d.active {
		d.w.moveLocked(d.id, d.origX, d.origY, d.origPage)
	}
	d.finishLocked()
}

func (d *DragSession) finishLocked() {
	if !d.active {
		return
	}
	d.active = false
	if d.w.drag == d {
		d.w.drag = nil
	}
}
