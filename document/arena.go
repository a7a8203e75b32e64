package document

import (
	"sync"

	"github.com/wudi/docxform/docerr"
)

// ChangeKind says how the arena changed.
type ChangeKind int

const (
	Added ChangeKind = iota
	Replaced
	Removed
	Cleared
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Replaced:
		return "replaced"
	case Removed:
		return "removed"
	default:
		return "cleared"
	}
}

// Change is delivered to arena listeners after the arena has been updated.
type Change struct {
	Kind ChangeKind
	Slot int
	Doc  *Document // new occupant of Slot; nil for Removed and Cleared
}

// PageSetChanged reports whether page indices referring to Slot may no
// longer be valid.
func (c Change) PageSetChanged() bool { return c.Kind != Added }

// Arena stores the session's documents by slot. Annotations refer to a
// (slot, page) pair; listeners registered with OnChange are told whenever a
// slot's document goes away or is swapped.
type Arena struct {
	mu        sync.Mutex
	docs      []*Document
	listeners []func(Change)
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// OnChange registers fn. Listeners run synchronously, outside the arena lock,
// in registration order.
func (a *Arena) OnChange(fn func(Change)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Add appends doc and returns its slot.
func (a *Arena) Add(doc *Document) int {
	a.mu.Lock()
	a.docs = append(a.docs, doc)
	slot := len(a.docs) - 1
	a.mu.Unlock()
	a.notify(Change{Kind: Added, Slot: slot, Doc: doc})
	return slot
}

// Get returns the document in slot.
func (a *Arena) Get(slot int) (*Document, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot < 0 || slot >= len(a.docs) || a.docs[slot] == nil {
		return nil, docerr.New(docerr.Validation, "arena.get", "no document in slot %d", slot)
	}
	return a.docs[slot], nil
}

// Replace swaps the document in slot, e.g. after pages were reorganized.
func (a *Arena) Replace(slot int, doc *Document) error {
	a.mu.Lock()
	if slot < 0 || slot >= len(a.docs) || a.docs[slot] == nil {
		a.mu.Unlock()
		return docerr.New(docerr.Validation, "arena.replace", "no document in slot %d", slot)
	}
	a.docs[slot] = doc
	a.mu.Unlock()
	a.notify(Change{Kind: Replaced, Slot: slot, Doc: doc})
	return nil
}

// Remove empties slot. Slots are not reused.
func (a *Arena) Remove(slot int) error {
	a.mu.Lock()
	if slot < 0 || slot >= len(a.docs) || a.docs[slot] == nil {
		a.mu.Unlock()
		return docerr.New(docerr.Validation, "arena.remove", "no document in slot %d", slot)
	}
	a.docs[slot] = nil
	a.mu.Unlock()
	a.notify(Change{Kind: Removed, Slot: slot})
	return nil
}

// Clear drops every document.
func (a *Arena) Clear() {
	a.mu.Lock()
	a.docs = nil
	a.mu.Unlock()
	a.notify(Change{Kind: Cleared, Slot: -1})
}

// Documents returns the live documents in slot order.
func (a *Arena) Documents() []*Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Document, 0, len(a.docs))
	for _, d := range a.docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of live documents.
func (a *Arena) Len() int { return len(a.Documents()) }

func (a *Arena) notify(c Change) {
	a.mu.Lock()
	ls := make([]func(Change), len(a.listeners))
	copy(ls, a.listeners)
	a.mu.Unlock()
	for _, fn := range ls {
		fn(c)
	}
}
