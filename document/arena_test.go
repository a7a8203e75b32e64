package document_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
)

func TestArenaNotifiesListeners(t *testing.T) {
	a := document.NewArena()
	var kinds []string
	a.OnChange(func(c document.Change) { kinds = append(kinds, c.Kind.String()) })

	d1 := &document.Document{Name: "a.pdf"}
	d2 := &document.Document{Name: "b.pdf"}
	slot := a.Add(d1)
	a.Add(d2)
	if err := a.Replace(slot, &document.Document{Name: "a2.pdf"}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := a.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if a.Len() != 1 {
		t.Fatalf("len = %d", a.Len())
	}
	got, err := a.Get(slot)
	if err != nil || got.Name != "a2.pdf" {
		t.Fatalf("get = %v, %v", got, err)
	}
	a.Clear()

	want := []string{"added", "added", "replaced", "removed", "cleared"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("change kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestArenaRejectsUnknownSlots(t *testing.T) {
	a := document.NewArena()
	if _, err := a.Get(0); !errors.Is(err, docerr.ErrValidation) {
		t.Fatalf("get: %v", err)
	}
	if err := a.Replace(3, nil); !errors.Is(err, docerr.ErrValidation) {
		t.Fatalf("replace: %v", err)
	}
	slot := a.Add(&document.Document{})
	if err := a.Remove(slot); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := a.Remove(slot); !errors.Is(err, docerr.ErrValidation) {
		t.Fatalf("second remove: %v", err)
	}
}

func TestPageSetChanged(t *testing.T) {
	for kind, want := range map[document.ChangeKind]bool{
		document.Added:    false,
		document.Replaced: true,
		document.Removed:  true,
		document.Cleared:  true,
	} {
		if got := (document.Change{Kind: kind}).PageSetChanged(); got != want {
			t.Errorf("%v: PageSetChanged = %v", kind, got)
		}
	}
}
