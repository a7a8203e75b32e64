package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/docerr"
)

func TestUniqueNames(t *testing.T) {
	got := UniqueNames([]Entry{
		{Name: "page.png"},
		{Name: "page.png"},
		{Name: "dir/page.png"},
		{Name: "page (2).png"},
		{Name: "README"},
		{Name: "readme"},
		{Name: ""},
	})
	want := []string{"page.png", "page (2).png", "page (3).png", "page (2) (2).png", "README", "readme (2)", "file"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestPackRoundTrip(t *testing.T) {
	entries := []Entry{
		{Name: "b.txt", Data: []byte("second")},
		{Name: "a.txt", Data: []byte("first")},
		{Name: "a.txt", Data: []byte("third")},
	}
	data, err := Pack(entries)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var names, bodies []string
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Fatalf("%s stored with method %d", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		names = append(names, f.Name)
		bodies = append(bodies, string(b))
	}
	if diff := cmp.Diff([]string{"b.txt", "a.txt", "a (2).txt"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"second", "first", "third"}, bodies); diff != "" {
		t.Fatalf("bodies (-want +got):\n%s", diff)
	}
}

func TestPackDeterministic(t *testing.T) {
	entries := []Entry{{Name: "x.bin", Data: bytes.Repeat([]byte{1, 2, 3}, 100)}}
	a, err := Pack(entries)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	b, err := Pack(entries)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("archives differ")
	}
}

func TestPackEmpty(t *testing.T) {
	if _, err := Pack(nil); docerr.KindOf(err) != docerr.Validation {
		t.Fatalf("error = %v, want validation", err)
	}
}
