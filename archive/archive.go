// Package archive packs several artifacts into one zip file.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/wudi/docxform/docerr"
)

// modTime is stamped on every entry so equal inputs give equal archives.
var modTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file of an archive.
type Entry struct {
	Name string
	Data []byte
}

// Pack writes entries in order into a Deflate compressed zip. Names are
// reduced to their base name; repeated names become "name (2).ext",
// "name (3).ext" and so on.
func Pack(entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, docerr.New(docerr.Validation, "archive.pack", "no entries")
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, name := range UniqueNames(entries) {
		h := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modTime}
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "archive.pack", err)
		}
		if _, err := w.Write(entries[i].Data); err != nil {
			return nil, docerr.Wrap(docerr.ProcessingFault, "archive.pack", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, docerr.Wrap(docerr.ProcessingFault, "archive.pack", err)
	}
	return buf.Bytes(), nil
}

// UniqueNames returns the names Pack stores, in entry order.
func UniqueNames(entries []Entry) []string {
	taken := make(map[string]bool, len(entries))
	out := make([]string, len(entries))
	for i, e := range entries {
		name := cleanName(e.Name)
		if taken[strings.ToLower(name)] {
			ext := path.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
				if !taken[strings.ToLower(candidate)] {
					name = candidate
					break
				}
			}
		}
		taken[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
