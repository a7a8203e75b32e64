// Package convert moves content between formats: PDF pages to text, Word
// documents and images, images and scans to PDF, office and markup
// documents to PDF, and the batch image tools.
//
// Adapters that work page by page (or image by image) report progress
// through a callback called after each step with the number of steps done.
package convert

import (
	"context"
	"path"
	"strings"

	"github.com/wudi/docxform/document"
)

// File is a named blob going into or coming out of an adapter.
type File struct {
	Name string
	Data []byte
}

// Base returns the file name without directory and extension.
func (f File) Base() string { return document.BaseName(f.Name) }

// Ext returns the lower case extension without the dot.
func (f File) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(strings.ReplaceAll(f.Name, "\\", "/"))), ".")
}

// Progress is called after each page or item.
type Progress func(done, total int)

func (p Progress) step(done, total int) {
	if p != nil {
		p(done, total)
	}
}

// Percent maps step done of total onto 0..100.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	if done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return (200*done + total) / (2 * total)
}

// each runs fn for every index in order, checking ctx before each call.
func each(ctx context.Context, n int, progress Progress, fn func(i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(i); err != nil {
			return err
		}
		progress.step(i+1, n)
	}
	return nil
}
