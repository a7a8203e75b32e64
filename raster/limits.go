package raster

import (
	"fmt"

	"github.com/wudi/docxform/docerr"
)

const (
	// MaxDimension caps width/height so that corrupt inputs lying about
	// their size cannot force huge allocations.
	MaxDimension = 32768
	// MaxPixels bounds the total pixel count (roughly 64MP), keeping RGBA
	// buffers under 256 MB.
	MaxPixels int64 = 64 * 1024 * 1024
)

// ErrTooLarge is returned for surfaces beyond MaxDimension or MaxPixels.
var ErrTooLarge = &docerr.Error{Kind: docerr.UnsupportedContent, Msg: "image exceeds size limits"}

// CheckBounds validates a surface size against the limits.
func CheckBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return docerr.New(docerr.CorruptDocument, "raster", "image bounds invalid (%d x %d)", width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("dimension %d x %d: %w", width, height, ErrTooLarge)
	}
	if pixels := int64(width) * int64(height); pixels > MaxPixels {
		return fmt.Errorf("pixel count %d over %d: %w", pixels, MaxPixels, ErrTooLarge)
	}
	return nil
}
