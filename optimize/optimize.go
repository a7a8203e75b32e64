// Package optimize shrinks parsed PDF documents in place: duplicate streams
// are shared, unreferenced page resources dropped, plain streams compressed
// and oversized images resampled and re-encoded as JPEG.
package optimize

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/docxform/docerr"
)

type Config struct {
	// Structural runs pdfcpu's own font and image deduplication first.
	Structural              bool
	CombineDuplicateStreams bool
	CompressStreams         bool
	CleanUnusedResources    bool
	ImageQuality            int // 0-100, 0 means no change
	ImageUpperPPI           float64
}

// Level is a user facing compression preset.
type Level string

const (
	LevelLow         Level = "low"
	LevelRecommended Level = "recommended"
	LevelHigh        Level = "high"
)

// ConfigFor returns the preset for level. Low is lossless; the other
// levels recompress images.
func ConfigFor(level Level) (Config, error) {
	c := Config{
		Structural:              true,
		CombineDuplicateStreams: true,
		CompressStreams:         true,
	}
	switch level {
	case LevelLow:
	case LevelRecommended, "":
		c.ImageQuality = 75
		c.ImageUpperPPI = 150
	case LevelHigh:
		c.CleanUnusedResources = true
		c.ImageQuality = 50
		c.ImageUpperPPI = 96
	default:
		return Config{}, docerr.New(docerr.Validation, "optimize", "unknown compression level %q", level)
	}
	return c, nil
}

// Report counts what an optimization pass changed.
type Report struct {
	DuplicateStreams   int
	UnusedResources    int
	CompressedStreams  int
	RecompressedImages int
}

type Optimizer struct {
	config Config
}

func New(config Config) *Optimizer {
	return &Optimizer{config: config}
}

// Optimize rewrites pdf. Passes run in a fixed order and ctx is checked
// between them.
func (o *Optimizer) Optimize(ctx context.Context, pdf *model.Context) (Report, error) {
	var rep Report
	if o.config.Structural {
		if err := api.OptimizeContext(pdf); err != nil {
			return rep, fmt.Errorf("structural optimization: %w", err)
		}
	}

	if o.config.CleanUnusedResources {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := o.cleanUnusedResources(pdf)
		if err != nil {
			return rep, fmt.Errorf("failed to clean unused resources: %w", err)
		}
		rep.UnusedResources = n
	}

	if o.config.ImageQuality > 0 || o.config.ImageUpperPPI > 0 {
		n, err := o.optimizeImages(ctx, pdf)
		if err != nil {
			return rep, fmt.Errorf("failed to optimize images: %w", err)
		}
		rep.RecompressedImages = n
	}

	if o.config.CombineDuplicateStreams {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.DuplicateStreams = o.combineDuplicateStreams(pdf)
	}

	if o.config.CompressStreams {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := o.compressStreams(pdf)
		if err != nil {
			return rep, fmt.Errorf("failed to compress streams: %w", err)
		}
		rep.CompressedStreams = n
	}

	return rep, nil
}
