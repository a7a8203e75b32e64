package engine

import (
	"github.com/wudi/docxform/diff"
	"github.com/wudi/docxform/observability"
	"github.com/wudi/docxform/ocr"
	"github.com/wudi/docxform/recovery"
	"github.com/wudi/docxform/textlayer"
)

// Config holds the settings of a Session.
type Config struct {
	Logger observability.Logger
	Tracer observability.Tracer

	// OCREngine recognizes page images. Nil uses ocr.DefaultEngine.
	OCREngine        ocr.Engine
	OCRScale         float64 // pixels per point, at least textlayer.MinScale
	OCRMinConfidence float64
	OCRLanguage      string

	PreviewScale float64 // workspace surfaces
	PageGap      float64 // surface pixels between stacked pages
	DiffScale    float64
	ExportScale  float64 // page images, redaction rasters
	DiffOptions  diff.Options

	// Strategy decides whether a broken content stream aborts rendering.
	Strategy recovery.Strategy

	MaxInputs     int
	MaxInputBytes int64
	JPEGQuality   int
}

// DefaultConfig returns the settings used when no options are given.
func DefaultConfig() Config {
	return Config{
		Logger:           observability.NopLogger{},
		Tracer:           observability.NopTracer(),
		OCRScale:         textlayer.MinScale,
		OCRMinConfidence: textlayer.DefaultMinConfidence,
		OCRLanguage:      "eng",
		PreviewScale:     1.5,
		PageGap:          10,
		DiffScale:        1.5,
		ExportScale:      2,
		DiffOptions:      diff.DefaultOptions(),
		MaxInputs:        100,
		MaxInputBytes:    256 << 20,
		JPEGQuality:      85,
	}
}

// Option adjusts a Config.
type Option func(*Config)

func WithLogger(l observability.Logger) Option { return func(c *Config) { c.Logger = l } }
func WithTracer(t observability.Tracer) Option { return func(c *Config) { c.Tracer = t } }
func WithOCREngine(e ocr.Engine) Option        { return func(c *Config) { c.OCREngine = e } }
func WithOCRLanguage(lang string) Option       { return func(c *Config) { c.OCRLanguage = lang } }

// WithOCRScale sets the OCR render scale. Values below textlayer.MinScale
// are raised to it.
func WithOCRScale(scale float64) Option {
	return func(c *Config) { c.OCRScale = max(scale, textlayer.MinScale) }
}

func WithOCRMinConfidence(conf float64) Option {
	return func(c *Config) { c.OCRMinConfidence = conf }
}

func WithPreviewScale(scale float64) Option { return func(c *Config) { c.PreviewScale = scale } }
func WithDiffScale(scale float64) Option    { return func(c *Config) { c.DiffScale = scale } }
func WithExportScale(scale float64) Option  { return func(c *Config) { c.ExportScale = scale } }

// WithDiffThreshold sets the per-pixel colour distance (0..1) above which
// two pixels count as different.
func WithDiffThreshold(th float64) Option {
	return func(c *Config) { c.DiffOptions.Threshold = th }
}

func WithStrategy(s recovery.Strategy) Option { return func(c *Config) { c.Strategy = s } }

// WithInputLimits bounds the number of inputs of a request and the size
// of each one. Zero leaves a limit unchanged.
func WithInputLimits(count int, bytes int64) Option {
	return func(c *Config) {
		if count > 0 {
			c.MaxInputs = count
		}
		if bytes > 0 {
			c.MaxInputBytes = bytes
		}
	}
}

func WithJPEGQuality(q int) Option { return func(c *Config) { c.JPEGQuality = q } }

func (c Config) normalized() Config {
	d := DefaultConfig()
	c.Logger = observability.OrNop(c.Logger)
	if c.Tracer == nil {
		c.Tracer = d.Tracer
	}
	if c.Strategy == nil {
		c.Strategy = recovery.NewLenientStrategy(c.Logger)
	}
	if c.OCRScale < textlayer.MinScale {
		c.OCRScale = textlayer.MinScale
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = d.OCRLanguage
	}
	if c.PreviewScale <= 0 {
		c.PreviewScale = d.PreviewScale
	}
	if c.DiffScale <= 0 {
		c.DiffScale = d.DiffScale
	}
	if c.ExportScale <= 0 {
		c.ExportScale = d.ExportScale
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = d.JPEGQuality
	}
	return c
}
