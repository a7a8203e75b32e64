package diff

import (
	"encoding/json"
	"fmt"

	"github.com/wudi/docxform/raster"
)

// Summary is the machine readable report stored next to the diff images.
type Summary struct {
	Identical bool          `json:"identical"`
	Pages     []PageSummary `json:"pages"`
	// Percentage is the mean of the page percentages.
	Percentage float64 `json:"percentage"`
}

type PageSummary struct {
	Page       int     `json:"page"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DiffPixels int     `json:"diff_pixels"`
	Percentage float64 `json:"percentage"`
	Image      string  `json:"image"`
}

// Summarize reports results.
func Summarize(results []PageResult) Summary {
	s := Summary{Identical: true, Pages: make([]PageSummary, 0, len(results))}
	var sum float64
	for _, r := range results {
		s.Pages = append(s.Pages, PageSummary{
			Page:       r.Page,
			Width:      r.Diff.Width(),
			Height:     r.Diff.Height(),
			DiffPixels: r.DiffPixels,
			Percentage: r.Percentage,
			Image:      ImageName(r.Page),
		})
		sum += r.Percentage
		if r.DiffPixels > 0 {
			s.Identical = false
		}
	}
	if len(results) > 0 {
		s.Percentage = sum / float64(len(results))
	}
	return s
}

// JSON encodes the summary with indentation.
func (s Summary) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ImageName is the archive name of the diff image of page (1-based).
func ImageName(page int) string { return fmt.Sprintf("page_%d_diff.png", page) }

// Encode returns the diff image as PNG.
func (r PageResult) Encode() ([]byte, error) {
	return r.Diff.Bytes(raster.PNG, 0)
}
