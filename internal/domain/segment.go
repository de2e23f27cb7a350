// Package domain holds the value types shared across the detector pipeline.
package domain

import (
	"maps"
	"slices"
	"time"
)

// Segment is a minimal product container: its outer HTML and the
// whitespace-stripped visible text of its subtree.
type Segment struct {
	// Index is the position of the segment in document order.
	Index int    `json:"index"`
	HTML  string `json:"html"`
	Text  string `json:"text"`
}

// PageResult is the outcome of classifying one page.
type PageResult struct {
	URL      string    `json:"url,omitempty"`
	Segments []Segment `json:"segments"`
	// Accepted maps classifier name to the HTML of segments it labelled
	// as products, in document order. Every succeeding classifier has an
	// entry, possibly empty.
	Accepted map[string][]string `json:"accepted"`
	// Failures maps classifier name to its error message.
	Failures    map[string]string `json:"failures,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}

// ClassifierNames returns the sorted names of classifiers that produced output.
func (r *PageResult) ClassifierNames() []string {
	return slices.Sorted(maps.Keys(r.Accepted))
}
