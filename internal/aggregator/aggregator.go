// Package aggregator turns per-classifier labels into the HTML of the
// segments each classifier accepted.
package aggregator

import (
	"fmt"

	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
)

// Group returns, for each classifier, the HTML of segments labelled 1 in
// segment order. Classifiers whose label count does not match the segment
// count are returned in failures instead. Every well-formed classifier has
// an entry in accepted, empty when it accepted nothing.
func Group(segments []domain.Segment, labels map[string][]int) (accepted map[string][]string, failures map[string]error) {
	accepted = make(map[string][]string, len(labels))
	failures = make(map[string]error)

	for name, ls := range labels {
		if len(ls) != len(segments) {
			failures[name] = fmt.Errorf("aggregator: %d labels for %d segments", len(ls), len(segments))
			continue
		}
		out := []string{}
		for i, l := range ls {
			if l == domain.LabelProduct {
				out = append(out, segments[i].HTML)
			}
		}
		accepted[name] = out
	}
	return accepted, failures
}
