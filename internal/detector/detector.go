// Package detector selects the minimal product containers of a page.
//
// A node is a candidate when it passes predicate.IsValidProduct. A candidate
// is kept only when none of its direct children is also a candidate. The
// predicates read a node's whole subtree, so every ancestor of a candidate
// is a candidate too, and a chain of wrappers collapses to its innermost
// member.
package detector

import (
	"fmt"
	"io"

	"github.com/jonesrussell/north-cloud/product-detector/internal/dom"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
	"github.com/jonesrussell/north-cloud/product-detector/internal/predicate"
)

// TextSeparator joins the stripped text pieces of a segment.
const TextSeparator = " "

// Select returns the minimal candidate nodes in document order.
func Select(tree *dom.Tree) []dom.NodeID {
	qualifies := make([]bool, tree.Len())
	for id := range qualifies {
		qualifies[id] = predicate.IsValidProduct(tree, dom.NodeID(id))
	}

	var out []dom.NodeID
	for id, ok := range qualifies {
		if ok && !anyChildQualifies(tree, dom.NodeID(id), qualifies) {
			out = append(out, dom.NodeID(id))
		}
	}
	return out
}

func anyChildQualifies(tree *dom.Tree, id dom.NodeID, qualifies []bool) bool {
	for _, c := range tree.Children(id) {
		if qualifies[c] {
			return true
		}
	}
	return false
}

// Segments renders the minimal containers of tree.
func Segments(tree *dom.Tree) ([]domain.Segment, error) {
	ids := Select(tree)
	segments := make([]domain.Segment, 0, len(ids))
	for i, id := range ids {
		markup, err := tree.HTML(id)
		if err != nil {
			return nil, fmt.Errorf("render segment %d: %w", i, err)
		}
		segments = append(segments, domain.Segment{
			Index: i,
			HTML:  markup,
			Text:  tree.StrippedText(id, TextSeparator),
		})
	}
	return segments, nil
}

// Detect parses r and returns its minimal containers.
func Detect(r io.Reader) ([]domain.Segment, error) {
	tree, err := dom.Parse(r)
	if err != nil {
		return nil, err
	}
	return Segments(tree)
}
