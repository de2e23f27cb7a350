// Package extract turns page and segment markup into the plain text the
// vectorizer consumes. Training and serving must use the same Extractor so
// their features line up.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/product-detector/internal/dom"
)

// Extractor returns the text of an HTML document or fragment.
type Extractor interface {
	Extract(markup string) (string, error)
}

// New returns a SelectorExtractor when selectors are given, otherwise a
// TreeExtractor.
func New(selectors []string) Extractor {
	if len(selectors) == 0 {
		return TreeExtractor{}
	}
	return NewSelectorExtractor(selectors)
}

// TreeExtractor takes all visible text, trimmed and space separated.
type TreeExtractor struct{}

func (TreeExtractor) Extract(markup string) (string, error) {
	tree, err := dom.ParseString(markup)
	if err != nil {
		return "", err
	}
	if tree.Root() == dom.NoNode {
		return "", nil
	}
	return tree.StrippedText(tree.Root(), " "), nil
}

// SelectorExtractor takes the text of elements matching a CSS selector list.
// Nested matches contribute their text once per match.
type SelectorExtractor struct {
	selector string
}

func NewSelectorExtractor(selectors []string) *SelectorExtractor {
	return &SelectorExtractor{selector: strings.Join(selectors, ", ")}
}

func (e *SelectorExtractor) Extract(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	var parts []string
	doc.Find(e.selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " "), nil
}
