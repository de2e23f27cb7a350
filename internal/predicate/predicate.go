// Package predicate holds the pure tests that decide whether a DOM node
// looks like a single product: a price, a quantity and an image.
package predicate

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/north-cloud/product-detector/internal/dom"
)

const (
	symbols = `[€$₺£¥]`
	// TRY also spells an English verb, so only the upper-case code counts.
	codes   = `usd|eur|gbp|jpy|tl|(?-i:TRY)`
	gap     = `[\s\x{00a0}]?`
	amount  = `\d+(?:[.,]\d+)?`
)

var (
	pricePattern = regexp.MustCompile(`(?i)` +
		`(?:` + symbols + `|\b(?:` + codes + `))` + gap + amount +
		`|` + amount + gap + `(?:` + symbols + `|(?:` + codes + `)\b)`)

	// The unit token is optional, so any bare number satisfies this. The
	// looseness is known and kept: tightening it changes which containers
	// are selected and invalidates labelled training data.
	unitPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:g|kg|ml|l|pcs|unit|x)?\b`)

	currencyTokens = map[string]bool{
		"€": true, "$": true, "₺": true, "£": true, "¥": true,
		"USD": true, "EUR": true, "GBP": true, "JPY": true, "TL": true,
	}
)

// ContainsPrice reports whether text carries an amount next to a currency
// symbol or code, on either side.
func ContainsPrice(text string) bool {
	if text == "" {
		return false
	}
	if pricePattern.MatchString(text) {
		return true
	}
	return hasNumberBeforeCurrencyToken(text)
}

// hasNumberBeforeCurrencyToken catches "1.299,00 TL" style amounts whose
// grouping the pattern does not model.
func hasNumberBeforeCurrencyToken(text string) bool {
	tokens := strings.Fields(text)
	for i := 0; i+1 < len(tokens); i++ {
		if isDigits(strings.NewReplacer(",", "", ".", "").Replace(tokens[i])) &&
			(tokens[i+1] == "TRY" || currencyTokens[strings.ToUpper(tokens[i+1])]) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ContainsUnit reports whether text has a number, optionally followed by a
// mass, volume or count unit.
func ContainsUnit(text string) bool {
	return text != "" && unitPattern.MatchString(text)
}

// ContainsImage reports whether id has an <img> strictly below it.
func ContainsImage(tree *dom.Tree, id dom.NodeID) bool {
	return tree.HasImage(id)
}

// IsValidProduct is ContainsPrice, ContainsUnit and ContainsImage together,
// evaluated on the node's full descendant text.
func IsValidProduct(tree *dom.Tree, id dom.NodeID) bool {
	if !ContainsImage(tree, id) {
		return false
	}
	text := tree.Text(id)
	return ContainsPrice(text) && ContainsUnit(text)
}
