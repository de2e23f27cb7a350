package detector_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/internal/detector"
	"github.com/jonesrussell/north-cloud/product-detector/internal/dom"
)

func detect(t *testing.T, markup string) []string {
	t.Helper()
	segments, err := detector.Detect(strings.NewReader(markup))
	require.NoError(t, err)
	out := make([]string, len(segments))
	for i, s := range segments {
		assert.Equal(t, i, s.Index)
		out[i] = s.HTML
	}
	return out
}

func TestDetect_SingleProductInsideUnrelatedSiblings(t *testing.T) {
	t.Parallel()

	got := detect(t, `<html><body>
		<div class="page">
			<nav>Home | Deals</nav>
			<div class="product"><img src="w.png">Widget — $9.99, 250g</div>
			<footer>© 2024 Shop</footer>
		</div>
	</body></html>`)

	require.Len(t, got, 1)
	assert.Equal(t, `<div class="product"><img src="w.png"/>Widget — $9.99, 250g</div>`, got[0])
}

func TestDetect_ListingYieldsChildrenInOrder(t *testing.T) {
	t.Parallel()

	got := detect(t, `<ul class="listing">
		<li id="p1"><img src="1.png"><span>Tea 500 g</span> <b>$4.50</b></li>
		<li id="p2"><img src="2.png"><span>Milk 1 l</span> <b>€1,20</b></li>
		<li id="p3"><img src="3.png"><span>Eggs 12 pcs</span> <b>TL 45</b></li>
	</ul>`)

	require.Len(t, got, 3)
	assert.Contains(t, got[0], `id="p1"`)
	assert.Contains(t, got[1], `id="p2"`)
	assert.Contains(t, got[2], `id="p3"`)
	for _, h := range got {
		assert.NotContains(t, h, "listing")
	}
}

func TestDetect_NoImageMeansNoCandidates(t *testing.T) {
	t.Parallel()

	got := detect(t, `<div><p>Widget $9.99 250g</p></div>`)
	assert.Empty(t, got)
}

func TestDetect_EmptyDocument(t *testing.T) {
	t.Parallel()

	assert.Empty(t, detect(t, ""))
}

func TestDetect_NestedWrappersCollapseToInnermost(t *testing.T) {
	t.Parallel()

	got := detect(t, `<section id="s"><div id="w"><div id="card"><img src="c.png"><p>Jam $3.00</p> <p>340 g</p></div></div></section>`)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `id="card"`)
	assert.NotContains(t, got[0], `id="w"`)
}

func TestSelect_Idempotent(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(`<div><div><img src="x.png"> Soap 2x $3.49</div><div><img src="y.png"> Shampoo 250 ml 5,99 €</div></div>`)
	require.NoError(t, err)

	first := detector.Select(tree)
	second := detector.Select(tree)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestSegments_TextIsStripped(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(`<div><img src="x.png">
		<span>  Soap  </span>
		<span> 2x $3.49 </span></div>`)
	require.NoError(t, err)

	segments, err := detector.Segments(tree)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Soap 2x $3.49", segments[0].Text)
}

func TestDetect_ProductAtTheBottomOfDeepNesting(t *testing.T) {
	t.Parallel()

	const depth = 2000
	product := `<div class="card"><img src="a.png">Jam $3.00 340 g</div>`
	markup := "<html><body>" + strings.Repeat("<div>", depth) + product +
		strings.Repeat("</div>", depth) + "</body></html>"

	got := detect(t, markup)
	require.Len(t, got, 1)
	assert.Equal(t, product, got[0])
}
