package dom_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/internal/dom"
)

const page = `<html><head><title>Shop</title><style>.x{color:red}</style></head>
<body>
  <div id="outer">
    <p>Intro</p>
    <div class="card"><img src="a.png"> <span>Widget</span> <b>$9.99</b></div>
  </div>
  <script>var price = "$1.00";</script>
</body></html>`

func findTag(t *testing.T, tree *dom.Tree, tag string) dom.NodeID {
	t.Helper()
	for id := dom.NodeID(0); int(id) < tree.Len(); id++ {
		if tree.Tag(id) == tag {
			return id
		}
	}
	t.Fatalf("tag %q not found", tag)
	return dom.NoNode
}

func TestParse_DocumentOrder(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(page)
	require.NoError(t, err)

	var tags []string
	for id := dom.NodeID(0); int(id) < tree.Len(); id++ {
		tags = append(tags, tree.Tag(id))
	}
	assert.Equal(t,
		[]string{"html", "head", "title", "style", "body", "div", "p", "div", "img", "span", "b", "script"},
		tags)
	assert.Equal(t, dom.NodeID(0), tree.Root())
	assert.Equal(t, dom.NoNode, tree.Parent(tree.Root()))
}

func TestParse_ChildrenAndDepth(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(page)
	require.NoError(t, err)

	card := findTag(t, tree, "img")
	parent := tree.Parent(card)
	assert.Equal(t, "div", tree.Tag(parent))

	var childTags []string
	for _, c := range tree.Children(parent) {
		childTags = append(childTags, tree.Tag(c))
		assert.Equal(t, tree.Node(parent).Depth+1, tree.Node(c).Depth)
	}
	assert.Equal(t, []string{"img", "span", "b"}, childTags)
}

func TestText_ExcludesScriptAndStyle(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(page)
	require.NoError(t, err)

	body := findTag(t, tree, "body")
	assert.NotContains(t, tree.Text(body), "$1.00")
	assert.NotContains(t, tree.Text(tree.Root()), "color:red")
	assert.Equal(t, "Intro Widget $9.99", tree.StrippedText(body, " "))
	assert.Equal(t, "IntroWidget$9.99", tree.StrippedText(body, ""))
}

func TestHasImage_StrictDescendantsOnly(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(page)
	require.NoError(t, err)

	img := findTag(t, tree, "img")
	assert.False(t, tree.HasImage(img), "an img is not its own descendant")
	assert.True(t, tree.HasImage(tree.Parent(img)))
	assert.True(t, tree.HasImage(findTag(t, tree, "body")))
	assert.False(t, tree.HasImage(findTag(t, tree, "p")))
}

func TestHTML_RendersOuterMarkup(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(page)
	require.NoError(t, err)

	out, err := tree.HTML(findTag(t, tree, "span"))
	require.NoError(t, err)
	assert.Equal(t, "<span>Widget</span>", out)
}

func TestParse_MalformedMarkupDoesNotFail(t *testing.T) {
	t.Parallel()

	tree, err := dom.ParseString(`<div><p>unclosed <b>bold</div><span>`)
	require.NoError(t, err)
	assert.Contains(t, tree.Text(tree.Root()), "bold")
}

func TestParse_DeepNestingIsIterative(t *testing.T) {
	t.Parallel()

	const depth = 2000
	markup := strings.Repeat("<div>", depth) + "deep" + strings.Repeat("</div>", depth)
	tree, err := dom.ParseString(markup)
	require.NoError(t, err)
	assert.Contains(t, tree.Text(tree.Root()), "deep")
}

func TestParse_DeepNestingKeepsStructure(t *testing.T) {
	t.Parallel()

	const depth = 1500
	markup := "<body>" + strings.Repeat("<div>", depth) +
		`<section><script>var price = "$1";</script><img src="a.png"><p>Jam</p></section>` +
		strings.Repeat("</div>", depth) + "<footer>end</footer></body>"
	tree, err := dom.ParseString(markup)
	require.NoError(t, err)

	section := findTag(t, tree, "section")
	assert.Equal(t, depth+2, tree.Node(section).Depth)
	assert.True(t, tree.HasImage(section))
	assert.Equal(t, "Jam", tree.Text(section))

	out, err := tree.HTML(section)
	require.NoError(t, err)
	assert.Equal(t, `<section><script>var price = "$1";</script><img src="a.png"><p>Jam</p></section>`, out)

	footer := findTag(t, tree, "footer")
	assert.Equal(t, findTag(t, tree, "body"), tree.Parent(footer))
	assert.Equal(t, "end", tree.Text(footer))
}
