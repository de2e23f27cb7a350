// Package dom parses HTML into a flat arena of element nodes addressed by
// index. Nodes are stored in document order, so a node's ID is also its
// pre-order position, and every walk over the arena is iterative.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeID addresses a node in a Tree.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Node is one element in the arena.
type Node struct {
	Tag      string
	Parent   NodeID
	Children []NodeID
	Depth    int

	src *html.Node
	// [rawStart, rawEnd) indexes Tree.raw when src is nil.
	rawStart int
	rawEnd   int

	// [textStart, textEnd) indexes Tree.texts for the subtree's text.
	textStart int
	textEnd   int
	isImage   bool
	// hasImage is true when a strict descendant is an <img>.
	hasImage bool
}

// Tree owns every node of one parsed page. It is read-only after Parse and
// safe for concurrent readers.
type Tree struct {
	nodes []Node
	texts []string
	raw   []byte
}

// Subtrees whose text is never rendered.
var invisible = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// ParseString parses s. See Parse.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads an HTML document. Malformed markup is repaired the way a
// browser would; only read errors are returned. Documents the HTML5 parser
// refuses, such as ones nested past its open-element limit, are built
// straight from the token stream instead.
func Parse(r io.Reader) (*Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return buildTokens(src), nil
	}
	return build(doc), nil
}

type frame struct {
	n      *html.Node
	parent NodeID
}

func build(doc *html.Node) *Tree {
	t := &Tree{}
	stack := []frame{{n: doc, parent: NoNode}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parent := f.parent
		switch f.n.Type {
		case html.ElementNode:
			parent = t.add(f.n, f.parent)
			if invisible[f.n.DataAtom] {
				continue
			}
		case html.TextNode:
			if f.parent != NoNode {
				t.texts = append(t.texts, f.n.Data)
				t.nodes[f.parent].textEnd = len(t.texts)
			}
			continue
		case html.DocumentNode:
		default:
			continue
		}

		for c := f.n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, frame{n: c, parent: parent})
		}
	}

	t.finish()
	return t
}

// finish folds text spans and image flags into every ancestor. Children
// always follow their parent, so a reverse sweep sees every child before
// its parent.
func (t *Tree) finish() {
	for id := len(t.nodes) - 1; id >= 0; id-- {
		n := &t.nodes[id]
		if n.Parent == NoNode {
			continue
		}
		p := &t.nodes[n.Parent]
		if n.textEnd > p.textEnd {
			p.textEnd = n.textEnd
		}
		if n.isImage || n.hasImage {
			p.hasImage = true
		}
	}
}

func (t *Tree) add(n *html.Node, parent NodeID) NodeID {
	id := t.addTag(n.Data, n.DataAtom, parent)
	t.nodes[id].src = n
	return id
}

func (t *Tree) addTag(tag string, a atom.Atom, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	depth := 0
	if parent != NoNode {
		depth = t.nodes[parent].Depth + 1
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	}
	t.nodes = append(t.nodes, Node{
		Tag:       tag,
		Parent:    parent,
		Depth:     depth,
		textStart: len(t.texts),
		textEnd:   len(t.texts),
		isImage:   a == atom.Img,
	})
	return id
}

// Len is the number of element nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Root is the document element, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if len(t.nodes) == 0 {
		return NoNode
	}
	return 0
}

// Node returns the node at id. It panics on an out-of-range id.
func (t *Tree) Node(id NodeID) *Node { return &t.nodes[id] }

func (t *Tree) Tag(id NodeID) string { return t.nodes[id].Tag }
func (t *Tree) Parent(id NodeID) NodeID { return t.nodes[id].Parent }
func (t *Tree) Children(id NodeID) []NodeID { return t.nodes[id].Children }

// HasImage reports whether a strict descendant of id is an <img>.
func (t *Tree) HasImage(id NodeID) bool { return t.nodes[id].hasImage }

// Text is the concatenation of every visible text node under id.
func (t *Tree) Text(id NodeID) string {
	n := &t.nodes[id]
	return strings.Join(t.texts[n.textStart:n.textEnd], "")
}

// StrippedText trims each text node under id, drops empty ones and joins
// the rest with sep.
func (t *Tree) StrippedText(id NodeID, sep string) string {
	n := &t.nodes[id]
	var b strings.Builder
	for _, s := range t.texts[n.textStart:n.textEnd] {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(s)
	}
	return b.String()
}

// HTML renders the outer HTML of id. Nodes built from the token stream
// return their source bytes unchanged.
func (t *Tree) HTML(id NodeID) (string, error) {
	n := &t.nodes[id]
	if n.src == nil {
		return string(t.raw[n.rawStart:n.rawEnd]), nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n.src); err != nil {
		return "", fmt.Errorf("render node %d: %w", id, err)
	}
	return buf.String(), nil
}
