package dom

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements that never take an end tag.
var void = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Base:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Param:  true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

// buildTokens builds the arena from the raw token stream. It keeps only an
// explicit stack of open elements, so nesting depth is unbounded. An end tag
// closes the nearest open element of the same name and everything opened
// after it; an end tag with no open match is dropped. Tree construction
// rules beyond that (implied ends, foster parenting) are not applied.
//
// The root is a synthetic <html> element spanning the whole input. Node
// markup is served from the source bytes.
func buildTokens(src []byte) *Tree {
	t := &Tree{raw: src}
	root := t.addTag("html", atom.Html, NoNode)
	open := []NodeID{root}

	var (
		z          = html.NewTokenizer(bytes.NewReader(src))
		off        int
		hidden     atom.Atom
		hiddenID   NodeID
		hiddenOpen int
	)

	closeFrom := func(i, at int) {
		for _, id := range open[i:] {
			t.nodes[id].rawEnd = at
		}
		open = open[:i]
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF is the only error a bytes.Reader yields.
			break
		}
		start := off
		off += len(z.Raw())

		if hidden != 0 {
			switch tt {
			case html.StartTagToken:
				if name, _ := z.TagName(); atom.Lookup(name) == hidden {
					hiddenOpen++
				}
			case html.EndTagToken:
				if name, _ := z.TagName(); atom.Lookup(name) == hidden {
					hiddenOpen--
				}
			}
			if hiddenOpen == 0 {
				t.nodes[hiddenID].rawEnd = off
				hidden = 0
			}
			continue
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Html {
				continue
			}
			id := t.addTag(string(name), a, open[len(open)-1])
			t.nodes[id].rawStart = start
			switch {
			case tt == html.SelfClosingTagToken || void[a]:
				t.nodes[id].rawEnd = off
			case invisible[a]:
				hidden, hiddenID, hiddenOpen = a, id, 1
			default:
				open = append(open, id)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			for i := len(open) - 1; i > 0; i-- {
				if t.nodes[open[i]].Tag != tag {
					continue
				}
				closeFrom(i+1, start)
				t.nodes[open[i]].rawEnd = off
				open = open[:i]
				break
			}

		case html.TextToken:
			parent := open[len(open)-1]
			t.texts = append(t.texts, string(z.Text()))
			t.nodes[parent].textEnd = len(t.texts)
		}
	}

	if hidden != 0 {
		t.nodes[hiddenID].rawEnd = len(src)
	}
	closeFrom(0, len(src))
	t.nodes[root].rawStart = 0

	t.finish()
	return t
}
