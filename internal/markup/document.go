// Package markup parses a project document — a superset of HTML using
// custom element names (project, outputs, output, assets, asset,
// sequence, fragment, container, app, ffmpeg, upload, style) — into a
// source-ordered tree and resolves each element's style dictionary
// against a minimal CSS cascade (spec §4.1).
package markup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/stylesheet-video/compiler/internal/compileerr"
)

// Attr is a single attribute, kept in source order (html.Node already
// preserves this; we carry it through rather than collapsing to a map
// so callers needing order — e.g. re-serializing a Container's captured
// HTML — don't lose it).
type Attr struct {
	Key, Val string
}

// Node is one element of the parsed document tree, in source order.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string // concatenated text content of this element's direct text children
	InnerHTML string
	Children []*Node
	Line, Col int
}

// Attr looks up an attribute by key, case-insensitively (HTML attribute
// names are case-insensitive).
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// Find returns every descendant (not including n) with the given tag
// name, in source order.
func (n *Node) Find(tag string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if strings.EqualFold(c.Tag, tag) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Document is a parsed project document plus the resolved style
// dictionary for every node in it.
type Document struct {
	Root   *Node
	Styles map[*Node]map[string]string
}

// Parse parses raw markup into a Document with styles resolved against
// any <style> element(s) found in the document plus each node's inline
// style attribute (spec §4.1).
func Parse(src string) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, compileerr.ParseError(0, 0, "malformed markup: "+err.Error())
	}

	// goquery's underlying x/net/html parser always synthesizes an
	// html/head/body skeleton around unknown element names (HTML5
	// treats "project", "sequence", etc. as plain generic elements
	// placed in body). We surface the authored <project> root directly
	// when present, and fall back to body itself — with all of its
	// element children intact — for fragments parsed standalone (e.g.
	// a bare <container> captured for rasterization).
	root := convert(gq.Find("project").First())
	if root == nil {
		root = convert(gq.Find("body").First())
	}
	if root == nil {
		root = convertHTMLNode(gq.Nodes[0])
	}

	sheet := collectStylesheet(root)
	styles := resolveStyles(root, sheet)

	return &Document{Root: root, Styles: styles}, nil
}

func convert(sel *goquery.Selection) *Node {
	if sel == nil || len(sel.Nodes) == 0 {
		return nil
	}
	return convertHTMLNode(sel.Nodes[0])
}

func convertHTMLNode(n *html.Node) *Node {
	if n == nil {
		return nil
	}
	node := &Node{
		Tag:  n.Data,
		Line: 0,
		Col:  0,
	}
	for _, a := range n.Attr {
		node.Attrs = append(node.Attrs, Attr{Key: a.Key, Val: a.Val})
	}
	var textBuf strings.Builder
	var htmlBuf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			textBuf.WriteString(c.Data)
			htmlBuf.WriteString(html.EscapeString(c.Data))
		case html.ElementNode:
			child := convertHTMLNode(c)
			node.Children = append(node.Children, child)
			htmlBuf.WriteString(renderOuterHTML(c))
		}
	}
	node.Text = strings.TrimSpace(textBuf.String())
	node.InnerHTML = htmlBuf.String()
	return node
}

func renderOuterHTML(n *html.Node) string {
	var buf strings.Builder
	_ = html.Render(&buf, n)
	return buf.String()
}
