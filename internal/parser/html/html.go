package html

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	// DefaultMarker is the attribute that marks a subtree for export
	DefaultMarker = "data-export-section"
	// IndexAttr is written onto every collected element so it can be selected again
	IndexAttr = "data-export-index"
)

// Parser represents an HTML parser
type Parser struct{}

// Node represents an HTML node in the document tree
type Node struct {
	Type        html.NodeType
	Data        string
	Attr        []html.Attribute
	Parent      *Node
	FirstChild  *Node
	LastChild   *Node
	PrevSibling *Node
	NextSibling *Node
}

// Document represents a parsed HTML document
type Document struct {
	Root *Node
}

// NewParser creates a new HTML parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseString parses HTML from a string
func (p *Parser) ParseString(content string) (*Document, error) {
	return p.Parse(strings.NewReader(content))
}

// Parse parses HTML from an io.Reader
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	root := convertNode(node, nil)
	return &Document{Root: root}, nil
}

// convertNode converts an html.Node to our Node structure
func convertNode(n *html.Node, parent *Node) *Node {
	if n == nil {
		return nil
	}

	node := &Node{
		Type:   n.Type,
		Data:   n.Data,
		Attr:   append([]html.Attribute(nil), n.Attr...),
		Parent: parent,
	}

	var lastChild *Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		child := convertNode(c, node)
		if node.FirstChild == nil {
			node.FirstChild = child
		}
		if lastChild != nil {
			lastChild.NextSibling = child
			child.PrevSibling = lastChild
		}
		lastChild = child
	}
	node.LastChild = lastChild

	return node
}

// GetAttr returns the value of an attribute
func (n *Node) GetAttr(key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute
func (n *Node) SetAttr(key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// IsElement reports whether n is an element with the given tag
func (n *Node) IsElement(tag string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

// Find returns the first node in document order for which match is true
func (d *Document) Find(match func(*Node) bool) *Node {
	var found *Node
	walk(d.Root, func(n *Node) bool {
		if found == nil && match(n) {
			found = n
		}
		return found == nil
	})
	return found
}

// FindByID returns the element with the given id
func (d *Document) FindByID(id string) *Node {
	return d.Find(func(n *Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := n.GetAttr("id")
		return ok && v == id
	})
}

// walk visits nodes in document order; visit returns false to skip children
func walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// Render renders the document back to HTML
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, toHTML(d.Root)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// toHTML converts a Node tree back to x/net/html nodes
func toHTML(n *Node) *html.Node {
	node := &html.Node{
		Type: n.Type,
		Data: n.Data,
		Attr: n.Attr,
	}
	if n.Type == html.ElementNode {
		node.DataAtom = atomOf(n.Data)
	}
	var last *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		child := toHTML(c)
		child.Parent = node
		if node.FirstChild == nil {
			node.FirstChild = child
		}
		if last != nil {
			last.NextSibling = child
			child.PrevSibling = last
		}
		last = child
	}
	node.LastChild = last
	return node
}

func indexSelector(i int) string {
	return "[" + IndexAttr + `="` + strconv.Itoa(i) + `"]`
}
