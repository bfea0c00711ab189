package html

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CollectOptions controls which subtrees of a view become export sections
type CollectOptions struct {
	// Marker is the attribute marking a subtree for export
	Marker string
	// ContainerID names the element exported whole when nothing is marked.
	// The body is used when empty or not found.
	ContainerID string
}

// SectionRef locates one collected section in the document
type SectionRef struct {
	Index    int
	Name     string
	Selector string
	// Fallback is set when the section is the whole container
	Fallback bool
}

// MarkSections collects the marked subtrees in document order and tags each
// with an index attribute so a renderer can select it. Marked elements nested
// in another marked element belong to their ancestor's section. When nothing
// is marked the container is returned as the only section.
func (d *Document) MarkSections(opts CollectOptions) []SectionRef {
	marker := opts.Marker
	if marker == "" {
		marker = DefaultMarker
	}

	var refs []SectionRef
	walk(d.Root, func(n *Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		label, ok := n.GetAttr(marker)
		if !ok {
			return true
		}
		refs = append(refs, d.tag(n, len(refs), label, false))
		return false
	})
	if len(refs) > 0 {
		return refs
	}

	container := d.containerNode(opts.ContainerID)
	if container == nil {
		return nil
	}
	label, _ := container.GetAttr("id")
	return []SectionRef{d.tag(container, 0, label, true)}
}

func (d *Document) tag(n *Node, index int, label string, fallback bool) SectionRef {
	n.SetAttr(IndexAttr, strconv.Itoa(index))
	name := strings.TrimSpace(label)
	if name == "" {
		if id, ok := n.GetAttr("id"); ok && id != "" {
			name = id
		} else {
			name = "section-" + strconv.Itoa(index+1)
		}
	}
	return SectionRef{
		Index:    index,
		Name:     name,
		Selector: indexSelector(index),
		Fallback: fallback,
	}
}

func (d *Document) containerNode(id string) *Node {
	if id != "" {
		if n := d.FindByID(id); n != nil {
			return n
		}
	}
	return d.Find(func(n *Node) bool { return n.IsElement("body") })
}

func atomOf(tag string) atom.Atom {
	return atom.Lookup([]byte(strings.ToLower(tag)))
}

// CollectSections marks and returns the sections of doc
func CollectSections(doc *Document, opts CollectOptions) []SectionRef {
	if doc == nil {
		return nil
	}
	return doc.MarkSections(opts)
}
