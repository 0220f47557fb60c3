// Package rawxml parses one XML definition document into an untyped node
// tree. It has no knowledge of inheritance or cross-references; it preserves
// exactly what the document says, including the distinction between
// self-closing elements and elements with empty content.
package rawxml

import "strings"

// Attr is one attribute in document order.
type Attr struct {
	Name  string
	Value string
}

// Child is either a nested element or a run of significant text.
// Node is nil for text children.
type Child struct {
	Node *Node
	Text string
}

// IsText reports whether the child is a text run.
func (c Child) IsText() bool {
	return c.Node == nil
}

// Node is a parsed XML element. Immutable after Parse returns.
type Node struct {
	Tag      string
	Attrs    []Attr
	Children []Child
	// SelfClosed records <tag/> as distinct from <tag></tag>.
	SelfClosed bool
	// Source is the path the document was parsed from, for diagnostics.
	Source string
	// Offset is the byte offset of the element's opening '<'.
	Offset int64
	Line   int
	Column int
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first element child with the given tag.
func (n *Node) Child(tag string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Node != nil && c.Node.Tag == tag {
			return c.Node
		}
	}
	return nil
}

// Elements returns the element children in document order.
func (n *Node) Elements() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Node != nil {
			out = append(out, c.Node)
		}
	}
	return out
}

// Text returns the concatenated text content of the node.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range n.Children {
		if c.Node == nil {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// HasElementChildren reports whether any child is an element.
func (n *Node) HasElementChildren() bool {
	if n == nil {
		return false
	}
	for _, c := range n.Children {
		if c.Node != nil {
			return true
		}
	}
	return false
}
