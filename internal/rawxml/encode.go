package rawxml

import (
	"strings"
)

// Encode renders the node back to indented XML. Self-closed elements render
// as <tag />, distinct from <tag></tag>, so a parse/encode cycle preserves
// the distinction.
func Encode(n *Node) string {
	var b strings.Builder
	encodeNode(&b, n, 0)
	return b.String()
}

func encodeNode(b *strings.Builder, n *Node, indent int) {
	if n == nil {
		return
	}
	pad := strings.Repeat("  ", indent)
	b.WriteString(pad)
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	if n.SelfClosed {
		b.WriteString(" />\n")
		return
	}
	if len(n.Children) == 0 {
		b.WriteString("></")
		b.WriteString(n.Tag)
		b.WriteString(">\n")
		return
	}
	if !n.HasElementChildren() {
		// Text-only content stays on one line.
		b.WriteByte('>')
		b.WriteString(escapeText(n.Text()))
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteString(">\n")
		return
	}
	b.WriteString(">\n")
	childPad := strings.Repeat("  ", indent+1)
	for _, c := range n.Children {
		if c.Node != nil {
			encodeNode(b, c.Node, indent+1)
			continue
		}
		b.WriteString(childPad)
		b.WriteString(escapeText(c.Text))
		b.WriteByte('\n')
	}
	b.WriteString(pad)
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteString(">\n")
}

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
