package doc

import (
	"strings"
)

// Bytes serializes the document. A parsed document that has not been
// transformed reproduces its source byte for byte; rewritten fields only
// replace their own value token. Hand-built documents get a minimal
// layout that parses back to an equal document.
func (d *Document) Bytes() []byte {
	var b strings.Builder
	b.WriteString(d.Prolog)
	d.Root.write(&b)
	b.WriteString(d.Trailer)
	return []byte(b.String())
}

// String returns the serialized document as text.
func (d *Document) String() string {
	return string(d.Bytes())
}

func (n *Node) write(b *strings.Builder) {
	b.WriteString(n.leading)
	if n.IsComment() {
		b.WriteString(n.Comment)
		return
	}

	b.WriteByte('<')
	b.WriteString(n.Tag)
	for i := range n.Attrs {
		a := &n.Attrs[i]
		if a.leading == "" {
			b.WriteByte(' ')
		} else {
			b.WriteString(a.leading)
		}
		b.WriteString(a.Name)
		b.WriteByte('=')
		q := a.quote
		if q == 0 {
			q = '"'
		}
		b.WriteByte(q)
		b.WriteString(a.Value)
		b.WriteByte(q)
	}
	b.WriteString(n.closeSpace)

	if n.selfClose {
		b.WriteString("/>")
		return
	}

	b.WriteByte('>')
	if len(n.Children) > 0 {
		for _, c := range n.Children {
			c.write(b)
		}
		b.WriteString(n.tail)
	} else {
		b.WriteString(n.Text)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}
