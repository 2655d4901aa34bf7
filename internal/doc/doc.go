package doc

// Document is the parsed form of a material or scene-object file.
// The Prolog and Trailer keep the raw bytes surrounding the root element
// (XML declaration, comments, whitespace) so untouched files serialize
// byte-identically.
//
// Documents are treated as immutable once parsed. Transformations operate
// on a Clone, never on the original, so scale variants cannot contaminate
// each other.
type Document struct {
	Path    string
	Prolog  string
	Root    *Node
	Trailer string
}

// Attr is a single attribute with its raw value text. The value is kept
// exactly as it appears in the source (entities and all) so fields the
// tool does not rewrite round-trip unchanged.
type Attr struct {
	Name  string
	Value string

	leading string // raw whitespace before the attribute name
	quote   byte   // '"' or '\'' (0 means synthesize '"')
}

// Node is one element (or comment) in the document tree. An element holds
// either child elements, with only whitespace and comments between them,
// or raw text content — never both.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Node

	// Comment carries the raw <!-- ... --> bytes for comment nodes;
	// comment nodes have an empty Tag and no other content.
	Comment string

	leading    string // raw whitespace before '<'
	closeSpace string // raw whitespace before '>' or '/>'
	tail       string // raw whitespace between last child and the close tag
	selfClose  bool
}

// IsComment reports whether n is a comment node.
func (n *Node) IsComment() bool {
	return n.Tag == "" && n.Comment != ""
}

// Attr returns the raw value of the named attribute and whether it exists.
func (n *Node) Attr(name string) (string, bool) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			return n.Attrs[i].Value, true
		}
	}
	return "", false
}

// SetAttr replaces the value of an existing attribute, or appends a new
// one when the name is not present. Layout of existing attributes is kept.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Elements returns the element children of n, skipping comments.
func (n *Node) Elements() []*Node {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		if !c.IsComment() {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy of the document, layout included.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		Path:    d.Path,
		Prolog:  d.Prolog,
		Root:    d.Root.Clone(),
		Trailer: d.Trailer,
	}
}

// Clone returns a deep copy of the node and its subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Attrs = append([]Attr(nil), n.Attrs...)
	out.Children = make([]*Node, len(n.Children))
	for i, c := range n.Children {
		out.Children[i] = c.Clone()
	}
	return &out
}

// Equal reports structural equality: tags, attribute names and values in
// order, text content and children. Layout (whitespace, quoting) and the
// source path are ignored.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	return d.Root.Equal(o.Root)
}

// Equal reports structural equality of two subtrees.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Tag != o.Tag || n.Text != o.Text || n.Comment != o.Comment {
		return false
	}
	if len(n.Attrs) != len(o.Attrs) || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Attrs {
		if n.Attrs[i].Name != o.Attrs[i].Name || n.Attrs[i].Value != o.Attrs[i].Value {
			return false
		}
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}
