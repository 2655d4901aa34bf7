package doc

import (
	"fmt"
	"strings"
)

// ParseError reports an unparseable source file with the offending
// position. Parse failures are isolated per file by the orchestrator;
// they never abort sibling files.
type ParseError struct {
	Path string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
}

// Parse reads simulator markup into a Document. Attribute order, unknown
// tags and attributes, comments and surrounding whitespace are all
// preserved so that Bytes() reproduces the input exactly.
func Parse(path string, src []byte) (*Document, error) {
	p := &parser{path: path, src: string(src), line: 1, col: 1}
	return p.document()
}

type parser struct {
	path string
	src  string
	pos  int
	line int
	col  int
}

func (p *parser) errf(format string, args ...any) error {
	return &ParseError{Path: p.path, Line: p.line, Col: p.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) rest() string { return p.src[p.pos:] }

// advance consumes n bytes, tracking line and column.
func (p *parser) advance(n int) string {
	s := p.src[p.pos : p.pos+n]
	for i := 0; i < n; i++ {
		if p.src[p.pos+i] == '\n' {
			p.line++
			p.col = 1
		} else {
			p.col++
		}
	}
	p.pos += n
	return s
}

func (p *parser) whitespace() string {
	start := p.pos
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\r', '\n':
			p.advance(1)
		default:
			return p.src[start:p.pos]
		}
	}
	return p.src[start:p.pos]
}

func isNameStart(c byte) bool {
	return c == '_' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (p *parser) name() (string, error) {
	if p.eof() || !isNameStart(p.peek()) {
		return "", p.errf("expected a name")
	}
	start := p.pos
	for !p.eof() && isNameChar(p.peek()) {
		p.advance(1)
	}
	return p.src[start:p.pos], nil
}

// document consumes the prolog (declaration, comments, whitespace), the
// single root element and the trailer.
func (p *parser) document() (*Document, error) {
	d := &Document{Path: p.path}

	prologStart := p.pos
	for {
		p.whitespace()
		if p.eof() {
			return nil, p.errf("missing root element")
		}
		if strings.HasPrefix(p.rest(), "<?") {
			if err := p.rawUntil("?>"); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(p.rest(), "<!--") {
			if err := p.rawUntil("-->"); err != nil {
				return nil, err
			}
			continue
		}
		if p.peek() == '<' {
			break
		}
		return nil, p.errf("unexpected content before root element")
	}
	d.Prolog = p.src[prologStart:p.pos]

	root, err := p.element()
	if err != nil {
		return nil, err
	}
	d.Root = root

	trailerStart := p.pos
	for {
		p.whitespace()
		if p.eof() {
			break
		}
		if strings.HasPrefix(p.rest(), "<!--") {
			if err := p.rawUntil("-->"); err != nil {
				return nil, err
			}
			continue
		}
		return nil, p.errf("unexpected content after root element")
	}
	d.Trailer = p.src[trailerStart:]
	return d, nil
}

// rawUntil consumes bytes through the given terminator.
func (p *parser) rawUntil(term string) error {
	idx := strings.Index(p.rest(), term)
	if idx < 0 {
		return p.errf("unterminated %q", term)
	}
	p.advance(idx + len(term))
	return nil
}

// element parses one element starting at '<'. The caller owns any leading
// whitespace.
func (p *parser) element() (*Node, error) {
	p.advance(1) // '<'
	tag, err := p.name()
	if err != nil {
		return nil, p.errf("malformed element start tag")
	}
	n := &Node{Tag: tag}

	for {
		ws := p.whitespace()
		if p.eof() {
			return nil, p.errf("unterminated element <%s>", tag)
		}
		if strings.HasPrefix(p.rest(), "/>") {
			n.closeSpace = ws
			n.selfClose = true
			p.advance(2)
			return n, nil
		}
		if p.peek() == '>' {
			n.closeSpace = ws
			p.advance(1)
			break
		}
		if ws == "" {
			return nil, p.errf("expected whitespace before attribute in <%s>", tag)
		}
		attr, err := p.attr()
		if err != nil {
			return nil, err
		}
		attr.leading = ws
		n.Attrs = append(n.Attrs, attr)
	}

	return n, p.content(n)
}

func (p *parser) attr() (Attr, error) {
	name, err := p.name()
	if err != nil {
		return Attr{}, p.errf("malformed attribute")
	}
	if p.eof() || p.peek() != '=' {
		return Attr{}, p.errf("attribute %q is missing '='", name)
	}
	p.advance(1)
	if p.eof() || (p.peek() != '"' && p.peek() != '\'') {
		return Attr{}, p.errf("attribute %q value must be quoted", name)
	}
	quote := p.peek()
	p.advance(1)
	idx := strings.IndexByte(p.rest(), quote)
	if idx < 0 {
		return Attr{}, p.errf("unterminated value for attribute %q", name)
	}
	value := p.advance(idx)
	p.advance(1) // closing quote
	return Attr{Name: name, Value: value, quote: quote}, nil
}

// content parses what follows an open tag: either raw text up to the close
// tag, or a sequence of child elements and comments separated by
// whitespace. Mixing text with elements is rejected.
func (p *parser) content(n *Node) error {
	mark := p.pos
	markLine, markCol := p.line, p.col
	ws := p.whitespace()

	if !p.eof() && p.peek() == '<' && !strings.HasPrefix(p.rest(), "</") {
		// Element-children mode. The run of whitespace just consumed
		// belongs to the first child.
		lead := ws
		for {
			if p.eof() {
				return p.errf("unterminated element <%s>", n.Tag)
			}
			if strings.HasPrefix(p.rest(), "</") {
				n.tail = lead
				return p.closeTag(n.Tag)
			}
			if strings.HasPrefix(p.rest(), "<!--") {
				start := p.pos
				if err := p.rawUntil("-->"); err != nil {
					return err
				}
				n.Children = append(n.Children, &Node{Comment: p.src[start:p.pos], leading: lead})
			} else if p.peek() == '<' {
				child, err := p.element()
				if err != nil {
					return err
				}
				child.leading = lead
				n.Children = append(n.Children, child)
			} else {
				return p.errf("mixed text and elements inside <%s>", n.Tag)
			}
			lead = p.whitespace()
		}
	}

	// Text mode: everything up to the next '<' is raw content.
	p.pos, p.line, p.col = mark, markLine, markCol
	idx := strings.IndexByte(p.rest(), '<')
	if idx < 0 {
		return p.errf("unterminated element <%s>", n.Tag)
	}
	n.Text = p.advance(idx)
	if !strings.HasPrefix(p.rest(), "</") {
		return p.errf("mixed text and elements inside <%s>", n.Tag)
	}
	return p.closeTag(n.Tag)
}

func (p *parser) closeTag(tag string) error {
	p.advance(2) // "</"
	name, err := p.name()
	if err != nil {
		return p.errf("malformed close tag")
	}
	if name != tag {
		return p.errf("close tag </%s> does not match <%s>", name, tag)
	}
	p.whitespace()
	if p.eof() || p.peek() != '>' {
		return p.errf("malformed close tag </%s>", name)
	}
	p.advance(1)
	return nil
}
