package rawxml

import (
	"bytes"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxDepth bounds element nesting so hostile input cannot exhaust the stack.
const maxDepth = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse builds the node tree for one XML document. source is recorded on
// every node for diagnostics. The returned root is the document element.
func Parse(source string, data []byte) (*Node, error) {
	p := &parser{source: source, data: data}
	for i, c := range data {
		if c == '\n' {
			p.lines = append(p.lines, i)
		}
	}
	if bytes.HasPrefix(p.data, utf8BOM) {
		p.pos = len(utf8BOM)
	}
	if err := p.skipMisc(); err != nil {
		return nil, err
	}
	if p.pos >= len(p.data) {
		return nil, p.errAt(p.pos, errMissingRoot)
	}
	root, err := p.parseElement(0)
	if err != nil {
		return nil, err
	}
	if err := p.skipMisc(); err != nil {
		return nil, err
	}
	if p.pos < len(p.data) {
		if p.data[p.pos] == '<' {
			return nil, p.errAt(p.pos, errMultipleRoots)
		}
		return nil, p.errAt(p.pos, errContentOutsideRoot)
	}
	return root, nil
}

type parser struct {
	source string
	data   []byte
	pos    int
	// lines holds the offset of every '\n', built once so position lookups
	// stay cheap on documents with many thousands of elements.
	lines []int
}

func (p *parser) errAt(offset int, cause error) error {
	line, column := p.lineCol(offset)
	return &SyntaxError{
		Source: p.source,
		Offset: int64(offset),
		Line:   line,
		Column: column,
		Err:    cause,
	}
}

// skipMisc consumes whitespace, comments, processing instructions, the XML
// declaration, and a DOCTYPE between markup at document level.
func (p *parser) skipMisc() error {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			p.pos++
			continue
		}
		if c != '<' || p.pos+1 >= len(p.data) {
			return nil
		}
		switch p.data[p.pos+1] {
		case '?':
			if err := p.skipPI(); err != nil {
				return err
			}
		case '!':
			if bytes.HasPrefix(p.data[p.pos:], []byte("<!--")) {
				if err := p.skipComment(); err != nil {
					return err
				}
				continue
			}
			if err := p.skipDoctype(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *parser) skipComment() error {
	start := p.pos
	end := bytes.Index(p.data[p.pos+4:], []byte("-->"))
	if end < 0 {
		return p.errAt(start, errInvalidComment)
	}
	// "--" is not permitted inside a comment body.
	if bytes.Contains(p.data[p.pos+4:p.pos+4+end], []byte("--")) {
		return p.errAt(start, errInvalidComment)
	}
	p.pos += 4 + end + 3
	return nil
}

func (p *parser) skipPI() error {
	start := p.pos
	end := bytes.Index(p.data[p.pos+2:], []byte("?>"))
	if end < 0 {
		return p.errAt(start, errUnexpectedEOF)
	}
	p.pos += 2 + end + 2
	return nil
}

func (p *parser) skipDoctype() error {
	start := p.pos
	depth := 0
	for i := p.pos; i < len(p.data); i++ {
		switch p.data[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '>':
			if depth <= 0 {
				p.pos = i + 1
				return nil
			}
		}
	}
	return p.errAt(start, errUnexpectedEOF)
}

// parseElement parses the element starting at p.pos (which must be '<').
func (p *parser) parseElement(depth int) (*Node, error) {
	if depth >= maxDepth {
		return nil, p.errAt(p.pos, errDepthLimit)
	}
	start := p.pos
	p.pos++ // consume '<'
	name, err := p.readName()
	if err != nil {
		return nil, err
	}
	line, column := p.lineCol(start)
	node := &Node{
		Tag:    name,
		Source: p.source,
		Offset: int64(start),
		Line:   line,
		Column: column,
	}
	if err := p.parseAttrs(node); err != nil {
		return nil, err
	}
	if p.pos >= len(p.data) {
		return nil, p.errAt(start, errUnterminatedTag)
	}
	if p.data[p.pos] == '/' {
		if p.pos+1 >= len(p.data) || p.data[p.pos+1] != '>' {
			return nil, p.errAt(p.pos, errUnterminatedTag)
		}
		p.pos += 2
		node.SelfClosed = true
		return node, nil
	}
	if p.data[p.pos] != '>' {
		return nil, p.errAt(p.pos, errUnterminatedTag)
	}
	p.pos++
	if err := p.parseContent(node, depth); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *parser) parseAttrs(node *Node) error {
	for {
		if !p.skipSpace() {
			return p.errAt(len(p.data), errUnexpectedEOF)
		}
		c := p.data[p.pos]
		if c == '>' || c == '/' {
			return nil
		}
		attrStart := p.pos
		name, err := p.readName()
		if err != nil {
			return err
		}
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != '=' {
			return p.errAt(attrStart, errInvalidToken)
		}
		p.pos++
		p.skipSpace()
		if p.pos >= len(p.data) {
			return p.errAt(attrStart, errUnexpectedEOF)
		}
		quote := p.data[p.pos]
		if quote != '"' && quote != '\'' {
			return p.errAt(p.pos, errInvalidToken)
		}
		p.pos++
		valueStart := p.pos
		end := bytes.IndexByte(p.data[p.pos:], quote)
		if end < 0 {
			return p.errAt(valueStart, errUnexpectedEOF)
		}
		raw := p.data[valueStart : valueStart+end]
		if bytes.IndexByte(raw, '<') >= 0 {
			return p.errAt(valueStart, errInvalidToken)
		}
		value, err := p.unescape(raw, valueStart)
		if err != nil {
			return err
		}
		for _, existing := range node.Attrs {
			if existing.Name == name {
				return p.errAt(attrStart, errDuplicateAttr)
			}
		}
		node.Attrs = append(node.Attrs, Attr{Name: name, Value: value})
		p.pos = valueStart + end + 1
	}
}

// parseContent consumes children until the matching end tag.
func (p *parser) parseContent(node *Node, depth int) error {
	for {
		textStart := p.pos
		lt := bytes.IndexByte(p.data[p.pos:], '<')
		if lt < 0 {
			return p.errAt(int(node.Offset), errUnterminatedTag)
		}
		if lt > 0 {
			if err := p.appendText(node, p.data[textStart:textStart+lt], textStart); err != nil {
				return err
			}
			p.pos += lt
		}
		// p.pos is at '<'
		if p.pos+1 >= len(p.data) {
			return p.errAt(p.pos, errUnexpectedEOF)
		}
		switch p.data[p.pos+1] {
		case '/':
			tagStart := p.pos
			p.pos += 2
			name, err := p.readName()
			if err != nil {
				return err
			}
			if name != node.Tag {
				return p.errAt(tagStart, errMismatchedEndTag)
			}
			p.skipSpace()
			if p.pos >= len(p.data) || p.data[p.pos] != '>' {
				return p.errAt(tagStart, errUnterminatedTag)
			}
			p.pos++
			return nil
		case '!':
			if bytes.HasPrefix(p.data[p.pos:], []byte("<!--")) {
				if err := p.skipComment(); err != nil {
					return err
				}
				continue
			}
			if bytes.HasPrefix(p.data[p.pos:], []byte("<![CDATA[")) {
				if err := p.parseCDATA(node); err != nil {
					return err
				}
				continue
			}
			return p.errAt(p.pos, errInvalidToken)
		case '?':
			if err := p.skipPI(); err != nil {
				return err
			}
		default:
			child, err := p.parseElement(depth + 1)
			if err != nil {
				return err
			}
			node.Children = append(node.Children, Child{Node: child})
		}
	}
}

func (p *parser) parseCDATA(node *Node) error {
	start := p.pos
	body := p.pos + len("<![CDATA[")
	end := bytes.Index(p.data[body:], []byte("]]>"))
	if end < 0 {
		return p.errAt(start, errUnexpectedEOF)
	}
	text := string(p.data[body : body+end])
	if text != "" {
		node.Children = append(node.Children, Child{Text: text})
	}
	p.pos = body + end + 3
	return nil
}

// appendText adds a text child unless the run is whitespace-only.
// Significant text is preserved verbatim after entity expansion.
func (p *parser) appendText(node *Node, raw []byte, offset int) error {
	text, err := p.unescape(raw, offset)
	if err != nil {
		return err
	}
	if isWhitespaceOnly(text) {
		return nil
	}
	node.Children = append(node.Children, Child{Text: text})
	return nil
}

func isWhitespaceOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func (p *parser) skipSpace() bool {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return true
		}
	}
	return false
}

func (p *parser) readName() (string, error) {
	start := p.pos
	for p.pos < len(p.data) && isNameByte(p.data[p.pos], p.pos == start) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errAt(start, errInvalidName)
	}
	return string(p.data[start:p.pos]), nil
}

// isNameByte accepts the ASCII subset of XML names, which covers the
// definition corpus. Multi-byte runes are accepted without classification.
func isNameByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == ':':
		return true
	case c >= 0x80:
		return true
	case first:
		return false
	case c >= '0' && c <= '9', c == '-', c == '.':
		return true
	default:
		return false
	}
}

// lineCol converts a byte offset to a 1-based line and column via the
// newline index.
func (p *parser) lineCol(offset int) (int, int) {
	idx := sort.SearchInts(p.lines, offset)
	lineStart := 0
	if idx > 0 {
		lineStart = p.lines[idx-1] + 1
	}
	return idx + 1, offset - lineStart + 1
}

var standardEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

// unescape expands entity and character references. Unknown entities are an
// error, not a pass-through.
func (p *parser) unescape(raw []byte, offset int) (string, error) {
	amp := bytes.IndexByte(raw, '&')
	if amp < 0 {
		return string(raw), nil
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '&' {
			b.WriteByte(raw[i])
			continue
		}
		semi := bytes.IndexByte(raw[i+1:], ';')
		if semi < 0 {
			return "", p.errAt(offset+i, errInvalidEntity)
		}
		ref := string(raw[i+1 : i+1+semi])
		if ref == "" {
			return "", p.errAt(offset+i, errInvalidEntity)
		}
		if ref[0] == '#' {
			r, ok := parseCharRef(ref[1:])
			if !ok {
				return "", p.errAt(offset+i, errInvalidCharRef)
			}
			b.WriteRune(r)
		} else {
			replacement, ok := standardEntities[ref]
			if !ok {
				return "", p.errAt(offset+i, errInvalidEntity)
			}
			b.WriteString(replacement)
		}
		i += semi + 1
	}
	return b.String(), nil
}

func parseCharRef(ref string) (rune, bool) {
	if ref == "" {
		return 0, false
	}
	base := 10
	if ref[0] == 'x' || ref[0] == 'X' {
		base = 16
		ref = ref[1:]
		if ref == "" {
			return 0, false
		}
	}
	var n int64
	for _, c := range ref {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case base == 16 && c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case base == 16 && c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			return 0, false
		}
		n = n*int64(base) + d
		if n > utf8.MaxRune {
			return 0, false
		}
	}
	r := rune(n)
	if !utf8.ValidRune(r) || r == 0 {
		return 0, false
	}
	return r, true
}
