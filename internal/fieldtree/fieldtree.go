// Package fieldtree models a definition's field values as a closed variant
// tree: scalar leaves, ordered lists, and named-field composites. Trees are
// built once from raw XML nodes and treated as immutable afterwards, which
// lets resolved trees share unmodified subtrees across definitions.
package fieldtree

import "github.com/defview/defgraph/internal/rawxml"

// Kind discriminates the value variants.
type Kind uint8

const (
	// KindScalar is a leaf string value.
	KindScalar Kind = iota
	// KindList is an ordered sequence of values.
	KindList
	// KindComposite is an ordered mapping from field name to value.
	KindComposite
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Field is one named entry of a composite, in declaration order.
type Field struct {
	Name  string
	Value *Value
}

// Value is a node of a field tree. Exactly one variant payload is populated
// according to Kind.
type Value struct {
	Kind   Kind
	Scalar string
	Items  []*Value
	Fields []Field
	// Append marks a list that extends the inherited list instead of
	// replacing it during merge.
	Append bool
}

// NewScalar builds a scalar value.
func NewScalar(s string) *Value {
	return &Value{Kind: KindScalar, Scalar: s}
}

// NewList builds a list value.
func NewList(items ...*Value) *Value {
	return &Value{Kind: KindList, Items: items}
}

// NewComposite builds a composite value.
func NewComposite(fields ...Field) *Value {
	return &Value{Kind: KindComposite, Fields: fields}
}

// Field returns the value of the named composite field.
func (v *Value) Field(name string) (*Value, bool) {
	if v == nil || v.Kind != KindComposite {
		return nil, false
	}
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Config controls how raw XML nodes map onto the variant model.
type Config struct {
	// ListItemTag is the element tag marking list members (default "li").
	ListItemTag string
	// MergeAttr is the attribute carrying the list merge mode.
	MergeAttr string
	// MergeAppendValue is the MergeAttr value selecting append semantics.
	MergeAppendValue string
}

// DefaultConfig returns the conversion defaults used by the def corpus.
func DefaultConfig() Config {
	return Config{
		ListItemTag:      "li",
		MergeAttr:        "Inherit",
		MergeAppendValue: "append",
	}
}

// FromNode converts an element's content to a field tree. An element with no
// element children becomes a scalar of its text (empty for self-closed
// elements); an element whose element children are all list items becomes a
// list; anything else becomes a composite of its element children. Mixed
// text between element children carries no meaning in the def corpus and is
// dropped.
func FromNode(n *rawxml.Node, cfg Config) *Value {
	if n == nil {
		return NewScalar("")
	}
	elems := n.Elements()
	if len(elems) == 0 {
		return NewScalar(n.Text())
	}
	if isListNode(elems, cfg) {
		items := make([]*Value, len(elems))
		for i, e := range elems {
			items[i] = FromNode(e, cfg)
		}
		v := NewList(items...)
		if mode, ok := n.Attr(cfg.MergeAttr); ok && mode == cfg.MergeAppendValue {
			v.Append = true
		}
		return v
	}
	fields := make([]Field, 0, len(elems))
	for _, e := range elems {
		value := FromNode(e, cfg)
		if i := fieldIndex(fields, e.Tag); i >= 0 {
			// A repeated field name keeps its first position, last value.
			fields[i].Value = value
			continue
		}
		fields = append(fields, Field{Name: e.Tag, Value: value})
	}
	return NewComposite(fields...)
}

func isListNode(elems []*rawxml.Node, cfg Config) bool {
	for _, e := range elems {
		if e.Tag != cfg.ListItemTag {
			return false
		}
	}
	return true
}

func fieldIndex(fields []Field, name string) int {
	for i := range fields {
		if fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Equal reports structural equality of two trees.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindScalar:
		return a.Scalar == b.Scalar
	case KindList:
		if len(a.Items) != len(b.Items) || a.Append != b.Append {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case KindComposite:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name {
				return false
			}
			if !Equal(a.Fields[i].Value, b.Fields[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
