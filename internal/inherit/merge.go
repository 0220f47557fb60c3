package inherit

import "github.com/defview/defgraph/internal/fieldtree"

// Merge combines an inherited (parent) tree with a record's own (child)
// tree, returning the effective tree. Rules per field path:
//
//   - scalar present in both: the child's value wins
//   - composite in both: recursive field merge, fields the child does not
//     mention are inherited unchanged
//   - list in both: the child's list replaces the parent's unless it carries
//     the append marker, in which case parent items come first
//   - kind mismatch: the child's value wins
//
// Unmodified subtrees are shared with the parent tree, never copied; both
// inputs are treated as immutable.
func Merge(parent, child *fieldtree.Value) *fieldtree.Value {
	if parent == nil {
		return child
	}
	if child == nil {
		return parent
	}
	switch {
	case parent.Kind == fieldtree.KindComposite && child.Kind == fieldtree.KindComposite:
		return mergeComposite(parent, child)
	case parent.Kind == fieldtree.KindList && child.Kind == fieldtree.KindList:
		return mergeList(parent, child)
	default:
		return child
	}
}

func mergeComposite(parent, child *fieldtree.Value) *fieldtree.Value {
	fields := make([]fieldtree.Field, 0, len(parent.Fields)+len(child.Fields))
	merged := make(map[string]bool, len(parent.Fields))
	for _, pf := range parent.Fields {
		if cv, ok := child.Field(pf.Name); ok {
			merged[pf.Name] = true
			fields = append(fields, fieldtree.Field{Name: pf.Name, Value: Merge(pf.Value, cv)})
			continue
		}
		fields = append(fields, pf)
	}
	for _, cf := range child.Fields {
		if !merged[cf.Name] {
			fields = append(fields, cf)
		}
	}
	return fieldtree.NewComposite(fields...)
}

func mergeList(parent, child *fieldtree.Value) *fieldtree.Value {
	if !child.Append {
		return child
	}
	items := make([]*fieldtree.Value, 0, len(parent.Items)+len(child.Items))
	items = append(items, parent.Items...)
	items = append(items, child.Items...)
	return fieldtree.NewList(items...)
}
