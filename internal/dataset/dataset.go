// Package dataset shapes a resolved definition graph into the packaged form
// consumed by the viewer: definitions grouped by kind, with presentation
// metadata (labels, tags, structure stats, raw XML), plus a dataset-level
// stats block. Every field and every edge delivered by the core is preserved
// exactly; this package only groups and serializes.
package dataset

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/defview/defgraph/internal/fieldtree"
	"github.com/defview/defgraph/internal/rawxml"
	"github.com/defview/defgraph/internal/reflink"
	"github.com/defview/defgraph/internal/registry"
)

// Entry is one graph node handed over by the core.
type Entry struct {
	Record   *registry.Record
	Outbound []reflink.Edge
	Inbound  []reflink.Edge
}

// Dataset is the serialized artifact.
type Dataset struct {
	Categories []Category `json:"categories"`
	Stats      Stats      `json:"stats"`
}

// Category groups definitions of one kind.
type Category struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Count       int    `json:"count"`
	Definitions []Def  `json:"definitions"`
}

// Def is one definition as packaged.
type Def struct {
	Name          string      `json:"def_name"`
	Kind          string      `json:"def_type"`
	Label         string      `json:"label,omitempty"`
	Description   string      `json:"description,omitempty"`
	Parent        string      `json:"parent_name,omitempty"`
	Abstract      bool        `json:"is_abstract"`
	Source        string      `json:"file_path"`
	Extension     string      `json:"extension"`
	Tags          []string    `json:"tags,omitempty"`
	Structure     *Structure  `json:"stats,omitempty"`
	Fields        []FlatField `json:"elements,omitempty"`
	ReferencesOut []Reference `json:"references_out,omitempty"`
	ReferencesIn  []Reference `json:"references_in,omitempty"`
	// CodeReferences lists Class attribute values from the raw tree; they
	// name game code classes, not other definitions.
	CodeReferences []string `json:"code_references,omitempty"`
	RawXML         string   `json:"raw_xml"`
}

// Reference is one edge endpoint as packaged.
type Reference struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Kind     string `json:"kind"`
	Abstract bool   `json:"is_abstract,omitempty"`
}

// Structure summarizes a definition's shape.
type Structure struct {
	ElementCount        int  `json:"element_count"`
	MaxDepth            int  `json:"max_depth"`
	HasComplexStructure bool `json:"has_complex_structure"`
}

// FlatField is one row of the bounded field preview.
type FlatField struct {
	Name        string `json:"name"`
	Content     string `json:"content,omitempty"`
	Depth       int    `json:"depth"`
	Attributes  string `json:"attributes,omitempty"`
	HasChildren bool   `json:"has_children"`
}

// Stats is the dataset-level summary.
type Stats struct {
	TotalDefs       int    `json:"total_defs"`
	TotalCategories int    `json:"total_categories"`
	TotalFiles      int    `json:"total_files"`
	GameVersion     string `json:"game_version,omitempty"`
	GeneratedAt     string `json:"generated_at"`
}

const (
	previewTopElements = 15
	previewMaxDepth    = 3
	previewMaxRows     = 50
	complexElementMin  = 20
	complexDepthMin    = 4
)

// Build groups entries into a dataset. Entry order does not matter; output
// ordering is fully determined by category display names and definition
// names. gameVersion is caller-supplied (the exporter never touches the
// filesystem) and may be empty.
func Build(entries []Entry, generatedAt time.Time, gameVersion string) *Dataset {
	byKind := make(map[string][]Def)
	files := make(map[string]bool)
	for _, e := range entries {
		rec := e.Record
		byKind[rec.Kind] = append(byKind[rec.Kind], buildDef(e))
		files[rec.Source] = true
	}

	categories := make([]Category, 0, len(byKind))
	total := 0
	for kind, defs := range byKind {
		sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
		total += len(defs)
		categories = append(categories, Category{
			Name:        kind,
			DisplayName: displayName(kind),
			Count:       len(defs),
			Definitions: defs,
		})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].DisplayName < categories[j].DisplayName })

	return &Dataset{
		Categories: categories,
		Stats: Stats{
			TotalDefs:       total,
			TotalCategories: len(categories),
			TotalFiles:      len(files),
			GameVersion:     gameVersion,
			GeneratedAt:     generatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		},
	}
}

func buildDef(e Entry) Def {
	rec := e.Record
	d := Def{
		Name:           rec.Name,
		Kind:           rec.Kind,
		Label:          scalarField(rec.Resolved, "label"),
		Description:    scalarField(rec.Resolved, "description"),
		Parent:         rec.Parent,
		Abstract:       rec.Abstract,
		Source:         rec.Source,
		Extension:      contentPackage(rec.Source),
		Tags:           buildTags(rec),
		Structure:      buildStructure(rec.Raw),
		Fields:         flatten(rec.Raw),
		ReferencesOut:  references(e.Outbound, false),
		ReferencesIn:   references(e.Inbound, true),
		CodeReferences: classReferences(rec.Raw),
		RawXML:         rawxml.Encode(rec.Raw),
	}
	return d
}

// classAttr carries the game class implementing an element in the source
// corpus.
const classAttr = "Class"

// classReferences collects Class attribute values from the raw tree, first
// occurrence order, deduplicated.
func classReferences(n *rawxml.Node) []string {
	var out []string
	seen := make(map[string]bool)
	var visit func(*rawxml.Node)
	visit = func(n *rawxml.Node) {
		if v, ok := n.Attr(classAttr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
		for _, child := range n.Elements() {
			visit(child)
		}
	}
	visit(n)
	return out
}

func scalarField(v *fieldtree.Value, name string) string {
	f, ok := v.Field(name)
	if !ok || f.Kind != fieldtree.KindScalar {
		return ""
	}
	return f.Scalar
}

// references converts edges to packaged endpoints. For inbound edges the
// interesting name is the source, for outbound the target.
func references(edges []reflink.Edge, inbound bool) []Reference {
	out := make([]Reference, 0, len(edges))
	for _, e := range edges {
		name := e.Target
		if inbound {
			name = e.Source
		}
		out = append(out, Reference{
			Name:     name,
			Path:     e.Path,
			Kind:     e.Kind.String(),
			Abstract: e.ToAbstract && !inbound,
		})
	}
	return out
}

// buildTags derives browse tags from inheritance state and the presence of
// well-known resolved fields.
func buildTags(rec *registry.Record) []string {
	var tags []string
	if rec.Abstract {
		tags = append(tags, "Abstract")
	}
	if rec.Parent != "" {
		tags = append(tags, "Inherits")
	}
	fieldTags := []struct {
		field string
		tag   string
	}{
		{"costList", "Craftable"},
		{"researchPrerequisites", "Research Required"},
		{"statBases", "Has Stats"},
		{"comps", "Has Components"},
		{"recipes", "Has Recipes"},
	}
	for _, ft := range fieldTags {
		if _, ok := rec.Resolved.Field(ft.field); ok {
			tags = append(tags, ft.tag)
		}
	}
	return tags
}

func buildStructure(n *rawxml.Node) *Structure {
	elems := n.Elements()
	if len(elems) == 0 {
		return nil
	}
	count := 0
	depth := 0
	for _, e := range elems {
		c, d := measure(e, 1)
		count += c
		if d > depth {
			depth = d
		}
	}
	return &Structure{
		ElementCount:        count,
		MaxDepth:            depth,
		HasComplexStructure: count > complexElementMin || depth > complexDepthMin,
	}
}

func measure(n *rawxml.Node, depth int) (int, int) {
	count := 1
	maxDepth := depth
	for _, child := range n.Elements() {
		c, d := measure(child, depth+1)
		count += c
		if d > maxDepth {
			maxDepth = d
		}
	}
	return count, maxDepth
}

// flatten renders a bounded preview of the definition's elements.
func flatten(n *rawxml.Node) []FlatField {
	var rows []FlatField
	elems := n.Elements()
	if len(elems) > previewTopElements {
		elems = elems[:previewTopElements]
	}
	for _, e := range elems {
		rows = flattenInto(rows, e, 0)
		if len(rows) >= previewMaxRows {
			break
		}
	}
	return rows
}

func flattenInto(rows []FlatField, n *rawxml.Node, depth int) []FlatField {
	if depth > previewMaxDepth || len(rows) >= previewMaxRows {
		return rows
	}
	var attrs []string
	for _, a := range n.Attrs {
		attrs = append(attrs, a.Name+`="`+a.Value+`"`)
	}
	content := ""
	if !n.HasElementChildren() {
		content = n.Text()
	}
	rows = append(rows, FlatField{
		Name:        n.Tag,
		Content:     content,
		Depth:       depth,
		Attributes:  strings.Join(attrs, " "),
		HasChildren: n.HasElementChildren(),
	})
	children := n.Elements()
	if len(children) > 5 {
		children = children[:5]
	}
	for _, child := range children {
		rows = flattenInto(rows, child, depth+1)
	}
	return rows
}

// contentPackage derives the content package from path segments.
func contentPackage(source string) string {
	lower := strings.ToLower(source)
	for _, pkg := range []string{"anomaly", "biotech", "ideology", "royalty", "odyssey", "core"} {
		if strings.Contains(lower, pkg) {
			return strings.ToUpper(pkg[:1]) + pkg[1:]
		}
	}
	return "Unknown"
}

// displayName converts a camelCase kind to spaced title case.
func displayName(name string) string {
	var b strings.Builder
	prevLower := false
	for i, r := range name {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			if unicode.IsUpper(r) && prevLower {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
		}
		prevLower = unicode.IsLower(r)
	}
	return b.String()
}
