package defgraph

import (
	"github.com/defview/defgraph/errors"
	"github.com/defview/defgraph/internal/fieldtree"
	"github.com/defview/defgraph/internal/reflink"
	"github.com/defview/defgraph/internal/registry"
)

// Definition is one resolved definition record.
type Definition = registry.Record

// FieldValue is a node of a definition's field tree.
type FieldValue = fieldtree.Value

// FieldKind discriminates field value variants.
type FieldKind = fieldtree.Kind

// Field value variants.
const (
	FieldScalar    = fieldtree.KindScalar
	FieldList      = fieldtree.KindList
	FieldComposite = fieldtree.KindComposite
)

// Edge is a directed reference between two definitions.
type Edge = reflink.Edge

// EdgeKind classifies how a reference was expressed.
type EdgeKind = reflink.EdgeKind

// Edge kinds.
const (
	EdgeField       = reflink.KindField
	EdgeElementName = reflink.KindElementName
	EdgeParent      = reflink.KindParent
)

// Node is one graph entry: a definition with its outbound references and
// the derived inbound references.
type Node struct {
	Definition *Definition
	Outbound   []Edge
	Inbound    []Edge
}

// Graph is the final artifact: every resolved definition addressable by its
// unique name, with stable-ordered bidirectional reference lists and the
// full diagnostics of the run that produced it.
type Graph struct {
	names       []string
	nodes       map[string]*Node
	diagnostics errors.DiagnosticList
}

// Names returns definition names in stable (source) order.
func (g *Graph) Names() []string {
	if g == nil {
		return nil
	}
	return g.names
}

// Node returns the graph entry for name.
func (g *Graph) Node(name string) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.nodes[name]
	return n, ok
}

// Len returns the number of definitions in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}

// Diagnostics returns every diagnostic recorded during the run, in the
// order the conditions were found.
func (g *Graph) Diagnostics() errors.DiagnosticList {
	if g == nil {
		return nil
	}
	return g.diagnostics
}

func buildGraph(reg *registry.Registry, links *reflink.Result, diags errors.DiagnosticList) *Graph {
	g := &Graph{
		nodes:       make(map[string]*Node),
		diagnostics: diags,
	}
	for _, rec := range reg.Records() {
		if rec.Excluded {
			continue
		}
		if current, _ := reg.Lookup(rec.Name); current != rec {
			// An abstract base sharing its name with a concrete definition
			// is reachable as a parent but not separately addressable.
			continue
		}
		g.names = append(g.names, rec.Name)
		g.nodes[rec.Name] = &Node{
			Definition: rec,
			Outbound:   links.Outbound[rec.Name],
			Inbound:    links.Inbound[rec.Name],
		}
	}
	return g
}
