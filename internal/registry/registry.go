// Package registry aggregates raw definition nodes from all parsed documents
// into a write-once collection keyed by definition name, detecting duplicate
// names in the process. Input documents must arrive sorted by source path so
// duplicate reporting is stable across runs.
package registry

import (
	"fmt"
	"path"
	"strings"

	"github.com/defview/defgraph/errors"
	"github.com/defview/defgraph/internal/fieldtree"
	"github.com/defview/defgraph/internal/rawxml"
)

// Record is one definition: identity, inheritance links, and its field tree.
// Resolved and the exclusion state are written exactly once by the
// inheritance resolver; everything else is immutable after Build.
type Record struct {
	// Name is the unique key the definition is addressed by.
	Name string
	// Parent is the name of the inherited definition, empty for roots.
	Parent string
	// Abstract definitions serve only as inheritance bases.
	Abstract bool
	// Kind is the definition's element tag (e.g. ThingDef).
	Kind string
	// Raw is the definition's element as parsed.
	Raw *rawxml.Node
	// Fields is the definition's own field tree, before inheritance.
	Fields *fieldtree.Value
	// Resolved is the flattened field tree after inheritance, nil until the
	// resolver runs, and nil forever for excluded records.
	Resolved *fieldtree.Value
	// Excluded is set when the record was dropped from the graph (missing
	// parent or inheritance cycle).
	Excluded bool
	// Source is the path of the file the definition came from.
	Source string
	// Index is the definition's position within its document.
	Index int
}

// Config names the designated container, fields, and attributes the registry
// recognizes.
type Config struct {
	// ContainerTag is the document root holding definitions (default Defs).
	ContainerTag string
	// NameField is the child element carrying the definition name.
	NameField string
	// NameAttr is the attribute naming definitions that have no NameField,
	// typically abstract bases.
	NameAttr string
	// ParentAttr is the attribute naming the inherited definition.
	ParentAttr string
	// AbstractAttr marks definitions that are inheritance bases only.
	AbstractAttr string
	// AllowAbstractOverride permits a later abstract definition to replace an
	// earlier one with the same name instead of failing as a duplicate.
	AllowAbstractOverride bool
	// Tree controls field tree conversion.
	Tree fieldtree.Config
}

// DefaultConfig returns the conventions of the def corpus.
func DefaultConfig() Config {
	return Config{
		ContainerTag: "Defs",
		NameField:    "defName",
		NameAttr:     "Name",
		ParentAttr:   "ParentName",
		AbstractAttr: "Abstract",
		Tree:         fieldtree.DefaultConfig(),
	}
}

// Document pairs a parsed root with its source path.
type Document struct {
	Source string
	Root   *rawxml.Node
}

// Registry is the immutable definition collection.
type Registry struct {
	records []*Record
	// concrete indexes non-abstract records plus abstract records whose name
	// no concrete record claims; it is the address space of the final graph.
	concrete map[string]*Record
	// abstract indexes abstract records by name for parent lookup. An
	// abstract base may share its name with a concrete record without
	// conflict, so parent resolution consults this index first.
	abstract map[string]*Record
}

// Records returns all records in registration order.
func (r *Registry) Records() []*Record {
	return r.records
}

// Len returns the number of registered records.
func (r *Registry) Len() int {
	return len(r.records)
}

// Lookup returns the record addressable by name: the concrete record if one
// exists, else the abstract base.
func (r *Registry) Lookup(name string) (*Record, bool) {
	if rec, ok := r.concrete[name]; ok {
		return rec, true
	}
	rec, ok := r.abstract[name]
	return rec, ok
}

// LookupParent resolves a parent name. Abstract bases take precedence since
// parent attributes address bases by their naming attribute.
func (r *Registry) LookupParent(name string) (*Record, bool) {
	if rec, ok := r.abstract[name]; ok {
		return rec, true
	}
	rec, ok := r.concrete[name]
	return rec, ok
}

// Build aggregates documents into a registry. Diagnostics carry every
// non-fatal condition; a non-nil error means the run must abort (duplicate
// definition names break every downstream invariant).
func Build(docs []Document, cfg Config) (*Registry, errors.DiagnosticList, error) {
	reg := &Registry{
		concrete: make(map[string]*Record),
		abstract: make(map[string]*Record),
	}
	var diags errors.DiagnosticList
	var fatal errors.DiagnosticList
	overridden := make(map[string]bool)

	for _, doc := range docs {
		if doc.Root == nil {
			continue
		}
		if doc.Root.Tag != cfg.ContainerTag {
			diags = diags.Add(errors.Diagnostic{
				Code:     errors.CodeUnrecognizedRoot,
				Severity: errors.SeverityInfo,
				Message:  fmt.Sprintf("root element %q is not %q, no definitions taken", doc.Root.Tag, cfg.ContainerTag),
				Source:   doc.Source,
			})
			continue
		}
		for i, elem := range doc.Root.Elements() {
			rec := newRecord(doc.Source, i, elem, cfg)
			diags, fatal = register(reg, rec, cfg, overridden, diags, fatal)
		}
	}

	if len(fatal) > 0 {
		return nil, append(diags, fatal...), fatal
	}
	return reg, diags, nil
}

func newRecord(source string, index int, elem *rawxml.Node, cfg Config) *Record {
	rec := &Record{
		Kind:   elem.Tag,
		Raw:    elem,
		Fields: fieldtree.FromNode(elem, cfg.Tree),
		Source: source,
		Index:  index,
	}
	if name := strings.TrimSpace(elem.Child(cfg.NameField).Text()); name != "" {
		rec.Name = name
	} else if name, ok := elem.Attr(cfg.NameAttr); ok && strings.TrimSpace(name) != "" {
		rec.Name = strings.TrimSpace(name)
	} else {
		rec.Name = fallbackName(source, index)
	}
	if parent, ok := elem.Attr(cfg.ParentAttr); ok {
		rec.Parent = strings.TrimSpace(parent)
	}
	if abstract, ok := elem.Attr(cfg.AbstractAttr); ok {
		rec.Abstract = strings.EqualFold(abstract, "true")
	}
	return rec
}

// fallbackName derives a deterministic name from the source file and the
// definition's position in it.
func fallbackName(source string, index int) string {
	base := path.Base(strings.ReplaceAll(source, "\\", "/"))
	base = strings.TrimSuffix(base, ".xml")
	return fmt.Sprintf("%s#%d", base, index)
}

func register(reg *Registry, rec *Record, cfg Config, overridden map[string]bool, diags, fatal errors.DiagnosticList) (errors.DiagnosticList, errors.DiagnosticList) {
	if rec.Abstract {
		prev, exists := reg.abstract[rec.Name]
		switch {
		case !exists:
			reg.abstract[rec.Name] = rec
			reg.records = append(reg.records, rec)
		case cfg.AllowAbstractOverride && !overridden[rec.Name]:
			overridden[rec.Name] = true
			reg.abstract[rec.Name] = rec
			replaceRecord(reg, prev, rec)
			diags = diags.Add(errors.Diagnostic{
				Code:     errors.CodeAbstractOverride,
				Severity: errors.SeverityInfo,
				Message:  fmt.Sprintf("abstract definition %q from %s overrides the one from %s", rec.Name, rec.Source, prev.Source),
				Source:   rec.Source,
				Subjects: []string{rec.Name},
			})
		default:
			fatal = fatal.Add(duplicateDiagnostic(rec.Name, prev.Source, rec.Source))
		}
		return diags, fatal
	}

	if prev, exists := reg.concrete[rec.Name]; exists {
		fatal = fatal.Add(duplicateDiagnostic(rec.Name, prev.Source, rec.Source))
		return diags, fatal
	}
	reg.concrete[rec.Name] = rec
	reg.records = append(reg.records, rec)
	return diags, fatal
}

func replaceRecord(reg *Registry, old, repl *Record) {
	for i, rec := range reg.records {
		if rec == old {
			reg.records[i] = repl
			return
		}
	}
}

func duplicateDiagnostic(name, firstSource, secondSource string) errors.Diagnostic {
	return errors.Diagnostic{
		Code:     errors.CodeDuplicateDefinitionName,
		Severity: errors.SeverityError,
		Message:  fmt.Sprintf("definition %q defined in both %s and %s", name, firstSource, secondSource),
		Source:   secondSource,
		Subjects: []string{name},
	}
}
