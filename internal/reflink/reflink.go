// Package reflink builds the cross-reference graph over the resolved
// definition set: a forward scan finds field values (and field names) that
// address other definitions by name, and the inbound index is derived as the
// exact transpose of the outbound edge set in a single pass afterwards.
package reflink

import (
	"context"
	"fmt"
	"path"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/defview/defgraph/errors"
	"github.com/defview/defgraph/internal/fieldtree"
	"github.com/defview/defgraph/internal/registry"
)

// EdgeKind classifies how a reference was expressed in the source.
type EdgeKind uint8

const (
	// KindField is a scalar field value naming another definition.
	KindField EdgeKind = iota
	// KindElementName is a composite field whose name is itself a definition
	// name (e.g. a cost entry keyed by the referenced thing).
	KindElementName
	// KindParent is the inheritance link.
	KindParent
)

// String returns the kind name used in the exported dataset.
func (k EdgeKind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindElementName:
		return "element"
	case KindParent:
		return "parent"
	default:
		return "unknown"
	}
}

// Edge is a directed reference from one definition to another, located by
// the field path it was found at.
type Edge struct {
	Source string
	Target string
	Path   string
	Kind   EdgeKind
	// ToAbstract flags edges whose target is an abstract base. They are
	// retained; bases are meaningful documentation targets.
	ToAbstract bool
}

// Config controls which scalar fields may carry references.
type Config struct {
	// FieldPatterns gates scalar candidates: the field's name must match one
	// of these path.Match patterns. The allow-list trades recall for
	// precision: a scalar equal to some definition name in a field outside
	// the list is assumed to be coincidental data, not a reference.
	FieldPatterns []string
	// NameField is the identifying field; it never produces edges.
	NameField string
	// ListItemTag is the list member tag; excluded from element-name
	// candidates.
	ListItemTag string
}

// DefaultConfig returns the reference heuristics of the def corpus.
func DefaultConfig() Config {
	return Config{
		FieldPatterns: []string{"*Def", "*def", "li"},
		NameField:     "defName",
		ListItemTag:   "li",
	}
}

// Result carries the bidirectional edge index, keyed by definition name.
type Result struct {
	Outbound map[string][]Edge
	Inbound  map[string][]Edge
}

// Link scans every included record's resolved tree for references. Forward
// scans run concurrently; results land in per-record slots so edge order is
// deterministic, and the transpose runs once after the scan barrier.
func Link(ctx context.Context, reg *registry.Registry, cfg Config, workers int) (*Result, errors.DiagnosticList, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	records := reg.Records()
	edgesPerRecord := make([][]Edge, len(records))
	diagsPerRecord := make([]errors.DiagnosticList, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range records {
		if rec.Excluded {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := &scanner{reg: reg, cfg: cfg, rec: rec, seen: make(map[edgeKey]bool)}
			s.scanParent()
			s.walk(rec.Resolved, "")
			edgesPerRecord[i] = s.edges
			diagsPerRecord[i] = s.diags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	result := &Result{
		Outbound: make(map[string][]Edge),
		Inbound:  make(map[string][]Edge),
	}
	var diags errors.DiagnosticList
	for i, rec := range records {
		if len(edgesPerRecord[i]) > 0 {
			result.Outbound[rec.Name] = edgesPerRecord[i]
		}
		diags = append(diags, diagsPerRecord[i]...)
	}
	// Transpose after the complete outbound set exists; the inbound index is
	// derived, never maintained incrementally.
	for _, rec := range records {
		for _, e := range result.Outbound[rec.Name] {
			result.Inbound[e.Target] = append(result.Inbound[e.Target], e)
		}
	}
	return result, diags, nil
}

type edgeKey struct {
	target string
	path   string
	kind   EdgeKind
}

type scanner struct {
	reg   *registry.Registry
	cfg   Config
	rec   *registry.Record
	path  []string
	edges []Edge
	diags errors.DiagnosticList
	seen  map[edgeKey]bool
}

func (s *scanner) scanParent() {
	if s.rec.Parent == "" {
		return
	}
	parent, ok := s.reg.LookupParent(s.rec.Parent)
	if !ok || parent.Excluded {
		// Missing parents are the resolver's diagnostic; excluded parents
		// are covered by the record's own exclusion handling.
		return
	}
	s.emit(parent, "", KindParent)
}

// walk descends the resolved tree. name is the field name of the current
// value (the list item tag for list members, empty for the root), used for
// pattern gating. The root itself is never a candidate.
func (s *scanner) walk(v *fieldtree.Value, name string) {
	if v == nil {
		return
	}
	switch v.Kind {
	case fieldtree.KindScalar:
		if name == s.cfg.NameField || !s.matchesPattern(name) {
			return
		}
		s.candidate(v.Scalar, s.joinPath(), KindField)
	case fieldtree.KindList:
		for i, item := range v.Items {
			s.path = append(s.path, fmt.Sprintf("%s[%d]", s.cfg.ListItemTag, i))
			s.walk(item, s.cfg.ListItemTag)
			s.path = s.path[:len(s.path)-1]
		}
	case fieldtree.KindComposite:
		for _, f := range v.Fields {
			s.path = append(s.path, f.Name)
			if f.Name != s.cfg.ListItemTag && f.Name != s.cfg.NameField {
				s.candidate(f.Name, s.joinPath(), KindElementName)
			}
			s.walk(f.Value, f.Name)
			s.path = s.path[:len(s.path)-1]
		}
	}
}

// candidate checks a potential reference value against the registry and
// emits an edge or a dangling-reference diagnostic.
func (s *scanner) candidate(value, fieldPath string, kind EdgeKind) {
	if value == "" {
		return
	}
	target, ok := s.reg.Lookup(value)
	if !ok {
		return
	}
	if target == s.rec {
		return
	}
	if target.Excluded {
		s.diags = s.diags.Add(errors.Diagnostic{
			Code:     errors.CodeDanglingReference,
			Severity: errors.SeverityInfo,
			Message:  fmt.Sprintf("definition %q references excluded definition %q at %s", s.rec.Name, target.Name, fieldPath),
			Source:   s.rec.Source,
			Subjects: []string{s.rec.Name, target.Name},
		})
		return
	}
	s.emit(target, fieldPath, kind)
}

func (s *scanner) emit(target *registry.Record, fieldPath string, kind EdgeKind) {
	key := edgeKey{target: target.Name, path: fieldPath, kind: kind}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.edges = append(s.edges, Edge{
		Source:     s.rec.Name,
		Target:     target.Name,
		Path:       fieldPath,
		Kind:       kind,
		ToAbstract: target.Abstract,
	})
}

func (s *scanner) joinPath() string {
	return strings.Join(s.path, "/")
}

func (s *scanner) matchesPattern(name string) bool {
	for _, pattern := range s.cfg.FieldPatterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
