// Package inherit flattens inheritance chains: for every record it produces
// the effective field tree obtained by merging the chain from the most
// distant ancestor down to the record itself. Abstract records are resolved
// too, since they serve as parents. Resolution is memoized (each record
// resolved at most once) and iterative, with an explicit path stack for
// cycle detection rather than call-stack recursion.
package inherit

import (
	"fmt"
	"strings"

	"github.com/defview/defgraph/errors"
	"github.com/defview/defgraph/internal/registry"
)

// Resolve flattens every record in the registry, in registration order.
// Records whose parent chain cannot be completed (missing parent, cycle, or
// inheriting through such a record) are marked excluded and reported;
// resolution always continues for unrelated records.
func Resolve(reg *registry.Registry) errors.DiagnosticList {
	r := &resolver{reg: reg}
	for _, rec := range reg.Records() {
		r.resolve(rec)
	}
	return r.diags
}

type resolver struct {
	reg   *registry.Registry
	diags errors.DiagnosticList
}

// resolve walks the parent chain up from rec until it reaches a chain top, a
// memoized record, or a failure, then resolves downward. chain[i+1] is the
// parent of chain[i].
func (r *resolver) resolve(rec *registry.Record) {
	if rec.Resolved != nil || rec.Excluded {
		return
	}
	chain := []*registry.Record{rec}
	// Keyed by identity, not name: an abstract base may share its name with a
	// concrete record on the same chain without forming a cycle.
	onPath := map[*registry.Record]int{rec: 0}

	cur := rec
	for cur.Parent != "" {
		parent, ok := r.reg.LookupParent(cur.Parent)
		if !ok {
			r.excludeMissing(chain, cur)
			return
		}
		if at, seen := onPath[parent]; seen {
			r.excludeCycle(chain, at)
			return
		}
		if parent.Excluded {
			r.excludeThroughAncestor(chain, parent.Name)
			return
		}
		if parent.Resolved != nil {
			r.resolveDown(chain, parent)
			return
		}
		onPath[parent] = len(chain)
		chain = append(chain, parent)
		cur = parent
	}
	r.resolveDown(chain, nil)
}

// resolveDown memoizes resolved trees for the chain, nearest ancestor first.
// base is the already-resolved record the chain top inherits from, nil when
// the top has no parent.
func (r *resolver) resolveDown(chain []*registry.Record, base *registry.Record) {
	inherited := base
	for i := len(chain) - 1; i >= 0; i-- {
		rec := chain[i]
		if inherited == nil {
			rec.Resolved = rec.Fields
		} else {
			rec.Resolved = Merge(inherited.Resolved, rec.Fields)
		}
		inherited = rec
	}
}

// excludeMissing excludes the whole chain: orphan is the chain top whose
// named parent does not exist, and everything below it inherits through it.
func (r *resolver) excludeMissing(chain []*registry.Record, orphan *registry.Record) {
	r.diags = r.diags.Add(errors.Diagnostic{
		Code:     errors.CodeMissingParent,
		Severity: errors.SeverityWarning,
		Message:  fmt.Sprintf("definition %q names missing parent %q", orphan.Name, orphan.Parent),
		Source:   orphan.Source,
		Subjects: []string{orphan.Name, orphan.Parent},
	})
	for _, rec := range chain {
		rec.Excluded = true
		if rec != orphan {
			r.ancestorDiagnostic(rec, orphan.Name)
		}
	}
}

// excludeCycle excludes chain[cycleStart:] as the cycle itself and everything
// below cycleStart as inheriting through it.
func (r *resolver) excludeCycle(chain []*registry.Record, cycleStart int) {
	cycle := chain[cycleStart:]
	names := make([]string, 0, len(cycle)+1)
	for _, rec := range cycle {
		names = append(names, rec.Name)
	}
	names = append(names, cycle[0].Name)
	r.diags = r.diags.Add(errors.Diagnostic{
		Code:     errors.CodeCyclicInheritance,
		Severity: errors.SeverityWarning,
		Message:  fmt.Sprintf("inheritance cycle: %s", strings.Join(names, " -> ")),
		Source:   cycle[0].Source,
		Subjects: names[:len(names)-1],
	})
	for _, rec := range cycle {
		rec.Excluded = true
	}
	for _, rec := range chain[:cycleStart] {
		rec.Excluded = true
		r.ancestorDiagnostic(rec, cycle[0].Name)
	}
}

// excludeThroughAncestor excludes the whole chain because its resolution
// passes through an already-excluded record.
func (r *resolver) excludeThroughAncestor(chain []*registry.Record, ancestor string) {
	for _, rec := range chain {
		rec.Excluded = true
		r.ancestorDiagnostic(rec, ancestor)
	}
}

func (r *resolver) ancestorDiagnostic(rec *registry.Record, ancestor string) {
	r.diags = r.diags.Add(errors.Diagnostic{
		Code:     errors.CodeMissingParent,
		Severity: errors.SeverityWarning,
		Message:  fmt.Sprintf("definition %q excluded: ancestor %q could not be resolved", rec.Name, ancestor),
		Source:   rec.Source,
		Subjects: []string{rec.Name, ancestor},
	})
}
