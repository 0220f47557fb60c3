package defgraph

import (
	"context"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/defview/defgraph/errors"
	"github.com/defview/defgraph/internal/discover"
	"github.com/defview/defgraph/internal/inherit"
	"github.com/defview/defgraph/internal/rawxml"
	"github.com/defview/defgraph/internal/reflink"
	"github.com/defview/defgraph/internal/registry"
)

// DefSet owns definition sources and resolves them into a Graph.
type DefSet struct {
	sources []discover.Source
	opts    Options
}

// NewDefSet creates an empty definition set.
func NewDefSet(opts ...Options) *DefSet {
	o := NewOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	return &DefSet{opts: o}
}

// WithOptions replaces the set's options.
func (s *DefSet) WithOptions(opts Options) *DefSet {
	if s == nil {
		return nil
	}
	s.opts = opts
	return s
}

// Add adds one definition document by path and content.
func (s *DefSet) Add(path string, data []byte) error {
	if s == nil {
		return fmt.Errorf("def set: nil set")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("def set: empty path")
	}
	s.sources = append(s.sources, discover.Source{Path: path, Data: data})
	return nil
}

// AddFS walks root within fsys and adds every XML file found.
func (s *DefSet) AddFS(fsys fs.FS, root string) error {
	if s == nil {
		return fmt.Errorf("def set: nil set")
	}
	if fsys == nil {
		return fmt.Errorf("def set: nil fs")
	}
	sources, err := discover.CollectFS(fsys, root)
	if err != nil {
		return fmt.Errorf("def set: %w", err)
	}
	s.sources = append(s.sources, sources...)
	return nil
}

// Len returns the number of added sources.
func (s *DefSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sources)
}

// Resolve runs the pipeline: parse every source, aggregate the registry,
// flatten inheritance, and link references. The returned graph carries the
// complete diagnostics list of the run. A non-nil error means the run as a
// whole failed (duplicate definition names, or no definitions at all); the
// error is a DiagnosticList containing everything recorded up to the
// failure.
func (s *DefSet) Resolve(ctx context.Context) (*Graph, error) {
	if s == nil {
		return nil, fmt.Errorf("def set: nil set")
	}
	if err := s.opts.Validate(); err != nil {
		return nil, fmt.Errorf("def set: %w", err)
	}
	workers := s.opts.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Stable order up front so duplicate detection and graph ordering do not
	// depend on add or scheduling order.
	sources := make([]discover.Source, len(s.sources))
	copy(sources, s.sources)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })

	docs, diags, err := parseAll(ctx, sources, workers)
	if err != nil {
		return nil, err
	}

	reg, regDiags, regErr := registry.Build(docs, s.opts.registryConfig())
	diags = append(diags, regDiags...)
	if regErr != nil {
		return nil, diags
	}
	if reg.Len() == 0 {
		diags = diags.Add(errors.Newf(errors.CodeNoDefinitions, errors.SeverityError, "no definitions discovered in %d source file(s)", len(sources)))
		return nil, diags
	}

	diags = append(diags, inherit.Resolve(reg)...)

	links, linkDiags, err := reflink.Link(ctx, reg, s.opts.linkConfig(), workers)
	if err != nil {
		return nil, err
	}
	diags = append(diags, linkDiags...)

	return buildGraph(reg, links, diags), nil
}

// parseAll parses sources concurrently. Parse failures are per-file: the
// file is skipped and recorded, the run continues. Document order follows
// source order regardless of scheduling.
func parseAll(ctx context.Context, sources []discover.Source, workers int) ([]registry.Document, errors.DiagnosticList, error) {
	roots := make([]*rawxml.Node, len(sources))
	parseErrs := make([]error, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			roots[i], parseErrs[i] = rawxml.Parse(src.Path, src.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	docs := make([]registry.Document, 0, len(sources))
	var diags errors.DiagnosticList
	for i, src := range sources {
		if parseErrs[i] != nil {
			diags = diags.Add(errors.Diagnostic{
				Code:     errors.CodeMalformedXML,
				Severity: errors.SeverityWarning,
				Message:  parseErrs[i].Error(),
				Source:   src.Path,
			})
			continue
		}
		docs = append(docs, registry.Document{Source: src.Path, Root: roots[i]})
	}
	return docs, diags, nil
}
