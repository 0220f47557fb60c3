// Package defgraph resolves trees of XML definition files ("defs") into a
// cross-referenced definition graph: every definition's effective field set
// after inheritance flattening, plus bidirectional name-reference edges
// between definitions, ready for packaging into a viewer dataset.
package defgraph

import (
	"context"
	"io/fs"
	"os"
)

// Load resolves every definition file under root in fsys with default
// options.
func Load(fsys fs.FS, root string) (*Graph, error) {
	return LoadWithOptions(context.Background(), fsys, root, NewOptions())
}

// LoadWithOptions resolves every definition file under root in fsys with
// explicit configuration.
func LoadWithOptions(ctx context.Context, fsys fs.FS, root string, opts Options) (*Graph, error) {
	set := NewDefSet(opts)
	if err := set.AddFS(fsys, root); err != nil {
		return nil, err
	}
	return set.Resolve(ctx)
}

// LoadDir resolves every definition file under a directory path with
// default options.
func LoadDir(dir string) (*Graph, error) {
	return Load(os.DirFS(dir), ".")
}
