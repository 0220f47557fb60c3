// Package discover collects definition source files from a filesystem tree.
// It is the file-discovery collaborator feeding the core: the core itself
// never touches directories, it consumes ordered (path, bytes) pairs.
package discover

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Source is one discovered definition file.
type Source struct {
	Path string
	Data []byte
}

// CollectFS walks root within fsys and returns every .xml file, sorted by
// path so downstream aggregation is deterministic regardless of walk order.
func CollectFS(fsys fs.FS, root string) ([]Source, error) {
	var sources []Source
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(p), ".xml") {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		sources = append(sources, Source{Path: p, Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}
