package defgraph

import (
	"fmt"
	"io"
	"time"

	"github.com/defview/defgraph/internal/dataset"
)

// ExportOptions configures dataset packaging.
type ExportOptions struct {
	// Level is the zstd compression level (0 uses the packaging default).
	Level int
	// Plain writes uncompressed JSON instead of a compressed dataset.
	Plain bool
	// Now overrides the generation timestamp; zero uses the current time.
	Now time.Time
	// GameVersion labels the dataset's stats block; empty omits it.
	GameVersion string
}

// Export packages the graph into the viewer dataset and writes it to w.
// Every definition, field, and edge is preserved exactly as resolved.
func (g *Graph) Export(w io.Writer, opts ExportOptions) error {
	if g == nil {
		return fmt.Errorf("export: nil graph")
	}
	entries := make([]dataset.Entry, 0, len(g.names))
	for _, name := range g.names {
		node := g.nodes[name]
		entries = append(entries, dataset.Entry{
			Record:   node.Definition,
			Outbound: node.Outbound,
			Inbound:  node.Inbound,
		})
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	d := dataset.Build(entries, now, opts.GameVersion)
	return d.Encode(w, dataset.EncodeOptions{Level: opts.Level, Plain: opts.Plain})
}
