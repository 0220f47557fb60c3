package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel matches the packaging contract: high-ratio
// compression for a write-once, read-many artifact.
const DefaultCompressionLevel = 19

// EncodeOptions configures dataset serialization.
type EncodeOptions struct {
	// Level is the zstd compression level (0 uses DefaultCompressionLevel).
	Level int
	// Plain writes uncompressed JSON, for inspection and tests.
	Plain bool
}

// Encode writes the dataset as zstd-compressed JSON (or plain JSON).
func (d *Dataset) Encode(w io.Writer, opts EncodeOptions) error {
	if d == nil {
		return fmt.Errorf("encode dataset: nil dataset")
	}
	if opts.Plain {
		enc := json.NewEncoder(w)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encode dataset: %w", err)
		}
		return nil
	}
	level := opts.Level
	if level == 0 {
		level = DefaultCompressionLevel
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(d); err != nil {
		zw.Close()
		return fmt.Errorf("encode dataset: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

// Decode reads a dataset back from its zstd-compressed JSON form.
func Decode(r io.Reader) (*Dataset, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	defer zr.Close()
	var d Dataset
	if err := json.NewDecoder(zr).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return &d, nil
}
