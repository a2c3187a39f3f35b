package frame

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"
)

// compressionLevel is the "moderate" level fixed by §6 (~3 on a 0-11 scale)
// unless a Config override raises it (see puffin.Config).
var compressionLevel = 3

// SetCompressionLevel overrides the default compression level used by
// future Pack() calls (§6 Configuration). It does not affect frames already
// packed.
func SetCompressionLevel(level int) {
	if level < 0 {
		level = 0
	}
	compressionLevel = level
}

func lz4Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	w.Header.CompressionLevel = compressionLevel
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lz4Decompress(packed []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(packed))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}
