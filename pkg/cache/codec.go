package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Stored values carry a one-byte encoding header so the compression
// threshold can change without invalidating existing entries.
const (
	encodingRaw    byte = 0x00
	encodingBrotli byte = 0x01
)

type codec struct {
	// threshold is the minimum value size in bytes that gets compressed.
	// Zero disables compression on write; decode always understands both
	// encodings.
	threshold int
}

func (c codec) encode(value []byte) []byte {
	if c.threshold > 0 && len(value) >= c.threshold {
		var buf bytes.Buffer
		buf.WriteByte(encodingBrotli)
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(value); err == nil && w.Close() == nil {
			if buf.Len() < len(value)+1 {
				return buf.Bytes()
			}
		}
		// Incompressible or writer error, store raw.
	}
	out := make([]byte, len(value)+1)
	out[0] = encodingRaw
	copy(out[1:], value)
	return out
}

func (c codec) decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("empty cache entry")
	}
	switch stored[0] {
	case encodingRaw:
		return stored[1:], nil
	case encodingBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(stored[1:])))
	default:
		return nil, fmt.Errorf("unknown cache entry encoding 0x%02x", stored[0])
	}
}
