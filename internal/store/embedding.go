package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeEmbedding serializes a float32 vector as a length-prefixed
// little-endian BLOB rather than a JSON array, keeping embedding storage
// compact and fixed-width.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4+4*len(v))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding parses a length-prefixed float32 BLOB, validating that the
// declared length matches the actual payload (dimension validated on read).
func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf) < 4 {
		return nil, fmt.Errorf("embedding blob too short: %d bytes", len(buf))
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	want := 4 + 4*n
	if len(buf) != want {
		return nil, fmt.Errorf("embedding blob length mismatch: declared %d floats, got %d bytes (want %d)", n, len(buf), want)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i]))
	}
	return out, nil
}
