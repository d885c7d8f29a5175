package embedder

import (
	"context"
	"hash/fnv"
	"math"
)

// Deterministic is a hash-based embedder double with no external
// dependencies, for use in tests that need stable, reproducible vectors
// without standing up Ollama.
// Equal inputs always produce equal vectors; it carries no semantic
// relationship to the input text beyond that.
type Deterministic struct {
	dimensions int
	model      string
}

// NewDeterministic constructs a deterministic embedder producing vectors of
// the given dimensionality.
func NewDeterministic(dimensions int) *Deterministic {
	return &Deterministic{dimensions: dimensions, model: "deterministic-test-embedder"}
}

// Embed implements embedder.Embedder.
func (d *Deterministic) Embed(_ context.Context, text string) ([]float32, error) {
	out := make([]float32, d.dimensions)
	h := fnv.New64a()
	for i := range out {
		h.Reset()
		h.Write([]byte(text))
		h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		// Map the hash into [-1, 1] so cosine similarity behaves sanely.
		out[i] = float32(int64(sum%2001)-1000) / 1000
	}
	return normalize(out), nil
}

// EmbedBatch implements embedder.Embedder.
func (d *Deterministic) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := d.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions implements embedder.Embedder.
func (d *Deterministic) Dimensions() int {
	return d.dimensions
}

// ModelIdentifier implements embedder.Embedder.
func (d *Deterministic) ModelIdentifier() string {
	return d.model
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, f := range v {
		sumSquares += float64(f) * float64(f)
	}
	if sumSquares == 0 {
		return v
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
