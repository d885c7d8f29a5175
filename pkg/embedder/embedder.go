// Package embedder declares the external contract the memory engine uses to
// turn text into vectors. Implementations live under internal/embedder; the
// engine only ever depends on this interface.
package embedder

import "context"

// Embedder converts natural-language text into fixed-dimensional vectors.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding for a single piece of text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds multiple texts in one call. Implementations that
	// have no native batch API may embed sequentially, but callers should
	// prefer it when embedding many memories at once (e.g. consolidation).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the fixed vector length this embedder produces.
	Dimensions() int

	// ModelIdentifier names the model backing this embedder, persisted
	// alongside each memory for provenance.
	ModelIdentifier() string
}
