// Package annindex declares the optional approximate-nearest-neighbor index
// collaborator used only by the relationship detector's candidate prefilter:
// when a corpus grows past full-scan range, querying an ANN index for the
// top-N_candidates neighbors is cheaper than scoring every existing memory
// against the new one.
package annindex

import "context"

// Index is the narrow contract the relationship detector depends on. It
// never sees the rest of a vector database's feature surface (payload
// filters, collection management) because nothing in this engine needs it.
type Index interface {
	// Upsert indexes or reindexes a single vector under id.
	Upsert(ctx context.Context, id string, vector []float32) error

	// Search returns up to limit ids nearest to vector, nearest first.
	Search(ctx context.Context, vector []float32, limit int) ([]string, error)

	// Delete removes a vector from the index.
	Delete(ctx context.Context, id string) error

	// Available reports whether the index is reachable right now. The
	// relationship detector falls back to a full store scan when it is not.
	Available(ctx context.Context) bool
}
