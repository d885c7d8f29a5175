package synapse

import "github.com/synapsegraph/synapse/internal/store"

// AddOptions describes a single memory write.
type AddOptions struct {
	UserID        string
	Content       string
	Importance    float64
	Entities      []string
	Topics        []string
	ContainerTags []string
	Source        store.Source
}

// SearchOptions describes a single retrieval request.
type SearchOptions struct {
	UserID        string
	Query         string
	Limit         int
	ContainerTags []string

	// AllowPartialOnCancel, when true, permits Search to return the partial
	// top-K collected before graph expansion was interrupted by context
	// cancellation instead of surfacing Cancelled.
	AllowPartialOnCancel bool
}

// UpdateOptions describes a supersession of an existing memory. Update
// never overwrites a node's row in place: it inserts a new node carrying the
// revised content/importance, links it to the old node with an UPDATES
// edge, and marks the old node is_latest=false.
type UpdateOptions struct {
	ID         string
	Content    string
	Importance *float64
}

// SearchResult is one ranked memory returned from Search.
type SearchResult struct {
	Memory *store.Memory
	Score  float64
}

// UserContext is the combined static-profile and dynamic-RAM-layer view of
// a user, returned by GetUserContext.
type UserContext struct {
	Static  []*store.Memory
	Dynamic []DynamicContextItem
}

// DynamicContextItem is one entry from a user's dynamic ring buffer.
type DynamicContextItem struct {
	MemoryID   string
	Category   string
	Content    string
	Importance float64
}
