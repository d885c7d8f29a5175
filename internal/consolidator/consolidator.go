// Package consolidator implements the greedy agglomerative deduplication
// pass over a user's memories. Unlike the decay engine, this is
// a plain function invoked by the facade's ConsolidateMemories call, not a
// background ticker worker — consolidation is caller-triggered, not scheduled.
package consolidator

import (
	"context"
	"sort"

	"github.com/synapsegraph/synapse/internal/logging"
	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/internal/vectormath"
)

// Store is the subset of *store.Store the consolidator depends on.
type Store interface {
	GetByUser(ctx context.Context, userID string) ([]*store.Memory, error)
	MergeInto(ctx context.Context, from, into *store.Memory) error
}

// Consolidator reduces near-duplicate episodic memories for a user.
type Consolidator struct {
	store     Store
	threshold float64
	log       *logging.Logger
}

// New constructs a Consolidator. threshold is T_consol, the minimum pairwise
// cosine similarity for two memories to be clustered together.
func New(s Store, threshold float64) *Consolidator {
	return &Consolidator{store: s, threshold: threshold, log: logging.GetLogger("consolidator")}
}

// Consolidate clusters near-duplicate dynamic memories for userID and merges
// each cluster into its representative, returning the number of memories
// removed. Static memories are never clustered, merged, or deleted.
func (c *Consolidator) Consolidate(ctx context.Context, userID string) (int, error) {
	memories, err := c.store.GetByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	var dynamic []*store.Memory
	for _, m := range memories {
		if !m.IsStatic {
			dynamic = append(dynamic, m)
		}
	}

	clusters := clusterBySimilarity(dynamic, c.threshold)

	removed := 0
	for _, cluster := range clusters {
		if len(cluster) < 2 {
			continue
		}
		representative := pickRepresentative(cluster)
		for _, m := range cluster {
			if m.ID == representative.ID {
				continue
			}
			if err := c.store.MergeInto(ctx, m, representative); err != nil {
				c.log.Warn("merge failed during consolidation", "from", m.ID, "into", representative.ID, "error", err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// clusterBySimilarity groups memories whose pairwise cosine similarity meets
// threshold, using single-link greedy agglomeration: a memory joins the
// first cluster it is similar enough to any member of, else starts a new one.
func clusterBySimilarity(memories []*store.Memory, threshold float64) [][]*store.Memory {
	var clusters [][]*store.Memory

	for _, m := range memories {
		placed := false
		for ci, cluster := range clusters {
			for _, member := range cluster {
				if vectormath.CosineSimilarity(m.Embedding, member.Embedding) >= threshold {
					clusters[ci] = append(clusters[ci], m)
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			clusters = append(clusters, []*store.Memory{m})
		}
	}
	return clusters
}

// pickRepresentative selects the cluster member with highest confidence,
// breaking ties by most recent timestamp.
func pickRepresentative(cluster []*store.Memory) *store.Memory {
	sorted := make([]*store.Memory, len(cluster))
	copy(sorted, cluster)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	return sorted[0]
}
