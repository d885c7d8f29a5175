// Package relationships implements the pure function that maps a new memory
// onto typed edges to existing memories.
package relationships

import (
	"context"
	"sort"
	"strings"

	"github.com/synapsegraph/synapse/internal/annindex"
	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/internal/vectormath"
	"github.com/synapsegraph/synapse/pkg/config"
)

// Thresholds is the subset of engine configuration the detector consumes,
// kept narrow so callers don't have to thread the whole config.EngineConfig
// through test code.
type Thresholds struct {
	TUpdate              float64
	TExtend              float64
	TRel                 float64
	NCandidates          int
	MinLexicalOverlap    int
	ExtendLengthRatio    float64
	MaxRelationshipEdges int
}

// ThresholdsFrom extracts a Thresholds from the full engine config.
func ThresholdsFrom(cfg config.EngineConfig) Thresholds {
	return Thresholds{
		TUpdate:              cfg.TUpdate,
		TExtend:              cfg.TExtend,
		TRel:                 cfg.TRel,
		NCandidates:          cfg.NCandidates,
		MinLexicalOverlap:    cfg.MinLexicalOverlap,
		ExtendLengthRatio:    cfg.ExtendLengthRatio,
		MaxRelationshipEdges: cfg.MaxRelationshipEdges,
	}
}

// Detector finds typed relationships between a new memory and the existing
// corpus. It is stateless apart from its optional ANN index collaborator.
type Detector struct {
	thresholds Thresholds
	index      annindex.Index
}

// New constructs a Detector. index may be nil, in which case candidate
// selection always falls back to a full scan.
func New(thresholds Thresholds, index annindex.Index) *Detector {
	return &Detector{thresholds: thresholds, index: index}
}

// Candidate is the minimal view of an existing memory the detector needs.
type Candidate struct {
	ID        string
	Content   string
	Embedding []float32
}

// CandidateFromMemory adapts a store.Memory into a Candidate.
func CandidateFromMemory(m *store.Memory) Candidate {
	return Candidate{ID: m.ID, Content: m.Content, Embedding: m.Embedding}
}

// Result is one detected relationship from the new memory to an existing one.
type Result struct {
	TargetID   string
	Type       store.RelationshipType
	Confidence float64
}

// Detect implements the candidate-scoring algorithm: take the top N_candidates existing
// memories by cosine similarity (via the ANN index when available, else a
// full scan of all), classify each into UPDATES/EXTENDS/RELATEDTO or nothing,
// and cap the result at MaxRelationshipEdges by confidence.
func (d *Detector) Detect(ctx context.Context, content string, embedding []float32, all []Candidate) []Result {
	top := d.selectCandidates(ctx, embedding, all)

	results := make([]Result, 0, len(top))
	for _, c := range top {
		sim := vectormath.CosineSimilarity(embedding, c.Embedding)

		switch {
		case sim >= d.thresholds.TUpdate && lexicalOverlap(content, c.Content) >= d.thresholds.MinLexicalOverlap:
			results = append(results, Result{TargetID: c.ID, Type: store.Updates, Confidence: sim})
		case sim >= d.thresholds.TExtend && float64(len(content)) > float64(len(c.Content))*d.thresholds.ExtendLengthRatio:
			results = append(results, Result{TargetID: c.ID, Type: store.Extends, Confidence: sim})
		case sim >= d.thresholds.TRel:
			results = append(results, Result{TargetID: c.ID, Type: store.RelatedTo, Confidence: sim})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Confidence > results[j].Confidence })
	if len(results) > d.thresholds.MaxRelationshipEdges {
		results = results[:d.thresholds.MaxRelationshipEdges]
	}
	return results
}

// selectCandidates returns up to NCandidates existing memories ranked by
// similarity to embedding, preferring the ANN index's k-NN sample when it is
// configured and reachable.
func (d *Detector) selectCandidates(ctx context.Context, embedding []float32, all []Candidate) []Candidate {
	n := d.thresholds.NCandidates
	if n <= 0 || n > len(all) {
		n = len(all)
	}

	if d.index != nil && d.index.Available(ctx) {
		ids, err := d.index.Search(ctx, embedding, d.thresholds.NCandidates)
		if err == nil {
			byID := make(map[string]Candidate, len(all))
			for _, c := range all {
				byID[c.ID] = c
			}
			sampled := make([]Candidate, 0, len(ids))
			for _, id := range ids {
				if c, ok := byID[id]; ok {
					sampled = append(sampled, c)
				}
			}
			if len(sampled) > 0 {
				return sampled
			}
		}
	}

	type scored struct {
		c   Candidate
		sim float64
	}
	ranked := make([]scored, 0, len(all))
	for _, c := range all {
		ranked = append(ranked, scored{c: c, sim: vectormath.CosineSimilarity(embedding, c.Embedding)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].sim > ranked[j].sim })

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].c
	}
	return out
}


// lexicalOverlap counts distinct lowercase tokens shared between a and b.
func lexicalOverlap(a, b string) int {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	overlap := 0
	for t := range tokensA {
		if tokensB[t] {
			overlap++
		}
	}
	return overlap
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			set[f] = true
		}
	}
	return set
}
