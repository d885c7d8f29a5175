// Package retrieval implements the hybrid retrieval pipeline:
// dense cosine similarity fused with sparse keyword matching, a static-fact
// boost, confidence/tag filtering, and a one-hop graph expansion pass over
// surviving results.
package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/synapsegraph/synapse/internal/logging"
	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/internal/vectormath"
	"github.com/synapsegraph/synapse/pkg/config"
	"github.com/synapsegraph/synapse/pkg/errs"
)

// stopWords is the fixed list excluded from sparse scoring.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "your": true, "with": true, "that": true,
	"this": true, "was": true, "were": true, "have": true, "has": true,
	"had": true, "from": true, "they": true, "them": true, "will": true,
	"would": true, "can": true, "could": true, "about": true, "into": true,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Params is the subset of engine configuration the retrieval pipeline
// consumes.
type Params struct {
	TActive             float64
	TSearch             float64
	DenseWeight         float64
	SparseWeight        float64
	StaticBoost         float64
	GraphExpansionDecay float64
	SparsePerToken      float64
}

// ParamsFrom extracts a Params from the full engine config.
func ParamsFrom(cfg config.EngineConfig) Params {
	return Params{
		TActive:             cfg.TActive,
		TSearch:             cfg.TSearch,
		DenseWeight:         cfg.DenseWeight,
		SparseWeight:        cfg.SparseWeight,
		StaticBoost:         cfg.StaticBoost,
		GraphExpansionDecay: cfg.GraphExpansionDecay,
		SparsePerToken:      cfg.SparseTokenScore,
	}
}

// Store is the subset of *store.Store the retrieval engine depends on.
type Store interface {
	GetByUser(ctx context.Context, userID string) ([]*store.Memory, error)
	GetStatic(ctx context.Context, userID string) ([]*store.Memory, error)
	GetOutgoingEdges(ctx context.Context, id string) ([]store.Edge, error)
	RecordAccess(ctx context.Context, id string, now time.Time) error
}

// FTSMatcher is an optional collaborator: implementations that can answer
// token-membership queries against an FTS5 shadow table satisfy it. The
// engine uses it when the Store value also implements it, and falls back to
// an in-memory substring scan otherwise; the scoring contract is identical
// either way.
type FTSMatcher interface {
	MatchFTS(ctx context.Context, userID, token string) (map[string]bool, error)
}

// Query describes one retrieval request.
type Query struct {
	UserID        string
	Text          string
	Embedding     []float32 // nil if the embedder failed; triggers sparse-only fallback
	Limit         int
	ContainerTags []string
}

// Result is one scored node returned to the caller.
type Result struct {
	Memory *store.Memory
	Score  float64
}

// Engine runs the hybrid retrieval pipeline against a Store.
type Engine struct {
	store  Store
	params Params
	log    *logging.Logger
}

// New constructs an Engine.
func New(s Store, params Params) *Engine {
	return &Engine{store: s, params: params, log: logging.GetLogger("retrieval")}
}

// Search implements the hybrid retrieval pipeline end to end, including
// the access-count side effects on every returned node.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, nil
	}

	if q.Limit == 0 {
		return nil, nil
	}
	if q.Limit < 0 {
		q.Limit = 10
	}

	candidates, err := e.store.GetByUser(ctx, q.UserID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "Search", err)
	}

	active := make([]*store.Memory, 0, len(candidates))
	byID := make(map[string]*store.Memory, len(candidates))
	for _, m := range candidates {
		if m.Confidence < e.params.TActive {
			continue
		}
		if len(q.ContainerTags) > 0 && !tagsIntersect(m.ContainerTags, q.ContainerTags) {
			continue
		}
		active = append(active, m)
		byID[m.ID] = m
	}

	staticIDs, err := e.staticIDSet(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	tokens := tokenize(q.Text)
	matched, err := e.matchTokens(ctx, q.UserID, tokens, active)
	if err != nil {
		return nil, err
	}

	type scored struct {
		m     *store.Memory
		score float64
	}
	base := make(map[string]float64, len(active))
	scoredAll := make([]scored, 0, len(active))

	for _, m := range active {
		dense := 0.0
		if q.Embedding != nil {
			dense = vectormath.CosineSimilarity(q.Embedding, m.Embedding)
		}
		sparse := sparseScore(m.ID, tokens, matched, e.params.SparsePerToken)

		score := e.params.DenseWeight*dense + e.params.SparseWeight*sparse
		score = clamp01(score)
		if staticIDs[m.ID] {
			score = clamp01(score + e.params.StaticBoost)
		}

		base[m.ID] = score
		scoredAll = append(scoredAll, scored{m: m, score: score})
	}

	filtered := make([]scored, 0, len(scoredAll))
	for _, s := range scoredAll {
		if s.score >= e.params.TSearch {
			filtered = append(filtered, s)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return ranksBefore(filtered[i].m, filtered[i].score, filtered[j].m, filtered[j].score)
	})
	if len(filtered) > q.Limit {
		filtered = filtered[:q.Limit]
	}

	results := make(map[string]Result, len(filtered))
	for _, s := range filtered {
		results[s.m.ID] = Result{Memory: s.m, Score: s.score}
	}

	for _, s := range filtered {
		select {
		case <-ctx.Done():
			return nil, errs.New(errs.Cancelled, "Search", ctx.Err())
		default:
		}
		edges, err := e.store.GetOutgoingEdges(ctx, s.m.ID)
		if err != nil {
			return nil, errs.New(errs.StoreUnavailable, "Search", err)
		}
		for _, edge := range edges {
			if _, already := results[edge.To]; already {
				continue
			}
			target, ok := byID[edge.To]
			if !ok {
				continue
			}
			results[edge.To] = Result{Memory: target, Score: s.score * edge.Confidence * e.params.GraphExpansionDecay}
		}
	}

	final := make([]Result, 0, len(results))
	for _, r := range results {
		final = append(final, r)
	}
	sort.Slice(final, func(i, j int) bool {
		return ranksBefore(final[i].Memory, final[i].Score, final[j].Memory, final[j].Score)
	})
	if len(final) > q.Limit {
		final = final[:q.Limit]
	}

	now := time.Now().UTC()
	for _, r := range final {
		if err := e.store.RecordAccess(ctx, r.Memory.ID, now); err != nil {
			e.log.Warn("record access failed after search", "memory_id", r.Memory.ID, "error", err)
		}
	}

	return final, nil
}

func (e *Engine) staticIDSet(ctx context.Context, userID string) (map[string]bool, error) {
	statics, err := e.store.GetStatic(ctx, userID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "Search", err)
	}
	set := make(map[string]bool, len(statics))
	for _, m := range statics {
		set[m.ID] = true
	}
	return set, nil
}

// matchTokens returns, for each query token, the set of candidate ids whose
// content contains it. It prefers the FTS5 acceleration path when the Store
// also implements FTSMatcher, falling back to an in-memory scan otherwise.
func (e *Engine) matchTokens(ctx context.Context, userID string, tokens []string, active []*store.Memory) (map[string]map[string]bool, error) {
	matched := make(map[string]map[string]bool, len(tokens))

	if accel, ok := e.store.(FTSMatcher); ok {
		for _, tok := range tokens {
			ids, err := accel.MatchFTS(ctx, userID, tok)
			if err != nil {
				return nil, errs.New(errs.StoreUnavailable, "Search", err)
			}
			matched[tok] = ids
		}
		return matched, nil
	}

	for _, tok := range tokens {
		ids := make(map[string]bool)
		for _, m := range active {
			if strings.Contains(strings.ToLower(m.Content), tok) {
				ids[m.ID] = true
			}
		}
		matched[tok] = ids
	}
	return matched, nil
}

func sparseScore(memoryID string, tokens []string, matched map[string]map[string]bool, perToken float64) float64 {
	score := 0.0
	for _, tok := range tokens {
		if matched[tok][memoryID] {
			score += perToken
		}
	}
	return clamp01(score)
}

// tokenize lowercases, strips non-alphanumerics, and drops tokens of length
// <= 2 and stop words.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.Fields(nonAlnum.ReplaceAllString(lower, " "))
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) <= 2 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func tagsIntersect(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	for _, t := range a {
		if set[t] {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ranksBefore reports whether (ma, scoreA) should be ordered ahead of
// (mb, scoreB): higher score first, ties broken by higher confidence, then
// more recent timestamp, then lower id.
func ranksBefore(ma *store.Memory, scoreA float64, mb *store.Memory, scoreB float64) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if ma.Confidence != mb.Confidence {
		return ma.Confidence > mb.Confidence
	}
	if !ma.Timestamp.Equal(mb.Timestamp) {
		return ma.Timestamp.After(mb.Timestamp)
	}
	return ma.ID < mb.ID
}
