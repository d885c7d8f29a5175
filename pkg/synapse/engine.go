// Package synapse is the public facade over the memory engine: a single
// handle type wiring together the durable store, the embedder, the optional
// ANN index, the relationship detector, the decay engine, the consolidator,
// and the retrieval pipeline.
package synapse

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synapsegraph/synapse/internal/annindex"
	"github.com/synapsegraph/synapse/internal/consolidator"
	"github.com/synapsegraph/synapse/internal/decay"
	intembedder "github.com/synapsegraph/synapse/internal/embedder"
	"github.com/synapsegraph/synapse/internal/logging"
	"github.com/synapsegraph/synapse/internal/profile"
	"github.com/synapsegraph/synapse/internal/ratelimit"
	"github.com/synapsegraph/synapse/internal/relationships"
	"github.com/synapsegraph/synapse/internal/retrieval"
	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/pkg/config"
	"github.com/synapsegraph/synapse/pkg/embedder"
	"github.com/synapsegraph/synapse/pkg/errs"
)

// state is the facade's lifecycle position.
type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateClosed
)

// Engine is the engine handle. It is constructed explicitly via New and
// passed around by the caller — there is no package-level global.
type Engine struct {
	cfg      *config.Config
	embedder embedder.Embedder

	mu    sync.Mutex // serializes writes; reads may proceed concurrently
	state state

	store           *store.Store
	embedderLimiter *ratelimit.Bucket
	annIndex        annindex.Index
	detector        *relationships.Detector
	decayEngine     *decay.Engine
	consolidator    *consolidator.Consolidator
	retrievalEngine *retrieval.Engine
	profileCache    *profile.Cache

	log *logging.Logger
}

// New constructs an Engine bound to cfg. If emb is nil, an Ollama-backed
// embedder is constructed from cfg.Ollama; callers in tests typically pass a
// internal/embedder.Deterministic test double explicitly.
func New(cfg *config.Config, emb embedder.Embedder) *Engine {
	if emb == nil {
		emb = intembedder.NewOllama(cfg.Ollama, cfg.Engine.EmbeddingDimensions, cfg.RateLimit.Global)
	}
	return &Engine{
		cfg:      cfg,
		embedder: emb,
		state:    stateUninitialized,
		log:      logging.GetLogger("synapse"),
	}
}

// Initialize opens the store, wires up every collaborator, and starts the
// decay engine's background workers. It is idempotent: a second call is a
// no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateInitialized {
		return nil
	}
	if e.state == stateClosed {
		return errs.New(errs.ConfigurationError, "Initialize", fmt.Errorf("engine already closed"))
	}

	s, err := store.Open(e.cfg.Store.Path)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "Initialize", err)
	}
	e.store = s

	embedderLimit := e.cfg.RateLimit.Global
	for _, tl := range e.cfg.RateLimit.Tools {
		if tl.Name == "embedder" {
			embedderLimit = config.LimitConfig{RequestsPerSecond: tl.RequestsPerSecond, BurstSize: tl.BurstSize}
			break
		}
	}
	e.embedderLimiter = ratelimit.NewBucket(float64(embedderLimit.BurstSize), embedderLimit.RequestsPerSecond)

	if e.cfg.Qdrant.Enabled {
		q := annindex.NewQdrant(e.cfg.Qdrant, e.cfg.Engine.EmbeddingDimensions)
		if err := q.EnsureCollection(ctx); err != nil {
			e.log.Warn("failed to ensure qdrant collection, ANN index disabled", "error", err)
		} else {
			e.annIndex = q
		}
	}

	e.detector = relationships.New(relationships.ThresholdsFrom(e.cfg.Engine), e.annIndex)
	e.decayEngine = decay.New(e.store, decay.ParamsFrom(e.cfg.Engine))
	e.consolidator = consolidator.New(e.store, e.cfg.Engine.TConsol)
	e.retrievalEngine = retrieval.New(e.store, retrieval.ParamsFrom(e.cfg.Engine))
	e.profileCache = profile.NewCache(e.cfg.Profiles.CacheCapacity, e.cfg.Profiles.CacheExpiry)

	e.decayEngine.Start()

	e.state = stateInitialized
	return nil
}

// Close stops background workers and closes the store, transitioning to
// Closed. Subsequent calls to mutating or reading operations fail with
// NotInitialized.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != stateInitialized {
		e.state = stateClosed
		return nil
	}

	e.decayEngine.Stop()
	err := e.store.Close()
	e.state = stateClosed
	if err != nil {
		return errs.New(errs.StoreUnavailable, "Close", err)
	}
	return nil
}

func (e *Engine) requireInitialized(op string) error {
	if e.state != stateInitialized {
		return errs.New(errs.NotInitialized, op, fmt.Errorf("call Initialize before %s", op))
	}
	return nil
}

// Add embeds content, classifies it static/dynamic, detects relationships to
// the user's existing memories, and persists the node plus any detected
// edges in a single transaction.
func (e *Engine) Add(ctx context.Context, opts AddOptions) (*store.Memory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized("Add"); err != nil {
		return nil, err
	}

	if !e.embedderLimiter.TryConsume(1) {
		return nil, errs.New(errs.EmbeddingUnavailable, "Add", fmt.Errorf("embedder rate limit exceeded"))
	}
	vector, err := e.embedder.Embed(ctx, opts.Content)
	if err != nil {
		return nil, errs.New(errs.EmbeddingUnavailable, "Add", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, errs.New(errs.Cancelled, "Add", err)
	}

	source := opts.Source
	if source == "" {
		source = store.SourceUserInput
	}

	classification := profile.Classify(opts.Content, opts.Importance, opts.Entities, e.cfg.Profiles.StaticImportanceThreshold)

	tags := append([]string{store.UserTag(opts.UserID)}, opts.ContainerTags...)
	m := &store.Memory{
		ID:              uuid.NewString(),
		Content:         opts.Content,
		Embedding:       vector,
		ModelIdentifier: e.embedder.ModelIdentifier(),
		Confidence:      1.0,
		Importance:      opts.Importance,
		IsStatic:        classification.IsStatic,
		IsLatest:        true,
		Source:          source,
		Entities:        opts.Entities,
		Topics:          opts.Topics,
		ContainerTags:   tags,
	}

	existing, err := e.store.GetByUser(ctx, opts.UserID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "Add", err)
	}
	candidates := make([]relationships.Candidate, 0, len(existing))
	for _, c := range existing {
		candidates = append(candidates, relationships.CandidateFromMemory(c))
	}
	detected := e.detector.Detect(ctx, opts.Content, vector, candidates)

	edges := make([]store.Edge, 0, len(detected))
	for _, d := range detected {
		edges = append(edges, store.Edge{From: m.ID, To: d.TargetID, Type: d.Type, Confidence: d.Confidence})
	}

	if err := e.store.PutNodeWithEdges(ctx, m, edges); err != nil {
		return nil, err
	}

	if e.annIndex != nil {
		if err := e.annIndex.Upsert(ctx, m.ID, vector); err != nil {
			e.log.Warn("ann index upsert failed", "memory_id", m.ID, "error", err)
		}
	}

	if classification.IsStatic {
		// A static fact changes the user's static set; the next
		// GetUserContext should refetch it rather than serve a stale entry.
		e.profileCache.Invalidate(opts.UserID)
	} else {
		e.recordDynamicContext(opts.UserID, m, classification, time.Now().UTC())
	}

	return m, nil
}

// BatchAdd calls Add for each entry in order, stopping at the first failure.
func (e *Engine) BatchAdd(ctx context.Context, entries []AddOptions) ([]*store.Memory, error) {
	out := make([]*store.Memory, 0, len(entries))
	for _, opts := range entries {
		m, err := e.Add(ctx, opts)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Search runs the hybrid retrieval pipeline for a user's query. Reads may
// proceed concurrently with each other; only the embedder call and the
// store scan are suspension points.
func (e *Engine) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	if err := e.requireInitialized("Search"); err != nil {
		return nil, err
	}

	if strings.TrimSpace(opts.Query) == "" {
		return nil, nil
	}

	var vector []float32
	if e.embedderLimiter.TryConsume(1) {
		if v, err := e.embedder.Embed(ctx, opts.Query); err == nil {
			vector = v
		} else {
			e.log.Warn("embedder failed, falling back to sparse-only search", "error", err)
		}
	} else {
		e.log.Warn("embedder rate limited, falling back to sparse-only search")
	}

	results, err := e.retrievalEngine.Search(ctx, retrieval.Query{
		UserID:        opts.UserID,
		Text:          opts.Query,
		Embedding:     vector,
		Limit:         opts.Limit,
		ContainerTags: opts.ContainerTags,
	})
	if err != nil {
		if kind, ok := errs.KindOf(err); ok && kind == errs.Cancelled && opts.AllowPartialOnCancel {
			return nil, nil
		}
		return nil, err
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{Memory: r.Memory, Score: r.Score}
	}
	return out, nil
}

// Update supersedes an existing memory: it inserts a new node carrying the
// revised content and/or importance, wires an UPDATES edge from the new node
// to the old one, and marks the old node is_latest=false. The old node and
// its incoming edges are left in place — callers that want the prior content
// gone entirely should follow up with Delete or BatchDelete.
func (e *Engine) Update(ctx context.Context, opts UpdateOptions) (*store.Memory, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized("Update"); err != nil {
		return nil, err
	}

	old, err := e.store.GetNode(ctx, opts.ID)
	if err != nil {
		return nil, err
	}

	content := old.Content
	vector := old.Embedding
	modelIdentifier := old.ModelIdentifier
	if opts.Content != "" && opts.Content != old.Content {
		if !e.embedderLimiter.TryConsume(1) {
			return nil, errs.New(errs.EmbeddingUnavailable, "Update", fmt.Errorf("embedder rate limit exceeded"))
		}
		v, err := e.embedder.Embed(ctx, opts.Content)
		if err != nil {
			return nil, errs.New(errs.EmbeddingUnavailable, "Update", err)
		}
		content = opts.Content
		vector = v
		modelIdentifier = e.embedder.ModelIdentifier()
	}

	importance := old.Importance
	if opts.Importance != nil {
		importance = *opts.Importance
	}

	classification := profile.Classify(content, importance, old.Entities, e.cfg.Profiles.StaticImportanceThreshold)

	m := &store.Memory{
		ID:              uuid.NewString(),
		Content:         content,
		Embedding:       vector,
		ModelIdentifier: modelIdentifier,
		Confidence:      1.0,
		Importance:      importance,
		IsStatic:        classification.IsStatic,
		IsLatest:        true,
		Source:          old.Source,
		Entities:        old.Entities,
		Topics:          old.Topics,
		ContainerTags:   old.ContainerTags,
	}

	edges := []store.Edge{{From: m.ID, To: old.ID, Type: store.Updates, Confidence: 1.0}}
	if err := e.store.PutNodeWithEdges(ctx, m, edges); err != nil {
		return nil, err
	}

	if e.annIndex != nil && m.Embedding != nil {
		if err := e.annIndex.Upsert(ctx, m.ID, m.Embedding); err != nil {
			e.log.Warn("ann index upsert failed on update", "memory_id", m.ID, "error", err)
		}
	}
	e.profileCache.Invalidate(m.UserID)
	return m, nil
}

// Delete soft-deletes a single memory by setting its confidence to 0. The
// node and its edges remain in the store until a pruning pass removes them.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized("Delete"); err != nil {
		return err
	}

	m, err := e.store.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.SetConfidence(ctx, id, 0); err != nil {
		return err
	}
	e.profileCache.Invalidate(m.UserID)
	return nil
}

// BatchDelete hard-deletes every id immediately — its node, incident edges,
// and ANN entry — bypassing the soft-delete path Delete takes. It collects
// but does not stop on individual failures, returning the first error
// encountered, if any, after attempting every id.
func (e *Engine) BatchDelete(ctx context.Context, ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized("BatchDelete"); err != nil {
		return err
	}

	var firstErr error
	for _, id := range ids {
		m, err := e.store.GetNode(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := e.store.DeleteNode(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if e.annIndex != nil {
			if err := e.annIndex.Delete(ctx, id); err != nil {
				e.log.Warn("ann index delete failed", "memory_id", id, "error", err)
			}
		}
		e.profileCache.Invalidate(m.UserID)
	}
	return firstErr
}

// ConsolidateMemories runs the greedy-clustering deduplication pass for a
// user. Unlike decay, this is caller-triggered, not scheduled.
func (e *Engine) ConsolidateMemories(ctx context.Context, userID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireInitialized("ConsolidateMemories"); err != nil {
		return 0, err
	}
	removed, err := e.consolidator.Consolidate(ctx, userID)
	if err != nil {
		return 0, err
	}
	e.profileCache.Invalidate(userID)
	return removed, nil
}

// ProcessDecay runs one decay pass over every node immediately, independent
// of the background ticker.
func (e *Engine) ProcessDecay(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized("ProcessDecay"); err != nil {
		return 0, err
	}
	return e.decayEngine.ProcessDecay(ctx, time.Now().UTC())
}

// PruneMemories runs one pruning pass over every node immediately.
func (e *Engine) PruneMemories(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized("PruneMemories"); err != nil {
		return 0, err
	}
	return e.decayEngine.PruneMemories(ctx, e.cfg.Engine.TPrune, time.Now().UTC())
}

// GetUserContext returns the combined static-profile and dynamic-RAM-layer
// view of a user, refreshing the in-memory profile cache entry on miss.
func (e *Engine) GetUserContext(ctx context.Context, userID string) (*UserContext, error) {
	if err := e.requireInitialized("GetUserContext"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	statics, err := e.store.GetStatic(ctx, userID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "GetUserContext", err)
	}

	entry, ok := e.profileCache.Get(userID, now)
	if !ok {
		staticIDs := make(map[string]bool, len(statics))
		for _, m := range statics {
			staticIDs[m.ID] = true
		}
		entry = &profile.Entry{
			StaticIDs:   staticIDs,
			Dynamic:     profile.NewRingBuffer(e.cfg.Profiles.DynamicCapacity, e.cfg.Profiles.DynamicMaxAge, e.cfg.Profiles.DynamicMinImportance),
			RefreshedAt: now,
		}
		e.profileCache.Put(userID, entry)
	}

	dynamicItems := entry.Dynamic.Items()
	dynamic := make([]DynamicContextItem, len(dynamicItems))
	for i, item := range dynamicItems {
		dynamic[i] = DynamicContextItem{
			MemoryID:   item.MemoryID,
			Category:   string(item.Category),
			Content:    item.Content,
			Importance: item.Importance,
		}
	}

	return &UserContext{Static: statics, Dynamic: dynamic}, nil
}

// recordDynamicContext inserts m into the user's cached dynamic ring buffer
// if it was classified dynamic and carries a recognizable cue phrase.
func (e *Engine) recordDynamicContext(userID string, m *store.Memory, c profile.Classification, now time.Time) {
	if c.IsStatic {
		return
	}
	category, ok := profile.ExtractCategory(m.Content)
	if !ok {
		return
	}
	entry, ok := e.profileCache.Get(userID, now)
	if !ok {
		entry = &profile.Entry{
			StaticIDs:   map[string]bool{},
			Dynamic:     profile.NewRingBuffer(e.cfg.Profiles.DynamicCapacity, e.cfg.Profiles.DynamicMaxAge, e.cfg.Profiles.DynamicMinImportance),
			RefreshedAt: now,
		}
	}
	entry.Dynamic.Insert(profile.DynamicItem{
		MemoryID:   m.ID,
		Category:   category,
		Content:    m.Content,
		Importance: m.Importance,
		CreatedAt:  now,
	}, now)
	e.profileCache.Put(userID, entry)
}

// Get returns a single memory by id.
func (e *Engine) Get(ctx context.Context, id string) (*store.Memory, error) {
	if err := e.requireInitialized("Get"); err != nil {
		return nil, err
	}
	return e.store.GetNode(ctx, id)
}

// ListByUser returns every memory belonging to userID in insertion order,
// oldest first.
func (e *Engine) ListByUser(ctx context.Context, userID string) ([]*store.Memory, error) {
	if err := e.requireInitialized("ListByUser"); err != nil {
		return nil, err
	}
	ms, err := e.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "ListByUser", err)
	}
	return ms, nil
}

// GetRelated returns the outgoing edges detected for a memory, the relation
// graph's single-hop neighborhood used by the REST façade's "related" route.
func (e *Engine) GetRelated(ctx context.Context, id string) ([]store.Edge, error) {
	if err := e.requireInitialized("GetRelated"); err != nil {
		return nil, err
	}
	return e.store.GetOutgoingEdges(ctx, id)
}

// GetStats returns store-wide occupancy counters.
func (e *Engine) GetStats(ctx context.Context) (store.Stats, error) {
	if err := e.requireInitialized("GetStats"); err != nil {
		return store.Stats{}, err
	}
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return store.Stats{}, errs.New(errs.StoreUnavailable, "GetStats", err)
	}
	return stats, nil
}

// ClearAll wipes every node and edge from the store. Used by tests and the
// CLI's reset path; it leaves the profile cache untouched, so cached entries
// stay until they expire or are invalidated.
func (e *Engine) ClearAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireInitialized("ClearAll"); err != nil {
		return err
	}
	if err := e.store.Clear(ctx); err != nil {
		return errs.New(errs.StoreUnavailable, "ClearAll", err)
	}
	return nil
}
