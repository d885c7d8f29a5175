// Package decay implements the background confidence-decay and pruning
// worker.
package decay

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/synapsegraph/synapse/internal/logging"
	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/pkg/config"
)

// Params is the subset of engine configuration the decay formula consumes.
type Params struct {
	RStatic                   float64
	REpisodic                 float64
	IDecay                    time.Duration
	IPrune                    time.Duration
	TPrune                    float64
	TemporalPenaltyAgeDays    float64
	TemporalMultiplier        float64
	AccessBoostCap            float64
	AccessBoostRate           float64
	AccessBoostRecencyDays    float64
	ImportanceBrakeWeight     float64
	PruneExceptionImportance  float64
	PruneExceptionRecencyDays float64
}

// ParamsFrom extracts Params from the full engine config.
func ParamsFrom(cfg config.EngineConfig) Params {
	return Params{
		RStatic:                   cfg.RStatic,
		REpisodic:                 cfg.REpisodic,
		IDecay:                    cfg.IDecay,
		IPrune:                    cfg.IPrune,
		TPrune:                    cfg.TPrune,
		TemporalPenaltyAgeDays:    cfg.TemporalPenaltyAgeDays,
		TemporalMultiplier:        cfg.TemporalMultiplier,
		AccessBoostCap:            cfg.AccessBoostCap,
		AccessBoostRate:           cfg.AccessBoostRate,
		AccessBoostRecencyDays:    cfg.AccessBoostRecencyDays,
		ImportanceBrakeWeight:     cfg.ImportanceBrakeWeight,
		PruneExceptionImportance:  cfg.PruneExceptionImportance,
		PruneExceptionRecencyDays: cfg.PruneExceptionRecencyDays,
	}
}

// NextConfidence applies one decay step to a single node: multiplicative
// temporal penalty, exponential access boost, importance brake. Static
// nodes still decay (at R_static), but at a rate that's effectively
// negligible by default; callers that want "user-confirmed static never
// decays" should skip calling this for such nodes entirely.
func NextConfidence(p Params, m *store.Memory, now time.Time) float64 {
	ageDays := now.Sub(m.CreatedAt).Hours() / 24
	recencyDays := now.Sub(m.LastAccessed).Hours() / 24

	baseRate := p.REpisodic
	if m.IsStatic {
		baseRate = p.RStatic
	}

	temporalMul := 1.0
	if ageDays > p.TemporalPenaltyAgeDays {
		temporalMul = p.TemporalMultiplier
	}

	accessBoost := math.Min(p.AccessBoostCap, float64(m.AccessCount)*p.AccessBoostRate) *
		math.Exp(-recencyDays/p.AccessBoostRecencyDays)

	importanceBrake := 1 - p.ImportanceBrakeWeight*m.Importance

	delta := baseRate*temporalMul*importanceBrake - accessBoost

	confidence := m.Confidence - delta
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// ShouldPrune reports whether m should be removed by a pruning pass. Static,
// user-confirmed, high-importance, or recently-accessed nodes survive even
// below T_prune.
func ShouldPrune(p Params, m *store.Memory, now time.Time) bool {
	if m.Confidence >= p.TPrune {
		return false
	}
	if m.IsStatic {
		return false
	}
	if m.Importance >= p.PruneExceptionImportance {
		return false
	}
	recencyDays := now.Sub(m.LastAccessed).Hours() / 24
	if recencyDays <= p.PruneExceptionRecencyDays {
		return false
	}
	return true
}

// Store is the subset of *store.Store the decay engine depends on.
type Store interface {
	GetAll(ctx context.Context) ([]*store.Memory, error)
	SetConfidence(ctx context.Context, id string, confidence float64) error
	DeleteNode(ctx context.Context, id string) error
}

// Engine is the background worker driving periodic decay and pruning ticks.
// Grounded on other_examples' ConsolidationService: a time.Ticker, a select
// over the ticker channel and a stop channel, Start/Stop methods, and a
// sync.WaitGroup to join the goroutine on Stop.
type Engine struct {
	store  Store
	params Params
	log    *logging.Logger

	decayStop chan struct{}
	pruneStop chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New constructs a decay Engine. It does not start any background work
// until Start is called.
func New(s Store, params Params) *Engine {
	return &Engine{store: s, params: params, log: logging.GetLogger("decay")}
}

// Start launches the decay and pruning tickers as independent goroutines.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.decayStop = make(chan struct{})
	e.pruneStop = make(chan struct{})

	e.wg.Add(2)
	go e.runTicker(e.params.IDecay, e.decayStop, e.tickDecay)
	go e.runTicker(e.params.IPrune, e.pruneStop, e.tickPrune)
}

// Stop halts both background tickers and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.decayStop)
	close(e.pruneStop)
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) runTicker(interval time.Duration, stop chan struct{}, tick func(ctx context.Context)) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			tick(ctx)
			cancel()
		case <-stop:
			return
		}
	}
}

func (e *Engine) tickDecay(ctx context.Context) {
	n, err := e.ProcessDecay(ctx, time.Now())
	if err != nil {
		e.log.Error("decay tick failed", "error", err)
		return
	}
	e.log.Info("decay tick complete", "updated", n)
}

func (e *Engine) tickPrune(ctx context.Context) {
	n, err := e.PruneMemories(ctx, e.params.TPrune, time.Now())
	if err != nil {
		e.log.Error("prune tick failed", "error", err)
		return
	}
	e.log.Info("prune tick complete", "removed", n)
}

// ProcessDecay applies one decay pass over every node, updating confidence.
// Individual node failures are absorbed and logged; the pass continues and
// reports the count of nodes actually updated.
func (e *Engine) ProcessDecay(ctx context.Context, now time.Time) (int, error) {
	nodes, err := e.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, m := range nodes {
		next := NextConfidence(e.params, m, now)
		if next == m.Confidence {
			continue
		}
		if err := e.store.SetConfidence(ctx, m.ID, next); err != nil {
			e.log.Warn("decay update failed for node", "id", m.ID, "error", err)
			continue
		}
		updated++
	}
	return updated, nil
}

// PruneMemories removes every node with confidence below threshold that does
// not qualify for one of the pruning exceptions, returning the count removed.
func (e *Engine) PruneMemories(ctx context.Context, threshold float64, now time.Time) (int, error) {
	params := e.params
	params.TPrune = threshold

	nodes, err := e.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, m := range nodes {
		if !ShouldPrune(params, m, now) {
			continue
		}
		if err := e.store.DeleteNode(ctx, m.ID); err != nil {
			e.log.Warn("prune delete failed for node", "id", m.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
