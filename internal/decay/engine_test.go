package decay

import (
	"context"
	"testing"
	"time"

	"github.com/synapsegraph/synapse/internal/store"
)

func testParams() Params {
	return Params{
		RStatic:                   0.001,
		REpisodic:                 0.08,
		IDecay:                    24 * time.Hour,
		IPrune:                    7 * 24 * time.Hour,
		TPrune:                    0.1,
		TemporalPenaltyAgeDays:    30,
		TemporalMultiplier:        1.5,
		AccessBoostCap:            0.2,
		AccessBoostRate:           0.02,
		AccessBoostRecencyDays:    7,
		ImportanceBrakeWeight:     0.5,
		PruneExceptionImportance:  0.7,
		PruneExceptionRecencyDays: 7,
	}
}

func TestNextConfidenceAtZeroAgeAppliesOneStep(t *testing.T) {
	p := testParams()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	m := &store.Memory{
		Confidence:   1.0,
		Importance:   0.5,
		CreatedAt:    now,
		LastAccessed: now,
		AccessCount:  0,
	}

	got := NextConfidence(p, m, now)
	// age=0, recency=0: access_boost = min(0.2, 0)*exp(0) = 0; delta = base_rate*1*0.75 - 0
	want := m.Confidence - p.REpisodic*1.0*(1-0.5*0.5)
	if abs(got-want) > 1e-9 {
		t.Errorf("NextConfidence = %v, want %v", got, want)
	}
}

func TestNextConfidenceEpisodicDecaysFasterThanStatic(t *testing.T) {
	p := testParams()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-10 * 24 * time.Hour)

	episodic := &store.Memory{Confidence: 1.0, CreatedAt: created, LastAccessed: created}
	static := &store.Memory{Confidence: 1.0, CreatedAt: created, LastAccessed: created, IsStatic: true}

	episodicNext := NextConfidence(p, episodic, now)
	staticNext := NextConfidence(p, static, now)

	if staticNext <= episodicNext {
		t.Errorf("static decay (%v) should stay above episodic decay (%v)", staticNext, episodicNext)
	}
}

func TestNextConfidenceAccessBoostSlowsDecay(t *testing.T) {
	p := testParams()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-5 * 24 * time.Hour)

	unaccessed := &store.Memory{Confidence: 1.0, CreatedAt: created, LastAccessed: created}
	accessed := &store.Memory{Confidence: 1.0, CreatedAt: created, LastAccessed: now, AccessCount: 10}

	unaccessedNext := NextConfidence(p, unaccessed, now)
	accessedNext := NextConfidence(p, accessed, now)

	if accessedNext <= unaccessedNext {
		t.Errorf("recently accessed node (%v) should decay less than unaccessed (%v)", accessedNext, unaccessedNext)
	}
}

func TestNextConfidenceClampedToZero(t *testing.T) {
	p := testParams()
	p.REpisodic = 2.0 // absurdly high to force clamping
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	m := &store.Memory{Confidence: 0.05, CreatedAt: now, LastAccessed: now}
	got := NextConfidence(p, m, now)
	if got != 0 {
		t.Errorf("NextConfidence = %v, want 0 (clamped)", got)
	}
}

func TestShouldPruneExceptions(t *testing.T) {
	p := testParams()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	oldAccess := now.Add(-30 * 24 * time.Hour)

	cases := []struct {
		name string
		m    *store.Memory
		want bool
	}{
		{"above threshold", &store.Memory{Confidence: 0.5, LastAccessed: oldAccess}, false},
		{"static", &store.Memory{Confidence: 0.05, IsStatic: true, LastAccessed: oldAccess}, false},
		{"high importance", &store.Memory{Confidence: 0.05, Importance: 0.9, LastAccessed: oldAccess}, false},
		{"recently accessed", &store.Memory{Confidence: 0.05, LastAccessed: now}, false},
		{"eligible", &store.Memory{Confidence: 0.05, Importance: 0.1, LastAccessed: oldAccess}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldPrune(p, tc.m, now)
			if got != tc.want {
				t.Errorf("ShouldPrune = %v, want %v", got, tc.want)
			}
		})
	}
}

type fakeStore struct {
	nodes     []*store.Memory
	confUpd   map[string]float64
	deleted   map[string]bool
}

func newFakeStore(nodes []*store.Memory) *fakeStore {
	return &fakeStore{nodes: nodes, confUpd: map[string]float64{}, deleted: map[string]bool{}}
}

func (f *fakeStore) GetAll(ctx context.Context) ([]*store.Memory, error) {
	var out []*store.Memory
	for _, n := range f.nodes {
		if !f.deleted[n.ID] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) SetConfidence(ctx context.Context, id string, confidence float64) error {
	f.confUpd[id] = confidence
	for _, n := range f.nodes {
		if n.ID == id {
			n.Confidence = confidence
		}
	}
	return nil
}

func (f *fakeStore) DeleteNode(ctx context.Context, id string) error {
	f.deleted[id] = true
	return nil
}

func TestProcessDecayUpdatesAllNodes(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	created := now.Add(-60 * 24 * time.Hour)
	fs := newFakeStore([]*store.Memory{
		{ID: "a", Confidence: 1.0, CreatedAt: created, LastAccessed: created},
		{ID: "b", Confidence: 1.0, CreatedAt: created, LastAccessed: created, IsStatic: true},
	})

	e := New(fs, testParams())
	n, err := e.ProcessDecay(context.Background(), now)
	if err != nil {
		t.Fatalf("ProcessDecay: %v", err)
	}
	if n != 2 {
		t.Errorf("updated = %d, want 2", n)
	}
	if fs.confUpd["a"] >= 1.0 {
		t.Errorf("node a confidence not decreased: %v", fs.confUpd["a"])
	}
}

func TestProcessDecaySixtyTicksLowersConfidenceMonotonically(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fs := newFakeStore([]*store.Memory{
		{ID: "a", Confidence: 1.0, CreatedAt: created, LastAccessed: created},
	})
	e := New(fs, testParams())

	prev := 1.0
	now := created
	for i := 0; i < 60; i++ {
		now = now.Add(24 * time.Hour)
		if _, err := e.ProcessDecay(context.Background(), now); err != nil {
			t.Fatalf("ProcessDecay tick %d: %v", i, err)
		}
		cur := fs.nodes[0].Confidence
		if cur > prev {
			t.Fatalf("tick %d: confidence increased from %v to %v", i, prev, cur)
		}
		prev = cur
	}
	if prev >= 1.0 {
		t.Errorf("after 60 ticks confidence should have decreased, got %v", prev)
	}
}

func TestPruneMemoriesRemovesEligibleNodes(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	oldAccess := now.Add(-30 * 24 * time.Hour)
	fs := newFakeStore([]*store.Memory{
		{ID: "keep-static", Confidence: 0.01, IsStatic: true, LastAccessed: oldAccess},
		{ID: "prune-me", Confidence: 0.01, Importance: 0.1, LastAccessed: oldAccess},
	})
	e := New(fs, testParams())

	n, err := e.PruneMemories(context.Background(), 0.1, now)
	if err != nil {
		t.Fatalf("PruneMemories: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed = %d, want 1", n)
	}
	if !fs.deleted["prune-me"] {
		t.Error("expected prune-me to be deleted")
	}
	if fs.deleted["keep-static"] {
		t.Error("expected static node to survive")
	}
}

func TestEngineStartStop(t *testing.T) {
	fs := newFakeStore(nil)
	p := testParams()
	p.IDecay = 10 * time.Millisecond
	p.IPrune = 10 * time.Millisecond
	e := New(fs, p)

	e.Start()
	time.Sleep(30 * time.Millisecond)
	e.Stop()
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
