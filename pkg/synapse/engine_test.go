package synapse

import (
	"context"
	"path/filepath"
	"testing"

	intembedder "github.com/synapsegraph/synapse/internal/embedder"
	"github.com/synapsegraph/synapse/internal/store"
	"github.com/synapsegraph/synapse/pkg/config"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Qdrant.Enabled = false

	e := New(cfg, intembedder.NewDeterministic(cfg.Engine.EmbeddingDimensions))
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestOperationsBeforeInitializeFailNotInitialized(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	e := New(cfg, intembedder.NewDeterministic(cfg.Engine.EmbeddingDimensions))

	_, err := e.Add(context.Background(), AddOptions{UserID: "alice", Content: "hello"})
	if err == nil {
		t.Fatal("expected NotInitialized error before Initialize")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	e := testEngine(t)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestAddThenSearchRoundTrip(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	m, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "my favorite coffee is espresso", Importance: 0.5})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected a generated id")
	}

	results, err := e.Search(ctx, SearchOptions{UserID: "alice", Query: "favorite coffee espresso", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != m.ID {
		t.Fatalf("results = %+v, want the added memory", results)
	}
}

func TestSearchEmptyQueryReturnsEmptyNoError(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "my favorite coffee is espresso"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := e.Search(ctx, SearchOptions{UserID: "alice", Query: "  ", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want empty for a blank query", results)
	}
}

func TestAddDetectsUpdatesRelationship(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	first, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "my favorite coffee is espresso"})
	if err != nil {
		t.Fatalf("Add first: %v", err)
	}
	second, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "my favorite coffee is espresso"})
	if err != nil {
		t.Fatalf("Add second: %v", err)
	}

	stats, err := e.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.NodeCount != 2 {
		t.Fatalf("NodeCount = %d, want 2", stats.NodeCount)
	}
	if stats.EdgeCount < 1 {
		t.Fatalf("EdgeCount = %d, want at least 1 (UPDATES edge from second to first)", stats.EdgeCount)
	}
	_ = first
	_ = second
}

func TestDeleteSoftDeletesMemory(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	m, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "temporary note"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := e.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	stats, err := e.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.NodeCount != 1 {
		t.Errorf("NodeCount = %d, want 1 (soft-delete keeps the node)", stats.NodeCount)
	}

	got, err := e.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 after Delete", got.Confidence)
	}
}

func TestBatchDeleteHardDeletesMemory(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	m, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "temporary note"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := e.BatchDelete(ctx, []string{m.ID}); err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}

	stats, err := e.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.NodeCount != 0 {
		t.Errorf("NodeCount = %d, want 0 after BatchDelete", stats.NodeCount)
	}
}

func TestUpdateCreatesNewNodeWithUpdatesEdge(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	m, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "original content"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	newImportance := 0.9
	updated, err := e.Update(ctx, UpdateOptions{ID: m.ID, Content: "revised content", Importance: &newImportance})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID == m.ID {
		t.Fatal("Update returned the same node id, want a new node")
	}
	if updated.Content != "revised content" {
		t.Errorf("Content = %q", updated.Content)
	}
	if updated.Importance != 0.9 {
		t.Errorf("Importance = %v, want 0.9", updated.Importance)
	}
	if !updated.IsLatest {
		t.Error("IsLatest = false on the new node, want true")
	}

	old, err := e.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get(old): %v", err)
	}
	if old.IsLatest {
		t.Error("IsLatest = true on the superseded node, want false")
	}

	edges, err := e.GetRelated(ctx, updated.ID)
	if err != nil {
		t.Fatalf("GetRelated: %v", err)
	}
	if len(edges) != 1 || edges[0].To != m.ID || edges[0].Type != store.Updates {
		t.Errorf("edges = %+v, want one UPDATES edge to %s", edges, m.ID)
	}

	stats, err := e.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.NodeCount != 2 {
		t.Errorf("NodeCount = %d, want 2 (old node preserved alongside the new one)", stats.NodeCount)
	}
}

func TestConsolidateMemoriesThroughFacade(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "working on the quarterly report draft"}); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	removed, err := e.ConsolidateMemories(ctx, "alice")
	if err != nil {
		t.Fatalf("ConsolidateMemories: %v", err)
	}
	if removed == 0 {
		t.Error("expected near-duplicate memories to be consolidated")
	}
}

func TestGetUserContextSeparatesStaticAndDynamic(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "my name is Alice", Importance: 0.5}); err != nil {
		t.Fatalf("Add static: %v", err)
	}
	if _, err := e.Add(ctx, AddOptions{UserID: "alice", Content: "working on the migration project"}); err != nil {
		t.Fatalf("Add dynamic: %v", err)
	}

	userCtx, err := e.GetUserContext(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserContext: %v", err)
	}
	if len(userCtx.Static) != 1 {
		t.Errorf("Static = %+v, want 1 static memory", userCtx.Static)
	}
	if len(userCtx.Dynamic) != 1 {
		t.Errorf("Dynamic = %+v, want 1 dynamic entry", userCtx.Dynamic)
	}
}

func TestCloseThenOperationsFail(t *testing.T) {
	e := testEngine(t)
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := e.Add(context.Background(), AddOptions{UserID: "alice", Content: "x"}); err == nil {
		t.Fatal("expected error after Close")
	}
}
