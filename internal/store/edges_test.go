package store

import (
	"context"
	"testing"

	"github.com/synapsegraph/synapse/pkg/errs"
)

func seedNodes(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		if err := s.PutNode(ctx, &Memory{ID: id, Content: id}); err != nil {
			t.Fatalf("PutNode(%s): %v", id, err)
		}
	}
}

func TestAddEdgeDanglingEndpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "a")

	err := s.AddEdge(ctx, Edge{From: "a", To: "missing", Type: RelatedTo, Confidence: 0.5})
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.DanglingEndpoint {
		t.Errorf("KindOf(err) = %v, %v, want DanglingEndpoint, true", kind, ok)
	}
}

func TestAddEdgeInvalidType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "a", "b")

	err := s.AddEdge(ctx, Edge{From: "a", To: "b", Type: "BOGUS", Confidence: 0.5})
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.ConfigurationError {
		t.Errorf("KindOf(err) = %v, %v, want ConfigurationError, true", kind, ok)
	}
}

func TestAddEdgeIdempotentUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "a", "b")

	if err := s.AddEdge(ctx, Edge{From: "a", To: "b", Type: RelatedTo, Confidence: 0.4}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := s.AddEdge(ctx, Edge{From: "a", To: "b", Type: RelatedTo, Confidence: 0.9}); err != nil {
		t.Fatalf("AddEdge (update): %v", err)
	}

	edges, err := s.GetOutgoingEdges(ctx, "a")
	if err != nil {
		t.Fatalf("GetOutgoingEdges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("len(edges) = %d, want 1", len(edges))
	}
	if edges[0].Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9 (last write wins)", edges[0].Confidence)
	}
}

func TestAddEdgeAtMostOneOutgoingUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "a", "b", "c")

	if err := s.AddEdge(ctx, Edge{From: "a", To: "b", Type: Updates, Confidence: 0.8}); err != nil {
		t.Fatalf("AddEdge b: %v", err)
	}
	if err := s.AddEdge(ctx, Edge{From: "a", To: "c", Type: Updates, Confidence: 0.8}); err != nil {
		t.Fatalf("AddEdge c: %v", err)
	}

	edges, err := s.GetOutgoingEdges(ctx, "a")
	if err != nil {
		t.Fatalf("GetOutgoingEdges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("len(edges) = %d, want 1 (at most one outgoing UPDATES edge)", len(edges))
	}
	if edges[0].To != "c" {
		t.Errorf("outgoing UPDATES edge = %+v, want pointed at c", edges[0])
	}
}

func TestAddEdgeUpdatesMarksTargetNotLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "a")
	if err := s.PutNode(ctx, &Memory{ID: "b", Content: "b", IsLatest: true}); err != nil {
		t.Fatalf("PutNode(b): %v", err)
	}

	if err := s.AddEdge(ctx, Edge{From: "a", To: "b", Type: Updates, Confidence: 0.8}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	target, err := s.GetNode(ctx, "b")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if target.IsLatest {
		t.Error("IsLatest = true, want false for a node with an incoming UPDATES edge")
	}
}

func TestAddEdgeAllowsDistinctTypesBetweenSameNodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "a", "b")

	if err := s.AddEdge(ctx, Edge{From: "a", To: "b", Type: Extends, Confidence: 0.5}); err != nil {
		t.Fatalf("AddEdge Extends: %v", err)
	}
	if err := s.AddEdge(ctx, Edge{From: "a", To: "b", Type: RelatedTo, Confidence: 0.3}); err != nil {
		t.Fatalf("AddEdge RelatedTo: %v", err)
	}

	edges, err := s.GetOutgoingEdges(ctx, "a")
	if err != nil {
		t.Fatalf("GetOutgoingEdges: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("len(edges) = %d, want 2 (distinct types coexist)", len(edges))
	}
}

func TestGetIncomingEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "a", "b", "c")

	if err := s.AddEdge(ctx, Edge{From: "a", To: "c", Type: RelatedTo, Confidence: 0.5}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := s.AddEdge(ctx, Edge{From: "b", To: "c", Type: Extends, Confidence: 0.7}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	edges, err := s.GetIncomingEdges(ctx, "c")
	if err != nil {
		t.Fatalf("GetIncomingEdges: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("len(edges) = %d, want 2", len(edges))
	}
}

func TestRewireIncomingEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "old", "new", "other1", "other2")

	if err := s.AddEdge(ctx, Edge{From: "other1", To: "old", Type: RelatedTo, Confidence: 0.4}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := s.AddEdge(ctx, Edge{From: "other2", To: "old", Type: Extends, Confidence: 0.6}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	if err := s.RewireIncomingEdges(ctx, "old", "new"); err != nil {
		t.Fatalf("RewireIncomingEdges: %v", err)
	}

	oldIncoming, err := s.GetIncomingEdges(ctx, "old")
	if err != nil {
		t.Fatalf("GetIncomingEdges(old): %v", err)
	}
	if len(oldIncoming) != 0 {
		t.Errorf("old should have no incoming edges, got %d", len(oldIncoming))
	}

	newIncoming, err := s.GetIncomingEdges(ctx, "new")
	if err != nil {
		t.Fatalf("GetIncomingEdges(new): %v", err)
	}
	if len(newIncoming) != 2 {
		t.Fatalf("len(newIncoming) = %d, want 2", len(newIncoming))
	}
}

func TestRewireIncomingEdgesSkipsSelfLoops(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedNodes(t, s, "old", "new")

	if err := s.AddEdge(ctx, Edge{From: "new", To: "old", Type: RelatedTo, Confidence: 0.5}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	if err := s.RewireIncomingEdges(ctx, "old", "new"); err != nil {
		t.Fatalf("RewireIncomingEdges: %v", err)
	}

	edges, err := s.GetIncomingEdges(ctx, "new")
	if err != nil {
		t.Fatalf("GetIncomingEdges(new): %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("self-loop should be dropped, got %+v", edges)
	}
}
