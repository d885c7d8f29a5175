package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/synapsegraph/synapse/pkg/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("store file was not created")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("store file was not created under nested directory")
	}
}

func TestEngineMeta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.EngineMeta(ctx, "last_decay_at"); err != nil || ok {
		t.Fatalf("expected no value, got ok=%v err=%v", ok, err)
	}

	if err := s.SetEngineMeta(ctx, "last_decay_at", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatalf("SetEngineMeta: %v", err)
	}
	value, ok, err := s.EngineMeta(ctx, "last_decay_at")
	if err != nil || !ok {
		t.Fatalf("expected value, got ok=%v err=%v", ok, err)
	}
	if value != "2026-01-01T00:00:00Z" {
		t.Errorf("value = %q", value)
	}

	if err := s.SetEngineMeta(ctx, "last_decay_at", "2026-02-01T00:00:00Z"); err != nil {
		t.Fatalf("SetEngineMeta overwrite: %v", err)
	}
	value, _, _ = s.EngineMeta(ctx, "last_decay_at")
	if value != "2026-02-01T00:00:00Z" {
		t.Errorf("value after overwrite = %q", value)
	}
}

func TestStatsAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m := &Memory{ID: idFor(i), Content: "content", ContainerTags: []string{"user:alice"}}
		if err := s.PutNode(ctx, m); err != nil {
			t.Fatalf("PutNode: %v", err)
		}
	}
	if err := s.AddEdge(ctx, Edge{From: idFor(0), To: idFor(1), Type: RelatedTo, Confidence: 0.5}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NodeCount != 3 {
		t.Errorf("NodeCount = %d, want 3", stats.NodeCount)
	}
	if stats.EdgeCount != 1 {
		t.Errorf("EdgeCount = %d, want 1", stats.EdgeCount)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats after Clear: %v", err)
	}
	if stats.NodeCount != 0 || stats.EdgeCount != 0 {
		t.Errorf("stats after Clear = %+v, want zero", stats)
	}
}

func TestEngineMetaNotFoundIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	if _, ok, err := s.EngineMeta(context.Background(), "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if ok {
		t.Error("expected ok=false for missing key")
	}
}

func TestGetNodeMissingReturnsMemoryNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNode(context.Background(), "missing-id")
	kind, ok := errs.KindOf(err)
	if !ok || kind != errs.MemoryNotFound {
		t.Errorf("KindOf(err) = %v, %v, want MemoryNotFound, true", kind, ok)
	}
}

func idFor(i int) string {
	return "mem-" + string(rune('a'+i))
}
