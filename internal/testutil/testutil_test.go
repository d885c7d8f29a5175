package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/synapsegraph/synapse/internal/store"
)

func TestOpenTestStore(t *testing.T) {
	s := OpenTestStore(t)

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.NodeCount != 0 {
		t.Errorf("expected an empty store, got %d nodes", stats.NodeCount)
	}
}

func TestSeedMemory(t *testing.T) {
	s := OpenTestStore(t)
	now := time.Now().UTC()

	SeedMemory(t, s, &store.Memory{
		ID:            "m1",
		Content:       "prefers dark mode",
		Embedding:     []float32{0.1, 0.2, 0.3},
		CreatedAt:     now,
		LastAccessed:  now,
		Confidence:    1.0,
		Importance:    0.5,
		IsStatic:      true,
		IsLatest:      true,
		Source:        store.SourceUserInput,
		ContainerTags: []string{store.UserTag("alice")},
	})

	got, err := s.GetNode(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Content != "prefers dark mode" {
		t.Errorf("Content = %q, want %q", got.Content, "prefers dark mode")
	}
}

func TestTempDir(t *testing.T) {
	dir := TempDir(t)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Temp directory doesn't exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("Path is not a directory")
	}
}

func TestTempFile(t *testing.T) {
	content := []byte("test content")
	path := TempFile(t, "test.txt", content)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read temp file: %v", err)
	}

	if string(data) != string(content) {
		t.Errorf("Expected content %q, got %q", string(content), string(data))
	}
}

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertEqual(t *testing.T) {
	AssertEqual(t, 1, 1)
	AssertEqual(t, "test", "test")
	AssertEqual(t, true, true)
}

func TestAssertStringContains(t *testing.T) {
	AssertStringContains(t, "hello world", "world")
	AssertStringContains(t, "hello world", "hello")
	AssertStringContains(t, "hello world", "o w")
}
