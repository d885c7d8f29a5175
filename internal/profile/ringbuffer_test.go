package profile

import (
	"testing"
	"time"
)

func TestRingBufferInsertAndOrder(t *testing.T) {
	r := NewRingBuffer(5, 7*24*time.Hour, 0.6)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	r.Insert(DynamicItem{MemoryID: "a", Content: "a", Importance: 0.5, CreatedAt: now}, now)
	r.Insert(DynamicItem{MemoryID: "b", Content: "b", Importance: 0.5, CreatedAt: now}, now)

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].MemoryID != "b" {
		t.Errorf("items[0] = %s, want most-recent first (b)", items[0].MemoryID)
	}
}

func TestRingBufferEvictsAtCapacity(t *testing.T) {
	r := NewRingBuffer(2, 7*24*time.Hour, 0.6)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	r.Insert(DynamicItem{MemoryID: "low", Importance: 0.1, CreatedAt: now}, now)
	r.Insert(DynamicItem{MemoryID: "high", Importance: 0.9, CreatedAt: now}, now)
	r.Insert(DynamicItem{MemoryID: "new", Importance: 0.5, CreatedAt: now}, now)

	items := r.Items()
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.MemoryID == "low" {
			t.Error("expected lowest-importance item to be evicted first")
		}
	}
}

func TestRingBufferPrunesStaleLowImportance(t *testing.T) {
	r := NewRingBuffer(5, 7*24*time.Hour, 0.6)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := old.Add(10 * 24 * time.Hour)

	r.Insert(DynamicItem{MemoryID: "stale", Importance: 0.3, CreatedAt: old}, old)
	r.Insert(DynamicItem{MemoryID: "important", Importance: 0.8, CreatedAt: old}, old)

	r.Prune(now)

	items := r.Items()
	if len(items) != 1 || items[0].MemoryID != "important" {
		t.Errorf("items = %+v, want only 'important' to survive", items)
	}
}

func TestExtractCategory(t *testing.T) {
	cases := []struct {
		content string
		want    DynamicCategory
	}{
		{"I am working on a new API", CategoryCurrentProject},
		{"struggling with a flaky test", CategoryRecentChallenge},
		{"feeling optimistic today", CategoryRecentMood},
	}
	for _, tc := range cases {
		got, ok := ExtractCategory(tc.content)
		if !ok {
			t.Errorf("ExtractCategory(%q) found no match", tc.content)
			continue
		}
		if got != tc.want {
			t.Errorf("ExtractCategory(%q) = %s, want %s", tc.content, got, tc.want)
		}
	}
}

func TestExtractCategoryNoMatch(t *testing.T) {
	_, ok := ExtractCategory("nothing cue-worthy here")
	if ok {
		t.Error("expected no category match")
	}
}
