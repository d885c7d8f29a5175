// Package testutil provides shared test helpers for packages that need a
// real, schema-initialized store or basic filesystem/assertion scaffolding.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/synapsegraph/synapse/internal/store"
)

// OpenTestStore opens a real, schema-initialized Store backed by a
// temporary SQLite file. The file and connection are cleaned up when the
// test completes.
func OpenTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedMemory inserts m into s, failing the test on error. A convenience for
// tests that need a handful of preexisting nodes before exercising the
// behavior under test.
func SeedMemory(t *testing.T, s *store.Store, m *store.Memory) {
	t.Helper()
	if err := s.PutNode(context.Background(), m); err != nil {
		t.Fatalf("seeding memory %s: %v", m.ID, err)
	}
}

// TempDir creates a temporary directory for testing.
// Automatically cleaned up after test completion.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// TempFile creates a temporary file for testing.
// Automatically cleaned up after test completion.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	return path
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()

	if got != want {
		t.Errorf("Got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if str doesn't contain substr.
func AssertStringContains(t *testing.T, str, substr string) {
	t.Helper()

	if !containsString(str, substr) {
		t.Errorf("String %q does not contain %q", str, substr)
	}
}

func containsString(str, substr string) bool {
	return len(str) >= len(substr) && (str == substr || findSubstring(str, substr))
}

func findSubstring(str, substr string) bool {
	for i := 0; i <= len(str)-len(substr); i++ {
		if str[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
