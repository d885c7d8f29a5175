package store

import (
	"context"
	"time"

	"github.com/synapsegraph/synapse/pkg/errs"
)

// RecordAccess increments access_count and sets last_accessed = now for a
// returned search result.
func (s *Store) RecordAccess(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`, now, id)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "RecordAccess", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.MemoryNotFound, "RecordAccess", nil)
	}
	return nil
}

// SetConfidence overwrites a node's confidence, used by the decay engine
// and by soft-delete (Delete sets confidence to 0).
func (s *Store) SetConfidence(ctx context.Context, id string, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE memories SET confidence = ? WHERE id = ?`, confidence, id)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "SetConfidence", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.MemoryNotFound, "SetConfidence", nil)
	}
	return nil
}

// SetStatic flips is_static, used by the profile classifier.
func (s *Store) SetStatic(ctx context.Context, id string, static bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE memories SET is_static = ? WHERE id = ?`, static, id)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "SetStatic", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.MemoryNotFound, "SetStatic", nil)
	}
	return nil
}

// MergeInto applies a consolidation merge: the union of tags and the
// sum of access counts from `from` are folded into `into`, `from`'s incoming
// edges are rewired to `into`, and `from` is deleted. Runs as a single
// logical unit but reuses the existing node/edge primitives rather than a
// bespoke transaction, since each step is already atomic and consolidation
// tolerates partial progress (failures are absorbed and logged).
func (s *Store) MergeInto(ctx context.Context, from, into *Memory) error {
	merged := *into
	merged.ContainerTags = unionTags(into.ContainerTags, from.ContainerTags)
	merged.AccessCount = into.AccessCount + from.AccessCount

	if err := s.PutNode(ctx, &merged); err != nil {
		return err
	}
	*into = merged
	if err := s.RewireIncomingEdges(ctx, from.ID, into.ID); err != nil {
		return err
	}
	return s.DeleteNode(ctx, from.ID)
}

func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
