package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/synapsegraph/synapse/pkg/errs"
)

// AddEdge inserts or updates a (from, to, type) edge. Idempotent per triple;
// last write wins on confidence. Fails with DanglingEndpoint if either node
// is absent.
func (s *Store) AddEdge(ctx context.Context, e Edge) error {
	if !IsValidRelationshipType(e.Type) {
		return errs.New(errs.ConfigurationError, "AddEdge", fmt.Errorf("invalid relationship type %q", e.Type))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "AddEdge", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range []string{e.From, e.To} {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, id).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return errs.New(errs.DanglingEndpoint, "AddEdge", fmt.Errorf("node %s does not exist", id))
			}
			return errs.New(errs.StoreUnavailable, "AddEdge", err)
		}
	}

	if e.Type == Updates {
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? AND type = ?`, e.From, Updates); err != nil {
			return errs.New(errs.StoreUnavailable, "AddEdge", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE memories SET is_latest = 0 WHERE id = ?`, e.To); err != nil {
			return errs.New(errs.StoreUnavailable, "AddEdge", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO edges (from_id, to_id, type, confidence) VALUES (?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, type) DO UPDATE SET confidence = excluded.confidence
	`, e.From, e.To, string(e.Type), e.Confidence)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "AddEdge", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreUnavailable, "AddEdge", err)
	}
	return nil
}

// GetOutgoingEdges returns every edge originating at id.
func (s *Store) GetOutgoingEdges(ctx context.Context, id string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryEdges(ctx, `SELECT from_id, to_id, type, confidence FROM edges WHERE from_id = ?`, id)
}

// GetIncomingEdges returns every edge terminating at id.
func (s *Store) GetIncomingEdges(ctx context.Context, id string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryEdges(ctx, `SELECT from_id, to_id, type, confidence FROM edges WHERE to_id = ?`, id)
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "GetEdges", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		var t string
		if err := rows.Scan(&e.From, &e.To, &t, &e.Confidence); err != nil {
			return nil, errs.New(errs.StoreUnavailable, "GetEdges", err)
		}
		e.Type = RelationshipType(t)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RewireIncomingEdges repoints every edge terminating at oldID to newID
// instead, used by the consolidator to preserve incoming relationships
// when a duplicate memory is merged into its cluster representative.
func (s *Store) RewireIncomingEdges(ctx context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "RewireIncomingEdges", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT from_id, type, confidence FROM edges WHERE to_id = ?`, oldID)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "RewireIncomingEdges", err)
	}
	type incoming struct {
		from string
		typ  string
		conf float64
	}
	var edges []incoming
	for rows.Next() {
		var e incoming
		if err := rows.Scan(&e.from, &e.typ, &e.conf); err != nil {
			rows.Close()
			return errs.New(errs.StoreUnavailable, "RewireIncomingEdges", err)
		}
		edges = append(edges, e)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE to_id = ?`, oldID); err != nil {
		return errs.New(errs.StoreUnavailable, "RewireIncomingEdges", err)
	}

	for _, e := range edges {
		if e.from == newID {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (from_id, to_id, type, confidence) VALUES (?, ?, ?, ?)
			ON CONFLICT(from_id, to_id, type) DO UPDATE SET confidence = excluded.confidence
		`, e.from, newID, e.typ, e.conf)
		if err != nil {
			return errs.New(errs.StoreUnavailable, "RewireIncomingEdges", err)
		}
	}

	return tx.Commit()
}
