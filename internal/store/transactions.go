package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/synapsegraph/synapse/pkg/errs"
)

// PutNodeWithEdges inserts m and every edge in edges inside a single
// transaction, so a caller cancelled between embedding and commit never
// observes a node without its detected relationships. It is PutNode and
// AddEdge fused into one transaction rather than two independently-committed
// calls.
func (s *Store) PutNodeWithEdges(ctx context.Context, m *Memory, edges []Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = m.CreatedAt
	}
	if m.LastAccessed.IsZero() {
		m.LastAccessed = m.CreatedAt
	}
	m.UserID = userIDFromTags(m.ContainerTags)

	entitiesJSON, err := json.Marshal(nonNil(m.Entities))
	if err != nil {
		return errs.New(errs.ConfigurationError, "PutNodeWithEdges", err)
	}
	topicsJSON, err := json.Marshal(nonNil(m.Topics))
	if err != nil {
		return errs.New(errs.ConfigurationError, "PutNodeWithEdges", err)
	}
	tagsJSON, err := json.Marshal(nonNil(m.ContainerTags))
	if err != nil {
		return errs.New(errs.ConfigurationError, "PutNodeWithEdges", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT insertion_seq FROM memories WHERE id = ?`, m.ID).Scan(&seq)
	switch {
	case err == sql.ErrNoRows:
		seq = s.nextInsertionSeq()
	case err != nil:
		return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (
			id, content, embedding, model_identifier, timestamp, created_at,
			last_accessed, access_count, confidence, importance, is_static,
			is_latest, source, entities, topics, container_tags, user_id, insertion_seq
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			model_identifier = excluded.model_identifier,
			timestamp = excluded.timestamp,
			last_accessed = excluded.last_accessed,
			access_count = excluded.access_count,
			confidence = excluded.confidence,
			importance = excluded.importance,
			is_static = excluded.is_static,
			is_latest = excluded.is_latest,
			source = excluded.source,
			entities = excluded.entities,
			topics = excluded.topics,
			container_tags = excluded.container_tags,
			user_id = excluded.user_id
	`,
		m.ID, m.Content, encodeEmbedding(m.Embedding), m.ModelIdentifier,
		m.Timestamp, m.CreatedAt, m.LastAccessed, m.AccessCount,
		m.Confidence, m.Importance, m.IsStatic, m.IsLatest, string(m.Source),
		string(entitiesJSON), string(topicsJSON), string(tagsJSON), m.UserID, seq,
	)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = ?`, m.ID); err != nil {
		return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
	}
	for _, tag := range m.ContainerTags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, m.ID, tag); err != nil {
			return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
		}
	}

	for _, e := range edges {
		if !IsValidRelationshipType(e.Type) {
			return errs.New(errs.ConfigurationError, "PutNodeWithEdges", fmt.Errorf("invalid relationship type %q", e.Type))
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, e.To).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return errs.New(errs.DanglingEndpoint, "PutNodeWithEdges", fmt.Errorf("node %s does not exist", e.To))
			}
			return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
		}
		if e.Type == Updates {
			if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? AND type = ?`, e.From, Updates); err != nil {
				return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE memories SET is_latest = 0 WHERE id = ?`, e.To); err != nil {
				return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (from_id, to_id, type, confidence) VALUES (?, ?, ?, ?)
			ON CONFLICT(from_id, to_id, type) DO UPDATE SET confidence = excluded.confidence
		`, e.From, e.To, string(e.Type), e.Confidence)
		if err != nil {
			return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return errs.New(errs.Cancelled, "PutNodeWithEdges", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreUnavailable, "PutNodeWithEdges", err)
	}
	return nil
}
