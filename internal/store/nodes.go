package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/synapsegraph/synapse/pkg/errs"
)

// PutNode atomically inserts or replaces a node and its tag index entries
// as a single idempotent upsert.
func (s *Store) PutNode(ctx context.Context, m *Memory) error {
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
		return errs.New(errs.ConfigurationError, "PutNode", err)
	}
	topicsJSON, err := json.Marshal(nonNil(m.Topics))
	if err != nil {
		return errs.New(errs.ConfigurationError, "PutNode", err)
	}
	tagsJSON, err := json.Marshal(nonNil(m.ContainerTags))
	if err != nil {
		return errs.New(errs.ConfigurationError, "PutNode", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "PutNode", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT insertion_seq FROM memories WHERE id = ?`, m.ID).Scan(&seq)
	switch {
	case err == sql.ErrNoRows:
		seq = s.nextInsertionSeq()
	case err != nil:
		return errs.New(errs.StoreUnavailable, "PutNode", err)
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
		return errs.New(errs.StoreUnavailable, "PutNode", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_tags WHERE memory_id = ?`, m.ID); err != nil {
		return errs.New(errs.StoreUnavailable, "PutNode", err)
	}
	for _, tag := range m.ContainerTags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO memory_tags (memory_id, tag) VALUES (?, ?)`, m.ID, tag); err != nil {
			return errs.New(errs.StoreUnavailable, "PutNode", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreUnavailable, "PutNode", err)
	}
	return nil
}

// GetNode fetches a node by id.
func (s *Store) GetNode(ctx context.Context, id string) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, nodeSelectColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.MemoryNotFound, "GetNode", fmt.Errorf("id %s", id))
	}
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "GetNode", err)
	}
	return m, nil
}

// DeleteNode removes a node and all incident edges atomically.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "DeleteNode", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return errs.New(errs.StoreUnavailable, "DeleteNode", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "DeleteNode", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.MemoryNotFound, "DeleteNode", fmt.Errorf("id %s", id))
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreUnavailable, "DeleteNode", err)
	}
	return nil
}

// GetAll returns every node in insertion order, for reproducible tie-breaks
// in retrieval.
func (s *Store) GetAll(ctx context.Context) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, nodeSelectColumns+` FROM memories ORDER BY insertion_seq ASC`)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "GetAll", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetStatic returns all static nodes owned by userID.
func (s *Store) GetStatic(ctx context.Context, userID string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		nodeSelectColumns+` FROM memories WHERE is_static = 1 AND user_id = ? ORDER BY insertion_seq ASC`, userID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "GetStatic", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetByTags returns every node whose container_tags intersects tags.
func (s *Store) GetByTags(ctx context.Context, tags []string) ([]*Memory, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(tags))
	args := make([]any, len(tags))
	for i, t := range tags {
		placeholders[i] = "?"
		args[i] = t
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT m.id, m.content, m.embedding, m.model_identifier, m.timestamp,
			m.created_at, m.last_accessed, m.access_count, m.confidence, m.importance,
			m.is_static, m.is_latest, m.source, m.entities, m.topics, m.container_tags, m.user_id
		FROM memories m
		JOIN memory_tags t ON t.memory_id = m.id
		WHERE t.tag IN (%s)
		ORDER BY m.insertion_seq ASC`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "GetByTags", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetByUser returns all nodes owned by userID, regardless of static/dynamic
// classification, used by the retrieval engine's candidate-set step.
func (s *Store) GetByUser(ctx context.Context, userID string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		nodeSelectColumns+` FROM memories WHERE user_id = ? ORDER BY insertion_seq ASC`, userID)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "GetByUser", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

const nodeSelectColumns = `
	SELECT id, content, embedding, model_identifier, timestamp, created_at,
		last_accessed, access_count, confidence, importance, is_static,
		is_latest, source, entities, topics, container_tags, user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var (
		m                                 Memory
		embeddingBlob                     []byte
		entitiesJSON, topicsJSON, tagsJSON string
		source                            string
	)

	err := row.Scan(
		&m.ID, &m.Content, &embeddingBlob, &m.ModelIdentifier, &m.Timestamp, &m.CreatedAt,
		&m.LastAccessed, &m.AccessCount, &m.Confidence, &m.Importance, &m.IsStatic,
		&m.IsLatest, &source, &entitiesJSON, &topicsJSON, &tagsJSON, &m.UserID,
	)
	if err != nil {
		return nil, err
	}

	m.Source = Source(source)

	m.Embedding, err = decodeEmbedding(embeddingBlob)
	if err != nil {
		return nil, fmt.Errorf("decode embedding for %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &m.Entities); err != nil {
		return nil, fmt.Errorf("decode entities for %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(topicsJSON), &m.Topics); err != nil {
		return nil, fmt.Errorf("decode topics for %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.ContainerTags); err != nil {
		return nil, fmt.Errorf("decode container_tags for %s: %w", m.ID, err)
	}

	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func userIDFromTags(tags []string) string {
	for _, t := range tags {
		if id, ok := strings.CutPrefix(t, "user:"); ok {
			return id
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
