package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/synapsegraph/synapse/internal/logging"
	"github.com/synapsegraph/synapse/pkg/errs"
)

// Store is the durable, transactional graph store. It wraps a single
// *sql.DB capped at one open connection, guarded by a RWMutex that every
// write method holds exclusively and every read method holds shared. The
// facade serializes its own write paths with a separate mutex one layer up.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex

	insertionSeq atomic.Int64

	log *logging.Logger
}

// Open opens (creating if necessary) a SQLite-backed store at path and
// initializes its schema.
func Open(path string) (*Store, error) {
	log := logging.GetLogger("store")

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.New(errs.StoreUnavailable, "Open", fmt.Errorf("create store directory: %w", err))
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errs.New(errs.StoreUnavailable, "Open", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, log: log}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	seq, err := s.maxInsertionSeq()
	if err != nil {
		db.Close()
		return nil, err
	}
	s.insertionSeq.Store(seq)

	log.Info("store opened", "path", path)
	return s, nil
}

func (s *Store) initSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.New(errs.StoreUnavailable, "InitSchema", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(coreSchema); err != nil {
		return errs.New(errs.StoreUnavailable, "InitSchema", fmt.Errorf("core schema: %w", err))
	}
	if _, err := tx.Exec(fts5Schema); err != nil {
		return errs.New(errs.StoreUnavailable, "InitSchema", fmt.Errorf("fts5 schema: %w", err))
	}

	return tx.Commit()
}

func (s *Store) maxInsertionSeq() (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(insertion_seq) FROM memories`).Scan(&seq)
	if err != nil {
		return 0, errs.New(errs.StoreUnavailable, "Open", err)
	}
	return seq.Int64, nil
}

func (s *Store) nextInsertionSeq() int64 {
	return s.insertionSeq.Add(1)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the filesystem path backing the store.
func (s *Store) Path() string {
	return s.path
}

// EngineMeta reads a single engine-metadata value. ok is false if unset.
func (s *Store) EngineMeta(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM engine_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.New(errs.StoreUnavailable, "EngineMeta", err)
	}
	return value, true, nil
}

// SetEngineMeta upserts a single engine-metadata value.
func (s *Store) SetEngineMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO engine_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "SetEngineMeta", err)
	}
	return nil
}

// Stats reports node/edge counts and mean out-degree.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&stats.NodeCount); err != nil {
		return Stats{}, errs.New(errs.StoreUnavailable, "Stats", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&stats.EdgeCount); err != nil {
		return Stats{}, errs.New(errs.StoreUnavailable, "Stats", err)
	}
	if stats.NodeCount > 0 {
		stats.MeanOutDegree = float64(stats.EdgeCount) / float64(stats.NodeCount)
	}
	return stats, nil
}

// Clear removes every node and edge in a single transaction.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.New(errs.StoreUnavailable, "Clear", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges`); err != nil {
		return errs.New(errs.StoreUnavailable, "Clear", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return errs.New(errs.StoreUnavailable, "Clear", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM engine_meta`); err != nil {
		return errs.New(errs.StoreUnavailable, "Clear", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.New(errs.StoreUnavailable, "Clear", err)
	}
	s.insertionSeq.Store(0)
	return nil
}
