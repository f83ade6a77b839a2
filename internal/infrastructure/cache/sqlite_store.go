package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"token-score-engine/internal/infrastructure/logger"
)

// SQLiteStore is a persistent key-value cache backed by SQLite. Entries
// carry their own TTL; expiry is lazy on read, with a Sweep method for
// periodic cleanup of rows nothing reads anymore.
type SQLiteStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLiteStore opens (or creates) the cache database at path
func NewSQLiteStore(path string, logger *logger.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithComponent("sqlite-cache"),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache (
			key        TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			ttl        INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// Get returns the cached value for key. Expired entries are deleted on
// read and reported as a miss.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var createdAt, ttl int64

	row := s.db.QueryRowContext(ctx,
		"SELECT data, created_at, ttl FROM cache WHERE key = ?", key)
	if err := row.Scan(&data, &createdAt, &ttl); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}

	if time.Now().Unix() > createdAt+ttl {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key); err != nil {
			s.logger.Warn("failed to evict expired cache entry")
		}
		return nil, false, nil
	}

	return data, true, nil
}

// Set stores a value under key with the given TTL, replacing any previous
// entry
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, data, created_at, ttl) VALUES (?, ?, ?, ?)",
		key, value, time.Now().Unix(), int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Delete removes an entry
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Sweep removes every expired entry and returns the number deleted
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM cache WHERE ? > created_at + ttl", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cache sweep failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
