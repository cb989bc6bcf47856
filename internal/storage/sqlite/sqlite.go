// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/arosales/juntas-seguras/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Serialize writers: the payout guard relies on single-writer updates.
	db.SetMaxOpenConns(1)

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetIdempotencyKey returns the cached response for a key, if any.
func (s *SQLiteStore) GetIdempotencyKey(ctx context.Context, key string) (int, []byte, bool, error) {
	var status int
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT response_status, response_body FROM idempotency_keys WHERE key_id = ?",
		key,
	).Scan(&status, &body)
	if err == sql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	return status, body, true, nil
}

// PutIdempotencyKey stores a response under a key. First write wins.
func (s *SQLiteStore) PutIdempotencyKey(ctx context.Context, key string, status int, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key_id, response_status, response_body, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		key, status, body, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save idempotency key: %w", err)
	}
	return nil
}
