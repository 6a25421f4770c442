package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/kv"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Config configures the SQLite backend.
type Config struct {
	// Path is the database file. ":memory:" opens a private in-memory database.
	Path string

	// BusyTimeout is how long a writer waits for the database lock. 0 keeps the driver default.
	BusyTimeout time.Duration
}

// Backend implements kv.Backend on a single SQLite table. SQLite compares TEXT
// with the BINARY collation, so range scans follow byte order.
type Backend struct {
	db *sql.DB
}

var _ kv.Backend = (*Backend)(nil)

// Open opens (creating if needed) the database file and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite prefers a single writer; this also keeps ":memory:" to one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
			log.Warn().Err(err).Msg("Failed to set sqlite busy timeout")
		}
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened sqlite backend")

	return &Backend{db: db}, nil
}

// Get retrieves the value stored at key.
func (b *Backend) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := b.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key.Encode()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to get entry: %w", kv.ErrUnavailable, err)
	}

	return value, true, nil
}

// Set upserts value at key.
func (b *Backend) Set(ctx context.Context, key kv.Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if value == nil {
		value = []byte{}
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv_entries(key, value, updated_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key.Encode(), value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to set entry: %w", kv.ErrUnavailable, err)
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, key kv.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key.Encode()); err != nil {
		return fmt.Errorf("%w: failed to delete entry: %w", kv.ErrUnavailable, err)
	}

	return nil
}

// List returns every entry under prefix ordered by encoded key.
func (b *Backend) List(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}

	start, end := kv.PrefixRange(prefix)

	rows, err := b.db.QueryContext(ctx,
		`SELECT key, value FROM kv_entries WHERE key >= ? AND key < ? ORDER BY key`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list entries: %w", kv.ErrUnavailable, err)
	}
	defer rows.Close()

	entries := make([]kv.Entry, 0)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: failed to scan entry: %w", kv.ErrCorrupt, err)
		}
		entries = append(entries, kv.Entry{Key: kv.DecodeKey(key), Value: value})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating entries: %w", kv.ErrUnavailable, err)
	}

	return entries, nil
}

// Ping verifies the database handle is usable.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", kv.ErrUnavailable, err)
	}
	return nil
}

// Close closes the database handle.
func (b *Backend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
