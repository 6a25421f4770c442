package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/kv"
)

// Backend implements kv.Backend on a single PostgreSQL table keyed by the
// encoded tuple key. The key column uses the "C" collation so range scans
// follow byte order.
type Backend struct {
	pool *pgxpool.Pool
}

var _ kv.Backend = (*Backend)(nil)

// NewBackend creates a PostgreSQL-backed key-value backend on an existing pool.
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{
		pool: pool,
	}
}

// Get retrieves the value stored at key.
func (b *Backend) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := b.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key.Encode()).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get entry: %w", mapPostgresError(err))
	}

	return value, true, nil
}

// Set upserts value at key.
func (b *Backend) Set(ctx context.Context, key kv.Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := b.pool.Exec(ctx, query, key.Encode(), value); err != nil {
		return fmt.Errorf("failed to set entry: %w", mapPostgresError(err))
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, key kv.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	result, err := b.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key.Encode())
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("key", key.String()).
		Int64("rows", result.RowsAffected()).
		Msg("Deleted entry")

	return nil
}

// List returns every entry under prefix ordered by encoded key.
func (b *Backend) List(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}

	start, end := kv.PrefixRange(prefix)

	rows, err := b.pool.Query(ctx, `
		SELECT key, value
		FROM kv_entries
		WHERE key >= $1 AND key < $2
		ORDER BY key
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", mapPostgresError(err))
	}
	defer rows.Close()

	entries := make([]kv.Entry, 0)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", mapPostgresError(err))
		}
		entries = append(entries, kv.Entry{Key: kv.DecodeKey(key), Value: value})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", mapPostgresError(err))
	}

	return entries, nil
}

// Ping verifies connectivity to the database.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", kv.ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
