package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/kv"
)

const defaultNamespace = "pagedigest:"

// Config configures the Redis backend.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Namespace prefixes every Redis key written by the backend.
	// Default: "pagedigest:"
	Namespace string
}

// Backend implements kv.Backend on Redis. Values live in plain string keys and
// a single sorted set (all scores zero) indexes the encoded keys so that
// prefix scans can use ZRANGEBYLEX and come back in byte order.
type Backend struct {
	client    *redis.Client
	namespace string
}

var _ kv.Backend = (*Backend)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, cfg.Namespace), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, namespace string) *Backend {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Backend{
		client:    client,
		namespace: namespace,
	}
}

func (b *Backend) valueKey(encoded string) string {
	return b.namespace + "v:" + encoded
}

func (b *Backend) indexKey() string {
	return b.namespace + "index"
}

// Get retrieves the value stored at key.
func (b *Backend) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	value, err := b.client.Get(ctx, b.valueKey(key.Encode())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: failed to get entry: %w", kv.ErrUnavailable, err)
	}

	return value, true, nil
}

// Set stores value at key and indexes the key in one transaction.
func (b *Backend) Set(ctx context.Context, key kv.Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	encoded := key.Encode()
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.valueKey(encoded), value, 0)
		pipe.ZAdd(ctx, b.indexKey(), redis.Z{Score: 0, Member: encoded})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to set entry: %w", kv.ErrUnavailable, err)
	}

	return nil
}

// Delete removes key and its index entry. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, key kv.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	encoded := key.Encode()
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.valueKey(encoded))
		pipe.ZRem(ctx, b.indexKey(), encoded)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete entry: %w", kv.ErrUnavailable, err)
	}

	return nil
}

// List returns every entry under prefix ordered by encoded key. Keys whose value
// disappeared between the index read and the value read are skipped.
func (b *Backend) List(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}

	start, end := kv.PrefixRange(prefix)

	keys, err := b.client.ZRangeByLex(ctx, b.indexKey(), &redis.ZRangeBy{
		Min: "[" + start,
		Max: "(" + end,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan index: %w", kv.ErrUnavailable, err)
	}

	entries := make([]kv.Entry, 0, len(keys))
	if len(keys) == 0 {
		return entries, nil
	}

	valueKeys := make([]string, len(keys))
	for i, k := range keys {
		valueKeys[i] = b.valueKey(k)
	}

	values, err := b.client.MGet(ctx, valueKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read entries: %w", kv.ErrUnavailable, err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			log.Debug().Str("key", keys[i]).Msg("Indexed key has no value, skipping")
			continue
		}
		entries = append(entries, kv.Entry{Key: kv.DecodeKey(keys[i]), Value: []byte(s)})
	}

	return entries, nil
}

// Ping checks the Redis connection.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", kv.ErrUnavailable, err)
	}
	return nil
}

// Close closes the Redis client.
func (b *Backend) Close() error {
	return b.client.Close()
}
