package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wolfeidau/pagedigest/internal/kv"
)

// Backend implements kv.Backend using in-memory storage.
// This implementation is for testing and single-process use - data is lost on restart.
type Backend struct {
	mu sync.RWMutex

	entries map[string][]byte // encoded key -> value
	closed  bool
}

var _ kv.Backend = (*Backend)(nil)

// NewBackend creates a new in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		entries: make(map[string][]byte),
	}
}

// Get retrieves the value stored at key.
func (b *Backend) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, false, kv.ErrClosed
	}

	value, exists := b.entries[key.Encode()]
	if !exists {
		return nil, false, nil
	}

	// Clone to avoid external modifications
	return clone(value), true, nil
}

// Set stores value at key, replacing any previous value.
func (b *Backend) Set(ctx context.Context, key kv.Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return kv.ErrClosed
	}

	b.entries[key.Encode()] = clone(value)

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, key kv.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return kv.ErrClosed
	}

	delete(b.entries, key.Encode())

	return nil
}

// List returns every entry under prefix ordered by encoded key.
func (b *Backend) List(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, kv.ErrClosed
	}

	start, end := kv.PrefixRange(prefix)

	keys := make([]string, 0)
	for k := range b.entries {
		if strings.HasPrefix(k, start) && k < end {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := make([]kv.Entry, 0, len(keys))
	for _, k := range keys {
		result = append(result, kv.Entry{
			Key:   kv.DecodeKey(k),
			Value: clone(b.entries[k]),
		})
	}

	return result, nil
}

// Ping reports whether the backend is still open.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return kv.ErrClosed
	}
	return nil
}

// Close releases the stored entries.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.entries = nil

	return nil
}

// Len returns the number of stored entries.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.entries)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
