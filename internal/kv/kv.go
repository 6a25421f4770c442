package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Separator joins key parts in the encoded form. It sorts below every printable
// character so that a prefix always precedes its extensions.
const Separator = "\x1f"

// Sentinel errors for common error conditions
var (
	ErrInvalidKey  = errors.New("invalid key")
	ErrUnavailable = errors.New("backend unavailable")
	ErrCorrupt     = errors.New("corrupt entry")
	ErrClosed      = errors.New("backend closed")
)

// Key is an ordered tuple key, e.g. ["webhookId", id, "projectName", name].
type Key []string

// Entry is a single key/value pair returned by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Backend is the ordered key-value store the record store is built on.
//
// Implementations must be safe for concurrent use. List returns entries ordered
// by their encoded key.
type Backend interface {
	Get(ctx context.Context, key Key) (value []byte, ok bool, err error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	List(ctx context.Context, prefix Key) ([]Entry, error)
	Ping(ctx context.Context) error
	Close() error
}

// Validate checks that every part of the key is non-empty and free of the
// separator.
func (k Key) Validate() error {
	if len(k) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for i, part := range k {
		if part == "" {
			return fmt.Errorf("%w: part %d is empty", ErrInvalidKey, i)
		}
		if strings.Contains(part, Separator) {
			return fmt.Errorf("%w: part %d contains separator", ErrInvalidKey, i)
		}
	}
	return nil
}

// Encode returns the flat string form used by backends with a single key column.
func (k Key) Encode() string {
	return strings.Join(k, Separator)
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return "[" + strings.Join(k, ", ") + "]"
}

// DecodeKey reverses Encode.
func DecodeKey(s string) Key {
	return Key(strings.Split(s, Separator))
}

// PrefixRange returns the half-open range [start, end) of encoded keys that
// extend prefix by at least one part.
func PrefixRange(prefix Key) (start, end string) {
	start = prefix.Encode() + Separator
	// The separator is 0x1f, so bumping it to 0x20 bounds every extension.
	end = prefix.Encode() + "\x20"
	return start, end
}

// HasPrefix reports whether key extends prefix by at least one part.
func HasPrefix(key, prefix Key) bool {
	if len(key) <= len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
