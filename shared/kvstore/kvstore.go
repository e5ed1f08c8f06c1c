// Package kvstore defines the persistent key-value store used by the cache
// and the transport guard. A key holds a record: a set of named fields whose
// values are opaque bytes. Merge writes touch only the fields they carry, so
// concurrent writers of different fields under one key never lose data.
package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Read when the key holds no fields.
var ErrKeyNotFound = errors.New("key not found")

// Record is the set of fields stored under one key.
type Record map[string][]byte

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// Store is a per-key record store.
type Store interface {
	// Read returns every field stored under key, or ErrKeyNotFound.
	Read(ctx context.Context, key string) (Record, error)

	// Replace swaps the whole record under key for rec.
	Replace(ctx context.Context, key string, rec Record) error

	// Merge upserts the fields of rec, leaving other fields untouched.
	Merge(ctx context.Context, key string, rec Record) error

	// Delete removes key and all its fields. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
