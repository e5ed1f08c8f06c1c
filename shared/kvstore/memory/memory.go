// Package memory is an in-process kvstore.Store used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
)

// Store keeps records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]kvstore.Record
}

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]kvstore.Record)}
}

func (s *Store) Read(ctx context.Context, key string) (kvstore.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok || len(rec) == 0 {
		return nil, kvstore.ErrKeyNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Replace(ctx context.Context, key string, rec kvstore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(rec) == 0 {
		delete(s.records, key)
		return nil
	}
	s.records[key] = rec.Clone()
	return nil
}

func (s *Store) Merge(ctx context.Context, key string, rec kvstore.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[key]
	if !ok {
		existing = make(kvstore.Record, len(rec))
		s.records[key] = existing
	}
	for field, value := range rec {
		existing[field] = append([]byte(nil), value...)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Len reports the number of keys held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Close() error { return nil }
