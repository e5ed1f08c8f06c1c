// Package cache remembers which transport messages already hold the media
// for a (URL, quality) pair so repeated requests are served by forwarding
// instead of downloading again.
//
// Single items are stored under one field and replaced on write. Playlists
// are stored as one record per base key with a field per item index, and
// writes merge into it, so caching index 5 never drops indices 1 to 4.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

const itemField = "item"

// Key identifies cached media: the normalized URL and the quality.
type Key string

// NewKey builds the key for rawURL at quality.
func NewKey(rawURL, quality string) Key {
	return Key(Normalize(rawURL) + "|" + quality)
}

// NewPlaylistKey builds the base key for the items of the playlist at
// rawURL. It never collides with the single-item key of the same URL.
func NewPlaylistKey(rawURL, quality string) Key {
	return NewKey(rawURL, quality) + "|playlist"
}

// Entry is one cached artifact.
type Entry struct {
	Key       Key
	Refs      []domain.ArtifactRef
	CreatedAt time.Time
}

// Gate carries the collaborator verdicts that forbid caching.
type Gate struct {
	Restricted   bool
	HasSubtitles bool
}

// Cacheable reports whether a result may be written.
func (g Gate) Cacheable() bool {
	return !g.Restricted && !g.HasSubtitles
}

type storedEntry struct {
	Refs      []domain.ArtifactRef `json:"refs"`
	CreatedAt time.Time            `json:"created_at"`
}

// Cache reads and writes entries through a kvstore.Store.
type Cache struct {
	store   kvstore.Store
	logger  types.Logger
	metrics types.Metrics
	now     func() time.Time
}

// New creates a Cache on store.
func New(store kvstore.Store, logger types.Logger, metrics types.Metrics) *Cache {
	return &Cache{
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Lookup returns the single-item entry for key. Store errors count as a miss.
func (c *Cache) Lookup(ctx context.Context, key Key) (Entry, bool) {
	rec, ok := c.read(ctx, key)
	if !ok {
		c.metrics.RecordCacheLookup(false)
		return Entry{}, false
	}

	stored, ok := c.decode(ctx, key, itemField, rec[itemField])
	c.metrics.RecordCacheLookup(ok)
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: key, Refs: stored.Refs, CreatedAt: stored.CreatedAt}, true
}

// LookupMany returns the cached refs of the requested playlist indices that
// are present. Missing indices are absent from the map.
func (c *Cache) LookupMany(ctx context.Context, base Key, indices []int) map[int][]domain.ArtifactRef {
	hits := make(map[int][]domain.ArtifactRef)

	rec, ok := c.read(ctx, base)
	if ok {
		for _, idx := range indices {
			field := strconv.Itoa(idx)
			raw, present := rec[field]
			if !present {
				continue
			}
			if stored, ok := c.decode(ctx, base, field, raw); ok {
				hits[idx] = stored.Refs
			}
		}
	}

	for _, idx := range indices {
		_, hit := hits[idx]
		c.metrics.RecordCacheLookup(hit)
	}
	return hits
}

// Put replaces the single-item entry for key.
func (c *Cache) Put(ctx context.Context, key Key, refs []domain.ArtifactRef, gate Gate) error {
	if !c.writable(ctx, key, refs, gate) {
		return nil
	}

	value, err := c.encode(refs)
	if err != nil {
		return err
	}
	return c.store.Replace(ctx, string(key), kvstore.Record{itemField: value})
}

// PutIndex merges the refs of one playlist index into the base entry.
func (c *Cache) PutIndex(ctx context.Context, base Key, index int, refs []domain.ArtifactRef, gate Gate) error {
	return c.PutMany(ctx, base, map[int][]domain.ArtifactRef{index: refs}, gate)
}

// PutMany merges several playlist indices in one write.
func (c *Cache) PutMany(ctx context.Context, base Key, entries map[int][]domain.ArtifactRef, gate Gate) error {
	rec := make(kvstore.Record, len(entries))
	for idx, refs := range entries {
		if !c.writable(ctx, base, refs, gate) {
			continue
		}
		value, err := c.encode(refs)
		if err != nil {
			return err
		}
		rec[strconv.Itoa(idx)] = value
	}
	if len(rec) == 0 {
		return nil
	}
	return c.store.Merge(ctx, string(base), rec)
}

// Invalidate removes every field stored under key.
func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	c.logger.Info(ctx, "Invalidating cache entry", types.Fields{"cache_key": string(key)})
	return c.store.Delete(ctx, string(key))
}

// InvalidateIndex drops one playlist index from the base entry. The field is
// overwritten with an empty value, which reads as a miss, so indices merged
// by other writers are kept.
func (c *Cache) InvalidateIndex(ctx context.Context, base Key, index int) error {
	c.logger.Info(ctx, "Invalidating playlist cache index", types.Fields{"cache_key": string(base), "index": index})
	return c.store.Merge(ctx, string(base), kvstore.Record{strconv.Itoa(index): {}})
}

func (c *Cache) writable(ctx context.Context, key Key, refs []domain.ArtifactRef, gate Gate) bool {
	if len(refs) == 0 {
		return false
	}
	if !gate.Cacheable() {
		c.logger.Debug(ctx, "Result not cacheable", types.Fields{
			"cache_key":     string(key),
			"restricted":    gate.Restricted,
			"has_subtitles": gate.HasSubtitles,
		})
		return false
	}
	return true
}

func (c *Cache) read(ctx context.Context, key Key) (kvstore.Record, bool) {
	rec, err := c.store.Read(ctx, string(key))
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			c.logger.Error(ctx, "Cache read failed", err, types.Fields{"cache_key": string(key)})
		}
		return nil, false
	}
	return rec, true
}

func (c *Cache) encode(refs []domain.ArtifactRef) ([]byte, error) {
	return json.Marshal(storedEntry{Refs: refs, CreatedAt: c.now().UTC()})
}

func (c *Cache) decode(ctx context.Context, key Key, field string, raw []byte) (storedEntry, bool) {
	if len(raw) == 0 {
		return storedEntry{}, false
	}
	var stored storedEntry
	if err := json.Unmarshal(raw, &stored); err != nil || len(stored.Refs) == 0 {
		c.logger.Warn(ctx, "Discarding unreadable cache field", types.Fields{
			"cache_key": string(key),
			"field":     field,
		})
		return storedEntry{}, false
	}
	return stored, true
}
