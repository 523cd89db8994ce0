// Package database provides the hash cache that spares recomputing
// perceptual hashes across runs.
package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"

	"photodup/internal/imageprocessing"
)

// Key identifies one cached hash set. Any change of the file signature or
// of the hashing configuration produces a different key.
type Key struct {
	Path       string
	Size       int64
	ModTime    time.Time
	Algorithm  imageprocessing.Algorithm
	HashSize   int
	Filter     imageprocessing.Filter
	Invariance imageprocessing.Invariance
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%d|%d|%s|%d|%s|%s",
		k.Path, k.Size, k.ModTime.UnixNano(), k.Algorithm, k.HashSize, k.Filter, k.Invariance)
}

// Entry is the cached result of hashing one file.
type Entry struct {
	Width    int
	Height   int
	Variants []imageprocessing.Variant
}

// HashCache is a concurrency safe key/value store of hash sets. A failed
// lookup or store is reported through the error and must be treated by
// callers as a miss or a no-op.
type HashCache interface {
	Lookup(ctx context.Context, key Key) (Entry, bool, error)
	Store(ctx context.Context, key Key, entry Entry) error
}

// Stats describes cache usage.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Noop is used when caching is disabled.
type Noop struct{}

func (Noop) Lookup(context.Context, Key) (Entry, bool, error) { return Entry{}, false, nil }
func (Noop) Store(context.Context, Key, Entry) error           { return nil }

const defaultShards = 16

// MemoryCache keeps hash sets in memory, spread over several go-cache
// instances so concurrent hashing workers rarely contend on one lock.
type MemoryCache struct {
	shards []*cache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a sharded cache. Entries expire after expiration;
// cache.NoExpiration keeps them for the life of the process.
func NewMemoryCache(shards int, expiration, cleanupInterval time.Duration) *MemoryCache {
	if shards <= 0 {
		shards = defaultShards
	}
	m := &MemoryCache{shards: make([]*cache.Cache, shards)}
	for i := range m.shards {
		m.shards[i] = cache.New(expiration, cleanupInterval)
	}
	return m
}

func (m *MemoryCache) shard(key string) *cache.Cache {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

func (m *MemoryCache) Lookup(_ context.Context, key Key) (Entry, bool, error) {
	k := key.String()
	v, ok := m.shard(k).Get(k)
	if !ok {
		m.misses.Add(1)
		return Entry{}, false, nil
	}
	m.hits.Add(1)
	return v.(Entry), true, nil
}

func (m *MemoryCache) Store(_ context.Context, key Key, entry Entry) error {
	k := key.String()
	m.shard(k).Set(k, copyEntry(entry), cache.DefaultExpiration)
	return nil
}

// Clear drops every entry.
func (m *MemoryCache) Clear() {
	for _, s := range m.shards {
		s.Flush()
	}
}

func (m *MemoryCache) Stats() Stats {
	var n int
	for _, s := range m.shards {
		n += s.ItemCount()
	}
	return Stats{Entries: n, Hits: m.hits.Load(), Misses: m.misses.Load()}
}

func copyEntry(e Entry) Entry {
	variants := make([]imageprocessing.Variant, len(e.Variants))
	copy(variants, e.Variants)
	return Entry{Width: e.Width, Height: e.Height, Variants: variants}
}
