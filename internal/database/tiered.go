package database

import (
	"context"
	"log"
)

// TieredCache reads through a MemoryCache into a SQLiteStore and writes to
// both. A failing store only degrades the cache to memory.
type TieredCache struct {
	mem   *MemoryCache
	store *SQLiteStore
}

func NewTieredCache(mem *MemoryCache, store *SQLiteStore) *TieredCache {
	return &TieredCache{mem: mem, store: store}
}

func (t *TieredCache) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	if entry, ok, _ := t.mem.Lookup(ctx, key); ok {
		return entry, true, nil
	}
	if t.store == nil {
		return Entry{}, false, nil
	}

	entry, ok, err := t.store.Lookup(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	_ = t.mem.Store(ctx, key, entry)
	return entry, true, nil
}

func (t *TieredCache) Store(ctx context.Context, key Key, entry Entry) error {
	_ = t.mem.Store(ctx, key, entry)
	if t.store == nil {
		return nil
	}
	return t.store.Store(ctx, key, entry)
}

// Stats reports the persistent entry count when a store is attached and the
// memory tier's hit counters.
func (t *TieredCache) Stats(ctx context.Context) (Stats, error) {
	stats := t.mem.Stats()
	if t.store == nil {
		return stats, nil
	}
	persisted, err := t.store.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.Entries = persisted.Entries
	stats.Hits += persisted.Hits
	return stats, nil
}

// Clear empties both tiers.
func (t *TieredCache) Clear(ctx context.Context) (int64, error) {
	n := int64(t.mem.Stats().Entries)
	t.mem.Clear()
	if t.store == nil {
		return n, nil
	}
	removed, err := t.store.Clear(ctx)
	if err != nil {
		return n, err
	}
	log.Printf("Cleared %d persisted cache entries", removed)
	return removed, nil
}

func (t *TieredCache) Close() error {
	if t.store == nil {
		return nil
	}
	return t.store.Close()
}
