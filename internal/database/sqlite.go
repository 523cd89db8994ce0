package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"photodup/internal/imageprocessing"
)

const schema = `
CREATE TABLE IF NOT EXISTS hash_cache (
	key TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	variants TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hash_cache_path ON hash_cache(path);
CREATE INDEX IF NOT EXISTS idx_hash_cache_updated ON hash_cache(updated_at);`

// storedVariant is the persisted form of one imageprocessing.Variant.
type storedVariant struct {
	Transform imageprocessing.Transform `json:"t"`
	Bits      int                       `json:"b"`
	Words     []uint64                  `json:"w"`
}

// SQLiteStore persists hash sets in a SQLite database so they survive
// between runs.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	hits   atomic.Int64
	misses atomic.Int64
	now    func() time.Time
}

// OpenSQLiteStore opens or creates the cache database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create cache directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open cache database")
	}
	// One connection keeps writers from racing each other into SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create cache schema")
	}

	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	var (
		entry Entry
		raw   string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT width, height, variants FROM hash_cache WHERE key = ?", key.String(),
	).Scan(&entry.Width, &entry.Height, &raw)
	if err == sql.ErrNoRows {
		s.misses.Add(1)
		return Entry{}, false, nil
	}
	if err != nil {
		s.misses.Add(1)
		return Entry{}, false, errors.Wrapf(err, "cache lookup for %s", key.Path)
	}

	variants, err := decodeVariants(raw)
	if err != nil {
		s.misses.Add(1)
		return Entry{}, false, errors.Wrapf(err, "corrupt cache entry for %s", key.Path)
	}
	entry.Variants = variants
	s.hits.Add(1)
	return entry, true, nil
}

func (s *SQLiteStore) Store(ctx context.Context, key Key, entry Entry) error {
	raw, err := encodeVariants(entry.Variants)
	if err != nil {
		return errors.Wrapf(err, "encode cache entry for %s", key.Path)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO hash_cache (key, path, width, height, variants, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key.String(), key.Path, entry.Width, entry.Height, raw, s.now().Unix(),
	)
	if err != nil {
		return errors.Wrapf(err, "cache store for %s", key.Path)
	}
	return nil
}

// Stats counts stored entries; hits and misses cover this process only.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM hash_cache").Scan(&n); err != nil {
		return Stats{}, errors.Wrap(err, "count cache entries")
	}
	return Stats{Entries: n, Hits: s.hits.Load(), Misses: s.misses.Load()}, nil
}

// Clear removes every entry and returns how many were removed.
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM hash_cache")
	if err != nil {
		return 0, errors.Wrap(err, "clear cache")
	}
	return res.RowsAffected()
}

// Prune removes entries not refreshed since before.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM hash_cache WHERE updated_at < ?", before.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "prune cache")
	}
	return res.RowsAffected()
}

// PruneMissing removes entries whose file no longer exists on disk.
func (s *SQLiteStore) PruneMissing(ctx context.Context) (int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT path FROM hash_cache ORDER BY path")
	if err != nil {
		return 0, errors.Wrap(err, "list cached paths")
	}
	var missing []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "scan cached path")
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			missing = append(missing, p)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, errors.Wrap(err, "list cached paths")
	}
	rows.Close()

	var removed int64
	for _, p := range missing {
		res, err := s.db.ExecContext(ctx, "DELETE FROM hash_cache WHERE path = ?", p)
		if err != nil {
			return removed, errors.Wrapf(err, "remove cache entries for %s", p)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if removed > 0 {
		log.Printf("Removed %d cache entries for %d missing files", removed, len(missing))
	}
	return removed, nil
}

func encodeVariants(variants []imageprocessing.Variant) (string, error) {
	stored := make([]storedVariant, len(variants))
	for i, v := range variants {
		stored[i] = storedVariant{
			Transform: v.Transform,
			Bits:      v.Hash.Bits(),
			Words:     v.Hash.Words(),
		}
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeVariants(raw string) ([]imageprocessing.Variant, error) {
	var stored []storedVariant
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, errors.New("no variants")
	}
	variants := make([]imageprocessing.Variant, len(stored))
	for i, sv := range stored {
		hash, err := imageprocessing.NewHashValue(sv.Words, sv.Bits)
		if err != nil {
			return nil, err
		}
		variants[i] = imageprocessing.Variant{Transform: sv.Transform, Hash: hash}
	}
	return variants, nil
}
