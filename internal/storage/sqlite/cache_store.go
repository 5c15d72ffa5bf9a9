// Package sqlite provides the default file-backed cache store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/jobscout/internal/clock/system"
	"github.com/JakeFAU/jobscout/internal/hash/sha256"
	"github.com/JakeFAU/jobscout/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_created_at ON cache (created_at);`

// CacheStore persists aggregation results in a local SQLite file.
type CacheStore struct {
	db    *sql.DB
	ttl   time.Duration
	clock jobs.Clock
}

// Open creates or opens the database at path and ensures the schema exists.
// A nil clock uses the wall clock.
func Open(ctx context.Context, path string, ttl time.Duration, clock jobs.Clock) (*CacheStore, error) {
	if path == "" {
		return nil, errors.New("cache.path is required")
	}
	if clock == nil {
		clock = system.Clock{}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &CacheStore{db: db, ttl: ttl, clock: clock}, nil
}

// Get returns the cached listings for q while they are younger than the TTL.
// An expired row is deleted and reported as a miss.
func (s *CacheStore) Get(ctx context.Context, q jobs.Query) ([]jobs.Listing, bool, error) {
	key, err := sha256.Fingerprint(q)
	if err != nil {
		return nil, false, fmt.Errorf("fingerprint query: %w", err)
	}

	var (
		data      string
		createdAt time.Time
	)
	err = s.db.QueryRowContext(ctx, `SELECT data, created_at FROM cache WHERE key = ?`, key).Scan(&data, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}

	if s.clock.Now().Sub(createdAt) >= s.ttl {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
			return nil, false, fmt.Errorf("delete expired cache row: %w", err)
		}
		return nil, false, nil
	}

	var listings []jobs.Listing
	if err := json.Unmarshal([]byte(data), &listings); err != nil {
		return nil, false, fmt.Errorf("decode cache payload: %w", err)
	}
	return listings, true, nil
}

// Set upserts listings for q with the current time.
func (s *CacheStore) Set(ctx context.Context, q jobs.Query, listings []jobs.Listing) error {
	key, err := sha256.Fingerprint(q)
	if err != nil {
		return fmt.Errorf("fingerprint query: %w", err)
	}
	if listings == nil {
		listings = []jobs.Listing{}
	}
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO cache (key, data, created_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET data = excluded.data, created_at = excluded.created_at`,
		key, string(data), s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Cleanup deletes every row older than the TTL.
func (s *CacheStore) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-s.ttl)
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE created_at <= ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}
	return n, nil
}

// Stats counts rows, expired ones included until they are swept.
func (s *CacheStore) Stats(ctx context.Context) (jobs.CacheStats, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`).Scan(&n); err != nil {
		return jobs.CacheStats{}, fmt.Errorf("count cache rows: %w", err)
	}
	return jobs.CacheStats{Entries: n, TTLMinutes: int(s.ttl / time.Minute)}, nil
}

// Close closes the database.
func (s *CacheStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
