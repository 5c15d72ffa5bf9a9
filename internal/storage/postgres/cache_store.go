// Package postgres provides a Postgres-backed cache store for shared deployments.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobscout/internal/clock/system"
	"github.com/JakeFAU/jobscout/internal/hash/sha256"
	"github.com/JakeFAU/jobscout/internal/jobs"
)

const defaultTable = "jobscout_cache"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CacheStoreConfig controls the Postgres connection pool used for cache rows.
type CacheStoreConfig struct {
	DSN             string
	Table           string
	TTL             time.Duration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// CacheStore writes cache rows into Postgres.
type CacheStore struct {
	pool  pool
	table string
	ttl   time.Duration
	clock jobs.Clock
}

// NewCacheStore connects to Postgres and ensures the cache table exists.
func NewCacheStore(ctx context.Context, cfg CacheStoreConfig, clock jobs.Clock) (*CacheStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("cache.dsn is required")
	}
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewCacheStoreWithPool(p, cfg.Table, cfg.TTL, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// poolConfig parses the DSN and applies the non-zero pool limits.
func poolConfig(cfg CacheStoreConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	return poolCfg, nil
}

// NewCacheStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCacheStoreWithPool(p pool, table string, ttl time.Duration, clock jobs.Clock) (*CacheStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if clock == nil {
		clock = system.Clock{}
	}
	return &CacheStore{pool: p, table: table, ttl: ttl, clock: clock}, nil
}

// EnsureSchema creates the cache table and its created_at index.
func (s *CacheStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	key TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create cache table: %w", err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_created_at_idx ON %[1]s (created_at)`, s.table)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create cache index: %w", err)
	}
	return nil
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
	query := fmt.Sprintf(`SELECT data, created_at FROM %s WHERE key = $1`, s.table)
	err = s.pool.QueryRow(ctx, query, key).Scan(&data, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %w", err)
	}

	if s.clock.Now().Sub(createdAt) >= s.ttl {
		del := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
		if _, err := s.pool.Exec(ctx, del, key); err != nil {
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
	query := fmt.Sprintf(`
INSERT INTO %s (key, data, created_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, created_at = EXCLUDED.created_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, key, string(data), s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Cleanup deletes every row older than the TTL.
func (s *CacheStore) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-s.ttl)
	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at <= $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats counts rows, expired ones included until they are swept.
func (s *CacheStore) Stats(ctx context.Context) (jobs.CacheStats, error) {
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return jobs.CacheStats{}, fmt.Errorf("count cache rows: %w", err)
	}
	return jobs.CacheStats{Entries: n, TTLMinutes: int(s.ttl / time.Minute)}, nil
}

// Close releases the underlying pool resources.
func (s *CacheStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
