// Package storage selects the cache backend used for aggregation results.
// The backends live in subpackages and all implement jobs.CacheStore.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/storage/memory"
	"github.com/JakeFAU/jobscout/internal/storage/postgres"
	"github.com/JakeFAU/jobscout/internal/storage/sqlite"
)

// Supported backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config describes which backend to open and how.
type Config struct {
	Backend string
	// Path is the SQLite database file.
	Path string
	// DSN, Table and the pool limits configure the Postgres backend.
	// Zero limits keep the pgx defaults.
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	TTL             time.Duration
}

// Open returns the configured cache store. A nil clock uses the wall clock.
func Open(ctx context.Context, cfg Config, clock jobs.Clock) (jobs.CacheStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.Path, cfg.TTL, clock)
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return store, nil
	case BackendPostgres:
		store, err := postgres.NewCacheStore(ctx, postgres.CacheStoreConfig{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			TTL:             cfg.TTL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		}, clock)
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		return store, nil
	case BackendMemory:
		return memory.NewCacheStore(cfg.TTL, clock), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
