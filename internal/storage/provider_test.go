package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobscout/internal/storage/memory"
	"github.com/JakeFAU/jobscout/internal/storage/sqlite"
)

func TestOpenSelectsBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mem, err := Open(ctx, Config{Backend: "memory", TTL: time.Hour}, nil)
	require.NoError(t, err)
	require.IsType(t, &memory.CacheStore{}, mem)

	lite, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "c.db"), TTL: time.Hour}, nil)
	require.NoError(t, err)
	defer lite.Close()
	require.IsType(t, &sqlite.CacheStore{}, lite)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Backend: "redis"}, nil)
	require.ErrorContains(t, err, "unknown cache backend")

	_, err = Open(context.Background(), Config{Backend: "postgres"}, nil)
	require.ErrorContains(t, err, "cache.dsn is required")
}
