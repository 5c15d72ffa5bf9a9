package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobscout/internal/jobs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var sample = []jobs.Listing{
	{Title: "Backend Dev", Company: "Acme", Location: "CDMX", Link: "https://example.com/1", Source: jobs.SourceLinkedIn},
	{Title: "Contador", Company: jobs.UnknownCompany, Location: "México", Link: "https://example.com/2", Source: jobs.SourceOCC},
}

func openTestStore(t *testing.T, path string, clock *fakeClock) *CacheStore {
	t.Helper()
	store, err := Open(context.Background(), path, time.Hour, clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCacheStoreRoundTrip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"), clock)
	ctx := context.Background()
	q := jobs.Query{Career: "desarrollador", Location: "México"}

	_, ok, err := store.Get(ctx, q)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, q, sample))
	got, ok, err := store.Get(ctx, q)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sample, got)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, jobs.CacheStats{Entries: 1, TTLMinutes: 60}, stats)
}

func TestCacheStoreExpiresEntries(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"), clock)
	ctx := context.Background()
	q := jobs.Query{Career: "contador", Location: "Jalisco"}

	require.NoError(t, store.Set(ctx, q, sample))
	clock.advance(59 * time.Minute)
	_, ok, err := store.Get(ctx, q)
	require.NoError(t, err)
	require.True(t, ok)

	clock.advance(time.Minute)
	_, ok, err = store.Get(ctx, q)
	require.NoError(t, err)
	require.False(t, ok)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Entries)
}

func TestCacheStoreCleanup(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"), clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, jobs.Query{Career: "abogado", Location: "México"}, sample))
	require.NoError(t, store.Set(ctx, jobs.Query{Career: "chef", Location: "México"}, sample))
	clock.advance(50 * time.Minute)
	require.NoError(t, store.Set(ctx, jobs.Query{Career: "enfermero", Location: "México"}, sample))
	clock.advance(20 * time.Minute)

	removed, err := store.Cleanup(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Entries)
}

func TestCacheStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()
	q := jobs.Query{Career: "ingeniero civil", Location: "Nuevo León"}

	first, err := Open(ctx, path, time.Hour, clock)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, q, sample))
	require.NoError(t, first.Close())

	second := openTestStore(t, path, clock)
	got, ok, err := second.Get(ctx, q)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sample, got)
}

func TestCacheStoreUpsert(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := openTestStore(t, filepath.Join(t.TempDir(), "cache.db"), clock)
	ctx := context.Background()
	q := jobs.Query{Career: "vendedor", Location: "México"}

	require.NoError(t, store.Set(ctx, q, sample))
	require.NoError(t, store.Set(ctx, q, sample[:1]))

	got, ok, err := store.Get(ctx, q)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sample[:1], got)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Entries)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", time.Hour, nil)
	require.Error(t, err)
}
