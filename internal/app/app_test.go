package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscout/internal/config"
	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type stubSource struct {
	name     jobs.SourceName
	listings []jobs.Listing
}

func (s stubSource) Name() jobs.SourceName { return s.name }

func (s stubSource) Scrape(context.Context, string, string) ([]jobs.Listing, error) {
	return s.listings, nil
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 5000, RequestTimeoutSeconds: 10},
		Search: config.SearchConfig{Workers: 2, TimeoutSeconds: 5},
		HTTP:   config.HTTPConfig{TimeoutSeconds: 1, MaxAttempts: 1},
		Cache:  config.CacheConfig{Backend: "memory", TTLMinutes: 60},
	}
}

func TestNewWiresSearchAndHandler(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := memory.NewCacheStore(time.Hour, clock)
	src := stubSource{name: jobs.SourceOCC, listings: []jobs.Listing{{
		Title: "Abogado Corporativo", Company: "Bufete", Location: "CDMX",
		Link: "https://www.occ.com.mx/empleo/1", Source: jobs.SourceOCC,
	}}}

	a, err := New(context.Background(), testConfig(), zap.NewNop(),
		WithCache(cache), WithSources([]jobs.Source{src}), WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	listings, outcome, err := a.Search(context.Background(), "derecho", "CDMX")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.False(t, outcome.CacheHit)

	_, outcome, err = a.Search(context.Background(), "derecho", "CDMX")
	require.NoError(t, err)
	assert.True(t, outcome.CacheHit)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, cache, a.Cache())
	assert.NotNil(t, a.Searcher())
	assert.Equal(t, 5000, a.Config().Server.Port)
}

func TestNewOpensConfiguredBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cache.Backend = "sqlite"
	cfg.Cache.Path = t.TempDir() + "/cache.db"

	a, err := New(context.Background(), cfg, nil, WithSources([]jobs.Source{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	stats, err := a.Cache().Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cache.Backend = "redis"

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "failed to initialize cache")
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := memory.NewCacheStore(time.Minute, clock)
	require.NoError(t, cache.Set(context.Background(), jobs.Query{Career: "civil", Location: "México"},
		[]jobs.Listing{{Title: "Residente de obra", Company: "Constructora", Source: jobs.SourceIndeed}}))

	a, err := New(context.Background(), testConfig(), zap.NewNop(),
		WithCache(cache), WithSources([]jobs.Source{}), WithClock(clock))
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	removed, err := a.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), zap.NewNop(), WithSources([]jobs.Source{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestWarmProxies(t *testing.T) {
	t.Parallel()

	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "10.0.0.1:8080\n10.0.0.2:3128\nnot-a-proxy\n")
	}))
	t.Cleanup(list.Close)

	cfg := testConfig()
	cfg.Proxy = config.ProxyConfig{
		Enabled:  true,
		Capacity: 10,
		Sources:  []config.ProxySource{{Name: "local", URL: list.URL}},
	}

	a, err := New(context.Background(), cfg, zap.NewNop(), WithSources([]jobs.Source{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, 2, a.WarmProxies(context.Background()))
}

func TestWarmProxiesDisabled(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), zap.NewNop(), WithSources([]jobs.Source{}))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Zero(t, a.WarmProxies(context.Background()))
}
