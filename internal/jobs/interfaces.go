package jobs

import (
	"context"
	"net/url"
	"time"
)

// Source scrapes a single job board. Implementations return a possibly empty
// list and only fail for errors they could not absorb.
type Source interface {
	Name() SourceName
	Scrape(ctx context.Context, keyword, location string) ([]Listing, error)
}

// Fetcher retrieves the body of a remote page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// ProxySelector picks a proxy for a single request. ok is false for a direct connection.
type ProxySelector interface {
	Select(ctx context.Context) (proxy *url.URL, ok bool)
}

// CacheStore persists aggregated results keyed by query fingerprint.
type CacheStore interface {
	Get(ctx context.Context, q Query) ([]Listing, bool, error)
	Set(ctx context.Context, q Query, listings []Listing) error
	Cleanup(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (CacheStats, error)
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper pauses the caller, returning early if the context finishes.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
