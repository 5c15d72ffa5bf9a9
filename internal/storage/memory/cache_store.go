// Package memory provides an in-process cache store for tests and ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/jobscout/internal/clock/system"
	"github.com/JakeFAU/jobscout/internal/hash/sha256"
	"github.com/JakeFAU/jobscout/internal/jobs"
)

type entry struct {
	listings  []jobs.Listing
	createdAt time.Time
}

// CacheStore keeps aggregation results in a map. Contents do not survive a restart.
type CacheStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   jobs.Clock
}

// NewCacheStore constructs a CacheStore. A nil clock uses the wall clock.
func NewCacheStore(ttl time.Duration, clock jobs.Clock) *CacheStore {
	if clock == nil {
		clock = system.Clock{}
	}
	return &CacheStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached listings for q while they are younger than the TTL.
// Expired entries are removed.
func (s *CacheStore) Get(_ context.Context, q jobs.Query) ([]jobs.Listing, bool, error) {
	key, err := sha256.Fingerprint(q)
	if err != nil {
		return nil, false, fmt.Errorf("fingerprint query: %w", err)
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.clock.Now().Sub(e.createdAt) >= s.ttl {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.createdAt.Equal(e.createdAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]jobs.Listing(nil), e.listings...), true, nil
}

// Set stores listings for q with the current time, replacing any previous entry.
func (s *CacheStore) Set(_ context.Context, q jobs.Query, listings []jobs.Listing) error {
	key, err := sha256.Fingerprint(q)
	if err != nil {
		return fmt.Errorf("fingerprint query: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		listings:  append([]jobs.Listing(nil), listings...),
		createdAt: s.clock.Now(),
	}
	return nil
}

// Cleanup removes every expired entry and reports how many were removed.
func (s *CacheStore) Cleanup(context.Context) (int64, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, e := range s.entries {
		if now.Sub(e.createdAt) >= s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats reports the entry count and TTL.
func (s *CacheStore) Stats(context.Context) (jobs.CacheStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jobs.CacheStats{
		Entries:    int64(len(s.entries)),
		TTLMinutes: int(s.ttl / time.Minute),
	}, nil
}

// Close is a no-op.
func (s *CacheStore) Close() error {
	return nil
}
