// Package search resolves a query against the cache or fans it out to every
// job board, then merges, deduplicates and shuffles the results.
package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobscout/internal/clock/system"
	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/metrics"
)

const (
	defaultWorkers = 4
	defaultTimeout = 30 * time.Second
)

var errSourcePanic = errors.New("source panicked")

// Config controls fan-out.
type Config struct {
	// Workers bounds how many sources run at once. Extra tasks queue.
	Workers int
	// Timeout is the global collection deadline for one search.
	Timeout time.Duration
}

// Shuffler randomizes result order.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Outcome summarizes one search for logging and metrics.
type Outcome struct {
	Query     jobs.Query
	Keyword   string
	CacheHit  bool
	PerSource map[jobs.SourceName]int
	Failed    []jobs.SourceName
	TimedOut  []jobs.SourceName
	Total     int
	Duration  time.Duration
}

// Orchestrator implements the search pipeline.
type Orchestrator struct {
	catalog  jobs.Catalog
	sources  []jobs.Source
	cache    jobs.CacheStore
	cfg      Config
	shuffler Shuffler
	clock    jobs.Clock
	logger   *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithShuffler replaces the random order source.
func WithShuffler(s Shuffler) Option {
	return func(o *Orchestrator) { o.shuffler = s }
}

// WithClock replaces the clock used for durations.
func WithClock(c jobs.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// New builds an Orchestrator. sources are dispatched in the given order.
func New(catalog jobs.Catalog, sources []jobs.Source, cache jobs.CacheStore, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		catalog:  catalog,
		sources:  sources,
		cache:    cache,
		cfg:      cfg,
		shuffler: globalShuffler{},
		clock:    system.Clock{},
		logger:   logger.Named("search"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Catalog returns the careers this orchestrator accepts.
func (o *Orchestrator) Catalog() jobs.Catalog {
	return o.catalog
}

// SourceNames lists the registered sources in dispatch order.
func (o *Orchestrator) SourceNames() []jobs.SourceName {
	names := make([]jobs.SourceName, 0, len(o.sources))
	for _, s := range o.sources {
		names = append(names, s.Name())
	}
	return names
}

// Search returns the listings for career in location.
func (o *Orchestrator) Search(ctx context.Context, career, location string) ([]jobs.Listing, error) {
	listings, _, err := o.SearchWithOutcome(ctx, career, location)
	return listings, err
}

// SearchWithOutcome is Search plus a summary of what happened.
func (o *Orchestrator) SearchWithOutcome(ctx context.Context, career, location string) ([]jobs.Listing, Outcome, error) {
	start := o.clock.Now()
	if location == "" {
		location = jobs.DefaultLocation
	}
	q := jobs.Query{Career: career, Location: location}
	outcome := Outcome{Query: q}

	c, err := o.catalog.Lookup(career)
	if err != nil {
		return nil, outcome, err
	}

	if cached, ok := o.readCache(ctx, q); ok {
		outcome.CacheHit = true
		outcome.Total = len(cached)
		outcome.Duration = o.clock.Now().Sub(start)
		metrics.ObserveSearch("hit", outcome.Duration)
		o.logger.Info("cache hit", zap.String("career", career), zap.String("location", location), zap.Int("listings", len(cached)))
		return cached, outcome, nil
	}

	keyword := c.PrimaryKeyword()
	outcome.Keyword = keyword
	o.logger.Info("searching",
		zap.String("career", career),
		zap.String("icon", c.Icon),
		zap.String("keyword", keyword),
		zap.String("location", location),
	)

	merged, err := o.fanOut(ctx, keyword, location, &outcome)
	if err != nil {
		return nil, outcome, err
	}

	unique := Dedupe(merged)
	o.shuffler.Shuffle(len(unique), func(i, j int) { unique[i], unique[j] = unique[j], unique[i] })

	if len(unique) > 0 && o.cache != nil {
		if err := o.cache.Set(ctx, q, unique); err != nil {
			o.logger.Error("cache write failed", zap.String("career", career), zap.Error(err))
		}
	}

	outcome.Total = len(unique)
	outcome.Duration = o.clock.Now().Sub(start)
	metrics.ObserveSearch("miss", outcome.Duration)
	o.logger.Info("search finished",
		zap.String("career", career),
		zap.Int("unique", len(unique)),
		zap.Int("merged", len(merged)),
		zap.Any("failed", outcome.Failed),
		zap.Any("timed_out", outcome.TimedOut),
		zap.Duration("duration", outcome.Duration),
	)
	return unique, outcome, nil
}

func (o *Orchestrator) readCache(ctx context.Context, q jobs.Query) ([]jobs.Listing, bool) {
	if o.cache == nil {
		return nil, false
	}
	cached, ok, err := o.cache.Get(ctx, q)
	if err != nil {
		o.logger.Warn("cache read failed, treating as miss", zap.Error(err))
		return nil, false
	}
	return cached, ok
}

type sourceResult struct {
	index    int
	name     jobs.SourceName
	listings []jobs.Listing
	err      error
	skipped  bool
}

// fanOut runs every source under the worker limit and collects whatever
// arrives before the deadline. Results are merged in dispatch order.
func (o *Orchestrator) fanOut(ctx context.Context, keyword, location string, outcome *Outcome) ([]jobs.Listing, error) {
	taskCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	// Every task sends exactly once, so late senders never block.
	results := make(chan sourceResult, len(o.sources))

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	go func() {
		for i, src := range o.sources {
			g.Go(func() error {
				if taskCtx.Err() != nil {
					results <- sourceResult{index: i, name: src.Name(), skipped: true}
					return nil
				}
				results <- o.runSource(taskCtx, i, src, keyword, location)
				return nil
			})
		}
	}()

	collected := collect(taskCtx, results, len(o.sources))
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search canceled: %w", err)
	}

	outcome.PerSource = make(map[jobs.SourceName]int, len(o.sources))
	var merged []jobs.Listing
	for i, r := range collected {
		name := o.sources[i].Name()
		switch {
		case r == nil || r.skipped:
			outcome.TimedOut = append(outcome.TimedOut, name)
			metrics.ObserveSourceFailure(string(name), "timeout")
			o.logger.Warn("source did not finish before deadline", zap.String("source", string(name)))
		case r.err != nil:
			outcome.Failed = append(outcome.Failed, name)
			reason := "error"
			if errors.Is(r.err, errSourcePanic) {
				reason = "panic"
			}
			metrics.ObserveSourceFailure(string(name), reason)
			o.logger.Error("source failed", zap.String("source", string(name)), zap.Error(r.err))
		default:
			outcome.PerSource[name] = len(r.listings)
			metrics.ObserveSourceListings(string(name), len(r.listings))
			merged = append(merged, r.listings...)
		}
	}
	return merged, nil
}

// collect reads up to n results, indexed by dispatch position, until ctx is
// done. Results already buffered when ctx ends are still kept.
func collect(ctx context.Context, results <-chan sourceResult, n int) []*sourceResult {
	collected := make([]*sourceResult, n)
	keep := func(r sourceResult) {
		collected[r.index] = &r
	}
	for received := 0; received < n; received++ {
		select {
		case r := <-results:
			keep(r)
		case <-ctx.Done():
			for ; received < n; received++ {
				select {
				case r := <-results:
					keep(r)
				default:
					return collected
				}
			}
			return collected
		}
	}
	return collected
}

func (o *Orchestrator) runSource(ctx context.Context, index int, src jobs.Source, keyword, location string) (res sourceResult) {
	res.index = index
	defer func() {
		if rec := recover(); rec != nil {
			res.listings = nil
			res.err = fmt.Errorf("%w: %v", errSourcePanic, rec)
		}
	}()
	res.name = src.Name()
	res.listings, res.err = src.Scrape(ctx, keyword, location)
	return res
}
