package proxy

import (
	"context"
	"math/rand/v2"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/metrics"
)

const (
	defaultProbability     = 0.5
	defaultCapacity        = 100
	defaultRefreshInterval = 5 * time.Minute
	defaultRefreshTimeout  = 15 * time.Second
)

// Config controls pool behavior.
//   - Probability: chance that a request is routed through a proxy (default 0.5).
//     Use a negative value to always connect directly.
//   - Capacity: maximum number of proxies kept after a refresh (default 100).
//   - RefreshInterval: age after which the pool is refreshed on next use (default 5m).
//   - RefreshTimeout: budget for one refresh across all sources (default 15s).
type Config struct {
	Probability     float64
	Capacity        int
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration
}

// Rand is the randomness the pool needs. Implementations must be safe for concurrent use.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Pool implements jobs.ProxySelector over a set of proxies refreshed from upstream lists.
// It is safe for concurrent use.
type Pool struct {
	sources []Source
	cfg     Config
	clock   jobs.Clock
	rng     Rand
	logger  *zap.Logger

	mu          sync.RWMutex
	proxies     []Proxy
	lastRefresh time.Time

	refreshing atomic.Bool
}

// NewPool constructs a Pool. rng may be nil to use the process-wide source.
func NewPool(sources []Source, cfg Config, clock jobs.Clock, rng Rand, logger *zap.Logger) *Pool {
	if cfg.Probability == 0 {
		cfg.Probability = defaultProbability
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	if rng == nil {
		rng = globalRand{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		sources: sources,
		cfg:     cfg,
		clock:   clock,
		rng:     rng,
		logger:  logger,
	}
}

// Select returns a random proxy, or ok=false when the request should go direct.
// Roughly half of all calls go direct regardless of the pool contents.
func (p *Pool) Select(ctx context.Context) (*url.URL, bool) {
	if p.rng.Float64() >= p.cfg.Probability {
		return nil, false
	}
	if p.needsRefresh() {
		p.Refresh(ctx)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.proxies) == 0 {
		return nil, false
	}
	return p.proxies[p.rng.IntN(len(p.proxies))].URL(), true
}

// Size reports how many proxies are currently held.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.proxies)
}

func (p *Pool) needsRefresh() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.proxies) == 0 ||
		p.lastRefresh.IsZero() ||
		p.clock.Now().Sub(p.lastRefresh) > p.cfg.RefreshInterval
}

// Refresh reloads the pool from every source and returns the resulting size.
// Only one refresh runs at a time; concurrent callers keep using the current set.
// A refresh that yields nothing leaves the existing set untouched.
func (p *Pool) Refresh(ctx context.Context) int {
	if !p.refreshing.CompareAndSwap(false, true) {
		return p.Size()
	}
	defer p.refreshing.Store(false)

	// The refresh outlives the search that triggered it.
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.RefreshTimeout)
	defer cancel()

	fresh := p.collect(refreshCtx)
	if len(fresh) == 0 {
		metrics.ObserveProxyRefresh("empty")
		p.logger.Warn("proxy refresh yielded no proxies; keeping current pool", zap.Int("size", p.Size()))
		return p.Size()
	}

	p.mu.Lock()
	p.proxies = fresh
	p.lastRefresh = p.clock.Now()
	p.mu.Unlock()

	metrics.ObserveProxyRefresh("updated")
	metrics.SetProxyPoolSize(len(fresh))
	p.logger.Info("proxy pool refreshed", zap.Int("size", len(fresh)))
	return len(fresh)
}

func (p *Pool) collect(ctx context.Context) []Proxy {
	batches := make([][]Proxy, len(p.sources))
	var g errgroup.Group
	for i, src := range p.sources {
		g.Go(func() error {
			proxies, err := src.Fetch(ctx)
			if err != nil {
				p.logger.Warn("proxy source failed", zap.String("source", src.Name()), zap.Error(err))
				return nil
			}
			batches[i] = proxies
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var out []Proxy
	for _, batch := range batches {
		for _, px := range batch {
			key := px.URL().String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, px)
			if len(out) >= p.cfg.Capacity {
				return out
			}
		}
	}
	return out
}
