// Package retrieval fetches job-board pages with browser-like headers,
// optional proxies, per-host throttling and a bounded retry loop.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobscout/internal/clock/system"
	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/metrics"
	"github.com/JakeFAU/jobscout/internal/policy/ratelimit"
)

const defaultTimeout = 15 * time.Second

// Config controls the client.
type Config struct {
	// Timeout bounds a single attempt, including reading the body.
	Timeout time.Duration
	Policy  RetryPolicy
}

// Client implements jobs.Fetcher.
type Client struct {
	cfg     Config
	proxies jobs.ProxySelector
	limiter *ratelimit.Limiter
	sleeper jobs.Sleeper
	rng     Rand
	direct  http.RoundTripper
	logger  *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithProxies routes attempts through the selector's choice.
func WithProxies(p jobs.ProxySelector) Option {
	return func(c *Client) { c.proxies = p }
}

// WithLimiter throttles attempts per host.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithSleeper replaces the pause implementation between attempts.
func WithSleeper(s jobs.Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithRand replaces the randomness used for headers and jitter.
func WithRand(r Rand) Option {
	return func(c *Client) { c.rng = r }
}

// WithTransport replaces the transport used for direct attempts.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.direct = rt }
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Policy = cfg.Policy.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		sleeper: system.Clock{},
		rng:     globalRand{},
		direct:  newHTTPTransport(nil),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves rawURL using the policy's attempt count.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return c.FetchWithAttempts(ctx, rawURL, c.cfg.Policy.MaxAttempts)
}

// FetchWithAttempts retrieves rawURL, trying at most maxAttempts times.
// A 200 returns the body. A 429 pauses with exponential backoff, anything
// else pauses with jitter. Exhaustion yields an error wrapping ErrRetrievalFailed.
func (c *Client) FetchWithAttempts(ctx context.Context, rawURL string, maxAttempts int) ([]byte, error) {
	if maxAttempts <= 0 {
		maxAttempts = c.cfg.Policy.MaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		if err := c.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}

		proxyURL := c.selectProxy(ctx)
		res, err := c.attempt(ctx, rawURL, proxyURL)

		var delay time.Duration
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("fetch %s: %w", rawURL, ctxErr)
			}
			metrics.ObserveFetchAttempt(rawURL, "network")
			c.logger.Warn("fetch attempt failed",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Bool("proxied", proxyURL != nil),
				zap.String("error", truncate(err.Error(), 50)),
			)
			lastErr = err
			delay = c.cfg.Policy.Jitter(c.rng)
		case res.status == http.StatusOK:
			metrics.ObserveFetchAttempt(rawURL, "ok")
			return res.body, nil
		case res.status == http.StatusTooManyRequests:
			metrics.ObserveFetchAttempt(rawURL, "rate_limited")
			lastErr = &StatusError{Code: res.status}
			delay = c.cfg.Policy.RateLimitBackoff(attempt)
			c.logger.Debug("rate limited", zap.String("url", rawURL), zap.Duration("backoff", delay))
		default:
			metrics.ObserveFetchAttempt(rawURL, "status")
			lastErr = &StatusError{Code: res.status}
			delay = c.cfg.Policy.Jitter(c.rng)
		}

		if attempt == maxAttempts-1 {
			break
		}
		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetrievalFailed, rawURL, maxAttempts, lastErr)
}

func (c *Client) selectProxy(ctx context.Context) *url.URL {
	if c.proxies == nil {
		return nil
	}
	u, ok := c.proxies.Select(ctx)
	if !ok {
		return nil
	}
	return u
}

type attemptResult struct {
	status int
	body   []byte
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// attempt performs one GET. A fresh collector per attempt keeps the proxy
// and header choice private to this request.
func (c *Client) attempt(ctx context.Context, rawURL string, proxyURL *url.URL) (attemptResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	base := c.direct
	if proxyURL != nil {
		base = newHTTPTransport(proxyURL)
	}

	collector := colly.NewCollector(colly.AllowURLRevisit())
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(&contextTransport{base: base, ctx: attemptCtx})

	var (
		result   attemptResult
		fetchErr error
	)
	configureHooks(collector, BrowserHeaders(c.rng), &result, &fetchErr)

	if err := runCollector(attemptCtx, collector, rawURL, &fetchErr); err != nil {
		return attemptResult{}, err
	}
	return result, nil
}

func configureHooks(hooks collectorHooks, headers http.Header, result *attemptResult, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			r.Headers.Del(key)
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	hooks.OnResponse(func(r *colly.Response) {
		*result = attemptResult{
			status: r.StatusCode,
			body:   append([]byte(nil), r.Body...),
		}
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// contextTransport binds every request to the attempt's context so
// cancellation reaches the socket.
type contextTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func newHTTPTransport(proxyURL *url.URL) *http.Transport {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	if proxyURL != nil {
		tr.Proxy = http.ProxyURL(proxyURL)
		tr.DisableKeepAlives = true
	}
	return tr
}
