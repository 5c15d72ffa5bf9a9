// Package metrics exposes Prometheus collectors for the search service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	searchesTotal              *prometheus.CounterVec
	searchDurationSeconds      prometheus.Histogram
	sourceListingsTotal        *prometheus.CounterVec
	sourceFailuresTotal        *prometheus.CounterVec
	fetchAttemptsTotal         *prometheus.CounterVec
	proxyPoolSize              prometheus.Gauge
	proxyRefreshesTotal        *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	cacheSweptTotal            prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; the Observe helpers call it lazily.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)

		searchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_searches_total",
				Help: "Total number of searches, labeled by cache outcome.",
			},
			[]string{"cache"},
		)

		searchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobscout_search_duration_seconds",
				Help:    "Histogram of search latencies including fan-out.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 20, 30, 45},
			},
		)

		sourceListingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_source_listings_total",
				Help: "Total number of listings returned by each source before deduplication.",
			},
			[]string{"source"},
		)

		sourceFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_source_failures_total",
				Help: "Total number of source tasks that contributed nothing, labeled by reason.",
			},
			[]string{"source", "reason"},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_fetch_attempts_total",
				Help: "Total number of retrieval attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		proxyPoolSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobscout_proxy_pool_size",
				Help: "Number of proxies currently held in the pool.",
			},
		)

		proxyRefreshesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobscout_proxy_refreshes_total",
				Help: "Total number of proxy pool refreshes, labeled by result.",
			},
			[]string{"result"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobscout_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		cacheSweptTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobscout_cache_swept_total",
				Help: "Total number of expired cache entries removed by cleanup passes.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSearch records a finished search and whether it was served from cache.
func ObserveSearch(cache string, duration time.Duration) {
	Init()
	searchesTotal.WithLabelValues(cache).Inc()
	searchDurationSeconds.Observe(duration.Seconds())
}

// ObserveSourceListings adds the raw listing count returned by a source.
func ObserveSourceListings(source string, count int) {
	Init()
	sourceListingsTotal.WithLabelValues(source).Add(float64(count))
}

// ObserveSourceFailure counts a source task that failed, panicked or timed out.
func ObserveSourceFailure(source, reason string) {
	Init()
	sourceFailuresTotal.WithLabelValues(source, reason).Inc()
}

// ObserveFetchAttempt counts one retrieval attempt against rawURL.
func ObserveFetchAttempt(rawURL, outcome string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(SanitizeSite(rawURL), outcome).Inc()
}

// SetProxyPoolSize updates the pool size gauge.
func SetProxyPoolSize(n int) {
	Init()
	proxyPoolSize.Set(float64(n))
}

// ObserveProxyRefresh counts a pool refresh by result ("updated" or "empty").
func ObserveProxyRefresh(result string) {
	Init()
	proxyRefreshesTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveCacheSweep adds the number of rows removed by a cleanup pass.
func ObserveCacheSweep(removed int64) {
	Init()
	if removed > 0 {
		cacheSweptTotal.Add(float64(removed))
	}
}
