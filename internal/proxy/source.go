package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source yields proxies from an upstream list.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Proxy, error)
}

// ListSource reads a plain-text list with one "host:port" per line.
type ListSource struct {
	name   string
	url    string
	scheme string
	limit  int
	client *http.Client
}

// NewListSource builds a ListSource. limit caps how many entries are taken from the list (0 = no cap).
func NewListSource(name, rawURL, scheme string, limit int) *ListSource {
	return &ListSource{
		name:   name,
		url:    rawURL,
		scheme: scheme,
		limit:  limit,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the source label used in logs.
func (s *ListSource) Name() string {
	return s.name
}

// Fetch downloads and parses the list. Malformed lines are skipped.
func (s *ListSource) Fetch(ctx context.Context) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch proxy list: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var proxies []Proxy
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if s.limit > 0 && len(proxies) >= s.limit {
			break
		}
		p, err := ParseLine(scanner.Text(), s.scheme)
		if err != nil {
			continue
		}
		proxies = append(proxies, p)
	}
	if err := scanner.Err(); err != nil {
		return proxies, fmt.Errorf("scan proxy list: %w", err)
	}
	return proxies, nil
}

// DefaultSources returns the public lists the pool refreshes from.
func DefaultSources(perSourceLimit int) []Source {
	return []Source{
		NewListSource(
			"proxyscrape",
			"https://api.proxyscrape.com/v2/?request=getproxies&protocol=http&timeout=5000&country=all&ssl=yes&anonymity=all",
			SchemeHTTP,
			perSourceLimit,
		),
		NewListSource(
			"TheSpeedX-HTTP",
			"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
			SchemeHTTP,
			perSourceLimit,
		),
		NewListSource(
			"ShiftyTR-HTTP",
			"https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/http.txt",
			SchemeHTTP,
			perSourceLimit,
		),
	}
}
