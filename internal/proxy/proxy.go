// Package proxy maintains a refreshable pool of public proxies used by the retrieval client.
package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Supported proxy schemes.
const (
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeSOCKS5 = "socks5"
)

// Proxy is one address in the pool.
type Proxy struct {
	Host   string
	Port   int
	Scheme string
}

// Address returns the "host:port" string.
func (p Proxy) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the proxy URL. Unknown schemes default to http.
func (p Proxy) URL() *url.URL {
	scheme := p.Scheme
	if scheme == "" {
		scheme = SchemeHTTP
	}
	return &url.URL{Scheme: scheme, Host: p.Address()}
}

// ParseLine parses a "host:port" line as published by public proxy lists.
func ParseLine(line, scheme string) (Proxy, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Proxy{}, fmt.Errorf("empty or comment line")
	}
	host, portStr, err := net.SplitHostPort(line)
	if err != nil {
		return Proxy{}, fmt.Errorf("split %q: %w", line, err)
	}
	if host == "" {
		return Proxy{}, fmt.Errorf("missing host in %q", line)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Proxy{}, fmt.Errorf("invalid port in %q", line)
	}
	return Proxy{Host: host, Port: port, Scheme: scheme}, nil
}
