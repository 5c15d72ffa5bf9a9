package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://MX.Indeed.com/jobs?q=x", "mx.indeed.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(sourceFailuresTotal.WithLabelValues("metrics-test", "timeout"))
	ObserveSourceFailure("metrics-test", "timeout")
	if val := testutil.ToFloat64(sourceFailuresTotal.WithLabelValues("metrics-test", "timeout")); val != before+1 {
		t.Errorf("expected source failure counter to grow by 1, got %f", val)
	}

	SetProxyPoolSize(42)
	if val := testutil.ToFloat64(proxyPoolSize); val != 42 {
		t.Errorf("expected proxy pool gauge 42, got %f", val)
	}

	ObserveFetchAttempt("https://metrics-test.example/x", "ok")
	if val := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("metrics-test.example", "ok")); val < 1 {
		t.Errorf("expected fetch attempt to be counted, got %f", val)
	}

	ObserveSearch("hit", 10*time.Millisecond)
	if val := testutil.CollectAndCount(searchDurationSeconds); val != 1 {
		t.Errorf("expected one search duration histogram, got %d", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.occ.com.mx", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
