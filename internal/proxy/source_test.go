package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListSource_Fetch(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "1.1.1.1:8080")
		fmt.Fprintln(w, "2.2.2.2:9000")
		fmt.Fprintln(w, "invalid_line")
		fmt.Fprintln(w, "# comment")
		fmt.Fprintln(w, "3.3.3.3:99999")
		fmt.Fprintln(w, "4.4.4.4:3128")
	}))
	defer ts.Close()

	source := NewListSource("test_source", ts.URL, SchemeHTTP, 0)
	proxies, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 3)
	require.Equal(t, Proxy{Host: "1.1.1.1", Port: 8080, Scheme: SchemeHTTP}, proxies[0])
	require.Equal(t, "http://2.2.2.2:9000", proxies[1].URL().String())
}

func TestListSource_FetchHonorsLimit(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for i := 1; i <= 80; i++ {
			fmt.Fprintf(w, "10.0.0.%d:8080\n", i)
		}
	}))
	defer ts.Close()

	proxies, err := NewListSource("limited", ts.URL, SchemeHTTP, 50).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, proxies, 50)
}

func TestListSource_FetchBadStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewListSource("broken", ts.URL, SchemeHTTP, 0).Fetch(context.Background())
	require.Error(t, err)
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	p, err := ParseLine(" 5.6.7.8:1080 ", SchemeSOCKS5)
	require.NoError(t, err)
	require.Equal(t, "socks5://5.6.7.8:1080", p.URL().String())

	for _, line := range []string{"", "# hi", "nohost", ":80", "host:abc", "host:0"} {
		_, err := ParseLine(line, SchemeHTTP)
		require.Error(t, err, line)
	}
}
