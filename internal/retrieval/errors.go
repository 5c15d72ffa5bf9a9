package retrieval

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRetrievalFailed is returned once every attempt has been used without a 200.
var ErrRetrievalFailed = errors.New("retrieval failed")

// StatusError records a completed request with an unusable status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
