package retrieval

import (
	"math"
	"math/rand/v2"
	"time"
)

// Rand is the randomness the client needs. Implementations must be safe for concurrent use.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// RetryPolicy parameterizes the attempt loop.
//   - MaxAttempts: attempts per fetch when the caller does not choose (default 3).
//   - BaseBackoff/MaxBackoff: a 429 on zero-based attempt n waits BaseBackoff*2^n, capped at MaxBackoff.
//   - JitterMin/JitterMax: bounds of the uniform pause after network errors and other statuses.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	JitterMin   time.Duration
	JitterMax   time.Duration
}

// DefaultRetryPolicy returns three attempts, 1s/2s/4s rate-limit backoff and 0.5–1.5s jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		JitterMin:   500 * time.Millisecond,
		JitterMax:   1500 * time.Millisecond,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = def.BaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.JitterMin < 0 || p.JitterMax <= 0 || p.JitterMax < p.JitterMin {
		p.JitterMin, p.JitterMax = def.JitterMin, def.JitterMax
	}
	return p
}

// RateLimitBackoff returns the pause after a 429 on the zero-based attempt.
func (p RetryPolicy) RateLimitBackoff(attempt int) time.Duration {
	delay := float64(p.BaseBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	return time.Duration(delay)
}

// Jitter returns a pause uniformly drawn from [JitterMin, JitterMax).
func (p RetryPolicy) Jitter(r Rand) time.Duration {
	span := p.JitterMax - p.JitterMin
	return p.JitterMin + time.Duration(r.Float64()*float64(span))
}
