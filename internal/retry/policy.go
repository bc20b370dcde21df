package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"marketingest/internal/fetcher"
)

// Default policy values
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultFactor      = 2.0
	DefaultJitter      = 0.2
)

// Decision is the outcome of consulting a Policy after a failed attempt
type Decision struct {
	Retry bool
	Delay time.Duration
}

// GiveUp is the decision to stop retrying
var GiveUp = Decision{}

// Policy decides whether a failed fetch is attempted again.
// Network and rate-limit failures are retried with exponential backoff;
// upstream format failures and unclassified errors are not, since repeating
// the request cannot fix a structural mismatch.
//
// A Policy holds no state between calls and is safe for concurrent use.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	// Jitter spreads each delay uniformly over ±Jitter of its nominal value
	Jitter float64
	// Rand returns a value in [0, 1); nil uses math/rand/v2
	Rand func() float64
}

// Default returns the policy used when nothing is configured
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Factor:      DefaultFactor,
		Jitter:      DefaultJitter,
	}
}

// None returns a policy that never retries
func None() Policy {
	return Policy{MaxAttempts: 1}
}

// Next decides what to do after attempt number attempt (1-based) failed with an error of the given kind
func (p Policy) Next(kind fetcher.Kind, attempt int) Decision {
	if !Retryable(kind) || attempt >= p.MaxAttempts {
		return GiveUp
	}
	return Decision{Retry: true, Delay: p.Backoff(attempt)}
}

// Backoff returns the jittered delay to wait after the given failed attempt
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	nominal := float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1))

	if p.Jitter > 0 {
		r := p.Rand
		if r == nil {
			r = rand.Float64
		}
		// Map [0, 1) onto [1-Jitter, 1+Jitter)
		nominal *= 1 + p.Jitter*(2*r()-1)
	}

	if nominal < 0 {
		return 0
	}
	return time.Duration(nominal)
}

// Retryable reports whether errors of the given kind are worth another attempt
func Retryable(kind fetcher.Kind) bool {
	switch kind {
	case fetcher.KindNetwork, fetcher.KindRateLimited:
		return true
	default:
		return false
	}
}
