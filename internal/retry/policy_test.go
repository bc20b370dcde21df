package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketingest/internal/fetcher"
)

func fixed(v float64) func() float64 {
	return func() float64 { return v }
}

func TestPolicy_Next_RetryableKinds(t *testing.T) {
	p := Default()
	p.Rand = fixed(0.5) // no jitter

	tests := []struct {
		name    string
		kind    fetcher.Kind
		attempt int
		want    Decision
	}{
		{"network first failure", fetcher.KindNetwork, 1, Decision{Retry: true, Delay: 500 * time.Millisecond}},
		{"network second failure", fetcher.KindNetwork, 2, Decision{Retry: true, Delay: time.Second}},
		{"network exhausted", fetcher.KindNetwork, 3, GiveUp},
		{"rate limited first failure", fetcher.KindRateLimited, 1, Decision{Retry: true, Delay: 500 * time.Millisecond}},
		{"rate limited exhausted", fetcher.KindRateLimited, 3, GiveUp},
		{"upstream format never retried", fetcher.KindUpstreamFormat, 1, GiveUp},
		{"unknown never retried", fetcher.KindUnknown, 1, GiveUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Next(tt.kind, tt.attempt))
		})
	}
}

func TestPolicy_Backoff_JitterBounds(t *testing.T) {
	p := Default()

	p.Rand = fixed(0)
	assert.InDelta(t, float64(400*time.Millisecond), float64(p.Backoff(1)), float64(time.Millisecond))

	p.Rand = fixed(0.999999)
	assert.InDelta(t, float64(600*time.Millisecond), float64(p.Backoff(1)), float64(time.Millisecond))

	// Real randomness stays inside the ±20% band
	p.Rand = nil
	for i := 0; i < 100; i++ {
		d := p.Backoff(2)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestPolicy_Stateless(t *testing.T) {
	p := Default()
	p.Rand = fixed(0.5)

	first := p.Next(fetcher.KindNetwork, 2)
	second := p.Next(fetcher.KindNetwork, 2)
	assert.Equal(t, first, second)
}

func TestNone(t *testing.T) {
	assert.Equal(t, GiveUp, None().Next(fetcher.KindNetwork, 1))
}

func TestPolicy_ZeroValueNeverRetries(t *testing.T) {
	var p Policy
	assert.Equal(t, GiveUp, p.Next(fetcher.KindNetwork, 1))
}
