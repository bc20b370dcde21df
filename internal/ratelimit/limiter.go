package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Source represents the different external sources we request data from
type Source string

const (
	// SourceYahoo represents the Yahoo Finance chart API
	SourceYahoo Source = "yahoo"
	// SourceWikipedia represents the Wikipedia S&P 500 listing page
	SourceWikipedia Source = "wikipedia"
	// SourceOpenExchangeRates represents the Open Exchange Rates API
	SourceOpenExchangeRates Source = "openexchangerates"
	// SourceCoinMarketCap represents the CoinMarketCap listing page
	SourceCoinMarketCap Source = "coinmarketcap"
	// SourceAlphaVantage represents the AlphaVantage API
	SourceAlphaVantage Source = "alphavantage"
)

// DefaultRates are conservative requests-per-second limits per source
var DefaultRates = map[Source]float64{
	SourceYahoo:             5,
	SourceWikipedia:         1,
	SourceOpenExchangeRates: 2,
	SourceCoinMarketCap:     1,
	// AlphaVantage: 5 requests per minute on free tier = 1 request every 12 seconds
	SourceAlphaVantage: 1.0 / 12.0,
}

// Limiter manages request rates for different sources.
// It is created once per run and shared by every fetcher of that run.
type Limiter struct {
	limiters map[Source]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter with the given requests-per-second per source.
// A rate of zero or less means unlimited.
func New(rates map[Source]float64) *Limiter {
	l := &Limiter{limiters: make(map[Source]*rate.Limiter, len(rates))}
	for src, rps := range rates {
		l.Set(src, rps)
	}
	return l
}

// Unlimited returns a limiter that never blocks
func Unlimited() *Limiter {
	return New(nil)
}

// Set replaces the rate for a source
func (l *Limiter) Set(src Source, rps float64) {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[src] = rate.NewLimiter(limit, 1)
}

// Wait blocks until the rate limiter permits a request to the given source.
// It returns an error if the context is cancelled, or its deadline would pass,
// before the request can proceed. A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context, src Source) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[src]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this source, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether a request to the given source may happen now
func (l *Limiter) Allow(src Source) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[src]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
