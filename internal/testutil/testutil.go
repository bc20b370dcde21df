package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"marketingest/internal/fetcher"
	"marketingest/internal/table"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher struct {
	FetchFunc func(ctx context.Context, item fetcher.Item) (*table.Table, error)
}

// Fetch implements the Fetcher interface
func (m *MockFetcher) Fetch(ctx context.Context, item fetcher.Item) (*table.Table, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, item)
	}
	return OneRow(item.Key), nil
}

// NewMockFetcher creates a simple mock fetcher with predefined values
func NewMockFetcher(payload *table.Table, err error) fetcher.Fetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context, item fetcher.Item) (*table.Table, error) {
			return payload, err
		},
	}
}

// OneRow returns a single-row table tagged with key
func OneRow(key string) *table.Table {
	t := table.New("Key", "Value")
	t.Rows = append(t.Rows, []string{key, "1"})
	return t
}

// MockSink is a mock implementation of the Sink interface for testing
type MockSink struct {
	StoreFunc func(ctx context.Context, key string, payload *table.Table) (string, error)
}

// Store implements the Sink interface
func (m *MockSink) Store(ctx context.Context, key string, payload *table.Table) (string, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, key, payload)
	}
	return "mock://" + key, nil
}

// MemorySink stores payloads in memory and is safe for concurrent use
type MemorySink struct {
	mu      sync.Mutex
	objects map[string]*table.Table
	writes  atomic.Int64
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string]*table.Table)}
}

// Store implements the Sink interface
func (s *MemorySink) Store(ctx context.Context, key string, payload *table.Table) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = payload
	s.writes.Add(1)
	return fmt.Sprintf("mem://%s", key), nil
}

// Get returns the payload stored under key
func (s *MemorySink) Get(key string) (*table.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.objects[key]
	return t, ok
}

// Len returns the number of distinct keys stored
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Writes returns the number of Store calls
func (s *MemorySink) Writes() int {
	return int(s.writes.Load())
}

// ConcurrencyProbe records the peak number of simultaneous calls to Enter/Exit
type ConcurrencyProbe struct {
	current atomic.Int64
	peak    atomic.Int64
}

// Enter marks the start of a call
func (p *ConcurrencyProbe) Enter() {
	n := p.current.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

// Exit marks the end of a call
func (p *ConcurrencyProbe) Exit() {
	p.current.Add(-1)
}

// Peak returns the highest number of simultaneous calls observed
func (p *ConcurrencyProbe) Peak() int {
	return int(p.peak.Load())
}
