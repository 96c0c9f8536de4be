// Package marketdata provides the key/value quote lookup backing the
// data-retrieval work unit.
package marketdata

import (
	"context"
	"sync"
)

// Quote holds the per-ticker figures the pipeline reasons about.
type Quote struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
	PE     float64 `json:"pe"`
	Sector string  `json:"sector"`
}

// Store is the lookup contract for quote data.
type Store interface {
	// Get returns the quote for ticker; the bool is false when unknown.
	Get(ctx context.Context, ticker string) (Quote, bool, error)

	// Put stores or replaces a quote.
	Put(ctx context.Context, quote Quote) error
}

// MemoryStore is an in-process Store, safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewMemoryStore creates a MemoryStore seeded with the given quotes.
func NewMemoryStore(seed ...Quote) *MemoryStore {
	s := &MemoryStore{quotes: make(map[string]Quote, len(seed))}
	for _, q := range seed {
		s.quotes[q.Ticker] = q
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, ticker string) (Quote, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[ticker]
	return q, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, quote Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[quote.Ticker] = quote
	return nil
}

// DefaultQuotes returns the demo market database.
func DefaultQuotes() []Quote {
	return []Quote{
		{Ticker: "GOOGL", Price: 175.00, PE: 24.0, Sector: "Tech"},
		{Ticker: "TSLA", Price: 180.00, PE: 60.0, Sector: "Auto"},
	}
}
