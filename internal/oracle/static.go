package oracle

import (
	"context"
	"sync"
	"time"
)

// StaticSource is a manually-set price source. Used for development and
// testing; a deployment wires RedisSource instead.
type StaticSource struct {
	mu sync.RWMutex
	q  Quote
}

// NewStaticSource creates a source with an initial 8-decimal price,
// stamped now.
func NewStaticSource(price int64) *StaticSource {
	return &StaticSource{q: Quote{Price: price, UpdatedAt: time.Now()}}
}

// SetPrice updates the price and refreshes the timestamp.
func (s *StaticSource) SetPrice(price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q = Quote{Price: price, UpdatedAt: time.Now()}
}

// SetQuote replaces the quote verbatim, timestamp included.
func (s *StaticSource) SetQuote(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q = q
}

func (s *StaticSource) LatestQuote(_ context.Context) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q, nil
}
