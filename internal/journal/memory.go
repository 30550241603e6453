package journal

import (
	"context"
	"sync"

	"github.com/atmx/synth-engine/internal/model"
)

// MemoryStore implements Store with an in-memory slice. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	entries []model.JournalEntry
}

// NewMemoryStore creates a new in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, entry *model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, user string) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.JournalEntry
	for _, e := range s.entries {
		if e.User == user || e.Counterparty == user {
			result = append(result, e)
		}
	}
	return result, nil
}
