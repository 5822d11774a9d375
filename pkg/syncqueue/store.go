package syncqueue

import (
	"context"
	"sync"
)

// Store persists queued movements in insertion order until the server confirms them.
type Store interface {
	Append(ctx context.Context, m Movement) error
	// Pending returns the oldest movements first. limit <= 0 returns all of them.
	Pending(ctx context.Context, limit int) ([]Movement, error)
	Remove(ctx context.Context, clientIDs []string) error
	Len(ctx context.Context) (int, error)
}

// MemoryStore keeps the queue in memory. Entries are lost on exit.
type MemoryStore struct {
	mu    sync.Mutex
	items []Movement
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, m Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, m)
	return nil
}

func (s *MemoryStore) Pending(_ context.Context, limit int) ([]Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Movement, n)
	copy(out, s.items[:n])
	return out, nil
}

func (s *MemoryStore) Remove(_ context.Context, clientIDs []string) error {
	if len(clientIDs) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(clientIDs))
	for _, id := range clientIDs {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	for _, m := range s.items {
		if _, ok := drop[m.ClientID]; !ok {
			kept = append(kept, m)
		}
	}
	s.items = kept
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}
