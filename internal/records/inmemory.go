package records

import (
	"context"
	"sort"
	"sync"
)

type inMemoryStore struct {
	mu     sync.RWMutex
	ids    map[string]bool
	byUser map[string][]Record
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests.
func NewInMemory() Store {
	return &inMemoryStore{ids: make(map[string]bool), byUser: make(map[string][]Record)}
}

func (s *inMemoryStore) Add(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[rec.ID] {
		return ErrDuplicateRecord
	}
	s.ids[rec.ID] = true
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], rec)
	return nil
}

func (s *inMemoryStore) List(_ context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	out := append([]Record(nil), s.byUser[userID]...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReceivedOn.Equal(out[j].ReceivedOn) {
			return out[i].ReceivedOn.After(out[j].ReceivedOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
