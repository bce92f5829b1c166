package loans

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Application
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Application)}
}

func (r *memoryRepository) Create(_ context.Context, app Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[app.ID]; exists {
		return errors.New("application exists")
	}
	r.storage[app.ID] = app
	return nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Application
	for _, app := range r.storage {
		if app.UserID == userID {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
