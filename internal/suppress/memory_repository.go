package suppress

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu   sync.RWMutex
	rows map[string]Suppression
}

// NewMemoryRepository builds an in-memory suppression store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{rows: make(map[string]Suppression)}
}

func (r *memoryRepository) Upsert(_ context.Context, s Suppression) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := s.Fingerprint + ":" + s.Scope
	if _, exists := r.rows[key]; exists {
		return nil
	}
	r.rows[key] = s
	return nil
}

func (r *memoryRepository) Exists(_ context.Context, fingerprint, scope string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[fingerprint+":"+scope]
	return ok, nil
}
