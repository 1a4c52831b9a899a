package vote

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	votes map[string]Vote
}

// NewMemoryRepository builds an in-memory vote store for testing. The map key
// plays the role of the unique index.
func NewMemoryRepository() Repository {
	return &memoryRepository{votes: make(map[string]Vote)}
}

func (r *memoryRepository) Insert(_ context.Context, v Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.votes[v.Identifier]; exists {
		return ErrDuplicateIdentifier
	}
	r.votes[v.Identifier] = v
	return nil
}

func (r *memoryRepository) Exists(_ context.Context, identifier string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.votes[identifier]
	return ok, nil
}

func (r *memoryRepository) Tally(_ context.Context) (Tally, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var t Tally
	for _, v := range r.votes {
		if v.Value {
			t.Yes++
		} else {
			t.No++
		}
	}
	return t, nil
}

// Snapshot returns a copy of all stored votes. Test helper.
func Snapshot(repo Repository) []Vote {
	mem, ok := repo.(*memoryRepository)
	if !ok {
		return nil
	}
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	out := make([]Vote, 0, len(mem.votes))
	for _, v := range mem.votes {
		out = append(out, v)
	}
	return out
}
