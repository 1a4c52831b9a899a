package candidate

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu         sync.Mutex
	candidates map[string]*Candidate
}

// NewMemoryRepository builds an in-memory candidate store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{candidates: make(map[string]*Candidate)}
}

func (r *memoryRepository) Insert(_ context.Context, c Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := c
	r.candidates[c.ID] = &cp
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok {
		return Candidate{}, ErrNotFound
	}
	return *c, nil
}

func (r *memoryRepository) ClaimIfUnclaimed(_ context.Context, id, fingerprint, contactPhone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[id]
	if !ok || c.Fingerprint != "" {
		return false, nil
	}
	c.Fingerprint = fingerprint
	c.ContactPhone = contactPhone
	c.Status = StatusClaimed
	return true, nil
}

func (r *memoryRepository) ExistsByFingerprint(_ context.Context, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.candidates {
		if c.Fingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
