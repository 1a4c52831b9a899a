package ballot

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.Mutex
	links map[string]*Link
}

// NewMemoryRepository builds an in-memory link store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{links: make(map[string]*Link)}
}

func (r *memoryRepository) Create(_ context.Context, l Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := l
	r.links[l.Token] = &cp
	return nil
}

func (r *memoryRepository) FindByToken(_ context.Context, token string) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[token]
	if !ok {
		return Link{}, ErrLinkNotFound
	}
	return *l, nil
}

func (r *memoryRepository) ConsumeByToken(_ context.Context, token string, now time.Time) (Link, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[token]
	if !ok || l.Used || l.Expired(now) {
		return Link{}, false, nil
	}
	l.Used = true
	return *l, true, nil
}
