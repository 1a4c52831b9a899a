package verify

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu         sync.Mutex
	challenges []Challenge
	verified   map[string]time.Time
}

// NewMemoryRepository builds an in-memory challenge store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{verified: make(map[string]time.Time)}
}

func (r *memoryRepository) CreateChallenge(_ context.Context, c Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges = append(r.challenges, c)
	return nil
}

func (r *memoryRepository) LatestActive(_ context.Context, fingerprint string, now time.Time) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := -1
	for i, c := range r.challenges {
		if c.Fingerprint != fingerprint || !c.Active(now) {
			continue
		}
		if best == -1 || c.CreatedAt.After(r.challenges[best].CreatedAt) {
			best = i
		}
	}
	if best == -1 {
		return Challenge{}, ErrNoChallenge
	}
	return r.challenges[best], nil
}

func (r *memoryRepository) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.challenges {
		if r.challenges[i].ID == id {
			r.challenges[i].Used = true
			return nil
		}
	}
	return ErrNoChallenge
}

func (r *memoryRepository) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.challenges {
		if r.challenges[i].ID == id {
			r.challenges[i].Attempts++
			return r.challenges[i].Attempts, nil
		}
	}
	return 0, ErrNoChallenge
}

func (r *memoryRepository) UpsertVerified(_ context.Context, fingerprint string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.verified[fingerprint]; !ok {
		r.verified[fingerprint] = at
	}
	return nil
}
