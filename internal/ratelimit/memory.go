package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemory builds a process-local limiter for tests and single-replica dev
// runs. Production uses the Redis limiter so limits are shared.
func NewMemory() Limiter {
	return &memoryLimiter{windows: make(map[string]*window), now: time.Now}
}

func (l *memoryLimiter) Allow(_ context.Context, bucket, key string, max int, windowDur time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := bucket + ":" + key
	now := l.now()

	w, ok := l.windows[k]
	if !ok || now.After(w.resetAt) {
		l.windows[k] = &window{count: 1, resetAt: now.Add(windowDur)}
		return Result{Allowed: true, Remaining: max - 1}, nil
	}

	w.count++
	if w.count > max {
		return Result{Allowed: false, Remaining: 0}, nil
	}
	return Result{Allowed: true, Remaining: max - w.count}, nil
}
