package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRateLimited indicates the window for a bucket/key pair is exhausted.
var ErrRateLimited = errors.New("rate limited")

// Result reports the outcome of a single counter check.
type Result struct {
	Allowed   bool
	Remaining int
}

// Limiter is a windowed counter keyed by (bucket, key). Implementations must
// increment atomically; read-then-write counters race under concurrent
// requests for the same key.
type Limiter interface {
	Allow(ctx context.Context, bucket, key string, max int, window time.Duration) (Result, error)
}

// Bucket describes one granularity of limiting applied to an action. A single
// action typically checks several buckets (per-phone, per-IP, global) and all
// must pass. FailOpen controls store-outage behavior: anti-abuse layers on
// read paths degrade gracefully, while SMS issuance and vote casting block.
type Bucket struct {
	Bucket   string
	Key      string
	Max      int
	Window   time.Duration
	FailOpen bool
}

// Check runs every bucket in order against the limiter. The first exhausted
// bucket stops the scan with ErrRateLimited.
func Check(ctx context.Context, l Limiter, logger *slog.Logger, buckets ...Bucket) error {
	for _, b := range buckets {
		res, err := l.Allow(ctx, b.Bucket, b.Key, b.Max, b.Window)
		if err != nil {
			if b.FailOpen {
				logger.Warn("rate limit store unavailable, failing open", "bucket", b.Bucket, "error", err)
				continue
			}
			return fmt.Errorf("rate limit store: %w", err)
		}
		if !res.Allowed {
			return ErrRateLimited
		}
	}
	return nil
}
