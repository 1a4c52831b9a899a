package deviceslot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/stancevote/stancevote/internal/logging"
)

func newGuard(t *testing.T, capacity int, ttl time.Duration) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisGuard(client, capacity, ttl, logging.Discard()), mr
}

func TestReserveUpToCap(t *testing.T) {
	g, _ := newGuard(t, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := g.Reserve(ctx, "d1", fmt.Sprintf("lk%d", i)); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}

	if err := g.Reserve(ctx, "d1", "lk4"); !errors.Is(err, ErrTooManyPending) {
		t.Fatalf("expected ErrTooManyPending, got %v", err)
	}

	// Another device is unaffected.
	if err := g.Reserve(ctx, "d2", "lk1"); err != nil {
		t.Fatalf("other device: %v", err)
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	g, _ := newGuard(t, 1, time.Hour)
	ctx := context.Background()

	if err := g.Reserve(ctx, "d1", "lk1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := g.Reserve(ctx, "d1", "lk2"); !errors.Is(err, ErrTooManyPending) {
		t.Fatalf("expected ErrTooManyPending, got %v", err)
	}

	g.Release(ctx, "d1", "lk1")

	if err := g.Reserve(ctx, "d1", "lk2"); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestExpiredSlotsPrunedLazily(t *testing.T) {
	g, _ := newGuard(t, 1, time.Hour)
	ctx := context.Background()

	if err := g.Reserve(ctx, "d1", "lk1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Step the guard's clock past the slot expiry; the stale member is
	// dropped during the next reservation, no sweeper involved.
	g.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if err := g.Reserve(ctx, "d1", "lk2"); err != nil {
		t.Fatalf("reserve after expiry: %v", err)
	}
}

func TestStoreOutageFailsOpen(t *testing.T) {
	g, mr := newGuard(t, 1, time.Hour)
	ctx := context.Background()

	if err := g.Reserve(ctx, "d1", "lk1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	mr.Close()

	if err := g.Reserve(ctx, "d1", "lk2"); err != nil {
		t.Fatalf("store outage must fail open, got %v", err)
	}
}
