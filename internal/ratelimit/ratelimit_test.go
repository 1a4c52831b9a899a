package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/stancevote/stancevote/internal/logging"
)

func TestRedisLimiterCountsToMax(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedis(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "sms", "fp1", 3, time.Hour)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
		if res.Remaining != 2-i {
			t.Fatalf("call %d: expected remaining %d got %d", i, 2-i, res.Remaining)
		}
	}

	res, err := l.Allow(ctx, "sms", "fp1", 3, time.Hour)
	if err != nil {
		t.Fatalf("allow over max: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth call should be rejected")
	}

	// Independent key is unaffected.
	res, err = l.Allow(ctx, "sms", "fp2", 3, time.Hour)
	if err != nil || !res.Allowed {
		t.Fatalf("other key should be allowed: %v %+v", err, res)
	}
}

func TestRedisLimiterWindowReset(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedis(client)
	ctx := context.Background()

	if _, err := l.Allow(ctx, "sms", "fp1", 1, time.Minute); err != nil {
		t.Fatalf("allow: %v", err)
	}
	res, _ := l.Allow(ctx, "sms", "fp1", 1, time.Minute)
	if res.Allowed {
		t.Fatal("second call should be rejected")
	}

	mr.FastForward(2 * time.Minute)

	res, err = l.Allow(ctx, "sms", "fp1", 1, time.Minute)
	if err != nil {
		t.Fatalf("allow after reset: %v", err)
	}
	if !res.Allowed {
		t.Fatal("call after window reset should be allowed")
	}
}

func TestMemoryLimiterConcurrentIncrements(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	const calls = 50
	const max = 10

	var wg sync.WaitGroup
	allowed := make(chan bool, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "vote", "global", max, time.Hour)
			if err != nil {
				t.Errorf("allow: %v", err)
				return
			}
			allowed <- res.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	got := 0
	for ok := range allowed {
		if ok {
			got++
		}
	}
	if got != max {
		t.Fatalf("expected exactly %d allowed, got %d", max, got)
	}
}

func TestCheckFailurePolicies(t *testing.T) {
	logger := logging.Discard()
	ctx := context.Background()

	broken := limiterFunc(func(context.Context, string, string, int, time.Duration) (Result, error) {
		return Result{}, errors.New("store down")
	})

	err := Check(ctx, broken, logger, Bucket{Bucket: "probe", Key: "k", Max: 1, Window: time.Minute, FailOpen: true})
	if err != nil {
		t.Fatalf("fail-open bucket must pass on store outage, got %v", err)
	}

	err = Check(ctx, broken, logger, Bucket{Bucket: "sms", Key: "k", Max: 1, Window: time.Minute})
	if err == nil || errors.Is(err, ErrRateLimited) {
		t.Fatalf("fail-closed bucket must surface store error, got %v", err)
	}

	exhausted := limiterFunc(func(context.Context, string, string, int, time.Duration) (Result, error) {
		return Result{Allowed: false}, nil
	})
	if err := Check(ctx, exhausted, logger, Bucket{Bucket: "sms", Key: "k", Max: 1, Window: time.Minute}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

type limiterFunc func(ctx context.Context, bucket, key string, max int, window time.Duration) (Result, error)

func (f limiterFunc) Allow(ctx context.Context, bucket, key string, max int, window time.Duration) (Result, error) {
	return f(ctx, bucket, key, max, window)
}
