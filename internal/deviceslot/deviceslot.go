package deviceslot

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyPending indicates the device already holds the maximum number of
// outstanding ballot links.
var ErrTooManyPending = errors.New("too many pending ballot links")

const (
	slotKeyPrefix = "slots:"
	ttlMargin     = time.Hour
)

// Guard caps how many unexpired, unredeemed ballot links one device may hold.
// Members are keyed by link token so every pending link counts as its own
// slot, even when one phone holds several. Best-effort anti-abuse, not a
// correctness invariant: store outages fail open.
type Guard interface {
	Reserve(ctx context.Context, deviceID, linkToken string) error
	Release(ctx context.Context, deviceID, linkToken string)
}

// RedisGuard keeps one sorted set per device, scored by slot expiry, so
// expired reservations can be dropped with a range delete instead of a
// background sweeper.
type RedisGuard struct {
	client *redis.Client
	cap    int
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisGuard builds the guard. ttl should match the ballot link lifetime.
func NewRedisGuard(client *redis.Client, capacity int, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	return &RedisGuard{client: client, cap: capacity, ttl: ttl, logger: logger, now: time.Now}
}

// Reserve claims a slot for the link on this device. Expired members are
// pruned lazily first; if the device is still at capacity the reservation is
// refused.
func (g *RedisGuard) Reserve(ctx context.Context, deviceID, linkToken string) error {
	key := slotKeyPrefix + deviceID
	now := g.now()

	if err := g.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.Unix(), 10)).Err(); err != nil {
		g.logger.Warn("device slot store unavailable, failing open", "error", err)
		return nil
	}

	held, err := g.client.ZCard(ctx, key).Result()
	if err != nil {
		g.logger.Warn("device slot store unavailable, failing open", "error", err)
		return nil
	}
	if held >= int64(g.cap) {
		return ErrTooManyPending
	}

	expiry := now.Add(g.ttl)
	if err := g.client.ZAdd(ctx, key, redis.Z{Score: float64(expiry.Unix()), Member: linkToken}).Err(); err != nil {
		g.logger.Warn("device slot reservation failed, failing open", "error", err)
		return nil
	}
	g.client.Expire(ctx, key, g.ttl+ttlMargin)
	return nil
}

// Release frees the slot after redemption or delivery failure. Best effort.
func (g *RedisGuard) Release(ctx context.Context, deviceID, linkToken string) {
	if err := g.client.ZRem(ctx, slotKeyPrefix+deviceID, linkToken).Err(); err != nil {
		g.logger.Warn("device slot release failed", "error", err)
	}
}

// NoopGuard disables the cap. Used when no Redis is configured in dev.
type NoopGuard struct{}

// Reserve always succeeds.
func (NoopGuard) Reserve(context.Context, string, string) error { return nil }

// Release does nothing.
func (NoopGuard) Release(context.Context, string, string) {}
