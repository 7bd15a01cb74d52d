// Package rate throttles failed login attempts per identifier using
// fixed-window Redis counters.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned when an identifier has exhausted its attempt budget.
var ErrLimited = errors.New("too many login attempts")

// Limiter enforces a per-identifier failed-login budget.
type Limiter struct {
	rdb    redis.UniversalClient
	max    int
	window time.Duration
}

func New(rdb redis.UniversalClient, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, max: maxAttempts, window: window}
}

// Check reports whether the identifier is still within its budget.
// Missing keys count as zero and do not reveal account existence.
func (l *Limiter) Check(ctx context.Context, identifier string) error {
	count, err := l.rdb.Get(ctx, key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("rate check: %w", err)
	}
	if count >= int64(l.max) {
		return ErrLimited
	}
	return nil
}

// Fail records a failed attempt for the identifier.
func (l *Limiter) Fail(ctx context.Context, identifier string) error {
	count, err := l.rdb.Incr(ctx, key(identifier)).Result()
	if err != nil {
		return fmt.Errorf("rate incr: %w", err)
	}
	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.rdb.Expire(ctx, key(identifier), l.window).Err(); err != nil {
			return fmt.Errorf("rate expire: %w", err)
		}
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.rdb.Del(ctx, key(identifier)).Err()
}

func key(identifier string) string {
	return "login_attempts:" + identifier
}
