package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimitExceeded indicates the fixed-window budget for a key is spent.
	ErrLimitExceeded = errors.New("rate limit exceeded")
	// ErrBackendUnavailable indicates the counter backend is unreachable.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)

// Window is one named fixed-window budget. Guards are configured with the
// windows they are responsible for and ignore all others.
type Window struct {
	Name   string
	Limit  int
	Period time.Duration
}

// Limiter maintains fixed-window counters in Redis. Each (window, key) pair
// gets its own counter; the window resets when the first-hit TTL lapses.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a fixed-window [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

func counterKey(w Window, key string) string {
	return "rlw:" + w.Name + ":" + key
}

// Hit consumes one slot of the window for key. Returns [ErrLimitExceeded]
// once the count within the live window passes the limit.
func (l *Limiter) Hit(ctx context.Context, w Window, key string) error {
	count, err := l.redis.Incr(ctx, counterKey(w, key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set only by the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, counterKey(w, key), w.Period).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if count > int64(w.Limit) {
		return ErrLimitExceeded
	}
	return nil
}

// Count returns the current in-window count for key. Missing counters are 0.
func (l *Limiter) Count(ctx context.Context, w Window, key string) (int, error) {
	count, err := l.redis.Get(ctx, counterKey(w, key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return int(count), nil
}

// Reset clears the window counter for key.
func (l *Limiter) Reset(ctx context.Context, w Window, key string) error {
	if err := l.redis.Del(ctx, counterKey(w, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
