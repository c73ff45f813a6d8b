package penalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSchedule is the escalating block duration per violation level:
// 1 minute, 5 minutes, 15 minutes, 24 hours. Levels past the end of the
// schedule repeat the last entry.
var DefaultSchedule = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	24 * time.Hour,
}

// DefaultLevelTTL is the rolling horizon after which a subject's violation
// level expires, independent of any active block.
const DefaultLevelTTL = 24 * time.Hour

var (
	// ErrBackendUnavailable indicates the penalty store is unreachable.
	ErrBackendUnavailable = errors.New("penalty backend unavailable")
)

// BlockStatus reports whether a subject is currently blocked and for how
// much longer.
type BlockStatus struct {
	Blocked  bool
	TimeLeft time.Duration
}

// Config holds penalty manager tuning parameters.
type Config struct {
	Schedule []time.Duration
	LevelTTL time.Duration
}

// Manager tracks progressive penalties for abuse-tracking keys in Redis.
// Keys are caller-defined subjects such as "ip:203.0.113.7" or
// "account:student@avans.nl"; the manager owns the "block:" and "level:"
// namespaces beneath them.
type Manager struct {
	redis    redis.UniversalClient
	schedule []time.Duration
	levelTTL time.Duration
}

// New creates a penalty [Manager] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Manager {
	schedule := cfg.Schedule
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	levelTTL := cfg.LevelTTL
	if levelTTL <= 0 {
		levelTTL = DefaultLevelTTL
	}
	return &Manager{
		redis:    redisClient,
		schedule: schedule,
		levelTTL: levelTTL,
	}
}

func blockKey(key string) string { return "block:" + key }
func levelKey(key string) string { return "level:" + key }

// GetBlockData reads the current block state for key. It has no side
// effects; a missing block yields {Blocked: false, TimeLeft: 0}.
func (m *Manager) GetBlockData(ctx context.Context, key string) (BlockStatus, error) {
	err := m.redis.Get(ctx, blockKey(key)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return BlockStatus{}, nil
		}
		return BlockStatus{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	ttl, err := m.redis.TTL(ctx, blockKey(key)).Result()
	if err != nil {
		return BlockStatus{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ttl < 0 {
		// Key vanished or carries no expiry between the two calls.
		ttl = 0
	}

	return BlockStatus{Blocked: true, TimeLeft: ttl}, nil
}

// ApplyPenalty escalates the violation level for key and installs a block
// whose duration is drawn from the schedule at that level. The level
// increment uses the store's atomic INCR so concurrent violations for the
// same key never lose updates. Returns the applied block duration.
func (m *Manager) ApplyPenalty(ctx context.Context, key string) (time.Duration, error) {
	level, err := m.redis.Incr(ctx, levelKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// The level horizon refreshes on every violation, not just the first.
	if err := m.redis.Expire(ctx, levelKey(key), m.levelTTL).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	idx := int(level) - 1
	if idx >= len(m.schedule) {
		idx = len(m.schedule) - 1
	}
	duration := m.schedule[idx]

	if err := m.redis.Set(ctx, blockKey(key), "1", duration).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return duration, nil
}

// ResetPenalty deletes both the block and the level counter for key.
// Idempotent: resetting an untracked key is a no-op.
func (m *Manager) ResetPenalty(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, blockKey(key), levelKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Level returns the current violation level for key. Missing keys are level 0.
func (m *Manager) Level(ctx context.Context, key string) (int, error) {
	level, err := m.redis.Get(ctx, levelKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return int(level), nil
}

// FormatTime renders a duration for user-facing block messages:
// "<n> seconds" under a minute, "<n> minute(s)" under an hour (rounded up),
// otherwise "<n> hour(s)" (rounded up).
func FormatTime(d time.Duration) string {
	seconds := int64(d.Round(time.Second) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%d minute(s)", (seconds+59)/60)
	}
	return fmt.Sprintf("%d hour(s)", (seconds+3599)/3600)
}
