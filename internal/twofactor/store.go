package twofactor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCodeInvalid covers absent, expired, and mismatched codes alike so
	// that the verifier never acts as an oracle for which case occurred.
	ErrCodeInvalid = errors.New("invalid or expired code")
	// ErrBackendUnavailable indicates the challenge backend is unreachable.
	ErrBackendUnavailable = errors.New("challenge backend unavailable")
)

// Config holds challenge store tuning parameters.
type Config struct {
	CodeDigits   int
	CodeTTL      time.Duration
	SendCooldown time.Duration
}

// Store keeps at most one live challenge code per user, with TTL. Issuing a
// new code overwrites the previous one; verifying a code consumes it.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// NewStore creates a challenge [Store] backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient, cfg Config) *Store {
	if cfg.CodeDigits == 0 {
		cfg.CodeDigits = 6
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.SendCooldown <= 0 {
		cfg.SendCooldown = 10 * time.Second
	}
	return &Store{redis: redisClient, config: cfg}
}

func (s *Store) key(userID string) string {
	return "2fa:" + userID
}

func (s *Store) cooldownKey(email string) string {
	return "mail_cooldown:" + email
}

// Issue generates a fresh code for userID and stores it with the configured
// TTL, replacing any live challenge for that user.
func (s *Store) Issue(ctx context.Context, userID string) (string, error) {
	code, err := NewCode(s.config.CodeDigits)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(userID), code, s.config.CodeTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return code, nil
}

// Verify checks submitted against the live challenge for userID and deletes
// it on success (one-time use). The comparison is constant-time after a
// cheap length pre-check; a failed attempt leaves the stored code live until
// its own TTL expires. Attempt budgeting belongs to the guard layer.
func (s *Store) Verify(ctx context.Context, userID, submitted string) error {
	stored, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if len(submitted) != len(stored) {
		return ErrCodeInvalid
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) != 1 {
		return ErrCodeInvalid
	}

	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// AcquireSendCooldown claims the per-address mail cooldown marker. It
// reports false when a recent send already holds the marker, in which case
// the caller should skip delivery.
func (s *Store) AcquireSendCooldown(ctx context.Context, email string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.cooldownKey(email), "1", s.config.SendCooldown).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return ok, nil
}

// ReleaseSendCooldown drops the cooldown marker so a failed delivery can be
// retried immediately.
func (s *Store) ReleaseSendCooldown(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.cooldownKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
