package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalid covers malformed, mis-signed, and expired tokens.
	ErrInvalid = errors.New("invalid token")
	// ErrWrongKind is returned when a pending token is presented where a
	// session token is required, or the other way around.
	ErrWrongKind = errors.New("wrong token kind")
)

// Config holds signing parameters for both token kinds.
type Config struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration // full session tokens
	PendingTTL time.Duration // pending-2FA tokens
}

// Claims is the single claim set used by both session and pending tokens.
// IsTemp marks a pending-2FA token: proof of password-stage success that is
// insufficient on its own for resource access.
type Claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	IsTemp bool   `json:"isTemp,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies session and pending-2FA tokens with HS256.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a token [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.SessionTTL <= 0 || cfg.PendingTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &Manager{config: cfg}, nil
}

// IssueSession signs a full session token for the user, valid for the
// configured session TTL.
func (m *Manager) IssueSession(userID, name, email string) (string, error) {
	return m.sign(Claims{
		UserID: userID,
		Name:   name,
		Email:  email,
	}, m.config.SessionTTL)
}

// IssuePending signs a short-lived pending-2FA token carrying only the user
// id and the temp marker.
func (m *Manager) IssuePending(userID string) (string, error) {
	return m.sign(Claims{
		UserID: userID,
		IsTemp: true,
	}, m.config.PendingTTL)
}

func (m *Manager) sign(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// ParseSession verifies a full session token. Pending tokens are rejected
// with [ErrWrongKind] so the temp credential can never reach session-only
// surfaces.
func (m *Manager) ParseSession(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.IsTemp {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ParsePending verifies a pending-2FA token. A full session token presented
// here is rejected with [ErrWrongKind]: holding a session must not let a
// caller replay the 2FA confirmation step.
func (m *Manager) ParsePending(tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if !claims.IsTemp {
		return nil, ErrWrongKind
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}

// DecodeUnverified decodes a token's claims WITHOUT checking the signature
// or expiry. It exists solely so the throttle guard can derive a tracking
// key from the claimed identity; it must never feed an authorization
// decision.
func (m *Manager) DecodeUnverified(tokenStr string) (*Claims, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, false
	}
	if claims.UserID == "" {
		return nil, false
	}
	return claims, true
}
