package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a valid bcrypt hash of an unguessable throwaway value. When
// the looked-up account does not exist, Verify still compares against this
// hash so the failure path costs one bcrypt comparison either way. Required
// property: "no such user" and "wrong password" must be indistinguishable
// in timing.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// DefaultCost is the bcrypt work factor used when hashing new credentials.
const DefaultCost = 10

// Verifier performs fixed-cost credential comparisons.
type Verifier struct {
	cost int
}

// NewVerifier returns a [Verifier] with the given bcrypt cost for hashing.
// Cost 0 selects [DefaultCost].
func NewVerifier(cost int) *Verifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Verifier{cost: cost}
}

// Verify reports whether candidate matches hash. A mismatch is not an
// error; only a malformed hash is.
func (v *Verifier) Verify(hash, candidate string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// VerifyDummy burns one bcrypt comparison against the fixed dummy hash and
// always reports no match. Called on the no-such-account path to keep its
// latency aligned with the wrong-password path.
func (v *Verifier) VerifyDummy(candidate string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(candidate))
	return false
}

// Hash produces a bcrypt hash of password at the verifier's cost.
func (v *Verifier) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
