package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured.
const DefaultHashCost = 12

// Hasher hashes and verifies passwords with bcrypt. The produced digest embeds
// its own salt and cost, so Verify needs no extra state.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to the range
// bcrypt accepts. Zero or negative selects DefaultHashCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = DefaultHashCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash produces a bcrypt digest of password. Empty input is rejected; the
// plaintext must never be stored or logged.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether password matches the stored digest. A mismatch is a
// normal false, never an error.
func (h *Hasher) Verify(password, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
